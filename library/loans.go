package library

import (
	"fmt"

	"github.com/google/uuid"
)

func (s *LibraryService) activeLoansFor(userID string) int {
	count := 0
	for _, l := range s.state.Loans {
		if l.UserID == userID && l.IsActive() {
			count++
		}
	}
	return count
}

// BorrowBook lends the first available copy of a book to a user. The copy
// marking, history append, counter bump and loan insert happen together
// before the single persist call.
func (s *LibraryService) BorrowBook(userID, bookID string) (*Loan, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("borrow book: %w", err)
	}
	book, err := s.GetBook(bookID)
	if err != nil {
		return nil, fmt.Errorf("borrow book: %w", err)
	}

	if !user.CanBorrow(s.activeLoansFor(userID), s.now()) {
		return nil, fmt.Errorf("borrow book %q: %w", bookID, ErrNotEligible)
	}

	cp := book.AvailableCopy()
	if cp == nil {
		return nil, fmt.Errorf("borrow book %q: %w", bookID, ErrNoCopyAvailable)
	}

	borrowedAt := s.today()
	loan := &Loan{
		ID:         uuid.NewString(),
		UserID:     userID,
		BookID:     bookID,
		CopyID:     cp.ID,
		BorrowedAt: borrowedAt,
		DueDate:    borrowedAt.AddDays(user.Subscription.Policy().LoanDays),
	}

	cp.Status = CopyLoaned
	book.LoanHistory = append(book.LoanHistory, loan.ID)
	user.RegisterLoan(s.now())
	s.state.Loans[loan.ID] = loan

	s.logger.Info("loan created",
		"loan_id", loan.ID, "user", user.Username, "book", book.Title, "due", loan.DueDate.String())

	return loan, s.persist("borrow book")
}

// ReturnBook records a return. Repeated calls for the same loan are no-ops.
// A late return charges days_late * the tier's daily rate, accumulated onto
// the user's penalty balance.
func (s *LibraryService) ReturnBook(loanID string) error {
	loan, ok := s.state.Loans[loanID]
	if !ok {
		return fmt.Errorf("return book: loan %q: %w", loanID, ErrNotFound)
	}
	if !loan.IsActive() {
		return nil
	}

	returnedAt := s.today()
	loan.ReturnedAt = &returnedAt

	user, err := s.GetUser(loan.UserID)
	if err != nil {
		return fmt.Errorf("return book: %w", err)
	}

	// Restore the copy. The copy list is append-only, so a missing copy can
	// only come from an externally edited snapshot; skip silently then.
	if book, ok := s.state.Books[loan.BookID]; ok {
		for i := range book.Copies {
			if book.Copies[i].ID == loan.CopyID {
				book.Copies[i].Status = CopyAvailable
				break
			}
		}
	}

	if rate := user.Subscription.Policy().PenaltyPerDay; rate > 0 && returnedAt.After(loan.DueDate.Time) {
		daysLate := returnedAt.DaysSince(loan.DueDate)
		if daysLate < 1 {
			daysLate = 1
		}
		penalty := float64(daysLate) * rate
		loan.PenaltyApplied = penalty
		user.PenaltiesDue += penalty

		s.logger.Info("late return penalty",
			"loan_id", loan.ID, "user", user.Username, "days_late", daysLate, "penalty", penalty)
	}

	return s.persist("return book")
}

// SettlePenalties clears up to amount from the user's outstanding balance
// and returns what remains due.
func (s *LibraryService) SettlePenalties(userID string, amount float64) (float64, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return 0, fmt.Errorf("settle penalties: %w", err)
	}
	if amount <= 0 {
		return user.PenaltiesDue, fmt.Errorf("settle penalties: amount must be positive")
	}

	user.PenaltiesDue -= amount
	if user.PenaltiesDue < 0 {
		user.PenaltiesDue = 0
	}
	return user.PenaltiesDue, s.persist("settle penalties")
}
