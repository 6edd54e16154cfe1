package library

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// ReserveBook queues a user for a book that is fully checked out. Reserving
// while a copy is still available is refused, as is holding two reservations
// for the same book.
func (s *LibraryService) ReserveBook(userID, bookID string) (*Reservation, error) {
	if _, err := s.GetUser(userID); err != nil {
		return nil, fmt.Errorf("reserve book: %w", err)
	}
	book, err := s.GetBook(bookID)
	if err != nil {
		return nil, fmt.Errorf("reserve book: %w", err)
	}

	if book.AvailableCopy() != nil {
		return nil, fmt.Errorf("reserve book %q: %w", bookID, ErrCopyAvailable)
	}
	for _, r := range s.state.Reservations {
		if r.UserID == userID && r.BookID == bookID {
			return nil, fmt.Errorf("reserve book %q: %w", bookID, ErrDuplicateReservation)
		}
	}

	res := &Reservation{
		ID:        uuid.NewString(),
		UserID:    userID,
		BookID:    bookID,
		CreatedAt: s.now(),
	}
	s.state.Reservations[res.ID] = res

	return res, s.persist("reserve book")
}

// CancelReservation removes a reservation. Cancelling one that no longer
// exists is a no-op, not an error.
func (s *LibraryService) CancelReservation(reservationID string) error {
	delete(s.state.Reservations, reservationID)
	return s.persist("cancel reservation")
}

// BookReservations lists un-notified reservations for a book in FIFO order.
func (s *LibraryService) BookReservations(bookID string) []*Reservation {
	var pending []*Reservation
	for _, r := range s.state.Reservations {
		if r.BookID == bookID && !r.Notified {
			pending = append(pending, r)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID < pending[j].ID
	})
	return pending
}

// NotifyNextReservation notifies the longest-waiting un-notified reservation
// for a book that a copy has become available. Returning a book does not
// trigger this automatically; the caller decides when to invoke it.
func (s *LibraryService) NotifyNextReservation(bookID string) error {
	book, err := s.GetBook(bookID)
	if err != nil {
		return fmt.Errorf("notify reservation: %w", err)
	}

	pending := s.BookReservations(bookID)
	if len(pending) == 0 {
		return nil
	}
	next := pending[0]

	user, err := s.GetUser(next.UserID)
	if err != nil {
		return fmt.Errorf("notify reservation: %w", err)
	}

	user.Notifications = append(user.Notifications,
		fmt.Sprintf("Reserved book '%s' is now available", book.Title))
	next.Notified = true

	s.logger.Info("reservation notified",
		"reservation_id", next.ID, "user", user.Username, "book", book.Title)

	return s.persist("notify reservation")
}
