package library

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// AddBook registers a title with the given number of fresh available copies.
// A negative count means no copies.
func (s *LibraryService) AddBook(title, author, category string, copies int) (*Book, error) {
	if copies < 0 {
		copies = 0
	}
	book := &Book{
		ID:          uuid.NewString(),
		Title:       title,
		Author:      author,
		Category:    category,
		Copies:      make([]BookCopy, 0, copies),
		Ratings:     []int{},
		Comments:    []Comment{},
		LoanHistory: []string{},
	}
	for i := 0; i < copies; i++ {
		book.Copies = append(book.Copies, BookCopy{ID: uuid.NewString(), Status: CopyAvailable})
	}

	s.state.Books[book.ID] = book
	return book, s.persist("add book")
}

// GetBook looks a book up by id.
func (s *LibraryService) GetBook(bookID string) (*Book, error) {
	b, ok := s.state.Books[bookID]
	if !ok {
		return nil, fmt.Errorf("get book %q: %w", bookID, ErrNotFound)
	}
	return b, nil
}

// RemoveBook deletes a book and cascades deletion to its reservations.
// Refused while any loan on the book is still active.
func (s *LibraryService) RemoveBook(bookID string) error {
	if _, ok := s.state.Books[bookID]; !ok {
		return fmt.Errorf("remove book %q: %w", bookID, ErrNotFound)
	}
	for _, loan := range s.state.Loans {
		if loan.BookID == bookID && loan.IsActive() {
			return fmt.Errorf("remove book %q: %w", bookID, ErrBookHasActiveLoans)
		}
	}

	delete(s.state.Books, bookID)
	for rid, r := range s.state.Reservations {
		if r.BookID == bookID {
			delete(s.state.Reservations, rid)
		}
	}

	return s.persist("remove book")
}

// AddCopies appends count fresh available copies to a book.
func (s *LibraryService) AddCopies(bookID string, count int) error {
	book, err := s.GetBook(bookID)
	if err != nil {
		return fmt.Errorf("add copies: %w", err)
	}
	for i := 0; i < count; i++ {
		book.Copies = append(book.Copies, BookCopy{ID: uuid.NewString(), Status: CopyAvailable})
	}
	return s.persist("add copies")
}

// SetCopyStatus overwrites a copy's status. Any status may follow any other;
// there is deliberately no transition legality check.
func (s *LibraryService) SetCopyStatus(bookID, copyID string, status CopyStatus) error {
	if !knownCopyStatus(status) {
		return fmt.Errorf("set copy status: unknown status %q", status)
	}
	book, err := s.GetBook(bookID)
	if err != nil {
		return fmt.Errorf("set copy status: %w", err)
	}

	found := false
	for i := range book.Copies {
		if book.Copies[i].ID == copyID {
			book.Copies[i].Status = status
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("set copy status: copy %q: %w", copyID, ErrNotFound)
	}

	return s.persist("set copy status")
}

// SearchBooks filters the catalog. A non-empty query matches title or author
// as a case-insensitive substring; category and author, when given, must
// match exactly (case-insensitive). Filters combine with AND. Results come
// back sorted by title so the order is deterministic for a fixed state.
func (s *LibraryService) SearchBooks(query, category, author string) []*Book {
	q := strings.ToLower(query)

	var result []*Book
	for _, book := range s.state.Books {
		if q != "" &&
			!strings.Contains(strings.ToLower(book.Title), q) &&
			!strings.Contains(strings.ToLower(book.Author), q) {
			continue
		}
		if category != "" && !strings.EqualFold(book.Category, category) {
			continue
		}
		if author != "" && !strings.EqualFold(book.Author, author) {
			continue
		}
		result = append(result, book)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Title != result[j].Title {
			return result[i].Title < result[j].Title
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// BookHistory resolves a book's loan history ids in recorded order.
func (s *LibraryService) BookHistory(bookID string) ([]*Loan, error) {
	book, err := s.GetBook(bookID)
	if err != nil {
		return nil, fmt.Errorf("book history: %w", err)
	}

	loans := make([]*Loan, 0, len(book.LoanHistory))
	for _, lid := range book.LoanHistory {
		if loan, ok := s.state.Loans[lid]; ok {
			loans = append(loans, loan)
		}
	}
	return loans, nil
}
