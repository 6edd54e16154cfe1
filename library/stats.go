package library

import (
	"fmt"
	"sort"
)

// RateBook appends a 1-5 rating and, when the comment is non-empty, a review
// from a user who has borrowed the book at least once (active or past loan).
func (s *LibraryService) RateBook(userID, bookID string, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rate book: %w", ErrInvalidRating)
	}

	book, err := s.GetBook(bookID)
	if err != nil {
		return fmt.Errorf("rate book: %w", err)
	}

	borrowed := false
	for _, l := range s.state.Loans {
		if l.UserID == userID && l.BookID == bookID {
			borrowed = true
			break
		}
	}
	if !borrowed {
		return fmt.Errorf("rate book %q: user never borrowed it: %w", bookID, ErrNotEligible)
	}

	book.Ratings = append(book.Ratings, rating)
	if comment != "" {
		book.Comments = append(book.Comments, Comment{UserID: userID, Text: comment})
	}

	return s.persist("rate book")
}

// BookReviews returns the stored comments for a book.
func (s *LibraryService) BookReviews(bookID string) ([]Comment, error) {
	book, err := s.GetBook(bookID)
	if err != nil {
		return nil, fmt.Errorf("book reviews: %w", err)
	}
	return book.Comments, nil
}

// PopularBooks returns up to limit books by loan history length, most
// borrowed first. Ties sort by title so the order is stable.
func (s *LibraryService) PopularBooks(limit int) []*Book {
	books := make([]*Book, 0, len(s.state.Books))
	for _, b := range s.state.Books {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool {
		if len(books[i].LoanHistory) != len(books[j].LoanHistory) {
			return len(books[i].LoanHistory) > len(books[j].LoanHistory)
		}
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].ID < books[j].ID
	})
	if limit >= 0 && len(books) > limit {
		books = books[:limit]
	}
	return books
}

// BookStats is one row of the popular-books ranking.
type BookStats struct {
	BookID string `json:"book_id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Loans  int    `json:"loans"`
}

// UserStats is one row of the active-users ranking.
type UserStats struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Loans    int    `json:"loans"`
}

// Statistics are the aggregate numbers shown on the admin dashboard.
type Statistics struct {
	OccupationRate float64     `json:"occupation_rate"`
	PopularBooks   []BookStats `json:"popular_books"`
	ActiveUsers    []UserStats `json:"active_users"`
}

// Statistics computes the copy occupation rate and the top-5 rankings of
// books by loan history and users by total loans.
func (s *LibraryService) Statistics() Statistics {
	totalCopies := 0
	for _, b := range s.state.Books {
		totalCopies += len(b.Copies)
	}

	activeLoans := 0
	userCounts := make(map[string]int)
	for _, l := range s.state.Loans {
		if l.IsActive() {
			activeLoans++
		}
		userCounts[l.UserID]++
	}

	rate := 0.0
	if totalCopies > 0 {
		rate = float64(activeLoans) / float64(totalCopies) * 100
	}

	popular := make([]BookStats, 0, len(s.state.Books))
	for _, b := range s.state.Books {
		popular = append(popular, BookStats{
			BookID: b.ID,
			Title:  b.Title,
			Author: b.Author,
			Loans:  len(b.LoanHistory),
		})
	}
	sort.Slice(popular, func(i, j int) bool {
		if popular[i].Loans != popular[j].Loans {
			return popular[i].Loans > popular[j].Loans
		}
		return popular[i].Title < popular[j].Title
	})
	if len(popular) > 5 {
		popular = popular[:5]
	}

	active := make([]UserStats, 0, len(userCounts))
	for uid, count := range userCounts {
		username := uid
		if u, ok := s.state.Users[uid]; ok {
			username = u.Username
		}
		active = append(active, UserStats{UserID: uid, Username: username, Loans: count})
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Loans != active[j].Loans {
			return active[i].Loans > active[j].Loans
		}
		return active[i].Username < active[j].Username
	})
	if len(active) > 5 {
		active = active[:5]
	}

	return Statistics{
		OccupationRate: rate,
		PopularBooks:   popular,
		ActiveUsers:    active,
	}
}
