package library

import (
	"fmt"
	"time"
)

// Role separates regular users from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// CopyStatus tracks the state of a single physical copy.
type CopyStatus string

const (
	CopyAvailable CopyStatus = "available"
	CopyLoaned    CopyStatus = "loaned"
	CopyDamaged   CopyStatus = "damaged"
	CopyLost      CopyStatus = "lost"
)

// SubscriptionType determines borrowing limits and penalty rates.
type SubscriptionType string

const (
	SubscriptionBasic   SubscriptionType = "basic"
	SubscriptionPremium SubscriptionType = "premium"
	SubscriptionVIP     SubscriptionType = "vip"
)

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate builds a date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// DaysSince returns the whole-day difference d - other.
func (d Date) DaysSince(other Date) int {
	return int(d.Time.Sub(other.Time).Hours() / 24)
}

func (d Date) String() string { return d.Time.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Time.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s", s)
	}
	t, err := time.Parse(dateLayout, s[1:len(s)-1])
	if err != nil {
		return fmt.Errorf("invalid date %s: %w", s, err)
	}
	d.Time = t
	return nil
}

// Subscription is owned by exactly one user.
type Subscription struct {
	Type      SubscriptionType `json:"type"`
	ExpiresAt Date             `json:"expires_at"`
}

// Policy looks up the borrowing limits for the subscription's tier.
func (s Subscription) Policy() SubscriptionPolicy {
	return PolicyFor(s.Type)
}

// User is a registered account with its subscription and penalty balance.
type User struct {
	ID                      string       `json:"id"`
	Username                string       `json:"username"`
	Password                string       `json:"password"`
	Role                    Role         `json:"role"`
	Subscription            Subscription `json:"subscription"`
	PenaltiesDue            float64      `json:"penalties_due"`
	MonthlyLoanCounter      int          `json:"monthly_loan_counter"`
	MonthlyCounterYearMonth string       `json:"monthly_counter_year_month"`
	Notifications           []string     `json:"notifications"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

const yearMonthLayout = "2006-01"

// refreshMonthCounter resets the monthly loan counter when the stored
// period token no longer matches the current month. Lazy rollover, no timer.
func (u *User) refreshMonthCounter(now time.Time) {
	ym := now.Format(yearMonthLayout)
	if u.MonthlyCounterYearMonth != ym {
		u.MonthlyCounterYearMonth = ym
		u.MonthlyLoanCounter = 0
	}
}

// CanBorrow reports whether the user may take out another loan given the
// count of their currently active loans. The monthly rollover it performs is
// the only side effect.
func (u *User) CanBorrow(activeLoans int, now time.Time) bool {
	u.refreshMonthCounter(now)

	if u.PenaltiesDue > 0 {
		return false
	}
	if u.Subscription.ExpiresAt.Before(DateOf(now).Time) {
		return false
	}

	policy := u.Subscription.Policy()
	if activeLoans >= policy.MaxActiveLoans {
		return false
	}
	if u.MonthlyLoanCounter >= policy.MonthlyLoanCap {
		return false
	}
	return true
}

// RegisterLoan bumps the monthly counter for a freshly created loan.
func (u *User) RegisterLoan(now time.Time) {
	u.refreshMonthCounter(now)
	u.MonthlyLoanCounter++
}

// BookCopy is one lending unit of a book.
type BookCopy struct {
	ID     string     `json:"id"`
	Status CopyStatus `json:"status"`
}

// Comment is a user's review text attached to a book.
type Comment struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// Book holds the title metadata, its copies, and the full loan history.
type Book struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	Category    string     `json:"category"`
	Copies      []BookCopy `json:"copies"`
	Ratings     []int      `json:"ratings"`
	Comments    []Comment  `json:"comments"`
	LoanHistory []string   `json:"loan_history"`
}

// AvailableCopy returns the first available copy, or nil when every copy is
// loaned out, damaged or lost.
func (b *Book) AvailableCopy() *BookCopy {
	for i := range b.Copies {
		if b.Copies[i].Status == CopyAvailable {
			return &b.Copies[i]
		}
	}
	return nil
}

// AverageRating reports the mean rating; ok is false when the book has none.
func (b *Book) AverageRating() (avg float64, ok bool) {
	if len(b.Ratings) == 0 {
		return 0, false
	}
	sum := 0
	for _, r := range b.Ratings {
		sum += r
	}
	return float64(sum) / float64(len(b.Ratings)), true
}

// Loan records one borrowing of one copy. Loans are never deleted; a loan
// with no return date is active.
type Loan struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	BookID         string  `json:"book_id"`
	CopyID         string  `json:"copy_id"`
	BorrowedAt     Date    `json:"borrowed_at"`
	DueDate        Date    `json:"due_date"`
	ReturnedAt     *Date   `json:"returned_at"`
	PenaltyApplied float64 `json:"penalty_applied"`
}

func (l *Loan) IsActive() bool { return l.ReturnedAt == nil }

// Reservation queues a user for a fully checked-out book.
type Reservation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	BookID    string    `json:"book_id"`
	CreatedAt time.Time `json:"created_at"`
	Notified  bool      `json:"notified"`
}

// LibraryState is the aggregate root: every entity collection keyed by id.
// There is a single writer (the service) and the whole object is persisted
// after each mutation.
type LibraryState struct {
	Users        map[string]*User        `json:"users"`
	Books        map[string]*Book        `json:"books"`
	Loans        map[string]*Loan        `json:"loans"`
	Reservations map[string]*Reservation `json:"reservations"`
}

// NewLibraryState returns an empty state with initialized collections.
func NewLibraryState() *LibraryState {
	return &LibraryState{
		Users:        make(map[string]*User),
		Books:        make(map[string]*Book),
		Loans:        make(map[string]*Loan),
		Reservations: make(map[string]*Reservation),
	}
}

// Normalize fills defaults for genuinely optional fields and validates
// required ones. Stores call it after decoding a snapshot so corrupt data
// fails loudly instead of limping along. An empty month token is left as is;
// refreshMonthCounter stamps it with the service clock on first use.
func (s *LibraryState) Normalize() error {
	if s.Users == nil {
		s.Users = make(map[string]*User)
	}
	if s.Books == nil {
		s.Books = make(map[string]*Book)
	}
	if s.Loans == nil {
		s.Loans = make(map[string]*Loan)
	}
	if s.Reservations == nil {
		s.Reservations = make(map[string]*Reservation)
	}

	for id, u := range s.Users {
		if u == nil || u.ID == "" || u.Username == "" {
			return fmt.Errorf("user %q: missing required fields", id)
		}
		if u.Role == "" {
			u.Role = RoleUser
		}
		if u.Role != RoleUser && u.Role != RoleAdmin {
			return fmt.Errorf("user %q: unknown role %q", id, u.Role)
		}
		if !knownSubscriptionType(u.Subscription.Type) {
			return fmt.Errorf("user %q: unknown subscription type %q", id, u.Subscription.Type)
		}
		if u.Subscription.ExpiresAt.IsZero() {
			return fmt.Errorf("user %q: missing subscription expiry", id)
		}
		if u.Notifications == nil {
			u.Notifications = []string{}
		}
	}

	for id, b := range s.Books {
		if b == nil || b.ID == "" || b.Title == "" || b.Author == "" {
			return fmt.Errorf("book %q: missing required fields", id)
		}
		for i := range b.Copies {
			if b.Copies[i].ID == "" {
				return fmt.Errorf("book %q: copy without id", id)
			}
			if b.Copies[i].Status == "" {
				b.Copies[i].Status = CopyAvailable
			}
			if !knownCopyStatus(b.Copies[i].Status) {
				return fmt.Errorf("book %q: unknown copy status %q", id, b.Copies[i].Status)
			}
		}
		if b.Copies == nil {
			b.Copies = []BookCopy{}
		}
		if b.Ratings == nil {
			b.Ratings = []int{}
		}
		if b.Comments == nil {
			b.Comments = []Comment{}
		}
		if b.LoanHistory == nil {
			b.LoanHistory = []string{}
		}
	}

	for id, l := range s.Loans {
		if l == nil || l.ID == "" || l.UserID == "" || l.BookID == "" || l.CopyID == "" {
			return fmt.Errorf("loan %q: missing required fields", id)
		}
		if l.BorrowedAt.IsZero() || l.DueDate.IsZero() {
			return fmt.Errorf("loan %q: missing dates", id)
		}
	}

	for id, r := range s.Reservations {
		if r == nil || r.ID == "" || r.UserID == "" || r.BookID == "" {
			return fmt.Errorf("reservation %q: missing required fields", id)
		}
		if r.CreatedAt.IsZero() {
			return fmt.Errorf("reservation %q: missing creation time", id)
		}
	}

	return nil
}

func knownSubscriptionType(t SubscriptionType) bool {
	switch t {
	case SubscriptionBasic, SubscriptionPremium, SubscriptionVIP:
		return true
	}
	return false
}

func knownCopyStatus(s CopyStatus) bool {
	switch s {
	case CopyAvailable, CopyLoaned, CopyDamaged, CopyLost:
		return true
	}
	return false
}
