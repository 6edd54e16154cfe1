package library

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// LibraryService owns every business rule: it mutates the in-memory
// aggregate and persists the whole snapshot after each mutation. There is a
// single writer; callers that want to share a service across goroutines must
// wrap each method call in their own mutual-exclusion boundary.
type LibraryService struct {
	store    Store
	state    *LibraryState
	verifier CredentialVerifier
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures optional service collaborators.
type Option func(*LibraryService)

// WithVerifier swaps the credential check used by CreateUser/Authenticate.
func WithVerifier(v CredentialVerifier) Option {
	return func(s *LibraryService) { s.verifier = v }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *LibraryService) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *LibraryService) { s.now = now }
}

// NewLibraryService loads the current snapshot from the store.
func NewLibraryService(store Store, opts ...Option) (*LibraryService, error) {
	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load library state: %w", err)
	}

	svc := &LibraryService{
		store:    store,
		state:    state,
		verifier: PlainVerifier{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// State exposes the aggregate for read-only display collaborators.
func (s *LibraryService) State() *LibraryState { return s.state }

func (s *LibraryService) today() Date { return DateOf(s.now()) }

// persist saves the whole snapshot. A failure is surfaced to the caller but
// never rolls back the in-memory mutation: memory and disk may diverge until
// the next successful save, and saving again is always safe.
func (s *LibraryService) persist(op string) error {
	if err := s.store.Save(s.state); err != nil {
		s.logger.Error("snapshot save failed", "op", op, "error", err)
		return fmt.Errorf("%s: save snapshot: %w", op, err)
	}
	return nil
}

// ------------------ Users ------------------

// CreateUser registers an account with a fresh subscription running
// durationDays from today. Usernames are unique, case-sensitively. The tier
// must be a known one; anything else would poison the snapshot, which
// refuses unknown tiers on load.
func (s *LibraryService) CreateUser(username, password string, isAdmin bool, subType SubscriptionType, durationDays int) (*User, error) {
	if !knownSubscriptionType(subType) {
		return nil, fmt.Errorf("create user %q: subscription type %q: %w", username, subType, ErrUnknownSubscription)
	}
	for _, u := range s.state.Users {
		if u.Username == username {
			return nil, fmt.Errorf("create user %q: %w", username, ErrDuplicateUsername)
		}
	}

	stored, err := s.verifier.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("create user %q: hash credential: %w", username, err)
	}

	role := RoleUser
	if isAdmin {
		role = RoleAdmin
	}

	user := &User{
		ID:       uuid.NewString(),
		Username: username,
		Password: stored,
		Role:     role,
		Subscription: Subscription{
			Type:      subType,
			ExpiresAt: s.today().AddDays(durationDays),
		},
		MonthlyCounterYearMonth: s.now().Format(yearMonthLayout),
		Notifications:           []string{},
	}
	s.state.Users[user.ID] = user

	return user, s.persist("create user")
}

// Authenticate scans for a user with matching username and credential.
// Absence is the signal: there is no distinct error for a failed login.
func (s *LibraryService) Authenticate(username, password string) (*User, bool) {
	for _, u := range s.state.Users {
		if u.Username == username && s.verifier.Verify(u.Password, password) {
			return u, true
		}
	}
	return nil, false
}

// GetUser looks a user up by id.
func (s *LibraryService) GetUser(userID string) (*User, error) {
	u, ok := s.state.Users[userID]
	if !ok {
		return nil, fmt.Errorf("get user %q: %w", userID, ErrNotFound)
	}
	return u, nil
}

// GetUserLoans lists a user's loans, most recently borrowed first.
func (s *LibraryService) GetUserLoans(userID string, activeOnly bool) []*Loan {
	var loans []*Loan
	for _, l := range s.state.Loans {
		if l.UserID != userID {
			continue
		}
		if activeOnly && !l.IsActive() {
			continue
		}
		loans = append(loans, l)
	}
	sort.Slice(loans, func(i, j int) bool {
		if !loans[i].BorrowedAt.Equal(loans[j].BorrowedAt.Time) {
			return loans[i].BorrowedAt.After(loans[j].BorrowedAt.Time)
		}
		return loans[i].ID < loans[j].ID
	})
	return loans
}

// GetUserReservations lists a user's reservations, oldest first.
func (s *LibraryService) GetUserReservations(userID string) []*Reservation {
	var res []*Reservation
	for _, r := range s.state.Reservations {
		if r.UserID == userID {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res
}

// ChangeSubscription replaces the tier and extends the expiry by extraDays
// from whichever is later: the current expiry or today. Remaining paid time
// is never lost.
func (s *LibraryService) ChangeSubscription(userID string, newType SubscriptionType, extraDays int) error {
	if !knownSubscriptionType(newType) {
		return fmt.Errorf("change subscription: subscription type %q: %w", newType, ErrUnknownSubscription)
	}
	user, err := s.GetUser(userID)
	if err != nil {
		return fmt.Errorf("change subscription: %w", err)
	}

	base := user.Subscription.ExpiresAt
	if today := s.today(); base.Before(today.Time) {
		base = today
	}
	user.Subscription.Type = newType
	user.Subscription.ExpiresAt = base.AddDays(extraDays)

	return s.persist("change subscription")
}

// DrainNotifications returns the user's pending notifications and clears
// the stored list.
func (s *LibraryService) DrainNotifications(userID string) ([]string, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("drain notifications: %w", err)
	}
	if len(user.Notifications) == 0 {
		return nil, nil
	}

	drained := make([]string, len(user.Notifications))
	copy(drained, user.Notifications)
	user.Notifications = []string{}

	return drained, s.persist("drain notifications")
}
