package library

import "errors"

// Domain rule violations. All are caller-recoverable; service methods wrap
// them with the failing operation so callers can match with errors.Is.
var (
	ErrDuplicateUsername    = errors.New("username already taken")
	ErrUnknownSubscription  = errors.New("unknown subscription type")
	ErrDuplicateReservation = errors.New("reservation already exists for this book")
	ErrNotEligible          = errors.New("user is not eligible")
	ErrNoCopyAvailable      = errors.New("no copy available")
	ErrCopyAvailable        = errors.New("a copy is still available, no need to reserve")
	ErrBookHasActiveLoans   = errors.New("book has active loans")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")
	ErrNotFound             = errors.New("not found")
)
