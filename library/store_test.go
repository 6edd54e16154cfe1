package library

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *LibraryState {
	state := NewLibraryState()
	state.Users["u1"] = &User{
		ID:       "u1",
		Username: "alice",
		Password: "secret",
		Role:     RoleUser,
		Subscription: Subscription{
			Type:      SubscriptionPremium,
			ExpiresAt: NewDate(2025, time.January, 1),
		},
		MonthlyCounterYearMonth: "2024-03",
		Notifications:           []string{"hello"},
	}
	state.Books["b1"] = &Book{
		ID:     "b1",
		Title:  "1984",
		Author: "George Orwell",
		Copies: []BookCopy{
			{ID: "c1", Status: CopyLoaned},
			{ID: "c2", Status: CopyAvailable},
		},
		Ratings:     []int{4, 5},
		Comments:    []Comment{{UserID: "u1", Text: "great"}},
		LoanHistory: []string{"l1"},
	}
	returned := NewDate(2024, time.March, 20)
	state.Loans["l1"] = &Loan{
		ID:             "l1",
		UserID:         "u1",
		BookID:         "b1",
		CopyID:         "c1",
		BorrowedAt:     NewDate(2024, time.March, 1),
		DueDate:        NewDate(2024, time.March, 15),
		ReturnedAt:     &returned,
		PenaltyApplied: 1.25,
	}
	state.Reservations["r1"] = &Reservation{
		ID:        "r1",
		UserID:    "u1",
		BookID:    "b1",
		CreatedAt: time.Date(2024, time.March, 5, 10, 30, 0, 0, time.UTC),
	}
	return state
}

func TestJSONStoreLoadFreshPath(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "library.json"))

	state, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Users)
	assert.Empty(t, state.Books)
}

func TestJSONStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.json")
	store := NewJSONStore(path)

	require.NoError(t, store.Save(sampleState()))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, sampleState(), loaded)
}

func TestJSONStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "library.json")
	store := NewJSONStore(path)

	require.NoError(t, store.Save(sampleState()))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestJSONStoreRejectsCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := NewJSONStore(path).Load()
	assert.Error(t, err)
}

func TestJSONStoreRejectsInvalidEntities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.json")
	// A user without a username must fail validation, not limp along.
	raw := `{"users":{"u1":{"id":"u1","username":"","subscription":{"type":"basic","expires_at":"2025-01-01"}}}}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	_, err := NewJSONStore(path).Load()
	assert.Error(t, err)
}

func TestJSONStoreNormalizesOptionalFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.json")
	raw := `{
		"users":{"u1":{"id":"u1","username":"alice","password":"x","subscription":{"type":"basic","expires_at":"2025-01-01"}}},
		"books":{"b1":{"id":"b1","title":"1984","author":"George Orwell","copies":[{"id":"c1"}]}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	state, err := NewJSONStore(path).Load()
	require.NoError(t, err)

	user := state.Users["u1"]
	assert.Equal(t, RoleUser, user.Role)
	assert.Empty(t, user.MonthlyCounterYearMonth, "month token is stamped lazily, not at load")
	assert.NotNil(t, user.Notifications)

	book := state.Books["b1"]
	assert.Equal(t, CopyAvailable, book.Copies[0].Status)
	assert.NotNil(t, book.Ratings)
	assert.NotNil(t, book.LoanHistory)
}

func TestJSONStoreSaveOverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.json")
	store := NewJSONStore(path)

	require.NoError(t, store.Save(sampleState()))

	second := sampleState()
	second.Users["u2"] = &User{
		ID:       "u2",
		Username: "bob",
		Password: "pw",
		Role:     RoleAdmin,
		Subscription: Subscription{
			Type:      SubscriptionVIP,
			ExpiresAt: NewDate(2026, time.June, 1),
		},
		MonthlyCounterYearMonth: "2024-03",
		Notifications:           []string{},
	}
	require.NoError(t, store.Save(second))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, loaded.Users, 2)

	// No temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
