package library

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreLoadFreshDatabase(t *testing.T) {
	store := newTestSQLiteStore(t)

	state, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Users)
	assert.Empty(t, state.Books)
	assert.Empty(t, state.Loans)
	assert.Empty(t, state.Reservations)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)

	require.NoError(t, store.Save(sampleState()))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, sampleState(), loaded)
}

func TestSQLiteStoreSaveReplacesSnapshot(t *testing.T) {
	store := newTestSQLiteStore(t)

	require.NoError(t, store.Save(sampleState()))

	smaller := NewLibraryState()
	smaller.Users["u9"] = &User{
		ID:       "u9",
		Username: "carol",
		Password: "pw",
		Role:     RoleUser,
		Subscription: Subscription{
			Type:      SubscriptionBasic,
			ExpiresAt: NewDate(2025, 7, 1),
		},
		MonthlyCounterYearMonth: "2024-03",
		Notifications:           []string{},
	}
	require.NoError(t, store.Save(smaller))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, loaded.Users, 1)
	assert.Empty(t, loaded.Books, "previous snapshot rows are gone")
	assert.Empty(t, loaded.Loans)
}

func TestSQLiteStoreReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "library.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(sampleState()))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, sampleState(), loaded)
}

func TestSQLiteStoreWorksWithService(t *testing.T) {
	store := newTestSQLiteStore(t)

	svc, err := NewLibraryService(store)
	require.NoError(t, err)

	user, err := svc.CreateUser("alice", "secret", false, SubscriptionBasic, 365)
	require.NoError(t, err)
	book, err := svc.AddBook("1984", "George Orwell", "Fiction", 1)
	require.NoError(t, err)
	_, err = svc.BorrowBook(user.ID, book.ID)
	require.NoError(t, err)

	reloaded, err := NewLibraryService(store)
	require.NoError(t, err)
	gotBook, err := reloaded.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, CopyLoaned, gotBook.Copies[0].Status)
}
