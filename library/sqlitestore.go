package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists the snapshot as per-entity JSON rows in SQLite.
// Each Save rewrites every table inside one transaction, which keeps the
// whole-snapshot semantics of the Store contract while surviving partial
// writes better than a flat file on some filesystems.
type SQLiteStore struct {
	db *sql.DB
}

const snapshotSchemaVersion = 1

var snapshotTables = []string{"users", "books", "loans", "reservations"}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath and
// applies schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applySnapshotMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func applySnapshotMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= snapshotSchemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range snapshotTables {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            data TEXT NOT NULL
        );`, table)
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, snapshotSchemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}

// Load reads every entity row and rebuilds the aggregate.
func (s *SQLiteStore) Load() (*LibraryState, error) {
	state := NewLibraryState()

	if err := loadTable(s.db, "users", func(id string, raw []byte) error {
		u := new(User)
		if err := snapshotJSON.Unmarshal(raw, u); err != nil {
			return err
		}
		state.Users[id] = u
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadTable(s.db, "books", func(id string, raw []byte) error {
		b := new(Book)
		if err := snapshotJSON.Unmarshal(raw, b); err != nil {
			return err
		}
		state.Books[id] = b
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadTable(s.db, "loans", func(id string, raw []byte) error {
		l := new(Loan)
		if err := snapshotJSON.Unmarshal(raw, l); err != nil {
			return err
		}
		state.Loans[id] = l
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadTable(s.db, "reservations", func(id string, raw []byte) error {
		r := new(Reservation)
		if err := snapshotJSON.Unmarshal(raw, r); err != nil {
			return err
		}
		state.Reservations[id] = r
		return nil
	}); err != nil {
		return nil, err
	}

	if err := state.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	return state, nil
}

func loadTable(db *sql.DB, table string, fn func(id string, raw []byte) error) error {
	rows, err := db.Query(fmt.Sprintf(`SELECT id, data FROM %s`, table))
	if err != nil {
		return fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("load %s: %w", table, err)
		}
		if err := fn(id, raw); err != nil {
			return fmt.Errorf("decode %s %s: %w", table, id, err)
		}
	}
	return rows.Err()
}

// Save rewrites all entity tables in one transaction.
func (s *SQLiteStore) Save(state *LibraryState) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	for _, table := range snapshotTables {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for id, u := range state.Users {
		if err := insertRow(tx, "users", id, u); err != nil {
			return err
		}
	}
	for id, b := range state.Books {
		if err := insertRow(tx, "books", id, b); err != nil {
			return err
		}
	}
	for id, l := range state.Loans {
		if err := insertRow(tx, "loans", id, l); err != nil {
			return err
		}
	}
	for id, r := range state.Reservations {
		if err := insertRow(tx, "reservations", id, r); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func insertRow(tx *sql.Tx, table, id string, entity any) error {
	raw, err := snapshotJSON.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", table, id, err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s(id,data) VALUES(?,?)`, table), id, string(raw)); err != nil {
		return fmt.Errorf("insert %s %s: %w", table, id, err)
	}
	return nil
}
