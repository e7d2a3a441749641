package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a setting, case or result does not exist.
var ErrNotFound = errors.New("store: not found")

// connParams are applied by the driver to every connection it opens.
var connParams = url.Values{
	"_journal_mode": {"WAL"},
	"_synchronous":  {"NORMAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"1"},
}

// migrations upgrade stores created by older versions. A store is at the
// version of the last migration it applied, kept in user_version.
var migrations = []struct {
	version int
	stmt    string
}{
	{1, `CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status)`},
}

// Store is the state database of one task directory.
type Store struct {
	db *sql.DB
}

// Open opens the store at path, creating it when missing, and brings its
// tables up to date. Opening an existing store again is harmless.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?"+connParams.Encode())
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}
	// One connection: SQLite has a single writer and the task phases
	// write from one goroutine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open task store %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) init() error {
	mode, err := s.pragma("journal_mode")
	if err != nil {
		return err
	}
	if mode != "wal" {
		return fmt.Errorf("journal_mode is %s, want wal", mode)
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return s.migrate()
}

func (s *Store) migrate() error {
	v, err := s.pragma("user_version")
	if err != nil {
		return err
	}
	version, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("user_version %q: %w", v, err)
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := s.db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		if _, err := s.db.Exec("PRAGMA user_version = " + strconv.Itoa(m.version)); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
	}
	return nil
}

// pragma reads the current value of a pragma.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return value, nil
}

// Close closes the store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// runRef references run id, or no run when id is empty.
func runRef(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}
