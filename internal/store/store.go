package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"slices"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is the SQLite navigation journal.
//
// A journal file has one writer (the engine run that owns the session) and
// any number of readers (`navstack trace`, `navstack replay`), hence WAL.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// pragma is a connection setting the journal depends on. accept lists the
// values PRAGMA reports back when the setting took effect.
type pragma struct {
	name   string
	value  string
	accept []string
}

var journalPragmas = []pragma{
	// In-memory journals (the harness default) report "memory".
	{name: "journal_mode", value: "WAL", accept: []string{"wal", "memory"}},
	{name: "synchronous", value: "NORMAL", accept: []string{"1"}},
	{name: "busy_timeout", value: "5000", accept: []string{"5000"}},
	// transitions.session_id must reference a session.
	{name: "foreign_keys", value: "ON", accept: []string{"1"}},
}

// migration upgrades a journal created by an older navstack.
type migration struct {
	version int
	stmt    string
}

var migrations = []migration{
	// trace --outcome filters by outcome within a session.
	{version: 1, stmt: `CREATE INDEX IF NOT EXISTS idx_transitions_outcome ON transitions(session_id, outcome)`},
}

// currentSchemaVersion is the user_version of a fully migrated journal.
var currentSchemaVersion = migrations[len(migrations)-1].version

// Open creates or opens the journal at path. ":memory:" gives a private
// journal that lives as long as the Store.
//
// Opening an existing journal is safe: the schema is created only where
// missing and pending migrations are applied.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// One connection: an in-memory journal is per connection, and a file
	// journal has a single writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := configure(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal %s: %w", path, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func configure(db *sql.DB) error {
	for _, p := range journalPragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("set %s: %w", p.name, err)
		}
		got, err := pragmaValue(db, p.name)
		if err != nil {
			return err
		}
		if !slices.Contains(p.accept, got) {
			return fmt.Errorf("%s = %q after setting %s", p.name, got, p.value)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return migrate(db)
}

// pragmaValue reads the current value of a pragma as text.
func pragmaValue(db *sql.DB, name string) (string, error) {
	var value string
	if err := db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return value, nil
}

// migrate applies every migration newer than the journal's user_version.
// Each one commits together with its version bump.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
	}
	return nil
}

// Close closes the journal.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
