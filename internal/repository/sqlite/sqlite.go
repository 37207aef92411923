// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// The whole application state lives in one database file. SQLite is embedded
// in the binary (no server process), and modernc.org/sqlite is a pure Go
// translation of the SQLite sources, so no C compiler is needed and
// cross-compilation stays painless.
//
// CONCURRENCY:
// The service layer takes no locks of its own. WAL journal mode gives us
// concurrent readers while a write is in flight, and every statement this
// package runs is a single atomic insert/select/delete. That is the entirety
// of the concurrency model.
package sqlite

import (
	"database/sql"
	"fmt"

	// Blank import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements both
// repository.ReferralRepository and repository.UserRepository.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database file at dbPath and runs migrations.
// Use ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Force an immediate connection so a bad path or permissions problem
	// surfaces here, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode: concurrent reads while a write is happening. The default
	// rollback journal locks the whole file for the duration of a write,
	// which stalls list requests under load.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite. referrals.user_sub
	// references users, so turn enforcement on.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool, flushing the WAL and releasing the file
// lock. The server defers this during graceful shutdown.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this safe to
// run on every start against an existing database file.
func (db *DB) migrate() error {
	// users is the local mirror of identity-provider accounts. user_sub is
	// the provider-assigned subject id; user_email doubles as the login
	// username on the provider side and must be unique here too.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			user_sub   TEXT PRIMARY KEY,
			user_name  TEXT NOT NULL,
			user_email TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// ref_id is AUTOINCREMENT, not plain INTEGER PRIMARY KEY: plain rowid
	// keys can be reused after a delete, AUTOINCREMENT ids never are.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS referrals (
			ref_id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_sub       TEXT NOT NULL REFERENCES users(user_sub),
			ref_name       TEXT NOT NULL,
			ref_link       TEXT NOT NULL,
			ref_desc       TEXT NOT NULL DEFAULT '',
			ref_category   TEXT NOT NULL,
			ref_created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_referrals_created_at ON referrals(ref_created_at);
		CREATE INDEX IF NOT EXISTS idx_referrals_user_sub   ON referrals(user_sub);
	`)
	if err != nil {
		return fmt.Errorf("creating referrals table: %w", err)
	}

	return nil
}
