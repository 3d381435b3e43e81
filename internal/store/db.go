package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the local mirror of conversations, chat.db inside a profile.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the SQLite file at path in WAL mode with
// foreign keys enforced.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{db}, nil
}

// Counts returns the number of mirrored conversations and messages.
func (db *DB) Counts() (conversations, messages int, err error) {
	err = db.QueryRow(`SELECT (SELECT COUNT(*) FROM conversations), (SELECT COUNT(*) FROM messages)`).
		Scan(&conversations, &messages)
	if err != nil {
		return 0, 0, fmt.Errorf("count rows: %w", err)
	}
	return conversations, messages, nil
}
