package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/prompter/internal/errors"
)

// Slot is a durable key-value slot backed by the slots table.
// Each Put is a single statement, so readers never observe a partial value.
type Slot struct {
	db *sql.DB
}

// NewSlot returns a Slot over an initialized database.
func NewSlot(db *sql.DB) *Slot {
	return &Slot{db: db}
}

// Get returns the value stored under key. ok is false when the key has never been written.
func (s *Slot) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewInternal(err)
	}
	return value, true, nil
}

// Put overwrites the value stored under key.
func (s *Slot) Put(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UnixMilli()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
