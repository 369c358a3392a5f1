// Package history keeps a local sqlite log of every message linegeist sent.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/mfulz/linegeist/dispatch"
	"github.com/mfulz/linegeist/internal/logging"
	"github.com/mfulz/linegeist/protocol"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// Entry is one recorded send.
type Entry struct {
	Seq       int64
	MessageID string
	Kind      string
	Nick      string
	Text      string
	Backend   string
	Detail    string
	CreatedAt time.Time
	SentAt    time.Time
}

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	logging.Log.Debugf("[history] opened %s", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a delivered message.
func (s *Store) Record(ctx context.Context, msg *protocol.Message, receipt *protocol.Receipt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sent_messages (message_id, kind, nick, text, backend, detail, created_at, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.Kind, msg.Nick, msg.Text, receipt.Backend, receipt.Detail, msg.CreatedAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record %s: %w", msg.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, message_id, kind, nick, text, backend, detail, created_at, sent_at
		FROM sent_messages ORDER BY seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.MessageID, &e.Kind, &e.Nick, &e.Text, &e.Backend, &e.Detail, &e.CreatedAt, &e.SentAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Sender records every delivered message sent through Next.
type Sender struct {
	Next  dispatch.Sender
	Store *Store
}

// Send forwards to Next and records the result. A failed record is logged
// and does not fail the send; the message already left.
func (h *Sender) Send(ctx context.Context, msg *protocol.Message) (*protocol.Receipt, error) {
	receipt, err := h.Next.Send(ctx, msg)
	if err != nil {
		return nil, err
	}
	if receipt != nil && receipt.Delivered {
		if err := h.Store.Record(ctx, msg, receipt); err != nil {
			logging.Log.Warnf("[history] %v", err)
		}
	}
	return receipt, nil
}
