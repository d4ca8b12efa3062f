package newsletter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLStore keeps subscribers in a SQLite table. The UNIQUE index on email
// and a single upsert statement make Insert atomic across connections.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates the subscribers table on db if needed. The caller owns db.
func NewSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	s := &SQLStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("newsletter: ensure schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS subscribers (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    name TEXT,
    subscribed INTEGER NOT NULL DEFAULT 1,
    subscribed_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_subscribers_email ON subscribers(email);
`)
	return err
}

// Insert adds s, or reactivates the inactive row holding the same email.
// An active row yields ErrDuplicate.
func (s *SQLStore) Insert(ctx context.Context, sub Subscriber) (Subscriber, error) {
	var name sql.NullString
	if sub.Name != nil {
		name = sql.NullString{String: *sub.Name, Valid: true}
	}
	row := s.db.QueryRowContext(ctx, `
INSERT INTO subscribers (id, email, name, subscribed, subscribed_at)
VALUES (?, ?, ?, 1, ?)
ON CONFLICT(email) DO UPDATE SET
    subscribed = 1,
    name = excluded.name,
    subscribed_at = excluded.subscribed_at
WHERE subscribers.subscribed = 0
RETURNING id, email, name, subscribed_at`,
		sub.ID.String(), sub.Email, name, sub.SubscribedAt.UTC().Format(time.RFC3339Nano))

	stored, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscriber{}, ErrDuplicate
	}
	if err != nil {
		return Subscriber{}, err
	}
	return stored, nil
}

func scanSubscriber(row *sql.Row) (Subscriber, error) {
	var id, email, at string
	var name sql.NullString
	if err := row.Scan(&id, &email, &name, &at); err != nil {
		return Subscriber{}, err
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return Subscriber{}, fmt.Errorf("parse subscriber id %q: %w", id, err)
	}
	subscribedAt, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return Subscriber{}, fmt.Errorf("parse subscribed_at %q: %w", at, err)
	}
	sub := Subscriber{ID: parsedID, Email: email, Subscribed: true, SubscribedAt: subscribedAt}
	if name.Valid {
		n := name.String
		sub.Name = &n
	}
	return sub, nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers WHERE subscribed = 1`).Scan(&n)
	return n, err
}

func (s *SQLStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE subscribers SET subscribed = 0 WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
