// Package archive keeps a write-mostly SQLite record of closed negotiations.
// Nothing in it is read back to resume a session.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"haggle/internal/negotiation"
	"haggle/internal/transcript"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS negotiations (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	product_id   TEXT NOT NULL,
	product_name TEXT NOT NULL DEFAULT '',
	list_price   REAL NOT NULL DEFAULT 0,
	currency     TEXT NOT NULL DEFAULT '',
	reason       TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	closed_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS negotiations_closed_at ON negotiations(closed_at);
CREATE TABLE IF NOT EXISTS entries (
	id             TEXT PRIMARY KEY,
	negotiation_id TEXT NOT NULL REFERENCES negotiations(id) ON DELETE CASCADE,
	seq            INTEGER NOT NULL,
	speaker        TEXT NOT NULL,
	content        TEXT NOT NULL,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_negotiation ON entries(negotiation_id, seq);
`

// Record is one archived negotiation.
type Record struct {
	ID          string
	SessionID   string
	UserID      string
	ProductID   string
	ProductName string
	ListPrice   float64
	Currency    string
	Reason      negotiation.CloseReason
	StartedAt   time.Time
	ClosedAt    time.Time
	Turns       int
}

type Store struct {
	db *sql.DB
}

// DSNForFile enables WAL and a busy timeout so the history command can read
// while a client is writing.
func DSNForFile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("archive: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path), nil
}

func Open(path string) (*Store, error) {
	dsn, err := DSNForFile(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return errors.Wrap(err, "init archive schema")
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordClosed stores a SessionClosed event with its settled transcript and
// returns the archive id. Other event kinds are ignored.
func (s *Store) RecordClosed(ctx context.Context, ev negotiation.Event) (string, error) {
	if ev.Kind != negotiation.EventSessionClosed {
		return "", nil
	}
	sess := ev.Session
	if sess.ID == "" {
		return "", errors.New("archive: closed event without session id")
	}
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "begin archive tx")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO negotiations(id, session_id, user_id, product_id, product_name, list_price, currency, reason, started_at, closed_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		id, sess.ID, sess.UserID, sess.Product.ID, sess.Product.Name, sess.Product.ListPrice, sess.Product.Currency,
		string(sess.CloseReason), formatTime(sess.StartedAt), formatTime(sess.ClosedAt),
	)
	if err != nil {
		return "", errors.Wrap(err, "insert negotiation")
	}
	for i, e := range ev.Entries {
		entryID := e.ID
		if entryID == "" {
			entryID = uuid.NewString()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO entries(id, negotiation_id, seq, speaker, content, created_at) VALUES(?,?,?,?,?,?)`,
			entryID, id, i, string(e.Speaker), e.Content, formatTime(e.CreatedAt),
		)
		if err != nil {
			return "", errors.Wrapf(err, "insert entry %d", i)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "commit archive tx")
	}
	log.Info().Str("archive_id", id).Str("session_id", sess.ID).Int("entries", len(ev.Entries)).Msg("negotiation archived")
	return id, nil
}

// List returns the most recently closed negotiations first. A limit of zero
// or less returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT n.id, n.session_id, n.user_id, n.product_id, n.product_name, n.list_price, n.currency,
		n.reason, n.started_at, n.closed_at, COUNT(e.id)
		FROM negotiations n LEFT JOIN entries e ON e.negotiation_id = n.id
		GROUP BY n.id ORDER BY n.closed_at DESC, n.rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list negotiations")
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var (
			r                 Record
			reason            string
			started, closedAt string
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.UserID, &r.ProductID, &r.ProductName, &r.ListPrice, &r.Currency,
			&reason, &started, &closedAt, &r.Turns); err != nil {
			return nil, errors.Wrap(err, "scan negotiation")
		}
		r.Reason = negotiation.CloseReason(reason)
		r.StartedAt = parseTime(started)
		r.ClosedAt = parseTime(closedAt)
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterate negotiations")
}

// Entries returns the archived transcript of one negotiation in order.
func (s *Store) Entries(ctx context.Context, negotiationID string) ([]transcript.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, speaker, content, created_at FROM entries WHERE negotiation_id = ? ORDER BY seq`, negotiationID)
	if err != nil {
		return nil, errors.Wrap(err, "query entries")
	}
	defer func() { _ = rows.Close() }()

	var out []transcript.Entry
	for rows.Next() {
		var (
			e                transcript.Entry
			speaker, created string
		)
		if err := rows.Scan(&e.ID, &speaker, &e.Content, &created); err != nil {
			return nil, errors.Wrap(err, "scan entry")
		}
		e.Speaker = transcript.Speaker(speaker)
		e.CreatedAt = parseTime(created)
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "iterate entries")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
