// Package store owns the embedded relational file that backs the plugin:
// schema, indexes, WAL journaling, and the small set of prepared statements
// the batch writer, the retention sweeper and the event handler's
// latest-id lookup execute against it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Row is the persisted shape of one message record.
type Row struct {
	ID      string
	Topic   string
	Payload []byte
	Retain  bool
	QoS     uint8
	Headers sql.NullString
}

const schema = `
CREATE TABLE IF NOT EXISTS msg (
	id      TEXT PRIMARY KEY,
	topic   TEXT NOT NULL,
	payload TEXT NOT NULL,
	retain  INT,
	qos     INT,
	headers TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_msg_topic ON msg(topic);
CREATE INDEX IF NOT EXISTS idx_msg_topic_id ON msg(topic, id DESC);
`

// Store owns the SQLite connection and its prepared statements. All access
// is serialized through its mutex: the writer, the retention sweeper and
// the event handler's LatestID fallback are the callers, and none of them
// touches the database concurrently with another.
type Store struct {
	mu sync.Mutex
	db *sql.DB

	insertStmt       *sql.Stmt
	deleteStmt       *sql.Stmt
	selectLatestStmt *sql.Stmt
	purgeStmt        *sql.Stmt
	countOlderStmt   *sql.Stmt

	log zerolog.Logger
}

// Open creates (if absent) the SQLite file at path, ensures the schema, and
// prepares every statement the writer and sweeper need. Failure here is
// fatal to plugin initialization per spec.md §7.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	s := &Store{db: db, log: log.With().Str("component", "store").Logger()}

	stmts := []struct {
		dst  **sql.Stmt
		name string
		sql  string
	}{
		{&s.insertStmt, "insert", `INSERT INTO msg (id, topic, payload, retain, qos, headers) VALUES (?, ?, ?, ?, ?, ?)`},
		{&s.deleteStmt, "delete", `DELETE FROM msg WHERE topic = ? AND id = ?`},
		{&s.selectLatestStmt, "select_latest", `SELECT id FROM msg WHERE topic = ? ORDER BY id DESC LIMIT 1`},
		{&s.purgeStmt, "purge", `DELETE FROM msg WHERE id < ?`},
		{&s.countOlderStmt, "count_older", `SELECT COUNT(*) FROM msg WHERE id < ?`},
	}
	for _, st := range stmts {
		prepared, err := db.Prepare(st.sql)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("store: prepare %s statement: %w", st.name, err)
		}
		*st.dst = prepared
	}

	s.log.Info().Str("path", path).Msg("opened message store")
	return s, nil
}

// Close finalizes every prepared statement and closes the underlying
// database connection. Per spec.md §3, this must happen only after the
// writer has fully drained the queue.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range []*sql.Stmt{s.insertStmt, s.deleteStmt, s.selectLatestStmt, s.purgeStmt, s.countOlderStmt} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// LatestID returns the most recently inserted id for topic, or "" if none
// exists. Used by the event handler's delete-intent fallback (spec.md §4.7
// step 3(b)) when no cache is configured or on a cache miss.
func (s *Store) LatestID(ctx context.Context, topic string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	err := s.selectLatestStmt.QueryRowContext(ctx, topic).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: select latest id for topic %q: %w", topic, err)
	}
	return id, nil
}

// CountOlderThan returns how many rows have an id lexicographically less
// than prefix, without deleting them — used only for the sweeper's
// informational pre-sweep log line.
func (s *Store) CountOlderThan(ctx context.Context, idPrefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	if err := s.countOlderStmt.QueryRowContext(ctx, idPrefix).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count rows older than %q: %w", idPrefix, err)
	}
	return n, nil
}

// PurgeOlderThan deletes every row whose id is lexicographically less than
// idPrefix and returns the number of rows removed. Because ids are
// time-ordered ULIDs, this is a primary-key range scan.
func (s *Store) PurgeOlderThan(ctx context.Context, idPrefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.purgeStmt.ExecContext(ctx, idPrefix)
	if err != nil {
		return 0, fmt.Errorf("store: purge rows older than %q: %w", idPrefix, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Op is one pending mutation to apply within a batch transaction.
type Op interface {
	apply(ctx context.Context, tx *sql.Tx, s *Store) error
}

// InsertOp inserts one row.
type InsertOp struct{ Row Row }

func (o InsertOp) apply(ctx context.Context, tx *sql.Tx, s *Store) error {
	stmt := tx.StmtContext(ctx, s.insertStmt)
	_, err := stmt.ExecContext(ctx, o.Row.ID, o.Row.Topic, o.Row.Payload, boolToInt(o.Row.Retain), o.Row.QoS, o.Row.Headers)
	return err
}

// DeleteOp deletes the row identified by (Topic, ID). A topic mismatch
// between the id supplied and the row's actual topic matches nothing, per
// spec.md §9's resolution of the "delete property references a different
// topic" open question.
type DeleteOp struct{ Topic, ID string }

func (o DeleteOp) apply(ctx context.Context, tx *sql.Tx, s *Store) error {
	stmt := tx.StmtContext(ctx, s.deleteStmt)
	_, err := stmt.ExecContext(ctx, o.Topic, o.ID)
	return err
}

// ExecuteBatch runs every op in order inside a single transaction. Per-op
// failures are logged and skipped (the batch is not aborted); a failure to
// begin or commit the transaction is logged and the whole batch is dropped —
// spec.md §4.3/§4.5's "commit errors mean the batch is lost" policy.
func (s *Store) ExecuteBatch(ctx context.Context, ops []Op) (committed int, err error) {
	if len(ops) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin batch transaction: %w", err)
	}

	ok := 0
	for _, op := range ops {
		if applyErr := op.apply(ctx, tx, s); applyErr != nil {
			s.log.Error().Err(applyErr).Msg("batch row step failed, skipping row")
			continue
		}
		ok++
	}

	if err := tx.Commit(); err != nil {
		s.log.Error().Err(err).Int("batch_size", len(ops)).Msg("batch commit failed, dropping batch")
		return 0, fmt.Errorf("store: commit batch: %w", err)
	}

	s.log.Debug().Int("batch_size", len(ops)).Int("applied", ok).Msg("committed batch")
	return ok, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
