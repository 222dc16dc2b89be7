package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS journal (
	seq         INTEGER PRIMARY KEY,
	id          TEXT NOT NULL,
	cmd_type    TEXT NOT NULL,
	caller      TEXT NOT NULL,
	clock       INTEGER NOT NULL,
	payload     BLOB,
	recorded_at TEXT NOT NULL
);
`

// SQLiteStore persists the journal in a SQLite database. Pass ":memory:"
// for an ephemeral store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the journal database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	// The journal is a single serialized writer; one connection keeps
	// ":memory:" databases coherent as well.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, expectedSeq int, entries []*Entry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return -1, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM journal`).Scan(&last); err != nil {
		return -1, fmt.Errorf("read journal tail: %w", err)
	}
	tail := -1
	if last.Valid {
		tail = int(last.Int64)
	}
	if expectedSeq != tail {
		return tail, ErrConflict
	}

	seq := tail
	for _, entry := range entries {
		seq++
		entry.Seq = seq
		_, err := tx.ExecContext(ctx,
			`INSERT INTO journal (seq, id, cmd_type, caller, clock, payload, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			entry.Seq, entry.ID, entry.Command.Type, entry.Command.Caller, entry.Command.Now,
			[]byte(entry.Command.Payload), entry.RecordedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return -1, fmt.Errorf("append entry %d: %w", entry.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return -1, fmt.Errorf("commit append: %w", err)
	}
	return seq, nil
}

// Read implements Store.
func (s *SQLiteStore) Read(ctx context.Context, fromSeq int) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, cmd_type, caller, clock, payload, recorded_at FROM journal WHERE seq >= ? ORDER BY seq`,
		fromSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			entry      Entry
			payload    []byte
			recordedAt string
		)
		if err := rows.Scan(&entry.Seq, &entry.ID, &entry.Command.Type, &entry.Command.Caller, &entry.Command.Now, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if len(payload) > 0 {
			entry.Command.Payload = payload
		}
		if ts, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
			entry.RecordedAt = ts
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
