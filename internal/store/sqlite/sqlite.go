// Package sqlite implements the durable Context Store backed by
// modernc.org/sqlite (spec §4.1, persisted layout in spec §6.3).
//
// Schema and the transactional insert-first-wins pattern for event
// deduplication are grounded on dshills-langgraph-go's SQLiteStore, whose
// idempotency_keys uniqueness table maps directly onto this engine's
// (execution_id, source_id, type) composite-key dedup primitive.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"go.fluxrun.dev/flux/internal/event"
	fluxerrors "go.fluxrun.dev/flux/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS workflow_executions (
	execution_id TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	input        TEXT,
	output       TEXT
);

CREATE TABLE IF NOT EXISTS workflow_execution_events (
	execution_id TEXT NOT NULL REFERENCES workflow_executions(execution_id),
	source_id    TEXT NOT NULL,
	type         TEXT NOT NULL,
	name         TEXT NOT NULL,
	value        TEXT,
	time         TEXT NOT NULL,
	seq          INTEGER,
	PRIMARY KEY (execution_id, source_id, type)
);
`

// Store is a sqlite-backed, WAL-mode Context Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures its schema exists. path is the filesystem path portion of a
// "sqlite://" database_url (spec §6.4); use ":memory:" for an ephemeral,
// process-local database that still exercises this backend's SQL path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: open: %w", err)
	}
	// A single connection serializes every Save transaction, which avoids
	// "database is locked" errors under modernc.org/sqlite's WAL mode.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`PRAGMA busy_timeout=5000;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store/sqlite: pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store/sqlite: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save upserts ec: inserts the execution row if absent, updates its output,
// and appends every event whose (source_id, type) is not already present.
// The whole operation runs inside one transaction, giving serializable
// semantics for a single Save call; modernc.org/sqlite's WAL mode plus the
// single-connection pool above serializes concurrent Save calls against
// the same (or different) execution_id.
func (s *Store) Save(ctx context.Context, ec *event.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store/sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	inputJSON, err := json.Marshal(ec.Input)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal input: %w", err)
	}
	var outputJSON []byte
	if out := ec.Output(); out != nil {
		if outputJSON, err = json.Marshal(out); err != nil {
			return fmt.Errorf("store/sqlite: marshal output: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO workflow_executions (execution_id, name, input, output)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(execution_id) DO UPDATE SET output = excluded.output
	`, ec.ExecutionID, ec.Name, string(inputJSON), string(outputJSON)); err != nil {
		return &fluxerrors.StoreCollisionError{ExecutionID: ec.ExecutionID, Cause: err}
	}

	for i, e := range ec.Events {
		valueJSON, err := json.Marshal(e.Value)
		if err != nil {
			return fmt.Errorf("store/sqlite: marshal event value: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workflow_execution_events
				(execution_id, source_id, type, name, value, time, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(execution_id, source_id, type) DO NOTHING
		`, ec.ExecutionID, e.SourceID, string(e.Type), e.Name, string(valueJSON), e.Time.Format(timeLayout), i); err != nil {
			return &fluxerrors.StoreCollisionError{ExecutionID: ec.ExecutionID, Cause: err}
		}
	}

	return tx.Commit()
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Get returns the stored context for executionID.
func (s *Store) Get(ctx context.Context, executionID string) (*event.Context, error) {
	var name, inputJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, input FROM workflow_executions WHERE execution_id = ?`,
		executionID,
	).Scan(&name, &inputJSON)
	if err == sql.ErrNoRows {
		return nil, &fluxerrors.ExecutionContextNotFoundError{ExecutionID: executionID}
	}
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: get: %w", err)
	}

	var input any
	if inputJSON != "" {
		if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
			return nil, fmt.Errorf("store/sqlite: unmarshal input: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, source_id, name, value, time
		FROM workflow_execution_events
		WHERE execution_id = ?
		ORDER BY seq ASC
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: query events: %w", err)
	}
	defer rows.Close()

	ec := event.NewContext(executionID, name, input)
	for rows.Next() {
		var typ, sourceID, evName, valueJSON, timeStr string
		if err := rows.Scan(&typ, &sourceID, &evName, &valueJSON, &timeStr); err != nil {
			return nil, fmt.Errorf("store/sqlite: scan event: %w", err)
		}
		var value any
		if valueJSON != "" {
			if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
				return nil, fmt.Errorf("store/sqlite: unmarshal event value: %w", err)
			}
		}
		e := event.New(event.Type(typ), sourceID, evName, value)
		if t, perr := parseTime(timeStr); perr == nil {
			e.Time = t
		}
		ec.Append(e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ec, nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }
