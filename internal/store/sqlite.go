package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/pcdoctor/internal/domain"
	"github.com/ashureev/pcdoctor/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite opens (and creates if needed) the journal database at dbPath.
func NewSQLite(dbPath string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode lets the retention sweep run alongside turn writes.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	j := &SQLiteJournal{db: db, retry: shared.DefaultRetryPolicy}
	if err := j.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return j, nil
}

var _ Journal = (*SQLiteJournal)(nil)

func (j *SQLiteJournal) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		entry TEXT NOT NULL,
		user_text TEXT NOT NULL,
		agent_text TEXT NOT NULL,
		loop_status TEXT NOT NULL,
		blocker_reason TEXT,
		proposal_json TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);

	CREATE TABLE IF NOT EXISTS session_clears (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		cleared_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_clears_cleared ON session_clears(cleared_at);
	`
	if _, err := j.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (j *SQLiteJournal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// RecordTurn appends a completed turn.
func (j *SQLiteJournal) RecordTurn(ctx context.Context, rec domain.TurnRecord) error {
	query := `
		INSERT INTO turns (
			session_id, iteration, entry, user_text, agent_text,
			loop_status, blocker_reason, proposal_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var blocker interface{}
	if rec.BlockerReason != nil {
		blocker = *rec.BlockerReason
	}

	var proposal interface{}
	if rec.Proposal != nil {
		data, err := json.Marshal(rec.Proposal)
		if err != nil {
			return fmt.Errorf("marshal proposal: %w", err)
		}
		proposal = string(data)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return shared.RetryOnConflict(ctx, j.retry, "record turn", func(ctx context.Context) error {
		_, err := j.db.ExecContext(ctx, query,
			rec.SessionID, rec.Iteration, string(rec.Entry), rec.UserText, rec.AgentText,
			string(rec.LoopStatus), blocker, proposal, createdAt.Unix(),
		)
		return err
	})
}

// RecordClear notes that a session was cleared.
func (j *SQLiteJournal) RecordClear(ctx context.Context, sessionID string) error {
	return shared.RetryOnConflict(ctx, j.retry, "record clear", func(ctx context.Context) error {
		_, err := j.db.ExecContext(ctx,
			`INSERT INTO session_clears (session_id, cleared_at) VALUES (?, ?)`,
			sessionID, time.Now().Unix(),
		)
		return err
	})
}

// ListTurns returns the recorded turns for a session in insertion order.
func (j *SQLiteJournal) ListTurns(ctx context.Context, sessionID string) ([]domain.TurnRecord, error) {
	query := `
		SELECT session_id, iteration, entry, user_text, agent_text,
		       loop_status, blocker_reason, proposal_json, created_at
		FROM turns WHERE session_id = ? ORDER BY id`

	rows, err := j.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close turn rows", "error", closeErr)
		}
	}()

	records := make([]domain.TurnRecord, 0)
	for rows.Next() {
		var rec domain.TurnRecord
		var entry, loopStatus string
		var blocker, proposal sql.NullString
		var createdAt int64

		if err := rows.Scan(
			&rec.SessionID, &rec.Iteration, &entry, &rec.UserText, &rec.AgentText,
			&loopStatus, &blocker, &proposal, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}

		rec.Entry = domain.Entry(entry)
		rec.LoopStatus = domain.LoopStatus(loopStatus)
		rec.CreatedAt = time.Unix(createdAt, 0)
		if blocker.Valid {
			rec.BlockerReason = domain.Ptr(blocker.String)
		}
		if proposal.Valid {
			var p domain.CommandProposal
			if err := json.Unmarshal([]byte(proposal.String), &p); err != nil {
				return nil, fmt.Errorf("decode proposal: %w", err)
			}
			rec.Proposal = &p
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return records, nil
}

// DeleteOlderThan removes turns and clear markers older than ttl.
func (j *SQLiteJournal) DeleteOlderThan(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()

	var deleted int64
	err := shared.RetryOnConflict(ctx, j.retry, "delete old turns", func(ctx context.Context) error {
		deleted = 0
		res, err := j.db.ExecContext(ctx, `DELETE FROM turns WHERE created_at < ?`, threshold)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted += n

		res, err = j.db.ExecContext(ctx, `DELETE FROM session_clears WHERE cleared_at < ?`, threshold)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		if err != nil {
			return err
		}
		deleted += n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
