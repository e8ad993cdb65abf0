package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/seantiz/agentflow/internal/errors"

	_ "modernc.org/sqlite"
)

const createExecutionsTable = `
CREATE TABLE IF NOT EXISTS executions (
    id             TEXT PRIMARY KEY,
    framework      TEXT NOT NULL,
    workflow_id    TEXT NOT NULL DEFAULT '',
    agent_id       TEXT NOT NULL DEFAULT '',
    user_id        TEXT NOT NULL DEFAULT '',
    correlation_id TEXT NOT NULL DEFAULT '',
    success        INTEGER NOT NULL,
    error_code     TEXT NOT NULL DEFAULT '',
    error_message  TEXT NOT NULL DEFAULT '',
    duration_ms    INTEGER NOT NULL,
    step_count     INTEGER NOT NULL,
    result         BLOB,
    created_at     DATETIME NOT NULL,
    finished_at    DATETIME NOT NULL
)`

const createFrameworkIndex = `
CREATE INDEX IF NOT EXISTS idx_executions_framework_created
    ON executions (framework, created_at DESC)`

const executionColumns = `id, framework, workflow_id, agent_id, user_id, correlation_id,
	success, error_code, error_message, duration_ms, step_count, result,
	created_at, finished_at`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	// A second connection to ":memory:" would see an empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range []struct {
		sql  string
		what string
	}{
		{"PRAGMA journal_mode=WAL", "set WAL mode"},
		{"PRAGMA busy_timeout = 5000", "set busy timeout"},
		{createExecutionsTable, "create executions table"},
		{createFrameworkIndex, "create framework index"},
	} {
		if _, err := db.Exec(stmt.sql); err != nil {
			db.Close()
			return nil, errors.Wrap(err, stmt.what)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveExecution inserts e, replacing an earlier run archived under the same
// id.
func (s *SQLiteStore) SaveExecution(ctx context.Context, e *Execution) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO executions (`+executionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Framework, e.WorkflowID, e.AgentID, e.UserID, e.CorrelationID,
		e.Success, e.ErrorCode, e.ErrorMessage, e.DurationMS, e.StepCount, []byte(e.Result),
		e.CreatedAt, e.FinishedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert execution")
	}
	return nil
}

// GetExecution retrieves an archived execution by ID.
func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (*Execution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE id = ?`, id)

	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("execution %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get execution")
	}
	return e, nil
}

// ListExecutions returns a page of archived executions ordered by
// created_at DESC, along with the total count matching the filter.
func (s *SQLiteStore) ListExecutions(ctx context.Context, f ListFilter) ([]*Execution, int, error) {
	var (
		where strings.Builder
		args  []any
	)
	if f.Framework != "" {
		where.WriteString(" WHERE framework = ?")
		args = append(args, f.Framework)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, errors.Wrap(err, "begin read tx")
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM executions"+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count executions")
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+executionColumns+` FROM executions`+where.String()+
			` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list executions")
	}
	defer rows.Close()

	executions := []*Execution{}
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan execution")
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "iterate executions")
	}

	return executions, total, nil
}

// GetExecutionStats aggregates the archive.
func (s *SQLiteStore) GetExecutionStats(ctx context.Context) (*ExecutionStats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "begin read tx")
	}
	defer tx.Rollback()

	stats := &ExecutionStats{
		CountByFramework: map[string]int{},
		CountByOutcome:   map[string]int{},
		CountByErrorCode: map[string]int{},
	}

	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(duration_ms), 0) FROM executions",
	).Scan(&stats.Total, &stats.AvgDurationMS); err != nil {
		return nil, errors.Wrap(err, "count executions")
	}

	groups := []struct {
		query string
		into  map[string]int
	}{
		{"SELECT framework, COUNT(*) FROM executions GROUP BY framework", stats.CountByFramework},
		{`SELECT CASE success WHEN 1 THEN '` + OutcomeSuccess + `' ELSE '` + OutcomeFailure + `' END, COUNT(*)
			FROM executions GROUP BY success`, stats.CountByOutcome},
		{"SELECT error_code, COUNT(*) FROM executions WHERE error_code != '' GROUP BY error_code", stats.CountByErrorCode},
	}
	for _, g := range groups {
		if err := countInto(ctx, tx, g.query, g.into); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func countInto(ctx context.Context, tx *sql.Tx, query string, into map[string]int) error {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, "group executions")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return errors.Wrap(err, "scan group")
		}
		into[key] = count
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (*Execution, error) {
	e := &Execution{}
	var result []byte
	if err := row.Scan(
		&e.ID, &e.Framework, &e.WorkflowID, &e.AgentID, &e.UserID, &e.CorrelationID,
		&e.Success, &e.ErrorCode, &e.ErrorMessage, &e.DurationMS, &e.StepCount, &result,
		&e.CreatedAt, &e.FinishedAt,
	); err != nil {
		return nil, err
	}
	e.Result = result
	return e, nil
}
