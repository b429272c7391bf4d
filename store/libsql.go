package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"github.com/AryanBarman/gorkflow"
)

// LibSQLStore implements gorkflow.WorkflowStore for LibSQL/SQLite. Each
// table stores the full JSON-encoded record in a data column alongside the
// columns a query actually filters or sorts on, following the teacher's
// libsql.go pattern.
type LibSQLStore struct {
	db *sql.DB
}

var _ gorkflow.WorkflowStore = (*LibSQLStore)(nil)

// NewLibSQLStore opens url, which can be a local file path (file:./local.db)
// or a remote Turso URL (libsql://...), and creates the schema if missing.
func NewLibSQLStore(url string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &LibSQLStore{db: db}
	if err := store.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Init creates the necessary tables.
func (s *LibSQLStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, GetLibSQLSchema()); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *LibSQLStore) Close() error {
	return s.db.Close()
}

// --- Workflow definitions ---

func (s *LibSQLStore) CreateWorkflow(ctx context.Context, wf *gorkflow.Workflow) error {
	data, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, name, version, created_by, created_at, data)
		VALUES (?, ?, ?, ?, ?, ?)
	`, wf.ID, wf.Name, wf.Version, wf.CreatedBy, wf.CreatedAt, string(data))
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

func (s *LibSQLStore) GetWorkflow(ctx context.Context, workflowID string) (*gorkflow.Workflow, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM workflows WHERE id = ?`, workflowID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, gorkflow.ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	var wf gorkflow.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}
	return &wf, nil
}

// --- WorkflowExecution ---

func (s *LibSQLStore) CreateExecution(ctx context.Context, exec *gorkflow.WorkflowExecution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_executions
			(id, workflow_id, workflow_version, status, trigger_source, parent_execution_id, created_at, started_at, finished_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		exec.ID, exec.WorkflowID, exec.WorkflowVersion, string(exec.Status), exec.TriggerSource,
		nullString(exec.ParentExecutionID), exec.CreatedAt, exec.StartedAt, exec.FinishedAt, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

func (s *LibSQLStore) UpdateExecution(ctx context.Context, exec *gorkflow.WorkflowExecution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE workflow_executions
		SET status = ?, started_at = ?, finished_at = ?, data = ?
		WHERE id = ?
	`, string(exec.Status), exec.StartedAt, exec.FinishedAt, string(data), exec.ID)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return gorkflow.ErrRunNotFound
	}
	return nil
}

func (s *LibSQLStore) GetExecution(ctx context.Context, id string) (*gorkflow.WorkflowExecution, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM workflow_executions WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, gorkflow.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	var exec gorkflow.WorkflowExecution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}
	return &exec, nil
}

func (s *LibSQLStore) ListExecutions(ctx context.Context, workflowID string) ([]*gorkflow.WorkflowExecution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM workflow_executions WHERE workflow_id = ? ORDER BY created_at ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var out []*gorkflow.WorkflowExecution
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var exec gorkflow.WorkflowExecution
		if err := json.Unmarshal(data, &exec); err != nil {
			return nil, err
		}
		out = append(out, &exec)
	}
	return out, rows.Err()
}

// --- StepAttempt ---

func (s *LibSQLStore) CreateStepAttempt(ctx context.Context, attempt *gorkflow.StepAttempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to marshal step attempt: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO step_attempts
			(id, workflow_execution_id, step_id, retry_count, status, created_at, started_at, finished_at, error, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		attempt.ID, attempt.WorkflowExecutionID, attempt.StepID, attempt.RetryCount, string(attempt.Status),
		attempt.CreatedAt, attempt.StartedAt, attempt.FinishedAt, nullString(attempt.Error), string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to create step attempt: %w", err)
	}
	return nil
}

func (s *LibSQLStore) UpdateStepAttempt(ctx context.Context, attempt *gorkflow.StepAttempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to marshal step attempt: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE step_attempts
		SET status = ?, started_at = ?, finished_at = ?, error = ?, data = ?
		WHERE id = ?
	`, string(attempt.Status), attempt.StartedAt, attempt.FinishedAt, nullString(attempt.Error), string(data), attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to update step attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return gorkflow.ErrStepExecutionNotFound
	}
	return nil
}

func (s *LibSQLStore) GetStepAttempt(ctx context.Context, id string) (*gorkflow.StepAttempt, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM step_attempts WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, gorkflow.ErrStepExecutionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get step attempt: %w", err)
	}
	var attempt gorkflow.StepAttempt
	if err := json.Unmarshal(data, &attempt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal step attempt: %w", err)
	}
	return &attempt, nil
}

func (s *LibSQLStore) ListStepAttempts(ctx context.Context, workflowExecutionID string) ([]*gorkflow.StepAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM step_attempts WHERE workflow_execution_id = ? ORDER BY created_at ASC
	`, workflowExecutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list step attempts: %w", err)
	}
	defer rows.Close()

	var out []*gorkflow.StepAttempt
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var attempt gorkflow.StepAttempt
		if err := json.Unmarshal(data, &attempt); err != nil {
			return nil, err
		}
		out = append(out, &attempt)
	}
	return out, rows.Err()
}

// --- LogEvent ---

func (s *LibSQLStore) AppendLogEvent(ctx context.Context, event gorkflow.LogEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal log event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO log_events (id, workflow_execution_id, step_attempt_id, message, timestamp, data)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.ID, event.WorkflowExecutionID, nullString(event.StepAttemptID), event.Message, event.Timestamp, string(data))
	if err != nil {
		return fmt.Errorf("failed to append log event: %w", err)
	}
	return nil
}

func (s *LibSQLStore) ListLogEvents(ctx context.Context, workflowExecutionID string) ([]*gorkflow.LogEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM log_events WHERE workflow_execution_id = ? ORDER BY timestamp ASC
	`, workflowExecutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list log events: %w", err)
	}
	defer rows.Close()

	var out []*gorkflow.LogEvent
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var event gorkflow.LogEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, err
		}
		out = append(out, &event)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
