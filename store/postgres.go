package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/AryanBarman/gorkflow"
)

// PostgresStore implements gorkflow.WorkflowStore against Postgres, using
// $n placeholders and an explicit schema per table rather than the single
// JSON-blob-per-row shape LibSQLStore uses. Grounded on
// refactorroom-orchwf's DBStateManager.
type PostgresStore struct {
	db *sql.DB
}

var _ gorkflow.WorkflowStore = (*PostgresStore)(nil)

// NewPostgresStore opens dsn (a standard "postgres://" connection string)
// and creates the schema if missing.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store := &PostgresStore{db: db}
	if err := store.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Init creates the necessary tables.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, postgresSchema)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS gorkflow_workflows (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	version INTEGER NOT NULL,
	created_by TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	steps JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS gorkflow_executions (
	id TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	workflow_version INTEGER NOT NULL,
	status TEXT NOT NULL,
	trigger_source TEXT,
	parent_execution_id TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	finished_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_gorkflow_executions_workflow ON gorkflow_executions(workflow_id, created_at);

CREATE TABLE IF NOT EXISTS gorkflow_step_attempts (
	id TEXT PRIMARY KEY,
	workflow_execution_id TEXT NOT NULL,
	step_id TEXT NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	input JSONB,
	output JSONB,
	error TEXT,
	error_type TEXT,
	is_retry BOOLEAN NOT NULL DEFAULT FALSE,
	parent_attempt_id TEXT,
	step_metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	finished_at TIMESTAMPTZ,
	UNIQUE (workflow_execution_id, step_id, retry_count)
);
CREATE INDEX IF NOT EXISTS idx_gorkflow_step_attempts_execution ON gorkflow_step_attempts(workflow_execution_id, created_at);

CREATE TABLE IF NOT EXISTS gorkflow_log_events (
	id TEXT PRIMARY KEY,
	workflow_execution_id TEXT NOT NULL,
	step_attempt_id TEXT,
	message TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	metadata JSONB
);
CREATE INDEX IF NOT EXISTS idx_gorkflow_log_events_execution ON gorkflow_log_events(workflow_execution_id, timestamp);
`

// --- Workflow definitions ---

func (s *PostgresStore) CreateWorkflow(ctx context.Context, wf *gorkflow.Workflow) error {
	stepsJSON, err := json.Marshal(wf.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO gorkflow_workflows (id, name, version, created_by, created_at, steps)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, wf.ID, wf.Name, wf.Version, wf.CreatedBy, wf.CreatedAt, stepsJSON)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWorkflow(ctx context.Context, workflowID string) (*gorkflow.Workflow, error) {
	var wf gorkflow.Workflow
	var stepsJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, version, created_by, created_at, steps FROM gorkflow_workflows WHERE id = $1
	`, workflowID).Scan(&wf.ID, &wf.Name, &wf.Version, &wf.CreatedBy, &wf.CreatedAt, &stepsJSON)
	if err == sql.ErrNoRows {
		return nil, gorkflow.ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	if err := json.Unmarshal(stepsJSON, &wf.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}
	return &wf, nil
}

// --- WorkflowExecution ---

func (s *PostgresStore) CreateExecution(ctx context.Context, exec *gorkflow.WorkflowExecution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gorkflow_executions
			(id, workflow_id, workflow_version, status, trigger_source, parent_execution_id, created_at, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, exec.ID, exec.WorkflowID, exec.WorkflowVersion, string(exec.Status), exec.TriggerSource,
		nullString(exec.ParentExecutionID), exec.CreatedAt, exec.StartedAt, exec.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateExecution(ctx context.Context, exec *gorkflow.WorkflowExecution) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE gorkflow_executions SET status = $1, started_at = $2, finished_at = $3 WHERE id = $4
	`, string(exec.Status), exec.StartedAt, exec.FinishedAt, exec.ID)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return gorkflow.ErrRunNotFound
	}
	return nil
}

func (s *PostgresStore) GetExecution(ctx context.Context, id string) (*gorkflow.WorkflowExecution, error) {
	var exec gorkflow.WorkflowExecution
	var parentExecutionID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, workflow_version, status, trigger_source, parent_execution_id, created_at, started_at, finished_at
		FROM gorkflow_executions WHERE id = $1
	`, id).Scan(&exec.ID, &exec.WorkflowID, &exec.WorkflowVersion, &exec.Status, &exec.TriggerSource,
		&parentExecutionID, &exec.CreatedAt, &exec.StartedAt, &exec.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, gorkflow.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	exec.ParentExecutionID = parentExecutionID.String
	return &exec, nil
}

func (s *PostgresStore) ListExecutions(ctx context.Context, workflowID string) ([]*gorkflow.WorkflowExecution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_id, workflow_version, status, trigger_source, parent_execution_id, created_at, started_at, finished_at
		FROM gorkflow_executions WHERE workflow_id = $1 ORDER BY created_at ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var out []*gorkflow.WorkflowExecution
	for rows.Next() {
		var exec gorkflow.WorkflowExecution
		var parentExecutionID sql.NullString
		if err := rows.Scan(&exec.ID, &exec.WorkflowID, &exec.WorkflowVersion, &exec.Status, &exec.TriggerSource,
			&parentExecutionID, &exec.CreatedAt, &exec.StartedAt, &exec.FinishedAt); err != nil {
			return nil, err
		}
		exec.ParentExecutionID = parentExecutionID.String
		out = append(out, &exec)
	}
	return out, rows.Err()
}

// --- StepAttempt ---

func (s *PostgresStore) CreateStepAttempt(ctx context.Context, attempt *gorkflow.StepAttempt) error {
	metadataJSON, err := json.Marshal(attempt.StepMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal step metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO gorkflow_step_attempts
			(id, workflow_execution_id, step_id, retry_count, status, input, output, error, error_type,
			 is_retry, parent_attempt_id, step_metadata, created_at, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, attempt.ID, attempt.WorkflowExecutionID, attempt.StepID, attempt.RetryCount, string(attempt.Status),
		nullRawMessage(attempt.Input), nullRawMessage(attempt.Output), nullString(attempt.Error), nullString(string(attempt.ErrorType)),
		attempt.IsRetry, nullString(attempt.ParentAttemptID), metadataJSON, attempt.CreatedAt, attempt.StartedAt, attempt.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to create step attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateStepAttempt(ctx context.Context, attempt *gorkflow.StepAttempt) error {
	metadataJSON, err := json.Marshal(attempt.StepMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal step metadata: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE gorkflow_step_attempts
		SET status = $1, output = $2, error = $3, error_type = $4, step_metadata = $5, started_at = $6, finished_at = $7
		WHERE id = $8
	`, string(attempt.Status), nullRawMessage(attempt.Output), nullString(attempt.Error), nullString(string(attempt.ErrorType)),
		metadataJSON, attempt.StartedAt, attempt.FinishedAt, attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to update step attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return gorkflow.ErrStepExecutionNotFound
	}
	return nil
}

func (s *PostgresStore) GetStepAttempt(ctx context.Context, id string) (*gorkflow.StepAttempt, error) {
	attempt, err := s.scanStepAttemptRow(s.db.QueryRowContext(ctx, `
		SELECT id, workflow_execution_id, step_id, retry_count, status, input, output, error, error_type,
		       is_retry, parent_attempt_id, step_metadata, created_at, started_at, finished_at
		FROM gorkflow_step_attempts WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, gorkflow.ErrStepExecutionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get step attempt: %w", err)
	}
	return attempt, nil
}

func (s *PostgresStore) ListStepAttempts(ctx context.Context, workflowExecutionID string) ([]*gorkflow.StepAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_execution_id, step_id, retry_count, status, input, output, error, error_type,
		       is_retry, parent_attempt_id, step_metadata, created_at, started_at, finished_at
		FROM gorkflow_step_attempts WHERE workflow_execution_id = $1 ORDER BY created_at ASC
	`, workflowExecutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list step attempts: %w", err)
	}
	defer rows.Close()

	var out []*gorkflow.StepAttempt
	for rows.Next() {
		attempt, err := s.scanStepAttemptRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, attempt)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanStepAttemptRow(row rowScanner) (*gorkflow.StepAttempt, error) {
	var a gorkflow.StepAttempt
	var input, output, metadata []byte
	var errText, errType, parentAttemptID sql.NullString
	err := row.Scan(&a.ID, &a.WorkflowExecutionID, &a.StepID, &a.RetryCount, &a.Status, &input, &output,
		&errText, &errType, &a.IsRetry, &parentAttemptID, &metadata, &a.CreatedAt, &a.StartedAt, &a.FinishedAt)
	if err != nil {
		return nil, err
	}
	a.Input = input
	a.Output = output
	a.Error = errText.String
	a.ErrorType = gorkflow.ErrorType(errType.String)
	a.ParentAttemptID = parentAttemptID.String
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.StepMetadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step metadata: %w", err)
		}
	}
	return &a, nil
}

// --- LogEvent ---

func (s *PostgresStore) AppendLogEvent(ctx context.Context, event gorkflow.LogEvent) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal log metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO gorkflow_log_events (id, workflow_execution_id, step_attempt_id, message, timestamp, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.WorkflowExecutionID, nullString(event.StepAttemptID), event.Message, event.Timestamp, metadataJSON)
	if err != nil {
		return fmt.Errorf("failed to append log event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLogEvents(ctx context.Context, workflowExecutionID string) ([]*gorkflow.LogEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, step_attempt_id, message, timestamp, metadata
		FROM gorkflow_log_events WHERE workflow_execution_id = $1 ORDER BY timestamp ASC
	`, workflowExecutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list log events: %w", err)
	}
	defer rows.Close()

	var out []*gorkflow.LogEvent
	for rows.Next() {
		var e gorkflow.LogEvent
		var stepAttemptID sql.NullString
		var metadata []byte
		if err := rows.Scan(&e.ID, &stepAttemptID, &e.Message, &e.Timestamp, &metadata); err != nil {
			return nil, err
		}
		e.StepAttemptID = stepAttemptID.String
		e.WorkflowExecutionID = workflowExecutionID
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal log metadata: %w", err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func nullRawMessage(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
