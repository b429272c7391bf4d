package store

import "strings"

// Table names
const (
	TableWorkflows    = "workflows"
	TableExecutions   = "workflow_executions"
	TableStepAttempts = "step_attempts"
	TableLogEvents    = "log_events"
)

// Schema definitions. step_attempts is keyed by (id) with a secondary unique
// index on (workflow_execution_id, step_id, retry_count): the key widens
// past the teacher's (run_id, step_id) because a single step can now
// accumulate several attempt rows across retries (spec §4.6).
const (
	schemaWorkflows = `
CREATE TABLE IF NOT EXISTS workflows (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	version INTEGER NOT NULL,
	created_by TEXT,
	created_at DATETIME NOT NULL,
	data TEXT NOT NULL
);
`

	schemaExecutions = `
CREATE TABLE IF NOT EXISTS workflow_executions (
	id TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	workflow_version INTEGER NOT NULL,
	status TEXT NOT NULL,
	trigger_source TEXT,
	parent_execution_id TEXT,
	created_at DATETIME NOT NULL,
	started_at DATETIME,
	finished_at DATETIME,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executions_workflow ON workflow_executions(workflow_id, created_at);
CREATE INDEX IF NOT EXISTS idx_executions_status ON workflow_executions(status);
`

	schemaStepAttempts = `
CREATE TABLE IF NOT EXISTS step_attempts (
	id TEXT PRIMARY KEY,
	workflow_execution_id TEXT NOT NULL,
	step_id TEXT NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	started_at DATETIME,
	finished_at DATETIME,
	error TEXT,
	data TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_step_attempts_step_retry ON step_attempts(workflow_execution_id, step_id, retry_count);
CREATE INDEX IF NOT EXISTS idx_step_attempts_execution ON step_attempts(workflow_execution_id, created_at);
`

	schemaLogEvents = `
CREATE TABLE IF NOT EXISTS log_events (
	id TEXT PRIMARY KEY,
	workflow_execution_id TEXT NOT NULL,
	step_attempt_id TEXT,
	message TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_log_events_execution ON log_events(workflow_execution_id, timestamp);
`
)

// GetLibSQLSchema returns the full schema creation script.
func GetLibSQLSchema() string {
	return strings.Join([]string{
		schemaWorkflows,
		schemaExecutions,
		schemaStepAttempts,
		schemaLogEvents,
	}, "\n")
}
