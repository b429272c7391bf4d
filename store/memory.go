package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/AryanBarman/gorkflow"
)

// MemoryStore implements gorkflow.WorkflowStore with in-memory maps guarded
// by a single RWMutex. Grounded on the teacher's memory.go deep-copy-on-read
// idiom, widened for attempt chains: step attempts are keyed by their own ID
// rather than by (runID, stepID), since a single step can now accumulate
// several StepAttempt rows across retries.
type MemoryStore struct {
	workflows map[string]*gorkflow.Workflow
	execs     map[string]*gorkflow.WorkflowExecution
	attempts  map[string]*gorkflow.StepAttempt
	logs      map[string][]*gorkflow.LogEvent // workflowExecutionID -> events, emission order
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory workflow store.
func NewMemoryStore() gorkflow.WorkflowStore {
	return &MemoryStore{
		workflows: make(map[string]*gorkflow.Workflow),
		execs:     make(map[string]*gorkflow.WorkflowExecution),
		attempts:  make(map[string]*gorkflow.StepAttempt),
		logs:      make(map[string][]*gorkflow.LogEvent),
	}
}

func deepCopyWorkflow(wf *gorkflow.Workflow) *gorkflow.Workflow {
	if wf == nil {
		return nil
	}
	wfCopy := *wf
	wfCopy.Steps = make([]gorkflow.Step, len(wf.Steps))
	for i, step := range wf.Steps {
		stepCopy := step
		if step.Config != nil {
			stepCopy.Config = make(map[string]any, len(step.Config))
			for k, v := range step.Config {
				stepCopy.Config[k] = v
			}
		}
		if step.InputSchema != nil {
			stepCopy.InputSchema = append(json.RawMessage(nil), step.InputSchema...)
		}
		if step.OutputSchema != nil {
			stepCopy.OutputSchema = append(json.RawMessage(nil), step.OutputSchema...)
		}
		if step.RetryPolicy != nil {
			rp := *step.RetryPolicy
			stepCopy.RetryPolicy = &rp
		}
		wfCopy.Steps[i] = stepCopy
	}
	return &wfCopy
}

func deepCopyExecution(exec *gorkflow.WorkflowExecution) *gorkflow.WorkflowExecution {
	if exec == nil {
		return nil
	}
	execCopy := *exec
	if exec.StartedAt != nil {
		t := *exec.StartedAt
		execCopy.StartedAt = &t
	}
	if exec.FinishedAt != nil {
		t := *exec.FinishedAt
		execCopy.FinishedAt = &t
	}
	return &execCopy
}

func deepCopyAttempt(attempt *gorkflow.StepAttempt) *gorkflow.StepAttempt {
	if attempt == nil {
		return nil
	}
	attemptCopy := *attempt
	if attempt.Input != nil {
		attemptCopy.Input = append(json.RawMessage(nil), attempt.Input...)
	}
	if attempt.Output != nil {
		attemptCopy.Output = append(json.RawMessage(nil), attempt.Output...)
	}
	if attempt.StepMetadata != nil {
		attemptCopy.StepMetadata = make(map[string]any, len(attempt.StepMetadata))
		for k, v := range attempt.StepMetadata {
			attemptCopy.StepMetadata[k] = v
		}
	}
	if attempt.StartedAt != nil {
		t := *attempt.StartedAt
		attemptCopy.StartedAt = &t
	}
	if attempt.FinishedAt != nil {
		t := *attempt.FinishedAt
		attemptCopy.FinishedAt = &t
	}
	return &attemptCopy
}

func deepCopyLogEvent(event *gorkflow.LogEvent) *gorkflow.LogEvent {
	if event == nil {
		return nil
	}
	eventCopy := *event
	if event.Metadata != nil {
		eventCopy.Metadata = make(map[string]any, len(event.Metadata))
		for k, v := range event.Metadata {
			eventCopy.Metadata[k] = v
		}
	}
	return &eventCopy
}

// --- Workflow definitions ---

func (s *MemoryStore) CreateWorkflow(ctx context.Context, wf *gorkflow.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.ID] = deepCopyWorkflow(wf)
	return nil
}

func (s *MemoryStore) GetWorkflow(ctx context.Context, workflowID string) (*gorkflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[workflowID]
	if !ok {
		return nil, gorkflow.ErrWorkflowNotFound
	}
	return deepCopyWorkflow(wf), nil
}

// --- WorkflowExecution ---

func (s *MemoryStore) CreateExecution(ctx context.Context, exec *gorkflow.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs[exec.ID] = deepCopyExecution(exec)
	return nil
}

func (s *MemoryStore) UpdateExecution(ctx context.Context, exec *gorkflow.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.execs[exec.ID]; !ok {
		return gorkflow.ErrRunNotFound
	}
	s.execs[exec.ID] = deepCopyExecution(exec)
	return nil
}

func (s *MemoryStore) GetExecution(ctx context.Context, id string) (*gorkflow.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.execs[id]
	if !ok {
		return nil, gorkflow.ErrRunNotFound
	}
	return deepCopyExecution(exec), nil
}

func (s *MemoryStore) ListExecutions(ctx context.Context, workflowID string) ([]*gorkflow.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*gorkflow.WorkflowExecution
	for _, exec := range s.execs {
		if exec.WorkflowID == workflowID {
			out = append(out, deepCopyExecution(exec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- StepAttempt ---

func (s *MemoryStore) CreateStepAttempt(ctx context.Context, attempt *gorkflow.StepAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.ID] = deepCopyAttempt(attempt)
	return nil
}

func (s *MemoryStore) UpdateStepAttempt(ctx context.Context, attempt *gorkflow.StepAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[attempt.ID]; !ok {
		return gorkflow.ErrStepExecutionNotFound
	}
	s.attempts[attempt.ID] = deepCopyAttempt(attempt)
	return nil
}

func (s *MemoryStore) GetStepAttempt(ctx context.Context, id string) (*gorkflow.StepAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return nil, gorkflow.ErrStepExecutionNotFound
	}
	return deepCopyAttempt(attempt), nil
}

func (s *MemoryStore) ListStepAttempts(ctx context.Context, workflowExecutionID string) ([]*gorkflow.StepAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*gorkflow.StepAttempt
	for _, attempt := range s.attempts {
		if attempt.WorkflowExecutionID == workflowExecutionID {
			out = append(out, deepCopyAttempt(attempt))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- LogEvent ---

func (s *MemoryStore) AppendLogEvent(ctx context.Context, event gorkflow.LogEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[event.WorkflowExecutionID] = append(s.logs[event.WorkflowExecutionID], deepCopyLogEvent(&event))
	return nil
}

func (s *MemoryStore) ListLogEvents(ctx context.Context, workflowExecutionID string) ([]*gorkflow.LogEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.logs[workflowExecutionID]
	out := make([]*gorkflow.LogEvent, len(events))
	for i, e := range events {
		out[i] = deepCopyLogEvent(e)
	}
	return out, nil
}
