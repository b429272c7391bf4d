package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/AryanBarman/gorkflow"
)

// DynamoDBStore implements gorkflow.WorkflowStore on a single DynamoDB table
// using the classic single-table design: pk/sk partition every item type,
// and a GSI (gsi1pk/gsi1sk) answers the "list by workflow" / "list by
// execution" queries. Field tags follow the dynamodbav convention used by
// the pack's sibling workflow model (gorkflow's own WorkflowRun/StepExecution
// snapshot).
type DynamoDBStore struct {
	client *dynamodb.Client
	table  string
}

var _ gorkflow.WorkflowStore = (*DynamoDBStore)(nil)

// NewDynamoDBStore loads the default AWS config (environment, shared config
// file, or an attached role) and targets table.
func NewDynamoDBStore(ctx context.Context, table string) (*DynamoDBStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &DynamoDBStore{client: dynamodb.NewFromConfig(cfg), table: table}, nil
}

type workflowItem struct {
	PK        string          `dynamodbav:"pk"`
	SK        string          `dynamodbav:"sk"`
	ID        string          `dynamodbav:"id"`
	Name      string          `dynamodbav:"name"`
	Version   int             `dynamodbav:"version"`
	CreatedBy string          `dynamodbav:"created_by,omitempty"`
	CreatedAt int64           `dynamodbav:"created_at"`
	Steps     []gorkflow.Step `dynamodbav:"steps"`
}

type executionItem struct {
	PK                string `dynamodbav:"pk"`
	SK                string `dynamodbav:"sk"`
	GSI1PK            string `dynamodbav:"gsi1pk"`
	GSI1SK            string `dynamodbav:"gsi1sk"`
	ID                string `dynamodbav:"id"`
	WorkflowID        string `dynamodbav:"workflow_id"`
	WorkflowVersion   int    `dynamodbav:"workflow_version"`
	Status            string `dynamodbav:"status"`
	TriggerSource     string `dynamodbav:"trigger_source,omitempty"`
	ParentExecutionID string `dynamodbav:"parent_execution_id,omitempty"`
	CreatedAt         int64  `dynamodbav:"created_at"`
	StartedAt         *int64 `dynamodbav:"started_at,omitempty"`
	FinishedAt        *int64 `dynamodbav:"finished_at,omitempty"`
}

type stepAttemptItem struct {
	PK                  string         `dynamodbav:"pk"`
	SK                  string         `dynamodbav:"sk"`
	GSI1PK              string         `dynamodbav:"gsi1pk"`
	GSI1SK              string         `dynamodbav:"gsi1sk"`
	ID                  string         `dynamodbav:"id"`
	WorkflowExecutionID string         `dynamodbav:"workflow_execution_id"`
	StepID              string         `dynamodbav:"step_id"`
	RetryCount          int            `dynamodbav:"retry_count"`
	Status              string         `dynamodbav:"status"`
	Input               []byte         `dynamodbav:"input,omitempty"`
	Output              []byte         `dynamodbav:"output,omitempty"`
	Error               string         `dynamodbav:"error,omitempty"`
	ErrorType           string         `dynamodbav:"error_type,omitempty"`
	IsRetry             bool           `dynamodbav:"is_retry"`
	ParentAttemptID     string         `dynamodbav:"parent_attempt_id,omitempty"`
	StepMetadata        map[string]any `dynamodbav:"step_metadata,omitempty"`
	CreatedAt           int64          `dynamodbav:"created_at"`
	StartedAt           *int64         `dynamodbav:"started_at,omitempty"`
	FinishedAt          *int64         `dynamodbav:"finished_at,omitempty"`
}

type logEventItem struct {
	PK                  string         `dynamodbav:"pk"`
	SK                  string         `dynamodbav:"sk"`
	ID                  string         `dynamodbav:"id"`
	WorkflowExecutionID string         `dynamodbav:"workflow_execution_id"`
	StepAttemptID       string         `dynamodbav:"step_attempt_id,omitempty"`
	Message             string         `dynamodbav:"message"`
	Timestamp           int64          `dynamodbav:"timestamp"`
	Metadata            map[string]any `dynamodbav:"metadata,omitempty"`
}

func workflowPK(id string) string        { return "WORKFLOW#" + id }
func executionPK(id string) string       { return "EXECUTION#" + id }
func stepAttemptPK(id string) string     { return "ATTEMPT#" + id }
func logEventPK(execID string) string    { return "EXECUTION#" + execID }
func logEventSK(ts time.Time, eventID string) string {
	return fmt.Sprintf("LOG#%020d#%s", ts.UnixNano(), eventID)
}
func executionsByWorkflowGSI1PK(workflowID string) string { return "WORKFLOW#" + workflowID }
func attemptsByExecutionGSI1PK(execID string) string      { return "EXECUTION#" + execID }

// --- Workflow definitions ---

func (s *DynamoDBStore) CreateWorkflow(ctx context.Context, wf *gorkflow.Workflow) error {
	item := workflowItem{
		PK: workflowPK(wf.ID), SK: "METADATA",
		ID: wf.ID, Name: wf.Name, Version: wf.Version, CreatedBy: wf.CreatedBy,
		CreatedAt: wf.CreatedAt.UnixMilli(), Steps: wf.Steps,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av})
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) GetWorkflow(ctx context.Context, workflowID string) (*gorkflow.Workflow, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       pkSKKey(workflowPK(workflowID), "METADATA"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	if out.Item == nil {
		return nil, gorkflow.ErrWorkflowNotFound
	}
	var item workflowItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}
	return &gorkflow.Workflow{
		ID: item.ID, Name: item.Name, Version: item.Version, CreatedBy: item.CreatedBy,
		CreatedAt: millisToTime(item.CreatedAt), Steps: item.Steps,
	}, nil
}

// --- WorkflowExecution ---

func (s *DynamoDBStore) CreateExecution(ctx context.Context, exec *gorkflow.WorkflowExecution) error {
	item := executionFromModel(exec)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av})
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) UpdateExecution(ctx context.Context, exec *gorkflow.WorkflowExecution) error {
	if _, err := s.GetExecution(ctx, exec.ID); err != nil {
		return err
	}
	return s.CreateExecution(ctx, exec)
}

func (s *DynamoDBStore) GetExecution(ctx context.Context, id string) (*gorkflow.WorkflowExecution, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       pkSKKey(executionPK(id), "METADATA"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	if out.Item == nil {
		return nil, gorkflow.ErrRunNotFound
	}
	var item executionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}
	return executionToModel(&item), nil
}

func (s *DynamoDBStore) ListExecutions(ctx context.Context, workflowID string) ([]*gorkflow.WorkflowExecution, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String("gsi1"),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: executionsByWorkflowGSI1PK(workflowID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	var result []*gorkflow.WorkflowExecution
	for _, rawItem := range out.Items {
		var item executionItem
		if err := attributevalue.UnmarshalMap(rawItem, &item); err != nil {
			return nil, err
		}
		result = append(result, executionToModel(&item))
	}
	return result, nil
}

// --- StepAttempt ---

func (s *DynamoDBStore) CreateStepAttempt(ctx context.Context, attempt *gorkflow.StepAttempt) error {
	item := stepAttemptFromModel(attempt)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal step attempt: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av})
	if err != nil {
		return fmt.Errorf("failed to create step attempt: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) UpdateStepAttempt(ctx context.Context, attempt *gorkflow.StepAttempt) error {
	if _, err := s.GetStepAttempt(ctx, attempt.ID); err != nil {
		return err
	}
	return s.CreateStepAttempt(ctx, attempt)
}

func (s *DynamoDBStore) GetStepAttempt(ctx context.Context, id string) (*gorkflow.StepAttempt, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       pkSKKey(stepAttemptPK(id), "METADATA"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get step attempt: %w", err)
	}
	if out.Item == nil {
		return nil, gorkflow.ErrStepExecutionNotFound
	}
	var item stepAttemptItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal step attempt: %w", err)
	}
	return stepAttemptToModel(&item), nil
}

func (s *DynamoDBStore) ListStepAttempts(ctx context.Context, workflowExecutionID string) ([]*gorkflow.StepAttempt, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String("gsi1"),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: attemptsByExecutionGSI1PK(workflowExecutionID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list step attempts: %w", err)
	}
	var result []*gorkflow.StepAttempt
	for _, rawItem := range out.Items {
		var item stepAttemptItem
		if err := attributevalue.UnmarshalMap(rawItem, &item); err != nil {
			return nil, err
		}
		result = append(result, stepAttemptToModel(&item))
	}
	return result, nil
}

// --- LogEvent ---

func (s *DynamoDBStore) AppendLogEvent(ctx context.Context, event gorkflow.LogEvent) error {
	item := logEventItem{
		PK: logEventPK(event.WorkflowExecutionID), SK: logEventSK(event.Timestamp, event.ID),
		ID: event.ID, WorkflowExecutionID: event.WorkflowExecutionID, StepAttemptID: event.StepAttemptID,
		Message: event.Message, Timestamp: event.Timestamp.UnixMilli(), Metadata: event.Metadata,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal log event: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av})
	if err != nil {
		return fmt.Errorf("failed to append log event: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) ListLogEvents(ctx context.Context, workflowExecutionID string) ([]*gorkflow.LogEvent, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: logEventPK(workflowExecutionID)},
			":prefix": &types.AttributeValueMemberS{Value: "LOG#"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list log events: %w", err)
	}
	var result []*gorkflow.LogEvent
	for _, rawItem := range out.Items {
		var item logEventItem
		if err := attributevalue.UnmarshalMap(rawItem, &item); err != nil {
			return nil, err
		}
		result = append(result, &gorkflow.LogEvent{
			ID: item.ID, StepAttemptID: item.StepAttemptID, Message: item.Message,
			Timestamp: millisToTime(item.Timestamp), WorkflowExecutionID: item.WorkflowExecutionID,
			Metadata: item.Metadata,
		})
	}
	return result, nil
}

func pkSKKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: sk},
	}
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func timeToMillisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func executionFromModel(exec *gorkflow.WorkflowExecution) executionItem {
	return executionItem{
		PK: executionPK(exec.ID), SK: "METADATA",
		GSI1PK: executionsByWorkflowGSI1PK(exec.WorkflowID), GSI1SK: executionPK(exec.ID),
		ID: exec.ID, WorkflowID: exec.WorkflowID, WorkflowVersion: exec.WorkflowVersion,
		Status: string(exec.Status), TriggerSource: exec.TriggerSource, ParentExecutionID: exec.ParentExecutionID,
		CreatedAt: exec.CreatedAt.UnixMilli(), StartedAt: timeToMillisPtr(exec.StartedAt), FinishedAt: timeToMillisPtr(exec.FinishedAt),
	}
}

func executionToModel(item *executionItem) *gorkflow.WorkflowExecution {
	exec := &gorkflow.WorkflowExecution{
		ID: item.ID, WorkflowID: item.WorkflowID, WorkflowVersion: item.WorkflowVersion,
		Status: gorkflow.ExecutionStatus(item.Status), TriggerSource: item.TriggerSource,
		ParentExecutionID: item.ParentExecutionID, CreatedAt: millisToTime(item.CreatedAt),
	}
	if item.StartedAt != nil {
		t := millisToTime(*item.StartedAt)
		exec.StartedAt = &t
	}
	if item.FinishedAt != nil {
		t := millisToTime(*item.FinishedAt)
		exec.FinishedAt = &t
	}
	return exec
}

func stepAttemptFromModel(a *gorkflow.StepAttempt) stepAttemptItem {
	return stepAttemptItem{
		PK: stepAttemptPK(a.ID), SK: "METADATA",
		GSI1PK: attemptsByExecutionGSI1PK(a.WorkflowExecutionID), GSI1SK: stepAttemptPK(a.ID),
		ID: a.ID, WorkflowExecutionID: a.WorkflowExecutionID, StepID: a.StepID, RetryCount: a.RetryCount,
		Status: string(a.Status), Input: []byte(a.Input), Output: []byte(a.Output), Error: a.Error,
		ErrorType: string(a.ErrorType), IsRetry: a.IsRetry, ParentAttemptID: a.ParentAttemptID,
		StepMetadata: a.StepMetadata, CreatedAt: a.CreatedAt.UnixMilli(),
		StartedAt: timeToMillisPtr(a.StartedAt), FinishedAt: timeToMillisPtr(a.FinishedAt),
	}
}

func stepAttemptToModel(item *stepAttemptItem) *gorkflow.StepAttempt {
	a := &gorkflow.StepAttempt{
		ID: item.ID, WorkflowExecutionID: item.WorkflowExecutionID, StepID: item.StepID, RetryCount: item.RetryCount,
		Status: gorkflow.AttemptStatus(item.Status), Input: item.Input, Output: item.Output, Error: item.Error,
		ErrorType: gorkflow.ErrorType(item.ErrorType), IsRetry: item.IsRetry, ParentAttemptID: item.ParentAttemptID,
		StepMetadata: item.StepMetadata, CreatedAt: millisToTime(item.CreatedAt),
	}
	if item.StartedAt != nil {
		t := millisToTime(*item.StartedAt)
		a.StartedAt = &t
	}
	if item.FinishedAt != nil {
		t := millisToTime(*item.FinishedAt)
		a.FinishedAt = &t
	}
	return a
}
