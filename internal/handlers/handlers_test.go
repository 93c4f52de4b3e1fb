package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/underwritepro/flowengine/internal/domain"
	"github.com/underwritepro/flowengine/internal/engine"
)

type recordingServices struct {
	emails      []string
	sms         []string
	tasks       []*Task
	stages      []string
	assignments []string
	touchpoints []string
	dedupeKeys  []string
	err         error
}

func (r *recordingServices) SendEmail(ctx context.Context, to string, subject string, body string, dedupeKey string) error {
	r.emails = append(r.emails, to+"|"+subject+"|"+body)
	r.dedupeKeys = append(r.dedupeKeys, dedupeKey)
	return r.err
}

func (r *recordingServices) SendSms(ctx context.Context, to string, message string, dedupeKey string) error {
	r.sms = append(r.sms, to+"|"+message)
	r.dedupeKeys = append(r.dedupeKeys, dedupeKey)
	return r.err
}

func (r *recordingServices) CreateTask(ctx context.Context, task *Task, dedupeKey string) error {
	r.tasks = append(r.tasks, task)
	r.dedupeKeys = append(r.dedupeKeys, dedupeKey)
	return r.err
}

func (r *recordingServices) ChangeStage(ctx context.Context, dealID string, newStage string, dedupeKey string) error {
	r.stages = append(r.stages, dealID+"|"+newStage)
	r.dedupeKeys = append(r.dedupeKeys, dedupeKey)
	return r.err
}

func (r *recordingServices) AssignUser(ctx context.Context, dealID string, userID string, dedupeKey string) error {
	r.assignments = append(r.assignments, dealID+"|"+userID)
	r.dedupeKeys = append(r.dedupeKeys, dedupeKey)
	return r.err
}

func (r *recordingServices) LogTouchpoint(ctx context.Context, entityType string, entityID string, touchpointType string, description string, dedupeKey string) error {
	r.touchpoints = append(r.touchpoints, touchpointType+"|"+description)
	r.dedupeKeys = append(r.dedupeKeys, dedupeKey)
	return r.err
}

func request(config map[string]any, templateCtx map[string]any) *engine.ActionRequest {
	return &engine.ActionRequest{
		ExecutionID: 1,
		ActionID:    2,
		EventID:     "evt-1",
		EntityType:  "deal",
		EntityID:    "d1",
		Config:      config,
		Context:     templateCtx,
		DedupeKey:   "dedupe-1",
	}
}

func TestSendEmailHandlerRendersTemplates(t *testing.T) {
	svc := &recordingServices{}
	h := &SendEmailHandler{Mailer: svc}

	outcome, err := h.Execute(context.Background(), request(
		map[string]any{"to_email": "{{borrower_email}}", "subject": "Welcome {{borrower_name}}", "body": "Re: {{deal_name}}"},
		map[string]any{"borrower_email": "ada@example.com", "borrower_name": "Ada", "deal_name": "Deal 42"},
	))

	require.NoError(t, err)
	assert.Contains(t, outcome.Detail, "ada@example.com")
	require.Len(t, svc.emails, 1)
	assert.Equal(t, "ada@example.com|Welcome Ada|Re: Deal 42", svc.emails[0])
	assert.Equal(t, []string{"dedupe-1"}, svc.dedupeKeys)
}

func TestSendEmailHandlerUnresolvedRecipientIsPermanent(t *testing.T) {
	h := &SendEmailHandler{Mailer: &recordingServices{}}

	_, err := h.Execute(context.Background(), request(
		map[string]any{"to_email": "{{borrower_email}}", "subject": "s", "body": "b"},
		map[string]any{},
	))

	require.Error(t, err)
	assert.True(t, engine.IsPermanent(err), "empty recipient cannot be fixed by retrying")
}

func TestSendEmailHandlerPropagatesServiceError(t *testing.T) {
	svc := &recordingServices{err: errors.New("smtp unavailable")}
	h := &SendEmailHandler{Mailer: svc}

	_, err := h.Execute(context.Background(), request(
		map[string]any{"to_email": "a@b.c", "subject": "s", "body": "b"},
		map[string]any{},
	))

	require.Error(t, err)
	assert.False(t, engine.IsPermanent(err), "unclassified service errors stay retryable")
}

func TestSendSmsHandler(t *testing.T) {
	svc := &recordingServices{}
	h := &SendSmsHandler{Messenger: svc}

	_, err := h.Execute(context.Background(), request(
		map[string]any{"to_phone": "{{borrower_phone}}", "body": "We need your {{document_name}}"},
		map[string]any{"borrower_phone": "+15550100", "document_name": "W-2"},
	))

	require.NoError(t, err)
	require.Len(t, svc.sms, 1)
	assert.Equal(t, "+15550100|We need your W-2", svc.sms[0])
}

func TestCreateTaskHandlerDefaults(t *testing.T) {
	svc := &recordingServices{}
	h := &CreateTaskHandler{Tasks: svc}

	_, err := h.Execute(context.Background(), request(
		map[string]any{"title": "Collect docs for {{deal_name}}"},
		map[string]any{"deal_name": "Deal 42"},
	))

	require.NoError(t, err)
	require.Len(t, svc.tasks, 1)
	task := svc.tasks[0]
	assert.Equal(t, "Collect docs for Deal 42", task.Title)
	assert.Equal(t, "follow_up", task.TaskType)
	assert.Equal(t, "medium", task.Priority)
	assert.Equal(t, 0, task.DueInDays)
	assert.Equal(t, "deal", task.EntityType)
	assert.Equal(t, "d1", task.EntityID)
}

func TestCreateTaskHandlerExplicitConfig(t *testing.T) {
	svc := &recordingServices{}
	h := &CreateTaskHandler{Tasks: svc}

	_, err := h.Execute(context.Background(), request(
		map[string]any{"title": "t", "task_type": "closing", "priority": "high", "due_in_days": 2.0, "assigned_to": "{{assigned_user_id}}"},
		map[string]any{"assigned_user_id": "u9"},
	))

	require.NoError(t, err)
	task := svc.tasks[0]
	assert.Equal(t, "closing", task.TaskType)
	assert.Equal(t, "high", task.Priority)
	assert.Equal(t, 2, task.DueInDays)
	assert.Equal(t, "u9", task.AssigneeID)
}

func TestChangeStageHandler(t *testing.T) {
	svc := &recordingServices{}
	h := &ChangeStageHandler{Deals: svc}

	_, err := h.Execute(context.Background(), request(map[string]any{"new_stage": "approved"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"d1|approved"}, svc.stages)

	_, err = h.Execute(context.Background(), request(map[string]any{}, nil))
	require.Error(t, err)
	assert.True(t, engine.IsPermanent(err))
}

func TestAssignUserHandler(t *testing.T) {
	svc := &recordingServices{}
	h := &AssignUserHandler{Deals: svc}

	_, err := h.Execute(context.Background(), request(
		map[string]any{"user_id": "{{loan_officer_id}}"},
		map[string]any{"loan_officer_id": "u4"},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"d1|u4"}, svc.assignments)
}

type recordingAwarder struct {
	calls   []string
	awarded int
}

func (a *recordingAwarder) Award(userID string, ruleKey string, sourceEventID string) (int, error) {
	a.calls = append(a.calls, userID+"|"+ruleKey+"|"+sourceEventID)
	return a.awarded, nil
}

func TestAwardPointsHandlerUsesEventID(t *testing.T) {
	awarder := &recordingAwarder{awarded: 100}
	h := &AwardPointsHandler{Points: awarder}

	outcome, err := h.Execute(context.Background(), request(
		map[string]any{"rule_key": "deal_funded", "user_id": "{{assigned_user_id}}"},
		map[string]any{"assigned_user_id": "u9"},
	))

	require.NoError(t, err)
	assert.Equal(t, []string{"u9|deal_funded|evt-1"}, awarder.calls, "the triggering event id is the dedupe key")
	assert.Contains(t, outcome.Detail, "100")
}

func TestAwardPointsHandlerAlreadyAwarded(t *testing.T) {
	awarder := &recordingAwarder{awarded: 0}
	h := &AwardPointsHandler{Points: awarder}

	outcome, err := h.Execute(context.Background(), request(
		map[string]any{"rule_key": "deal_funded", "user_id": "u9"},
		nil,
	))

	require.NoError(t, err, "a replayed award is success, not failure")
	assert.Contains(t, outcome.Detail, "already")
}

func TestLogTouchpointHandler(t *testing.T) {
	svc := &recordingServices{}
	h := &LogTouchpointHandler{Touchpoint: svc}

	_, err := h.Execute(context.Background(), request(
		map[string]any{"touchpoint_type": "email", "description": "Welcomed {{borrower_name}}"},
		map[string]any{"borrower_name": "Ada"},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"email|Welcomed Ada"}, svc.touchpoints)
}

func TestRegistrySkipsNilCapabilities(t *testing.T) {
	svc := &recordingServices{}
	registry := &Registry{Mailer: svc, Points: &recordingAwarder{}}

	handlers := registry.Handlers()
	assert.Contains(t, handlers, domain.ActionSendEmail)
	assert.Contains(t, handlers, domain.ActionAwardPoints)
	assert.NotContains(t, handlers, domain.ActionSendSms)
	assert.NotContains(t, handlers, domain.ActionCreateTask)
	assert.NotContains(t, handlers, domain.ActionChangeStage)
}
