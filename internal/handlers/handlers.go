package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/underwritepro/flowengine/internal/domain"
	"github.com/underwritepro/flowengine/internal/engine"
)

// Registry builds the handler map wired into the action executor. A nil
// capability leaves its action types unregistered, so a workflow using them
// fails permanently with a clear "no handler" error instead of panicking.
type Registry struct {
	Mailer     Mailer
	Messenger  Messenger
	Tasks      TaskService
	Deals      DealService
	Points     PointsAwarder
	Touchpoint TouchpointLogger
}

func (r *Registry) Handlers() map[string]engine.ActionHandler {
	handlers := make(map[string]engine.ActionHandler)
	if r.Mailer != nil {
		handlers[domain.ActionSendEmail] = &SendEmailHandler{Mailer: r.Mailer}
	}
	if r.Messenger != nil {
		handlers[domain.ActionSendSms] = &SendSmsHandler{Messenger: r.Messenger}
	}
	if r.Tasks != nil {
		handlers[domain.ActionCreateTask] = &CreateTaskHandler{Tasks: r.Tasks}
	}
	if r.Deals != nil {
		handlers[domain.ActionChangeStage] = &ChangeStageHandler{Deals: r.Deals}
		handlers[domain.ActionAssignUser] = &AssignUserHandler{Deals: r.Deals}
	}
	if r.Points != nil {
		handlers[domain.ActionAwardPoints] = &AwardPointsHandler{Points: r.Points}
	}
	if r.Touchpoint != nil {
		handlers[domain.ActionLogTouchpoint] = &LogTouchpointHandler{Touchpoint: r.Touchpoint}
	}
	return handlers
}

// SendEmailHandler renders the configured template against the entity
// context and hands the message to the platform mailer.
type SendEmailHandler struct {
	Mailer Mailer
}

func (h *SendEmailHandler) Execute(ctx context.Context, req *engine.ActionRequest) (*engine.Outcome, error) {
	to := RenderVariables(configString(req.Config, "to_email"), req.Context)
	if to == "" {
		return nil, engine.Permanent(fmt.Errorf("send_email: no recipient resolved from config %q", configString(req.Config, "to_email")))
	}
	subject := RenderVariables(configString(req.Config, "subject"), req.Context)
	body := RenderVariables(configString(req.Config, "body"), req.Context)
	if err := h.Mailer.SendEmail(ctx, to, subject, body, req.DedupeKey); err != nil {
		return nil, err
	}
	return &engine.Outcome{Detail: "email sent to " + to}, nil
}

type SendSmsHandler struct {
	Messenger Messenger
}

func (h *SendSmsHandler) Execute(ctx context.Context, req *engine.ActionRequest) (*engine.Outcome, error) {
	to := RenderVariables(configString(req.Config, "to_phone"), req.Context)
	if to == "" {
		return nil, engine.Permanent(fmt.Errorf("send_sms: no recipient resolved from config %q", configString(req.Config, "to_phone")))
	}
	message := RenderVariables(configString(req.Config, "body"), req.Context)
	if err := h.Messenger.SendSms(ctx, to, message, req.DedupeKey); err != nil {
		return nil, err
	}
	return &engine.Outcome{Detail: "sms sent to " + to}, nil
}

// CreateTaskHandler creates a follow-up task attached to the triggering
// entity. Unset type and priority default to follow_up and medium; a zero
// DueInDays means no due date.
type CreateTaskHandler struct {
	Tasks TaskService
}

func (h *CreateTaskHandler) Execute(ctx context.Context, req *engine.ActionRequest) (*engine.Outcome, error) {
	title := RenderVariables(configString(req.Config, "title"), req.Context)
	if title == "" {
		return nil, engine.Permanent(fmt.Errorf("create_task: empty title after rendering"))
	}
	task := &Task{
		Title:       title,
		Description: RenderVariables(configString(req.Config, "description"), req.Context),
		TaskType:    configString(req.Config, "task_type"),
		Priority:    configString(req.Config, "priority"),
		AssigneeID:  RenderVariables(configString(req.Config, "assigned_to"), req.Context),
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		DueInDays:   configInt(req.Config, "due_in_days", 0),
	}
	if task.TaskType == "" {
		task.TaskType = "follow_up"
	}
	if task.Priority == "" {
		task.Priority = "medium"
	}
	if err := h.Tasks.CreateTask(ctx, task, req.DedupeKey); err != nil {
		return nil, err
	}
	return &engine.Outcome{Detail: "task created: " + task.Title}, nil
}

// ChangeStageHandler moves a deal through the pipeline. Stage changes on the
// entity service emit their own stage_changed event back into the engine,
// which is why re-trigger depth is tracked on events.
type ChangeStageHandler struct {
	Deals DealService
}

func (h *ChangeStageHandler) Execute(ctx context.Context, req *engine.ActionRequest) (*engine.Outcome, error) {
	newStage := configString(req.Config, "new_stage")
	if newStage == "" {
		return nil, engine.Permanent(fmt.Errorf("change_stage: missing new_stage"))
	}
	if err := h.Deals.ChangeStage(ctx, req.EntityID, newStage, req.DedupeKey); err != nil {
		return nil, err
	}
	return &engine.Outcome{Detail: "stage changed to " + newStage}, nil
}

type AssignUserHandler struct {
	Deals DealService
}

func (h *AssignUserHandler) Execute(ctx context.Context, req *engine.ActionRequest) (*engine.Outcome, error) {
	userID := RenderVariables(configString(req.Config, "user_id"), req.Context)
	if userID == "" {
		return nil, engine.Permanent(fmt.Errorf("assign_user: no user resolved from config %q", configString(req.Config, "user_id")))
	}
	if err := h.Deals.AssignUser(ctx, req.EntityID, userID, req.DedupeKey); err != nil {
		return nil, err
	}
	return &engine.Outcome{Detail: "assigned user " + userID}, nil
}

// AwardPointsHandler grants points through the gamification ledger. The
// triggering event id is the ledger dedupe key, so re-execution of this
// action can never double-award.
type AwardPointsHandler struct {
	Points PointsAwarder
}

func (h *AwardPointsHandler) Execute(ctx context.Context, req *engine.ActionRequest) (*engine.Outcome, error) {
	ruleKey := configString(req.Config, "rule_key")
	if ruleKey == "" {
		return nil, engine.Permanent(fmt.Errorf("award_points: missing rule_key"))
	}
	userID := RenderVariables(configString(req.Config, "user_id"), req.Context)
	if userID == "" {
		return nil, engine.Permanent(fmt.Errorf("award_points: no user resolved from config %q", configString(req.Config, "user_id")))
	}
	awarded, err := h.Points.Award(userID, ruleKey, req.EventID)
	if err != nil {
		return nil, err
	}
	if awarded == 0 {
		slog.DebugContext(ctx, "Points already awarded for event", "user_id", userID, "event_id", req.EventID)
		return &engine.Outcome{Detail: "points already awarded"}, nil
	}
	return &engine.Outcome{Detail: fmt.Sprintf("awarded %d points to %s", awarded, userID)}, nil
}

type LogTouchpointHandler struct {
	Touchpoint TouchpointLogger
}

func (h *LogTouchpointHandler) Execute(ctx context.Context, req *engine.ActionRequest) (*engine.Outcome, error) {
	touchpointType := configString(req.Config, "touchpoint_type")
	if touchpointType == "" {
		touchpointType = "system"
	}
	description := RenderVariables(configString(req.Config, "description"), req.Context)
	if err := h.Touchpoint.LogTouchpoint(ctx, req.EntityType, req.EntityID, touchpointType, description, req.DedupeKey); err != nil {
		return nil, err
	}
	return &engine.Outcome{Detail: "touchpoint logged: " + touchpointType}, nil
}
