package main

import (
	"context"
	"log/slog"

	"github.com/underwritepro/flowengine/internal/handlers"
	"github.com/underwritepro/flowengine/pkg/flowengine"
)

func main() {

	flowengine.SetupLogger()

	// Standalone runs get log-only side effects. A host platform embeds the
	// engine and registers its real mailer, task and deal services instead.
	outbound := &logOutbound{}
	if err := flowengine.Start(nil, flowengine.Options{
		Resolver: handlers.Registry{
			Mailer:     outbound,
			Messenger:  outbound,
			Tasks:      outbound,
			Deals:      outbound,
			Touchpoint: outbound,
		},
	}); err != nil {
		slog.Error("Engine exited with error", "error", err)
	}
}

type logOutbound struct{}

func (l *logOutbound) SendEmail(ctx context.Context, to string, subject string, body string, dedupeKey string) error {
	slog.InfoContext(ctx, "send_email", "to", to, "subject", subject, "dedupe_key", dedupeKey)
	return nil
}

func (l *logOutbound) SendSms(ctx context.Context, to string, message string, dedupeKey string) error {
	slog.InfoContext(ctx, "send_sms", "to", to, "dedupe_key", dedupeKey)
	return nil
}

func (l *logOutbound) CreateTask(ctx context.Context, task *handlers.Task, dedupeKey string) error {
	slog.InfoContext(ctx, "create_task", "title", task.Title, "task_type", task.TaskType,
		"priority", task.Priority, "due_in_days", task.DueInDays, "dedupe_key", dedupeKey)
	return nil
}

func (l *logOutbound) ChangeStage(ctx context.Context, dealID string, newStage string, dedupeKey string) error {
	slog.InfoContext(ctx, "change_stage", "deal_id", dealID, "new_stage", newStage, "dedupe_key", dedupeKey)
	return nil
}

func (l *logOutbound) AssignUser(ctx context.Context, dealID string, userID string, dedupeKey string) error {
	slog.InfoContext(ctx, "assign_user", "deal_id", dealID, "user_id", userID, "dedupe_key", dedupeKey)
	return nil
}

func (l *logOutbound) LogTouchpoint(ctx context.Context, entityType string, entityID string, touchpointType string, description string, dedupeKey string) error {
	slog.InfoContext(ctx, "log_touchpoint", "entity_type", entityType, "entity_id", entityID, "touchpoint_type", touchpointType, "dedupe_key", dedupeKey)
	return nil
}
