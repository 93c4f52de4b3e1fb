package handlers

import "context"

// The engine owns no outbound side effects itself. Each handler delegates to
// one of these capability interfaces, implemented by the host platform and
// registered at startup. Every method takes the action's dedupe key so an
// implementation can suppress repeat sends for a re-executed action.

type Mailer interface {
	SendEmail(ctx context.Context, to string, subject string, body string, dedupeKey string) error
}

type Messenger interface {
	SendSms(ctx context.Context, to string, message string, dedupeKey string) error
}

type Task struct {
	Title       string
	Description string
	TaskType    string
	Priority    string
	AssigneeID  string
	EntityType  string
	EntityID    string
	DueInDays   int
}

type TaskService interface {
	CreateTask(ctx context.Context, task *Task, dedupeKey string) error
}

type DealService interface {
	ChangeStage(ctx context.Context, dealID string, newStage string, dedupeKey string) error
	AssignUser(ctx context.Context, dealID string, userID string, dedupeKey string) error
}

// PointsAwarder is satisfied by the gamification hook: Award is idempotent
// on (user, source event), so handlers pass the triggering event id through.
type PointsAwarder interface {
	Award(userID string, ruleKey string, sourceEventID string) (int, error)
}

type TouchpointLogger interface {
	LogTouchpoint(ctx context.Context, entityType string, entityID string, touchpointType string, description string, dedupeKey string) error
}
