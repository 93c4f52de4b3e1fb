package domain

import (
	"database/sql"
	"time"
)

// Workflow is one configured automation rule: a trigger plus an ordered
// action chain. Deactivating a workflow stops new matches but never
// retracts executions already in flight.
type Workflow struct {
	ID              int64
	OrganizationID  string `validate:"required"`
	Name            string `validate:"required"`
	Description     sql.NullString
	TriggerType     string `validate:"required,oneof=deal_created deal_updated stage_changed borrower_updated document_missing lesson_completed document_uploaded"`
	TriggerConfig   string
	ContinueOnError bool
	IsActive        bool
	Created         time.Time
	Modified        time.Time

	// Actions are loaded alongside the workflow, ordered by OrderIndex. A
	// workflow needs at least one: an execution with no actions would never
	// finalize.
	Actions []WorkflowAction `validate:"min=1,dive"`
}

// WorkflowAction is one configured side-effecting step. OrderIndex is unique
// within a workflow and defines the strict execution sequence. DelayMinutes
// counts from completion of the previous action, or from execution start for
// the first action.
type WorkflowAction struct {
	ID           int64
	WorkflowID   int64
	OrderIndex   int    `validate:"gte=0"`
	ActionType   string `validate:"required,oneof=send_email send_sms create_task change_stage assign_user award_points log_touchpoint"`
	ActionConfig string
	DelayMinutes int `validate:"gte=0"`
}

const (
	ActionSendEmail     = "send_email"
	ActionSendSms       = "send_sms"
	ActionCreateTask    = "create_task"
	ActionChangeStage   = "change_stage"
	ActionAssignUser    = "assign_user"
	ActionAwardPoints   = "award_points"
	ActionLogTouchpoint = "log_touchpoint"
)
