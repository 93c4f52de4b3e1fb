package models

import "time"

// EventRequest is the inbound event payload delivered by entity services.
type EventRequest struct {
	EventID     string         `json:"eventId"`
	Type        string         `json:"type"`
	EntityType  string         `json:"entityType"`
	EntityID    string         `json:"entityId"`
	UserID      string         `json:"userId,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
	RootEventID string         `json:"rootEventId,omitempty"`
	Depth       int            `json:"depth,omitempty"`
}

// EventResponse reports what an event delivery produced. Redelivering the
// same event returns the same execution ids with created=false.
type EventResponse struct {
	EventID    string               `json:"eventId"`
	Matched    int                  `json:"matched"`
	Executions []ExecutionReference `json:"executions"`
}

type ExecutionReference struct {
	ExecutionID int64  `json:"executionId"`
	WorkflowID  int64  `json:"workflowId"`
	Created     bool   `json:"created"`
	Status      string `json:"status"`
}

type CreateWorkflowRequest struct {
	OrganizationID  string                        `json:"organizationId"`
	Name            string                        `json:"name"`
	Description     string                        `json:"description,omitempty"`
	TriggerType     string                        `json:"triggerType"`
	TriggerConfig   map[string]any                `json:"triggerConfig,omitempty"`
	ContinueOnError bool                          `json:"continueOnError,omitempty"`
	IsActive        *bool                         `json:"isActive,omitempty"`
	TemplateKey     string                        `json:"templateKey,omitempty"`
	Actions         []CreateWorkflowActionRequest `json:"actions"`
}

type CreateWorkflowActionRequest struct {
	ActionType   string         `json:"actionType"`
	ActionConfig map[string]any `json:"actionConfig,omitempty"`
	DelayMinutes int            `json:"delayMinutes,omitempty"`
}

type WorkflowResponse struct {
	ID              int64                    `json:"id"`
	OrganizationID  string                   `json:"organizationId"`
	Name            string                   `json:"name"`
	Description     string                   `json:"description,omitempty"`
	TriggerType     string                   `json:"triggerType"`
	TriggerConfig   map[string]any           `json:"triggerConfig,omitempty"`
	ContinueOnError bool                     `json:"continueOnError"`
	IsActive        bool                     `json:"isActive"`
	Created         time.Time                `json:"created"`
	Modified        time.Time                `json:"modified"`
	Actions         []WorkflowActionResponse `json:"actions,omitempty"`
}

type WorkflowActionResponse struct {
	ID           int64          `json:"id"`
	OrderIndex   int            `json:"orderIndex"`
	ActionType   string         `json:"actionType"`
	ActionConfig map[string]any `json:"actionConfig,omitempty"`
	DelayMinutes int            `json:"delayMinutes"`
}

type ExecutionResponse struct {
	ID           int64      `json:"id"`
	WorkflowID   int64      `json:"workflowId"`
	EventID      string     `json:"eventId"`
	EntityType   string     `json:"entityType"`
	EntityID     string     `json:"entityId"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	Created      time.Time  `json:"created"`
	Started      *time.Time `json:"started,omitempty"`
	Completed    *time.Time `json:"completed,omitempty"`
}

type ExecutionActionResponse struct {
	ID           int64      `json:"id"`
	OrderIndex   int        `json:"orderIndex"`
	ActionType   string     `json:"actionType"`
	Status       string     `json:"status"`
	Attempt      int        `json:"attempt"`
	DueAt        *time.Time `json:"dueAt,omitempty"`
	ClaimedAt    *time.Time `json:"claimedAt,omitempty"`
	DelayMinutes int        `json:"delayMinutes"`
}

type ExecutionLogResponse struct {
	ActionID int64     `json:"actionId,omitempty"`
	Attempt  int       `json:"attempt,omitempty"`
	Status   string    `json:"status"`
	Detail   string    `json:"detail,omitempty"`
	DateTime time.Time `json:"dateTime"`
}

// ExecutionStatusResponse is the full operator view: execution, per-action
// state and the append-only audit log.
type ExecutionStatusResponse struct {
	Execution ExecutionResponse         `json:"execution"`
	Actions   []ExecutionActionResponse `json:"actions"`
	Log       []ExecutionLogResponse    `json:"log"`
}

// ExecutorResponse is one registered engine instance. LastActive is the
// heartbeat timestamp the reclaim sweep keys off.
type ExecutorResponse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Started    time.Time `json:"started"`
	LastActive time.Time `json:"lastActive"`
}

// UserPointsResponse is the gamification summary for one user.
type UserPointsResponse struct {
	UserID       string `json:"userId"`
	TotalPoints  int    `json:"totalPoints"`
	Level        int    `json:"level"`
	LevelName    string `json:"levelName"`
	PointsToNext int    `json:"pointsToNextLevel"`
}
