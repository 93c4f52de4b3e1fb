package domain

import (
	"database/sql"
	"time"
)

// Execution statuses. The status is monotonic:
// pending -> running -> {completed | failed | cancelled}.
const (
	ExecutionPending   = "pending"
	ExecutionRunning   = "running"
	ExecutionCompleted = "completed"
	ExecutionFailed    = "failed"
	ExecutionCancelled = "cancelled"
)

// IsTerminalExecution reports whether status is one of the three terminal
// execution statuses.
func IsTerminalExecution(status string) bool {
	return status == ExecutionCompleted || status == ExecutionFailed || status == ExecutionCancelled
}

// Per-action statuses. pending -> claimed -> {completed | failed}, with
// claimed reverting to pending when a claim times out, and pending moving
// straight to cancelled when the execution is cancelled or a predecessor
// fails terminally.
const (
	ActionPending   = "pending"
	ActionClaimed   = "claimed"
	ActionCompleted = "completed"
	ActionFailed    = "failed"
	ActionCancelled = "cancelled"
)

// Execution is one run of a workflow against one triggering event.
// (WorkflowID, EventID) is unique: redelivery of the same event never
// creates a second execution.
type Execution struct {
	ID           int64
	WorkflowID   int64
	EventID      string
	EntityType   string
	EntityID     string
	EventFields  string
	Status       string
	ErrorMessage sql.NullString
	Created      time.Time
	Modified     time.Time
	Started      sql.NullTime
	Completed    sql.NullTime
}

// ExecutionAction is the durable, claimable per-action row. DueAt is NULL
// until the predecessor action completes; the scheduler only ever sees rows
// whose due time has been set and has passed.
type ExecutionAction struct {
	ID           int64
	ExecutionID  int64
	ActionID     int64
	OrderIndex   int
	ActionType   string
	ActionConfig string
	DelayMinutes int
	Status       string
	Attempt      int
	DueAt        sql.NullTime
	ClaimedAt    sql.NullTime
	ClaimedBy    sql.NullInt64
	Modified     time.Time
}

// ExecutionLogEntry is one append-only audit record. Entries are never
// mutated or deleted.
type ExecutionLogEntry struct {
	ID          int64
	ExecutionID int64
	ActionID    int64
	Attempt     int
	Status      string
	Detail      string
	DateTime    time.Time
}
