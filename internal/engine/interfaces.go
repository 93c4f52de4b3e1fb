package engine

import (
	"time"

	"github.com/underwritepro/flowengine/internal/domain"
)

// WorkflowRepo defines the interface for workflow definition persistence,
// matching repository.WorkflowRepository.
type WorkflowRepo interface {
	Save(wf *domain.Workflow) (int64, error)
	FindByID(id int64) (*domain.Workflow, error)
	FindActive() (*[]domain.Workflow, error)
	ListByOrganization(orgID string, isActive *bool) (*[]domain.Workflow, error)
	FindActionsByWorkflowID(workflowID int64) ([]domain.WorkflowAction, error)
	SetActive(id int64, active bool) error
}

// ExecutionRepo defines the interface for execution persistence, matching
// repository.ExecutionRepository.
type ExecutionRepo interface {
	CreateExecution(wf *domain.Workflow, event *domain.Event) (*domain.Execution, bool, error)
	FindByID(id int64) (*domain.Execution, error)
	FindByWorkflowAndEvent(workflowID int64, eventID string) (*domain.Execution, error)
	ListByWorkflow(workflowID int64, status string, limit int) (*[]domain.Execution, error)
	MarkRunning(id int64) error
	Finalize(id int64, status string, errorMsg string) error
	SetErrorMessageIfEmpty(id int64, msg string) error
	FindDueActions(size int) (*[]domain.ExecutionAction, error)
	ClaimAction(id int64, executorID int64, modified time.Time) bool
	MarkActionCompleted(id int64, attempt int) error
	MarkActionFailed(id int64, attempt int) error
	RescheduleAction(id int64, attempt int, dueAt time.Time) error
	CancelClaimedAction(id int64, attempt int) error
	ScheduleNextAction(executionID int64, orderIndex int, dueAt time.Time) (bool, error)
	CancelPendingActions(executionID int64) (int64, error)
	FindActionsByExecutionID(executionID int64) (*[]domain.ExecutionAction, error)
	CountUnresolvedActions(executionID int64) (int, error)
	FindExpiredClaims(timeoutMinutes int, limit int) (*[]domain.ExecutionAction, error)
	ReleaseClaim(id int64, modified time.Time) bool
	AppendLog(entry *domain.ExecutionLogEntry) (int64, error)
	GetLog(executionID int64) (*[]domain.ExecutionLogEntry, error)
}

// PointsRepo defines the interface for gamification persistence.
type PointsRepo interface {
	GetRule(ruleKey string) (*domain.PointsRule, error)
	InsertLedgerEntry(entry *domain.PointsLedgerEntry) (bool, error)
	AddPoints(userID string, points int) (int, error)
	UpdateLevel(userID string, level int, levelName string, pointsToNext int) error
	GetUserPoints(userID string) (*domain.UserPoints, error)
}

// ExecutorRepo defines the interface for executor persistence.
type ExecutorRepo interface {
	Save(e *domain.Executor) (int64, error)
	UpdateLastActive(id int64, ts time.Time) error
	GetExecutorsByLastActive(limit int) ([]*domain.Executor, error)
}
