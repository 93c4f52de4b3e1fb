package engine

import (
	"time"

	"github.com/underwritepro/flowengine/internal/domain"
)

// FakeClock is a settable clock so due-time and backoff math is exact in
// tests.
type FakeClock struct {
	Time time.Time
}

func (c *FakeClock) Now() time.Time { return c.Time }
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Time.Add(d)
	return ch
}
func (c *FakeClock) Sleep(d time.Duration) {}

func (c *FakeClock) Advance(d time.Duration) { c.Time = c.Time.Add(d) }

type MockWorkflowRepo struct {
	SaveFunc                    func(wf *domain.Workflow) (int64, error)
	FindByIDFunc                func(id int64) (*domain.Workflow, error)
	FindActiveFunc              func() (*[]domain.Workflow, error)
	ListByOrganizationFunc      func(orgID string, isActive *bool) (*[]domain.Workflow, error)
	FindActionsByWorkflowIDFunc func(workflowID int64) ([]domain.WorkflowAction, error)
	SetActiveFunc               func(id int64, active bool) error
}

func (m *MockWorkflowRepo) Save(wf *domain.Workflow) (int64, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(wf)
	}
	return 1, nil
}
func (m *MockWorkflowRepo) FindByID(id int64) (*domain.Workflow, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(id)
	}
	return &domain.Workflow{ID: id}, nil
}
func (m *MockWorkflowRepo) FindActive() (*[]domain.Workflow, error) {
	if m.FindActiveFunc != nil {
		return m.FindActiveFunc()
	}
	return &[]domain.Workflow{}, nil
}
func (m *MockWorkflowRepo) ListByOrganization(orgID string, isActive *bool) (*[]domain.Workflow, error) {
	if m.ListByOrganizationFunc != nil {
		return m.ListByOrganizationFunc(orgID, isActive)
	}
	return &[]domain.Workflow{}, nil
}
func (m *MockWorkflowRepo) FindActionsByWorkflowID(workflowID int64) ([]domain.WorkflowAction, error) {
	if m.FindActionsByWorkflowIDFunc != nil {
		return m.FindActionsByWorkflowIDFunc(workflowID)
	}
	return nil, nil
}
func (m *MockWorkflowRepo) SetActive(id int64, active bool) error {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(id, active)
	}
	return nil
}

type MockExecutionRepo struct {
	CreateExecutionFunc           func(wf *domain.Workflow, event *domain.Event) (*domain.Execution, bool, error)
	FindByIDFunc                  func(id int64) (*domain.Execution, error)
	FindByWorkflowAndEventFunc    func(workflowID int64, eventID string) (*domain.Execution, error)
	ListByWorkflowFunc            func(workflowID int64, status string, limit int) (*[]domain.Execution, error)
	MarkRunningFunc               func(id int64) error
	FinalizeFunc                  func(id int64, status string, errorMsg string) error
	SetErrorMessageIfEmptyFunc    func(id int64, msg string) error
	FindDueActionsFunc            func(size int) (*[]domain.ExecutionAction, error)
	ClaimActionFunc               func(id int64, executorID int64, modified time.Time) bool
	MarkActionCompletedFunc       func(id int64, attempt int) error
	MarkActionFailedFunc          func(id int64, attempt int) error
	RescheduleActionFunc          func(id int64, attempt int, dueAt time.Time) error
	CancelClaimedActionFunc       func(id int64, attempt int) error
	ScheduleNextActionFunc        func(executionID int64, orderIndex int, dueAt time.Time) (bool, error)
	CancelPendingActionsFunc      func(executionID int64) (int64, error)
	FindActionsByExecutionIDFunc  func(executionID int64) (*[]domain.ExecutionAction, error)
	CountUnresolvedActionsFunc    func(executionID int64) (int, error)
	FindExpiredClaimsFunc         func(timeoutMinutes int, limit int) (*[]domain.ExecutionAction, error)
	ReleaseClaimFunc              func(id int64, modified time.Time) bool
	AppendLogFunc                 func(entry *domain.ExecutionLogEntry) (int64, error)
	GetLogFunc                    func(executionID int64) (*[]domain.ExecutionLogEntry, error)
}

func (m *MockExecutionRepo) CreateExecution(wf *domain.Workflow, event *domain.Event) (*domain.Execution, bool, error) {
	if m.CreateExecutionFunc != nil {
		return m.CreateExecutionFunc(wf, event)
	}
	return &domain.Execution{ID: 1, WorkflowID: wf.ID, EventID: event.EventID}, true, nil
}
func (m *MockExecutionRepo) FindByID(id int64) (*domain.Execution, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(id)
	}
	return &domain.Execution{ID: id}, nil
}
func (m *MockExecutionRepo) FindByWorkflowAndEvent(workflowID int64, eventID string) (*domain.Execution, error) {
	if m.FindByWorkflowAndEventFunc != nil {
		return m.FindByWorkflowAndEventFunc(workflowID, eventID)
	}
	return nil, nil
}
func (m *MockExecutionRepo) ListByWorkflow(workflowID int64, status string, limit int) (*[]domain.Execution, error) {
	if m.ListByWorkflowFunc != nil {
		return m.ListByWorkflowFunc(workflowID, status, limit)
	}
	return &[]domain.Execution{}, nil
}
func (m *MockExecutionRepo) MarkRunning(id int64) error {
	if m.MarkRunningFunc != nil {
		return m.MarkRunningFunc(id)
	}
	return nil
}
func (m *MockExecutionRepo) Finalize(id int64, status string, errorMsg string) error {
	if m.FinalizeFunc != nil {
		return m.FinalizeFunc(id, status, errorMsg)
	}
	return nil
}
func (m *MockExecutionRepo) SetErrorMessageIfEmpty(id int64, msg string) error {
	if m.SetErrorMessageIfEmptyFunc != nil {
		return m.SetErrorMessageIfEmptyFunc(id, msg)
	}
	return nil
}
func (m *MockExecutionRepo) FindDueActions(size int) (*[]domain.ExecutionAction, error) {
	if m.FindDueActionsFunc != nil {
		return m.FindDueActionsFunc(size)
	}
	return &[]domain.ExecutionAction{}, nil
}
func (m *MockExecutionRepo) ClaimAction(id int64, executorID int64, modified time.Time) bool {
	if m.ClaimActionFunc != nil {
		return m.ClaimActionFunc(id, executorID, modified)
	}
	return true
}
func (m *MockExecutionRepo) MarkActionCompleted(id int64, attempt int) error {
	if m.MarkActionCompletedFunc != nil {
		return m.MarkActionCompletedFunc(id, attempt)
	}
	return nil
}
func (m *MockExecutionRepo) MarkActionFailed(id int64, attempt int) error {
	if m.MarkActionFailedFunc != nil {
		return m.MarkActionFailedFunc(id, attempt)
	}
	return nil
}
func (m *MockExecutionRepo) RescheduleAction(id int64, attempt int, dueAt time.Time) error {
	if m.RescheduleActionFunc != nil {
		return m.RescheduleActionFunc(id, attempt, dueAt)
	}
	return nil
}
func (m *MockExecutionRepo) CancelClaimedAction(id int64, attempt int) error {
	if m.CancelClaimedActionFunc != nil {
		return m.CancelClaimedActionFunc(id, attempt)
	}
	return nil
}
func (m *MockExecutionRepo) ScheduleNextAction(executionID int64, orderIndex int, dueAt time.Time) (bool, error) {
	if m.ScheduleNextActionFunc != nil {
		return m.ScheduleNextActionFunc(executionID, orderIndex, dueAt)
	}
	return true, nil
}
func (m *MockExecutionRepo) CancelPendingActions(executionID int64) (int64, error) {
	if m.CancelPendingActionsFunc != nil {
		return m.CancelPendingActionsFunc(executionID)
	}
	return 0, nil
}
func (m *MockExecutionRepo) FindActionsByExecutionID(executionID int64) (*[]domain.ExecutionAction, error) {
	if m.FindActionsByExecutionIDFunc != nil {
		return m.FindActionsByExecutionIDFunc(executionID)
	}
	return &[]domain.ExecutionAction{}, nil
}
func (m *MockExecutionRepo) CountUnresolvedActions(executionID int64) (int, error) {
	if m.CountUnresolvedActionsFunc != nil {
		return m.CountUnresolvedActionsFunc(executionID)
	}
	return 0, nil
}
func (m *MockExecutionRepo) FindExpiredClaims(timeoutMinutes int, limit int) (*[]domain.ExecutionAction, error) {
	if m.FindExpiredClaimsFunc != nil {
		return m.FindExpiredClaimsFunc(timeoutMinutes, limit)
	}
	return &[]domain.ExecutionAction{}, nil
}
func (m *MockExecutionRepo) ReleaseClaim(id int64, modified time.Time) bool {
	if m.ReleaseClaimFunc != nil {
		return m.ReleaseClaimFunc(id, modified)
	}
	return true
}
func (m *MockExecutionRepo) AppendLog(entry *domain.ExecutionLogEntry) (int64, error) {
	if m.AppendLogFunc != nil {
		return m.AppendLogFunc(entry)
	}
	return 1, nil
}
func (m *MockExecutionRepo) GetLog(executionID int64) (*[]domain.ExecutionLogEntry, error) {
	if m.GetLogFunc != nil {
		return m.GetLogFunc(executionID)
	}
	return &[]domain.ExecutionLogEntry{}, nil
}

type MockPointsRepo struct {
	GetRuleFunc           func(ruleKey string) (*domain.PointsRule, error)
	InsertLedgerEntryFunc func(entry *domain.PointsLedgerEntry) (bool, error)
	AddPointsFunc         func(userID string, points int) (int, error)
	UpdateLevelFunc       func(userID string, level int, levelName string, pointsToNext int) error
	GetUserPointsFunc     func(userID string) (*domain.UserPoints, error)
}

func (m *MockPointsRepo) GetRule(ruleKey string) (*domain.PointsRule, error) {
	if m.GetRuleFunc != nil {
		return m.GetRuleFunc(ruleKey)
	}
	return &domain.PointsRule{RuleKey: ruleKey, Points: 10}, nil
}
func (m *MockPointsRepo) InsertLedgerEntry(entry *domain.PointsLedgerEntry) (bool, error) {
	if m.InsertLedgerEntryFunc != nil {
		return m.InsertLedgerEntryFunc(entry)
	}
	return true, nil
}
func (m *MockPointsRepo) AddPoints(userID string, points int) (int, error) {
	if m.AddPointsFunc != nil {
		return m.AddPointsFunc(userID, points)
	}
	return points, nil
}
func (m *MockPointsRepo) UpdateLevel(userID string, level int, levelName string, pointsToNext int) error {
	if m.UpdateLevelFunc != nil {
		return m.UpdateLevelFunc(userID, level, levelName, pointsToNext)
	}
	return nil
}
func (m *MockPointsRepo) GetUserPoints(userID string) (*domain.UserPoints, error) {
	if m.GetUserPointsFunc != nil {
		return m.GetUserPointsFunc(userID)
	}
	return &domain.UserPoints{UserID: userID}, nil
}

type MockExecutorRepo struct {
	SaveFunc                     func(e *domain.Executor) (int64, error)
	UpdateLastActiveFunc         func(id int64, ts time.Time) error
	GetExecutorsByLastActiveFunc func(limit int) ([]*domain.Executor, error)
}

func (m *MockExecutorRepo) Save(e *domain.Executor) (int64, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(e)
	}
	return 1, nil
}
func (m *MockExecutorRepo) UpdateLastActive(id int64, ts time.Time) error {
	if m.UpdateLastActiveFunc != nil {
		return m.UpdateLastActiveFunc(id, ts)
	}
	return nil
}
func (m *MockExecutorRepo) GetExecutorsByLastActive(limit int) ([]*domain.Executor, error) {
	if m.GetExecutorsByLastActiveFunc != nil {
		return m.GetExecutorsByLastActiveFunc(limit)
	}
	return nil, nil
}
