package controllers

import (
	"database/sql"
	"time"

	"github.com/underwritepro/flowengine/internal/domain"
)

type fakeWorkflowRepo struct {
	workflows map[int64]*domain.Workflow
	nextID    int64
	active    map[int64]bool
}

func newFakeWorkflowRepo() *fakeWorkflowRepo {
	return &fakeWorkflowRepo{workflows: map[int64]*domain.Workflow{}, nextID: 1, active: map[int64]bool{}}
}

func (f *fakeWorkflowRepo) Save(wf *domain.Workflow) (int64, error) {
	id := f.nextID
	f.nextID++
	saved := *wf
	saved.ID = id
	for i := range saved.Actions {
		saved.Actions[i].ID = int64(100 + i)
		saved.Actions[i].WorkflowID = id
	}
	f.workflows[id] = &saved
	return id, nil
}

func (f *fakeWorkflowRepo) FindByID(id int64) (*domain.Workflow, error) {
	wf, ok := f.workflows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return wf, nil
}

func (f *fakeWorkflowRepo) FindActive() (*[]domain.Workflow, error) {
	var out []domain.Workflow
	for _, wf := range f.workflows {
		if wf.IsActive {
			out = append(out, *wf)
		}
	}
	return &out, nil
}

func (f *fakeWorkflowRepo) ListByOrganization(orgID string, isActive *bool) (*[]domain.Workflow, error) {
	var out []domain.Workflow
	for _, wf := range f.workflows {
		if wf.OrganizationID != orgID {
			continue
		}
		if isActive != nil && wf.IsActive != *isActive {
			continue
		}
		out = append(out, *wf)
	}
	return &out, nil
}

func (f *fakeWorkflowRepo) FindActionsByWorkflowID(workflowID int64) ([]domain.WorkflowAction, error) {
	wf, ok := f.workflows[workflowID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return wf.Actions, nil
}

func (f *fakeWorkflowRepo) SetActive(id int64, active bool) error {
	wf, ok := f.workflows[id]
	if !ok {
		return sql.ErrNoRows
	}
	wf.IsActive = active
	return nil
}

// fakeExecutionRepo covers just what the controllers reach; the claim and
// scheduling paths are exercised in the engine package tests.
type fakeExecutionRepo struct {
	executions map[int64]*domain.Execution
	actions    map[int64][]domain.ExecutionAction
	log        map[int64][]domain.ExecutionLogEntry
	nextID     int64
	byEvent    map[string]int64
	cancelled  []int64
}

func newFakeExecutionRepo() *fakeExecutionRepo {
	return &fakeExecutionRepo{
		executions: map[int64]*domain.Execution{},
		actions:    map[int64][]domain.ExecutionAction{},
		log:        map[int64][]domain.ExecutionLogEntry{},
		nextID:     1,
		byEvent:    map[string]int64{},
	}
}

func (f *fakeExecutionRepo) CreateExecution(wf *domain.Workflow, event *domain.Event) (*domain.Execution, bool, error) {
	key := event.EventID + "/" + wf.Name
	if id, ok := f.byEvent[key]; ok {
		return f.executions[id], false, nil
	}
	id := f.nextID
	f.nextID++
	ex := &domain.Execution{
		ID: id, WorkflowID: wf.ID, EventID: event.EventID,
		EntityType: event.EntityType, EntityID: event.EntityID,
		Status: domain.ExecutionPending,
	}
	f.executions[id] = ex
	f.byEvent[key] = id
	return ex, true, nil
}

func (f *fakeExecutionRepo) FindByID(id int64) (*domain.Execution, error) {
	ex, ok := f.executions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return ex, nil
}

func (f *fakeExecutionRepo) FindByWorkflowAndEvent(workflowID int64, eventID string) (*domain.Execution, error) {
	for _, ex := range f.executions {
		if ex.WorkflowID == workflowID && ex.EventID == eventID {
			return ex, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeExecutionRepo) ListByWorkflow(workflowID int64, status string, limit int) (*[]domain.Execution, error) {
	var out []domain.Execution
	for _, ex := range f.executions {
		if ex.WorkflowID != workflowID {
			continue
		}
		if status != "" && ex.Status != status {
			continue
		}
		out = append(out, *ex)
	}
	return &out, nil
}

func (f *fakeExecutionRepo) MarkRunning(id int64) error { return nil }

func (f *fakeExecutionRepo) Finalize(id int64, status string, errorMsg string) error {
	ex, ok := f.executions[id]
	if !ok {
		return sql.ErrNoRows
	}
	ex.Status = status
	return nil
}

func (f *fakeExecutionRepo) SetErrorMessageIfEmpty(id int64, msg string) error { return nil }

func (f *fakeExecutionRepo) FindDueActions(size int) (*[]domain.ExecutionAction, error) {
	return &[]domain.ExecutionAction{}, nil
}

func (f *fakeExecutionRepo) ClaimAction(id int64, executorID int64, modified time.Time) bool {
	return false
}

func (f *fakeExecutionRepo) MarkActionCompleted(id int64, attempt int) error { return nil }
func (f *fakeExecutionRepo) MarkActionFailed(id int64, attempt int) error    { return nil }
func (f *fakeExecutionRepo) RescheduleAction(id int64, attempt int, dueAt time.Time) error {
	return nil
}
func (f *fakeExecutionRepo) CancelClaimedAction(id int64, attempt int) error { return nil }
func (f *fakeExecutionRepo) ScheduleNextAction(executionID int64, orderIndex int, dueAt time.Time) (bool, error) {
	return false, nil
}

func (f *fakeExecutionRepo) CancelPendingActions(executionID int64) (int64, error) {
	f.cancelled = append(f.cancelled, executionID)
	return 1, nil
}

func (f *fakeExecutionRepo) FindActionsByExecutionID(executionID int64) (*[]domain.ExecutionAction, error) {
	actions := f.actions[executionID]
	return &actions, nil
}

func (f *fakeExecutionRepo) CountUnresolvedActions(executionID int64) (int, error) { return 0, nil }

func (f *fakeExecutionRepo) FindExpiredClaims(timeoutMinutes int, limit int) (*[]domain.ExecutionAction, error) {
	return &[]domain.ExecutionAction{}, nil
}

func (f *fakeExecutionRepo) ReleaseClaim(id int64, modified time.Time) bool { return false }

func (f *fakeExecutionRepo) AppendLog(entry *domain.ExecutionLogEntry) (int64, error) {
	f.log[entry.ExecutionID] = append(f.log[entry.ExecutionID], *entry)
	return int64(len(f.log[entry.ExecutionID])), nil
}

func (f *fakeExecutionRepo) GetLog(executionID int64) (*[]domain.ExecutionLogEntry, error) {
	entries := f.log[executionID]
	return &entries, nil
}

type fakeExecutorRepo struct {
	executors []*domain.Executor
}

func (f *fakeExecutorRepo) Save(e *domain.Executor) (int64, error) {
	id := int64(len(f.executors) + 1)
	saved := *e
	saved.ID = id
	f.executors = append(f.executors, &saved)
	return id, nil
}

func (f *fakeExecutorRepo) UpdateLastActive(id int64, ts time.Time) error {
	for _, e := range f.executors {
		if e.ID == id {
			e.LastActive = ts
		}
	}
	return nil
}

func (f *fakeExecutorRepo) GetExecutorsByLastActive(limit int) ([]*domain.Executor, error) {
	if limit > len(f.executors) {
		limit = len(f.executors)
	}
	return f.executors[:limit], nil
}

type fakePointsRepo struct {
	users map[string]*domain.UserPoints
}

func (f *fakePointsRepo) GetRule(ruleKey string) (*domain.PointsRule, error) {
	return nil, sql.ErrNoRows
}
func (f *fakePointsRepo) InsertLedgerEntry(entry *domain.PointsLedgerEntry) (bool, error) {
	return true, nil
}
func (f *fakePointsRepo) AddPoints(userID string, points int) (int, error) { return points, nil }
func (f *fakePointsRepo) UpdateLevel(userID string, level int, levelName string, pointsToNext int) error {
	return nil
}
func (f *fakePointsRepo) GetUserPoints(userID string) (*domain.UserPoints, error) {
	if f.users == nil {
		return nil, sql.ErrNoRows
	}
	up, ok := f.users[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return up, nil
}
