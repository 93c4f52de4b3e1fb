package engine

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"

	"github.com/underwritepro/flowengine/internal/config"
	"github.com/underwritepro/flowengine/internal/domain"
	"github.com/underwritepro/flowengine/pkg/flowengine/core"
)

// Engine is the inbound face of the workflow engine: entity services deliver
// events here, operators query and cancel executions here. Event handling
// only matches triggers and enqueues pending work; it never blocks on any
// action's side effect.
type Engine struct {
	registry      *TriggerRegistry
	workflowRepo  WorkflowRepo
	executionRepo ExecutionRepo
	gamification  *GamificationHook
	scheduler     *Scheduler
	validate      *validator.Validate
	clock         core.Clock
}

// ExecutionResult reports one matched workflow's execution for a delivered
// event, and whether this delivery created it.
type ExecutionResult struct {
	Execution *domain.Execution
	Created   bool
}

// ExecutionStatus is the operator view of one execution.
type ExecutionStatus struct {
	Execution *domain.Execution
	Actions   []domain.ExecutionAction
	Log       []domain.ExecutionLogEntry
}

func NewEngine(registry *TriggerRegistry, workflowRepo WorkflowRepo, executionRepo ExecutionRepo,
	gamification *GamificationHook, scheduler *Scheduler, clock core.Clock) *Engine {
	return &Engine{
		registry:      registry,
		workflowRepo:  workflowRepo,
		executionRepo: executionRepo,
		gamification:  gamification,
		scheduler:     scheduler,
		validate:      validator.New(),
		clock:         clock,
	}
}

// HandleEvent is the single inbound entry point for entity events. Safe to
// call with the same event any number of times: executions are deduplicated
// on (workflow, event id) and point awards on (user, event id).
func (e *Engine) HandleEvent(ctx context.Context, event *domain.Event) ([]ExecutionResult, error) {
	if err := e.validate.Struct(event); err != nil {
		return nil, err
	}

	depthLimit := config.GetSystemSettingInteger(config.ENGINE_RETRIGGER_DEPTH_LIMIT)
	if event.Depth > depthLimit {
		slog.WarnContext(ctx, "Dropping event past re-trigger depth limit", "event_id", event.EventID,
			"root_event_id", event.Root(), "depth", event.Depth, "limit", depthLimit)
		return nil, nil
	}

	e.gamification.OnEvent(event)

	matched := e.registry.Match(event)
	if len(matched) == 0 {
		slog.DebugContext(ctx, "No workflows matched event", "event_id", event.EventID, "type", event.Type)
		return nil, nil
	}

	var errs *multierror.Error
	results := make([]ExecutionResult, 0, len(matched))
	anyCreated := false
	for _, wf := range matched {
		execution, created, err := e.executionRepo.CreateExecution(wf, event)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create execution", "error", err, "workflow_id", wf.ID, "event_id", event.EventID)
			errs = multierror.Append(errs, err)
			continue
		}
		results = append(results, ExecutionResult{Execution: execution, Created: created})
		if created {
			anyCreated = true
			slog.InfoContext(ctx, "Created execution", "execution_id", execution.ID,
				"workflow_id", wf.ID, "workflow", wf.Name, "event_id", event.EventID)
		} else {
			slog.InfoContext(ctx, "Event redelivered, execution exists", "execution_id", execution.ID,
				"workflow_id", wf.ID, "event_id", event.EventID)
		}
	}

	if anyCreated && e.scheduler != nil {
		e.scheduler.Wakeup()
	}
	return results, errs.ErrorOrNil()
}

// GetExecutionStatus returns the execution, its per-action state and its
// full audit log.
func (e *Engine) GetExecutionStatus(executionID int64) (*ExecutionStatus, error) {
	execution, err := e.executionRepo.FindByID(executionID)
	if err != nil {
		return nil, err
	}
	actions, err := e.executionRepo.FindActionsByExecutionID(executionID)
	if err != nil {
		return nil, err
	}
	log, err := e.executionRepo.GetLog(executionID)
	if err != nil {
		return nil, err
	}
	return &ExecutionStatus{Execution: execution, Actions: *actions, Log: *log}, nil
}

// ListExecutions returns recent executions for a workflow, optionally
// filtered by status.
func (e *Engine) ListExecutions(workflowID int64, status string, limit int) (*[]domain.Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.executionRepo.ListByWorkflow(workflowID, status, limit)
}

// CancelExecution cancels every still-pending action so the scheduler can
// never claim them, then moves the execution to cancelled. Actions already
// claimed are allowed to finish; their outcomes still land in the log.
func (e *Engine) CancelExecution(ctx context.Context, executionID int64) error {
	execution, err := e.executionRepo.FindByID(executionID)
	if err != nil {
		return err
	}

	cancelled, err := e.executionRepo.CancelPendingActions(executionID)
	if err != nil {
		return err
	}
	if err := e.executionRepo.Finalize(executionID, domain.ExecutionCancelled, ""); err != nil {
		return err
	}
	_, _ = e.executionRepo.AppendLog(&domain.ExecutionLogEntry{
		ExecutionID: executionID,
		Status:      "cancelled",
		Detail:      "execution cancelled by operator",
		DateTime:    e.clock.Now(),
	})
	slog.InfoContext(ctx, "Execution cancelled", "execution_id", executionID,
		"workflow_id", execution.WorkflowID, "actions_cancelled", cancelled)
	return nil
}

// CreateWorkflow validates and persists a new definition, then reloads the
// trigger registry so it matches immediately.
func (e *Engine) CreateWorkflow(wf *domain.Workflow) (int64, error) {
	if _, err := e.registry.compile(wf); err != nil {
		return 0, err
	}
	id, err := e.workflowRepo.Save(wf)
	if err != nil {
		return 0, err
	}
	if err := e.registry.Reload(); err != nil {
		slog.Error("Failed to reload trigger registry after create", "error", err)
	}
	return id, nil
}

// SetWorkflowActive flips activation and reloads the registry. Deactivation
// only stops future matches, in-flight executions are untouched.
func (e *Engine) SetWorkflowActive(id int64, active bool) error {
	if err := e.workflowRepo.SetActive(id, active); err != nil {
		return err
	}
	if err := e.registry.Reload(); err != nil {
		slog.Error("Failed to reload trigger registry after activation change", "error", err)
	}
	return nil
}

// ListWorkflows exposes the repository list for the API layer.
func (e *Engine) ListWorkflows(orgID string, isActive *bool) (*[]domain.Workflow, error) {
	return e.workflowRepo.ListByOrganization(orgID, isActive)
}

// GetWorkflow returns one definition with its actions.
func (e *Engine) GetWorkflow(id int64) (*domain.Workflow, error) {
	return e.workflowRepo.FindByID(id)
}
