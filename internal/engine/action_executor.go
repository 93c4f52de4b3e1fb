package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/underwritepro/flowengine/internal/domain"
	"github.com/underwritepro/flowengine/pkg/flowengine/core"
)

// ActionRequest carries everything a handler needs to perform one side
// effect. DedupeKey is deterministic per (execution, action) so a handler
// invoked twice for the same action can suppress the duplicate.
type ActionRequest struct {
	ExecutionID int64
	ActionID    int64
	EventID     string
	EntityType  string
	EntityID    string
	Config      map[string]any
	Context     map[string]any
	DedupeKey   string
}

// Outcome is what a handler reports back on success.
type Outcome struct {
	Detail string
}

// ActionHandler performs one action type's side effect. Handlers classify
// their own failures via Transient and Permanent; anything unclassified is
// retried as transient. Handlers must tolerate repeat invocation for the
// same request (at-least-once execution).
type ActionHandler interface {
	Execute(ctx context.Context, req *ActionRequest) (*Outcome, error)
}

// EntityResolver fetches the triggering entity's current field map from the
// owning entity service.
type EntityResolver interface {
	Resolve(ctx context.Context, entityType string, entityID string) (map[string]any, error)
}

// ActionExecutor runs one claimed action end to end: resolve context,
// dispatch the handler, record the outcome, schedule the successor or
// finalize the execution. The action is already claimed when Execute is
// called, so a crash here leaves a claimed row for the reclaim sweep.
type ActionExecutor struct {
	workflowRepo   WorkflowRepo
	executionRepo  ExecutionRepo
	resolver       EntityResolver
	handlers       map[string]ActionHandler
	retryConfig    RetryConfig
	handlerTimeout time.Duration
	clock          core.Clock
}

func NewActionExecutor(workflowRepo WorkflowRepo, executionRepo ExecutionRepo, resolver EntityResolver,
	handlers map[string]ActionHandler, retryConfig RetryConfig, handlerTimeout time.Duration, clock core.Clock) *ActionExecutor {
	return &ActionExecutor{
		workflowRepo:   workflowRepo,
		executionRepo:  executionRepo,
		resolver:       resolver,
		handlers:       handlers,
		retryConfig:    retryConfig,
		handlerTimeout: handlerTimeout,
		clock:          clock,
	}
}

// Execute processes one claimed action. All failures are contained here and
// recorded against the execution; nothing propagates to the worker loop.
func (ae *ActionExecutor) Execute(ctx context.Context, action *domain.ExecutionAction) {
	execution, err := ae.executionRepo.FindByID(action.ExecutionID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load execution for claimed action", "error", err, "execution_id", action.ExecutionID)
		return
	}

	if err := ae.executionRepo.MarkRunning(execution.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark execution running", "error", err, "execution_id", execution.ID)
		return
	}

	attempt := action.Attempt + 1
	slog.InfoContext(ctx, "Executing action", "execution_id", execution.ID, "action_id", action.ActionID,
		"action_type", action.ActionType, "attempt", attempt)

	outcome, execErr := ae.invokeHandler(ctx, execution, action)

	if execErr == nil {
		ae.appendLog(execution.ID, action.ActionID, attempt, domain.ActionCompleted, outcome.Detail)
		if err := ae.executionRepo.MarkActionCompleted(action.ID, attempt); err != nil {
			slog.ErrorContext(ctx, "Failed to mark action completed", "error", err, "action_id", action.ID)
			return
		}
		ae.scheduleSuccessorOrFinalize(ctx, execution, action)
		return
	}

	ae.appendLog(execution.ID, action.ActionID, attempt, domain.ActionFailed, execErr.Error())

	if !IsPermanent(execErr) && attempt < ae.retryConfig.MaxAttempts {
		// The execution may have been cancelled while the handler ran. A
		// retry against a terminal execution must not go back to pending,
		// the scheduler would keep re-running the side effect.
		current, ferr := ae.executionRepo.FindByID(execution.ID)
		if ferr != nil {
			slog.ErrorContext(ctx, "Failed to reload execution before retry", "error", ferr, "execution_id", execution.ID)
			return
		}
		if domain.IsTerminalExecution(current.Status) {
			slog.InfoContext(ctx, "Dropping retry of terminal execution", "execution_id", execution.ID,
				"action_id", action.ActionID, "status", current.Status)
			ae.appendLog(execution.ID, action.ActionID, attempt, domain.ActionCancelled, "retry dropped, execution "+current.Status)
			if err := ae.executionRepo.CancelClaimedAction(action.ID, attempt); err != nil {
				slog.ErrorContext(ctx, "Failed to cancel claimed action", "error", err, "action_id", action.ID)
			}
			return
		}
		dueAt := ae.clock.Now().Add(ae.retryConfig.BackoffInterval(attempt))
		slog.WarnContext(ctx, "Transient action failure, rescheduling", "execution_id", execution.ID,
			"action_id", action.ActionID, "attempt", attempt, "due_at", dueAt, "error", execErr)
		if err := ae.executionRepo.RescheduleAction(action.ID, attempt, dueAt); err != nil {
			slog.ErrorContext(ctx, "Failed to reschedule action", "error", err, "action_id", action.ID)
		}
		return
	}

	// permanent failure or attempts exhausted
	slog.ErrorContext(ctx, "Action failed terminally", "execution_id", execution.ID,
		"action_id", action.ActionID, "attempt", attempt, "error", execErr)
	if err := ae.executionRepo.MarkActionFailed(action.ID, attempt); err != nil {
		slog.ErrorContext(ctx, "Failed to mark action failed", "error", err, "action_id", action.ID)
		return
	}
	if err := ae.executionRepo.SetErrorMessageIfEmpty(execution.ID, execErr.Error()); err != nil {
		slog.ErrorContext(ctx, "Failed to record execution error message", "error", err, "execution_id", execution.ID)
	}

	if ae.continueOnError(execution.WorkflowID) {
		ae.scheduleSuccessorOrFinalize(ctx, execution, action)
		return
	}

	if _, err := ae.executionRepo.CancelPendingActions(execution.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to cancel remaining actions", "error", err, "execution_id", execution.ID)
		return
	}
	ae.finalizeIfResolved(ctx, execution.ID)
}

func (ae *ActionExecutor) invokeHandler(ctx context.Context, execution *domain.Execution, action *domain.ExecutionAction) (*Outcome, error) {
	handler, ok := ae.handlers[action.ActionType]
	if !ok {
		return nil, Permanent(fmt.Errorf("no handler for action type %s", action.ActionType))
	}

	config := map[string]any{}
	if action.ActionConfig != "" {
		if err := json.Unmarshal([]byte(action.ActionConfig), &config); err != nil {
			return nil, Permanent(fmt.Errorf("invalid action config: %w", err))
		}
	}

	templateCtx, err := ae.resolveContext(ctx, execution)
	if err != nil {
		return nil, Transient(fmt.Errorf("resolve entity context: %w", err))
	}

	req := &ActionRequest{
		ExecutionID: execution.ID,
		ActionID:    action.ActionID,
		EventID:     execution.EventID,
		EntityType:  execution.EntityType,
		EntityID:    execution.EntityID,
		Config:      config,
		Context:     templateCtx,
		DedupeKey:   DedupeKey(execution.ID, action.ActionID),
	}

	handlerCtx, cancel := context.WithTimeout(ctx, ae.handlerTimeout)
	defer cancel()
	return handler.Execute(handlerCtx, req)
}

// resolveContext merges the entity service's current view of the entity with
// the event's field snapshot. The fetch is retried briefly since it crosses
// the network; persistent failure bubbles up as a transient action error.
// Without a resolver the event snapshot is all the template context there is.
func (ae *ActionExecutor) resolveContext(ctx context.Context, execution *domain.Execution) (map[string]any, error) {
	var resolved map[string]any
	if ae.resolver != nil {
		backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			fields, err := ae.resolver.Resolve(ctx, execution.EntityType, execution.EntityID)
			if err != nil {
				return retry.RetryableError(err)
			}
			resolved = fields
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	templateCtx := map[string]any{
		"entity_type": execution.EntityType,
		"entity_id":   execution.EntityID,
	}
	for k, v := range resolved {
		templateCtx[k] = v
	}
	if execution.EventFields != "" {
		var eventFields map[string]any
		if err := json.Unmarshal([]byte(execution.EventFields), &eventFields); err == nil {
			for k, v := range eventFields {
				templateCtx[k] = v
			}
		}
	}
	return templateCtx, nil
}

// scheduleSuccessorOrFinalize sets the due time of the next action in the
// chain, or finalizes the execution when this was the last one. Only pending
// successors get a due time, so a cancelled chain stays cancelled.
func (ae *ActionExecutor) scheduleSuccessorOrFinalize(ctx context.Context, execution *domain.Execution, action *domain.ExecutionAction) {
	actions, err := ae.executionRepo.FindActionsByExecutionID(execution.ID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load execution actions", "error", err, "execution_id", execution.ID)
		return
	}

	var successor *domain.ExecutionAction
	for i := range *actions {
		a := &(*actions)[i]
		if a.OrderIndex > action.OrderIndex {
			successor = a
			break
		}
	}

	if successor != nil {
		dueAt := ae.clock.Now().Add(time.Duration(successor.DelayMinutes) * time.Minute)
		scheduled, err := ae.executionRepo.ScheduleNextAction(execution.ID, successor.OrderIndex, dueAt)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to schedule successor", "error", err, "execution_id", execution.ID, "order_index", successor.OrderIndex)
			return
		}
		if scheduled {
			slog.InfoContext(ctx, "Scheduled next action", "execution_id", execution.ID,
				"order_index", successor.OrderIndex, "due_at", dueAt)
			return
		}
		// successor was cancelled underneath us, fall through to finalize
	}

	ae.finalizeIfResolved(ctx, execution.ID)
}

// finalizeIfResolved moves the execution to its terminal status once no
// action is pending or claimed. Failed if any action recorded a failure,
// completed otherwise. The guard in Finalize keeps a cancelled execution
// cancelled.
func (ae *ActionExecutor) finalizeIfResolved(ctx context.Context, executionID int64) {
	unresolved, err := ae.executionRepo.CountUnresolvedActions(executionID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to count unresolved actions", "error", err, "execution_id", executionID)
		return
	}
	if unresolved > 0 {
		return
	}

	execution, err := ae.executionRepo.FindByID(executionID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to reload execution", "error", err, "execution_id", executionID)
		return
	}

	status := domain.ExecutionCompleted
	if execution.ErrorMessage.Valid && execution.ErrorMessage.String != "" {
		status = domain.ExecutionFailed
	}
	if err := ae.executionRepo.Finalize(executionID, status, ""); err != nil {
		return
	}
	slog.InfoContext(ctx, "Execution finalized", "execution_id", executionID, "status", status)
}

func (ae *ActionExecutor) continueOnError(workflowID int64) bool {
	wf, err := ae.workflowRepo.FindByID(workflowID)
	if err != nil {
		slog.Error("Failed to load workflow for continue-on-error check", "error", err, "workflow_id", workflowID)
		return false
	}
	return wf.ContinueOnError
}

func (ae *ActionExecutor) appendLog(executionID int64, actionID int64, attempt int, status string, detail string) {
	_, _ = ae.executionRepo.AppendLog(&domain.ExecutionLogEntry{
		ExecutionID: executionID,
		ActionID:    actionID,
		Attempt:     attempt,
		Status:      status,
		Detail:      detail,
		DateTime:    ae.clock.Now(),
	})
}

// DedupeKey derives the deterministic idempotency key handlers use to
// suppress duplicate side effects across re-invocations of the same action.
func DedupeKey(executionID int64, actionID int64) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("flowengine:%d:%d", executionID, actionID))).String()
}
