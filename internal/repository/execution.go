package repository

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/underwritepro/flowengine/internal/config"
	"github.com/underwritepro/flowengine/internal/domain"
	"github.com/underwritepro/flowengine/pkg/flowengine/core"
)

// ExecutionRepository is the durable record of executions, their claimable
// per-action rows and the append-only execution log. Every mutation is a
// single-row conditional update so concurrent workers never interleave a
// transition.
type ExecutionRepository struct {
	db    *sql.DB
	clock core.Clock
}

const EXECUTION_COLUMNS = ` id, workflow_id, event_id, entity_type, entity_id, event_fields, status,
		       error_message, created, modified, started, completed `

const EXECUTION_ACTION_COLUMNS = ` id, execution_id, action_id, order_index, action_type, action_config,
		       delay_minutes, status, attempt, due_at, claimed_at, claimed_by, modified `

func NewExecutionRepository(db *sql.DB, clock core.Clock) *ExecutionRepository {
	return &ExecutionRepository{db: db, clock: clock}
}

// CreateExecution inserts one execution for (workflow, event) plus its action
// rows, all in one transaction so a crash or insert error never leaves an
// execution without its actions. It is idempotent on (workflow_id, event_id):
// a redelivered event returns the already existing execution and
// created=false, and no action rows are touched. The first action's due time
// is event time plus its own delay; later actions stay un-due until their
// predecessor completes.
func (r *ExecutionRepository) CreateExecution(wf *domain.Workflow, event *domain.Event) (*domain.Execution, bool, error) {
	now := r.clock.Now()

	fieldsJSON := "{}"
	if len(event.Fields) > 0 {
		if b, err := json.Marshal(event.Fields); err == nil {
			fieldsJSON = string(b)
		}
	}

	vals := []interface{}{wf.ID, event.EventID, event.EntityType, event.EntityID, fieldsJSON,
		domain.ExecutionPending, formatDateInDatabase(now), formatDateInDatabase(now)}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	base := `INSERT INTO workflow_executions (
		workflow_id, event_id, entity_type, entity_id, event_fields, status, created, modified
	) VALUES (` + strings.Join(pps, ", ") + `)`

	tx, err := r.db.Begin()
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	dbType := config.GetSystemSettingString(config.DATABASE_TYPE)
	var inserted bool
	var execID int64
	if dbType == config.DATABASE_TYPE_MYSQL {
		res, err := tx.Exec(`INSERT IGNORE INTO workflow_executions (
			workflow_id, event_id, entity_type, entity_id, event_fields, status, created, modified
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, vals...)
		if err != nil {
			return nil, false, err
		}
		affected, _ := res.RowsAffected()
		if affected == 1 {
			inserted = true
			execID, _ = res.LastInsertId()
		}
	} else if supportsReturning() {
		err := tx.QueryRow(base+` ON CONFLICT (workflow_id, event_id) DO NOTHING RETURNING id`, vals...).Scan(&execID)
		if err == nil {
			inserted = true
		} else if err != sql.ErrNoRows {
			return nil, false, err
		}
	} else {
		res, err := tx.Exec(base+` ON CONFLICT (workflow_id, event_id) DO NOTHING`, vals...)
		if err != nil {
			return nil, false, err
		}
		affected, _ := res.RowsAffected()
		if affected == 1 {
			inserted = true
			execID, _ = res.LastInsertId()
		}
	}

	if !inserted {
		tx.Rollback()
		existing, err := r.FindByWorkflowAndEvent(wf.ID, event.EventID)
		return existing, false, err
	}

	for i := range wf.Actions {
		a := wf.Actions[i]
		due := sql.NullTime{}
		if i == 0 {
			due = sql.NullTime{Time: now.Add(time.Duration(a.DelayMinutes) * time.Minute), Valid: true}
		}
		if err := r.insertExecutionAction(tx, execID, &a, due, now); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	ex, err := r.FindByID(execID)
	return ex, true, err
}

func (r *ExecutionRepository) insertExecutionAction(tx *sql.Tx, executionID int64, a *domain.WorkflowAction, due sql.NullTime, now time.Time) error {
	vals := []interface{}{executionID, a.ID, a.OrderIndex, a.ActionType, a.ActionConfig,
		a.DelayMinutes, domain.ActionPending, 0, formatDateInDatabaseNull(due), formatDateInDatabase(now)}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	query := `INSERT INTO execution_actions (
		execution_id, action_id, order_index, action_type, action_config,
		delay_minutes, status, attempt, due_at, modified
	) VALUES (` + strings.Join(pps, ", ") + `)`
	_, err := tx.Exec(query, vals...)
	return err
}

func (r *ExecutionRepository) FindByID(id int64) (*domain.Execution, error) {
	query := `
		SELECT ` + EXECUTION_COLUMNS + `
		FROM workflow_executions WHERE id = ` + placeholder(1) + `
	`
	return r.scanExecution(r.db.QueryRow(query, id))
}

func (r *ExecutionRepository) FindByWorkflowAndEvent(workflowID int64, eventID string) (*domain.Execution, error) {
	query := `
		SELECT ` + EXECUTION_COLUMNS + `
		FROM workflow_executions
		WHERE workflow_id = ` + placeholder(1) + ` AND event_id = ` + placeholder(2) + `
	`
	return r.scanExecution(r.db.QueryRow(query, workflowID, eventID))
}

func (r *ExecutionRepository) scanExecution(row *sql.Row) (*domain.Execution, error) {
	var ex domain.Execution
	err := row.Scan(
		&ex.ID,
		&ex.WorkflowID,
		&ex.EventID,
		&ex.EntityType,
		&ex.EntityID,
		&ex.EventFields,
		&ex.Status,
		&ex.ErrorMessage,
		&ex.Created,
		&ex.Modified,
		&ex.Started,
		&ex.Completed,
	)
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

// ListByWorkflow returns recent executions for one workflow, newest first.
// Status is an optional filter, empty means all.
func (r *ExecutionRepository) ListByWorkflow(workflowID int64, status string, limit int) (*[]domain.Execution, error) {
	query := `
		SELECT ` + EXECUTION_COLUMNS + `
		FROM workflow_executions
		WHERE workflow_id = ` + placeholder(1) + `
	`
	args := []interface{}{workflowID}
	if status != "" {
		query += ` AND status = ` + placeholder(2)
		args = append(args, status)
	}
	query += ` ORDER BY created DESC LIMIT ` + placeholder(len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []domain.Execution
	for rows.Next() {
		var ex domain.Execution
		if err := rows.Scan(&ex.ID, &ex.WorkflowID, &ex.EventID, &ex.EntityType, &ex.EntityID, &ex.EventFields, &ex.Status,
			&ex.ErrorMessage, &ex.Created, &ex.Modified, &ex.Started, &ex.Completed); err != nil {
			return nil, err
		}
		executions = append(executions, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &executions, nil
}

// MarkRunning moves a pending execution to running and stamps its start time.
// A no-op when the execution already left pending, keeping the status monotonic.
func (r *ExecutionRepository) MarkRunning(id int64) error {
	query := `
		UPDATE workflow_executions
		SET status = '` + domain.ExecutionRunning + `', started = ` + nowFunc(r.clock) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(1) + ` AND status = '` + domain.ExecutionPending + `'
	`
	_, err := r.db.Exec(query, id)
	return err
}

// Finalize moves an execution to a terminal status. Guarded so a terminal
// status can never regress; the first writer wins. An empty errorMsg leaves
// any earlier recorded message in place.
func (r *ExecutionRepository) Finalize(id int64, status string, errorMsg string) error {
	query := `
		UPDATE workflow_executions
		SET status = ` + placeholder(1) + `,
		    error_message = COALESCE(error_message, ` + placeholder(2) + `),
		    completed = ` + nowFunc(r.clock) + `,
		    modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(3) + ` AND status IN ('` + domain.ExecutionPending + `', '` + domain.ExecutionRunning + `')
	`
	var msg interface{}
	if errorMsg != "" {
		msg = errorMsg
	}
	_, err := r.db.Exec(query, status, msg, id)
	if err != nil {
		slog.Error("Failed to finalize execution", "error", err, "id", id, "status", status)
	}
	return err
}

// SetErrorMessageIfEmpty records the first failure's message without touching
// the execution status.
func (r *ExecutionRepository) SetErrorMessageIfEmpty(id int64, msg string) error {
	query := `
		UPDATE workflow_executions
		SET error_message = COALESCE(error_message, ` + placeholder(1) + `), modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, msg, id)
	return err
}

// FindDueActions returns pending actions whose due time has passed, oldest
// due first. Actions whose predecessor has not completed have no due time
// yet and are never returned.
func (r *ExecutionRepository) FindDueActions(size int) (*[]domain.ExecutionAction, error) {
	query := `
		SELECT ` + EXECUTION_ACTION_COLUMNS + `
		FROM execution_actions
		WHERE status = '` + domain.ActionPending + `'
		  AND due_at IS NOT NULL
		  AND ` + dateBeforeNow("due_at", r.clock) + `
		ORDER BY due_at ASC
		LIMIT ` + placeholder(1) + `
	`
	return r.scanActions(query, size)
}

// ClaimAction is the conditional pending->claimed transition. The modified
// timestamp works as a compare-and-set guard: of any number of workers racing
// on the same due action exactly one sees rowsAffected == 1.
func (r *ExecutionRepository) ClaimAction(id int64, executorID int64, modified time.Time) bool {
	query := `
		UPDATE execution_actions
		SET status = '` + domain.ActionClaimed + `',
		    claimed_at = ` + nowFunc(r.clock) + `,
		    claimed_by = ` + placeholder(1) + `,
		    modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + ` AND modified = ` + placeholder(3) + ` AND status = '` + domain.ActionPending + `'
	`
	result, err := r.db.Exec(query, executorID, id, formatDateInDatabase(modified))
	if err != nil {
		slog.Error("Failed to claim action", "error", err, "id", id, "executor_id", executorID)
		return false
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false
	}
	return rowsAffected == 1
}

// MarkActionCompleted finishes a claimed action. Completed is terminal and
// never rolled back.
func (r *ExecutionRepository) MarkActionCompleted(id int64, attempt int) error {
	query := `
		UPDATE execution_actions
		SET status = '` + domain.ActionCompleted + `', attempt = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + ` AND status = '` + domain.ActionClaimed + `'
	`
	_, err := r.db.Exec(query, attempt, id)
	return err
}

// MarkActionFailed is the terminal per-action failure transition.
func (r *ExecutionRepository) MarkActionFailed(id int64, attempt int) error {
	query := `
		UPDATE execution_actions
		SET status = '` + domain.ActionFailed + `', attempt = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + ` AND status = '` + domain.ActionClaimed + `'
	`
	_, err := r.db.Exec(query, attempt, id)
	return err
}

// RescheduleAction puts a claimed action back to pending with a new due time
// after a transient failure, carrying the incremented attempt counter.
func (r *ExecutionRepository) RescheduleAction(id int64, attempt int, dueAt time.Time) error {
	query := `
		UPDATE execution_actions
		SET status = '` + domain.ActionPending + `',
		    attempt = ` + placeholder(1) + `,
		    due_at = ` + placeholder(2) + `,
		    claimed_at = NULL,
		    claimed_by = NULL,
		    modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(3) + ` AND status = '` + domain.ActionClaimed + `'
	`
	_, err := r.db.Exec(query, attempt, formatDateInDatabase(dueAt), id)
	return err
}

// ScheduleNextAction sets the due time of the successor at orderIndex. Only
// pending rows are touched, so a cancelled successor stays cancelled. Returns
// whether a row was scheduled.
func (r *ExecutionRepository) ScheduleNextAction(executionID int64, orderIndex int, dueAt time.Time) (bool, error) {
	query := `
		UPDATE execution_actions
		SET due_at = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
		WHERE execution_id = ` + placeholder(2) + ` AND order_index = ` + placeholder(3) + ` AND status = '` + domain.ActionPending + `'
	`
	result, err := r.db.Exec(query, formatDateInDatabase(dueAt), executionID, orderIndex)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// CancelPendingActions marks every still-pending action of an execution
// cancelled so the scheduler can never pick them up. Claimed actions are left
// to finish. Returns the number of actions cancelled.
func (r *ExecutionRepository) CancelPendingActions(executionID int64) (int64, error) {
	query := `
		UPDATE execution_actions
		SET status = '` + domain.ActionCancelled + `', modified = ` + nowFunc(r.clock) + `
		WHERE execution_id = ` + placeholder(1) + ` AND status = '` + domain.ActionPending + `'
	`
	result, err := r.db.Exec(query, executionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CancelClaimedAction settles a claimed action as cancelled. Used when the
// parent execution reached a terminal status while the action was in flight,
// so the claim is never rescheduled or swept back to pending.
func (r *ExecutionRepository) CancelClaimedAction(id int64, attempt int) error {
	query := `
		UPDATE execution_actions
		SET status = '` + domain.ActionCancelled + `', attempt = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + ` AND status = '` + domain.ActionClaimed + `'
	`
	_, err := r.db.Exec(query, attempt, id)
	return err
}

// FindActionsByExecutionID returns the execution's action rows in chain order.
func (r *ExecutionRepository) FindActionsByExecutionID(executionID int64) (*[]domain.ExecutionAction, error) {
	query := `
		SELECT ` + EXECUTION_ACTION_COLUMNS + `
		FROM execution_actions
		WHERE execution_id = ` + placeholder(1) + `
		ORDER BY order_index ASC
	`
	return r.scanActions(query, executionID)
}

// CountUnresolvedActions counts actions that have not reached a terminal
// state yet. Zero means the execution can finalize.
func (r *ExecutionRepository) CountUnresolvedActions(executionID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM execution_actions
		WHERE execution_id = ` + placeholder(1) + `
		  AND status IN ('` + domain.ActionPending + `', '` + domain.ActionClaimed + `')
	`
	var count int
	err := r.db.QueryRow(query, executionID).Scan(&count)
	return count, err
}

// FindExpiredClaims returns claimed actions whose claim is older than the
// timeout, meaning the claiming worker likely died mid-execution.
func (r *ExecutionRepository) FindExpiredClaims(timeoutMinutes int, limit int) (*[]domain.ExecutionAction, error) {
	query := `
		SELECT ` + EXECUTION_ACTION_COLUMNS + `
		FROM execution_actions
		WHERE status = '` + domain.ActionClaimed + `'
		  AND ` + dateOlderThanMinutes("claimed_at", timeoutMinutes, r.clock) + `
		ORDER BY claimed_at ASC
		LIMIT ` + placeholder(1) + `
	`
	return r.scanActions(query, limit)
}

// ReleaseClaim reverts an expired claim back to pending, due immediately.
// CAS on modified so only one sweeper wins.
func (r *ExecutionRepository) ReleaseClaim(id int64, modified time.Time) bool {
	query := `
		UPDATE execution_actions
		SET status = '` + domain.ActionPending + `',
		    due_at = ` + nowFunc(r.clock) + `,
		    claimed_at = NULL,
		    claimed_by = NULL,
		    modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(1) + ` AND modified = ` + placeholder(2) + ` AND status = '` + domain.ActionClaimed + `'
	`
	result, err := r.db.Exec(query, id, formatDateInDatabase(modified))
	if err != nil {
		slog.Error("Failed to release expired claim", "error", err, "id", id)
		return false
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false
	}
	return rowsAffected == 1
}

func (r *ExecutionRepository) scanActions(query string, args ...interface{}) (*[]domain.ExecutionAction, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []domain.ExecutionAction
	for rows.Next() {
		var a domain.ExecutionAction
		err := rows.Scan(
			&a.ID,
			&a.ExecutionID,
			&a.ActionID,
			&a.OrderIndex,
			&a.ActionType,
			&a.ActionConfig,
			&a.DelayMinutes,
			&a.Status,
			&a.Attempt,
			&a.DueAt,
			&a.ClaimedAt,
			&a.ClaimedBy,
			&a.Modified,
		)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &actions, nil
}

// AppendLog writes one audit entry. Log rows are only ever inserted.
func (r *ExecutionRepository) AppendLog(entry *domain.ExecutionLogEntry) (int64, error) {
	vals := []interface{}{entry.ExecutionID, entry.ActionID, entry.Attempt, entry.Status, entry.Detail,
		formatDateInDatabase(entry.DateTime)}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	base := `INSERT INTO execution_log (
		execution_id, action_id, attempt, status, detail, date_time
	) VALUES (` + strings.Join(pps, ", ") + `)`

	var err error
	if supportsReturning() {
		query := base + " RETURNING id"
		err = r.db.QueryRow(query, vals...).Scan(&entry.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				entry.ID = id
			}
		}
	}
	if err != nil {
		slog.Error("Failed to append execution log", "error", err, "execution_id", entry.ExecutionID)
	}
	return entry.ID, err
}

// GetLog returns the execution's audit trail in insertion order.
func (r *ExecutionRepository) GetLog(executionID int64) (*[]domain.ExecutionLogEntry, error) {
	query := `
		SELECT id, execution_id, action_id, attempt, status, detail, date_time
		FROM execution_log
		WHERE execution_id = ` + placeholder(1) + `
		ORDER BY id ASC
	`
	rows, err := r.db.Query(query, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ExecutionLogEntry
	for rows.Next() {
		var e domain.ExecutionLogEntry
		if err := rows.Scan(&e.ID, &e.ExecutionID, &e.ActionID, &e.Attempt, &e.Status, &e.Detail, &e.DateTime); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &entries, nil
}
