package repository

import (
	"database/sql"
	"log/slog"
	"strings"

	"github.com/underwritepro/flowengine/internal/domain"
	"github.com/underwritepro/flowengine/pkg/flowengine/core"
)

// WorkflowRepository persists workflow definitions and their ordered actions.
type WorkflowRepository struct {
	db    *sql.DB
	clock core.Clock
}

const WORKFLOW_COLUMNS = ` id, organization_id, name, description, trigger_type, trigger_config,
		       continue_on_error, is_active, created, modified `

func NewWorkflowRepository(db *sql.DB, clock core.Clock) *WorkflowRepository {
	return &WorkflowRepository{db: db, clock: clock}
}

// Save inserts the workflow and its actions in one transaction, so a
// definition either lands complete or not at all. Action order indexes are
// taken from the struct and must already be unique within the workflow.
func (r *WorkflowRepository) Save(wf *domain.Workflow) (int64, error) {
	now := r.clock.Now()
	wf.Created = now
	wf.Modified = now

	vals := []interface{}{wf.OrganizationID, wf.Name, wf.Description, wf.TriggerType, wf.TriggerConfig,
		wf.ContinueOnError, wf.IsActive, formatDateInDatabase(wf.Created), formatDateInDatabase(wf.Modified)}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	base := `INSERT INTO workflows (
		organization_id, name, description, trigger_type, trigger_config,
		continue_on_error, is_active, created, modified
	) VALUES (` + strings.Join(pps, ", ") + `)`

	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if supportsReturning() {
		query := base + " RETURNING id"
		err = tx.QueryRow(query, vals...).Scan(&wf.ID)
	} else {
		res, e := tx.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				wf.ID = id
			}
		}
	}
	if err != nil {
		return 0, err
	}

	for i := range wf.Actions {
		wf.Actions[i].WorkflowID = wf.ID
		if err := r.saveAction(tx, &wf.Actions[i]); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return wf.ID, nil
}

func (r *WorkflowRepository) saveAction(tx *sql.Tx, a *domain.WorkflowAction) error {
	base := `INSERT INTO workflow_actions (
		workflow_id, order_index, action_type, action_config, delay_minutes
	) VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` + placeholder(5) + `)`
	if supportsReturning() {
		query := base + " RETURNING id"
		return tx.QueryRow(query, a.WorkflowID, a.OrderIndex, a.ActionType, a.ActionConfig, a.DelayMinutes).Scan(&a.ID)
	}
	res, err := tx.Exec(base, a.WorkflowID, a.OrderIndex, a.ActionType, a.ActionConfig, a.DelayMinutes)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func (r *WorkflowRepository) FindByID(id int64) (*domain.Workflow, error) {
	query := `
		SELECT ` + WORKFLOW_COLUMNS + `
		FROM workflows WHERE id = ` + placeholder(1) + `
	`
	var wf domain.Workflow
	err := r.db.QueryRow(query, id).Scan(
		&wf.ID,
		&wf.OrganizationID,
		&wf.Name,
		&wf.Description,
		&wf.TriggerType,
		&wf.TriggerConfig,
		&wf.ContinueOnError,
		&wf.IsActive,
		&wf.Created,
		&wf.Modified,
	)
	if err != nil {
		return nil, err
	}
	actions, err := r.FindActionsByWorkflowID(wf.ID)
	if err != nil {
		return nil, err
	}
	wf.Actions = actions
	return &wf, nil
}

// FindActive returns every active workflow with its actions, ordered by id.
// The trigger registry loads its live set from this.
func (r *WorkflowRepository) FindActive() (*[]domain.Workflow, error) {
	query := `
		SELECT ` + WORKFLOW_COLUMNS + `
		FROM workflows
		WHERE is_active = ` + boolLiteral(true) + `
		ORDER BY id ASC
	`
	workflows, err := r.scanWorkflows(query)
	if err != nil {
		return nil, err
	}
	for i := range *workflows {
		actions, err := r.FindActionsByWorkflowID((*workflows)[i].ID)
		if err != nil {
			return nil, err
		}
		(*workflows)[i].Actions = actions
	}
	return workflows, nil
}

// ListByOrganization returns workflows for one organization, newest first.
// Pass isActive to filter on activation state.
func (r *WorkflowRepository) ListByOrganization(orgID string, isActive *bool) (*[]domain.Workflow, error) {
	query := `
		SELECT ` + WORKFLOW_COLUMNS + `
		FROM workflows
		WHERE organization_id = ` + placeholder(1) + `
	`
	args := []interface{}{orgID}
	if isActive != nil {
		query += ` AND is_active = ` + boolLiteral(*isActive)
	}
	query += ` ORDER BY created DESC`
	return r.scanWorkflows(query, args...)
}

func (r *WorkflowRepository) scanWorkflows(query string, args ...interface{}) (*[]domain.Workflow, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		var wf domain.Workflow
		err := rows.Scan(
			&wf.ID,
			&wf.OrganizationID,
			&wf.Name,
			&wf.Description,
			&wf.TriggerType,
			&wf.TriggerConfig,
			&wf.ContinueOnError,
			&wf.IsActive,
			&wf.Created,
			&wf.Modified,
		)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &workflows, nil
}

func (r *WorkflowRepository) FindActionsByWorkflowID(workflowID int64) ([]domain.WorkflowAction, error) {
	query := `
		SELECT id, workflow_id, order_index, action_type, action_config, delay_minutes
		FROM workflow_actions
		WHERE workflow_id = ` + placeholder(1) + `
		ORDER BY order_index ASC
	`
	rows, err := r.db.Query(query, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []domain.WorkflowAction
	for rows.Next() {
		var a domain.WorkflowAction
		if err := rows.Scan(&a.ID, &a.WorkflowID, &a.OrderIndex, &a.ActionType, &a.ActionConfig, &a.DelayMinutes); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return actions, nil
}

// SetActive flips the activation flag. Deactivation only stops future
// trigger matches, in-flight executions keep running.
func (r *WorkflowRepository) SetActive(id int64, active bool) error {
	query := `
		UPDATE workflows
		SET is_active = ` + boolLiteral(active) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, id)
	if err != nil {
		slog.Error("Failed to update workflow active flag", "error", err, "id", id, "active", active)
	}
	return err
}
