package controllers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/underwritepro/flowengine/internal/domain"
	"github.com/underwritepro/flowengine/internal/engine"
	"github.com/underwritepro/flowengine/pkg/flowengine/models"
)

// ExecutionsController exposes the operator surface: inspect an execution's
// state and audit log, list executions per workflow, cancel one.
type ExecutionsController struct {
	Engine *engine.Engine
}

func NewExecutionsController(eng *engine.Engine) *ExecutionsController {
	return &ExecutionsController{Engine: eng}
}

func (c *ExecutionsController) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	status, err := c.Engine.GetExecutionStatus(id)
	if err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "execution not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to load execution", "error", err, "execution_id", id)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	resp := models.ExecutionStatusResponse{
		Execution: mapExecution(status.Execution),
		Actions:   make([]models.ExecutionActionResponse, 0, len(status.Actions)),
		Log:       make([]models.ExecutionLogResponse, 0, len(status.Log)),
	}
	for i := range status.Actions {
		resp.Actions = append(resp.Actions, mapExecutionAction(&status.Actions[i]))
	}
	for _, entry := range status.Log {
		resp.Log = append(resp.Log, models.ExecutionLogResponse{
			ActionID: entry.ActionID,
			Attempt:  entry.Attempt,
			Status:   entry.Status,
			Detail:   entry.Detail,
			DateTime: entry.DateTime,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func (c *ExecutionsController) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	workflowID, err := strconv.ParseInt(r.URL.Query().Get("workflowId"), 10, 64)
	if err != nil {
		http.Error(w, "workflowId is required", http.StatusBadRequest)
		return
	}
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			http.Error(w, "limit is an integer", http.StatusBadRequest)
			return
		}
	}

	executions, err := c.Engine.ListExecutions(workflowID, r.URL.Query().Get("status"), limit)
	if err != nil {
		slog.Error("Failed to list executions", "error", err, "workflow_id", workflowID)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	resp := make([]models.ExecutionResponse, 0, len(*executions))
	for i := range *executions {
		resp = append(resp, mapExecution(&(*executions)[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func (c *ExecutionsController) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := c.Engine.CancelExecution(r.Context(), id); err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "execution not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to cancel execution", "error", err, "execution_id", id)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func mapExecution(ex *domain.Execution) models.ExecutionResponse {
	resp := models.ExecutionResponse{
		ID:         ex.ID,
		WorkflowID: ex.WorkflowID,
		EventID:    ex.EventID,
		EntityType: ex.EntityType,
		EntityID:   ex.EntityID,
		Status:     ex.Status,
		Created:    ex.Created,
	}
	if ex.ErrorMessage.Valid {
		resp.ErrorMessage = ex.ErrorMessage.String
	}
	resp.Started = nullTimePtr(ex.Started)
	resp.Completed = nullTimePtr(ex.Completed)
	return resp
}

func mapExecutionAction(action *domain.ExecutionAction) models.ExecutionActionResponse {
	return models.ExecutionActionResponse{
		ID:           action.ID,
		OrderIndex:   action.OrderIndex,
		ActionType:   action.ActionType,
		Status:       action.Status,
		Attempt:      action.Attempt,
		DueAt:        nullTimePtr(action.DueAt),
		ClaimedAt:    nullTimePtr(action.ClaimedAt),
		DelayMinutes: action.DelayMinutes,
	}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
