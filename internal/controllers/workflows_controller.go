package controllers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/underwritepro/flowengine/internal/domain"
	"github.com/underwritepro/flowengine/internal/engine"
	"github.com/underwritepro/flowengine/internal/workflows"
	"github.com/underwritepro/flowengine/pkg/flowengine/models"
)

// WorkflowsController manages workflow definitions: create (from scratch or
// a prebuilt template), list, inspect, activate and deactivate.
type WorkflowsController struct {
	Engine *engine.Engine
}

func NewWorkflowsController(eng *engine.Engine) *WorkflowsController {
	return &WorkflowsController{Engine: eng}
}

func (c *WorkflowsController) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.CreateWorkflowRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	var wf *domain.Workflow
	if req.TemplateKey != "" {
		template, ok := workflows.TemplateByKey(req.TemplateKey)
		if !ok {
			http.Error(w, "unknown template: "+req.TemplateKey, http.StatusBadRequest)
			return
		}
		wf = template.Build(req.OrganizationID)
		if req.Name != "" {
			wf.Name = req.Name
		}
	} else {
		built, err := buildWorkflow(&req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		wf = built
	}
	if req.IsActive != nil {
		wf.IsActive = *req.IsActive
	}

	id, err := c.Engine.CreateWorkflow(wf)
	if err != nil {
		var configErr *engine.ConfigError
		if errors.As(err, &configErr) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Failed to save workflow", "error", err)
		http.Error(w, "failed to create workflow", http.StatusInternalServerError)
		return
	}

	saved, err := c.Engine.GetWorkflow(id)
	if err != nil {
		slog.Error("Failed to reload workflow after create", "error", err, "workflow_id", id)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(mapWorkflow(saved))
}

func (c *WorkflowsController) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	wf, err := c.Engine.GetWorkflow(id)
	if err != nil {
		http.Error(w, "workflow not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(mapWorkflow(wf))
}

func (c *WorkflowsController) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	orgID := r.URL.Query().Get("organizationId")
	if orgID == "" {
		http.Error(w, "organizationId is required", http.StatusBadRequest)
		return
	}
	var isActive *bool
	if activeStr := r.URL.Query().Get("isActive"); activeStr != "" {
		active := activeStr == "true"
		isActive = &active
	}

	list, err := c.Engine.ListWorkflows(orgID, isActive)
	if err != nil {
		slog.Error("Failed to list workflows", "error", err, "organization_id", orgID)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	resp := make([]models.WorkflowResponse, 0, len(*list))
	for i := range *list {
		resp = append(resp, mapWorkflow(&(*list)[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func (c *WorkflowsController) handleSetActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}
		if err := c.Engine.SetWorkflowActive(id, active); err != nil {
			if err == sql.ErrNoRows {
				http.Error(w, "workflow not found", http.StatusNotFound)
				return
			}
			slog.Error("Failed to update workflow activation", "error", err, "workflow_id", id)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (c *WorkflowsController) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(workflows.Templates())
}

func buildWorkflow(req *models.CreateWorkflowRequest) (*domain.Workflow, error) {
	triggerConfig, err := encodeConfig(req.TriggerConfig)
	if err != nil {
		return nil, err
	}
	wf := &domain.Workflow{
		OrganizationID:  req.OrganizationID,
		Name:            req.Name,
		TriggerType:     req.TriggerType,
		TriggerConfig:   triggerConfig,
		ContinueOnError: req.ContinueOnError,
		IsActive:        true,
	}
	if req.Description != "" {
		wf.Description = sql.NullString{String: req.Description, Valid: true}
	}
	for i, action := range req.Actions {
		actionConfig, err := encodeConfig(action.ActionConfig)
		if err != nil {
			return nil, err
		}
		wf.Actions = append(wf.Actions, domain.WorkflowAction{
			OrderIndex:   i,
			ActionType:   action.ActionType,
			ActionConfig: actionConfig,
			DelayMinutes: action.DelayMinutes,
		})
	}
	return wf, nil
}

func encodeConfig(config map[string]any) (string, error) {
	if config == nil {
		return "", nil
	}
	raw, err := json.Marshal(config)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeConfig(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var config map[string]any
	if err := json.Unmarshal([]byte(raw), &config); err != nil {
		return nil
	}
	return config
}

func mapWorkflow(wf *domain.Workflow) models.WorkflowResponse {
	resp := models.WorkflowResponse{
		ID:              wf.ID,
		OrganizationID:  wf.OrganizationID,
		Name:            wf.Name,
		TriggerType:     wf.TriggerType,
		TriggerConfig:   decodeConfig(wf.TriggerConfig),
		ContinueOnError: wf.ContinueOnError,
		IsActive:        wf.IsActive,
		Created:         wf.Created,
		Modified:        wf.Modified,
	}
	if wf.Description.Valid {
		resp.Description = wf.Description.String
	}
	for _, action := range wf.Actions {
		resp.Actions = append(resp.Actions, models.WorkflowActionResponse{
			ID:           action.ID,
			OrderIndex:   action.OrderIndex,
			ActionType:   action.ActionType,
			ActionConfig: decodeConfig(action.ActionConfig),
			DelayMinutes: action.DelayMinutes,
		})
	}
	return resp
}
