package controllers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/underwritepro/flowengine/internal/domain"
	"github.com/underwritepro/flowengine/internal/engine"
	"github.com/underwritepro/flowengine/pkg/flowengine/models"
)

// EventsController receives entity events from the platform's CRUD services.
type EventsController struct {
	Engine *engine.Engine
}

func NewEventsController(eng *engine.Engine) *EventsController {
	return &EventsController{Engine: eng}
}

func (c *EventsController) handleDeliverEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.EventRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	// Events without an id cannot be deduplicated across redeliveries, so
	// one is minted here and echoed back for the caller to reuse.
	if req.EventID == "" {
		req.EventID = uuid.NewString()
	}

	event := &domain.Event{
		EventID:     req.EventID,
		Type:        req.Type,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		UserID:      req.UserID,
		Fields:      req.Fields,
		RootEventID: req.RootEventID,
		Depth:       req.Depth,
	}

	results, err := c.Engine.HandleEvent(r.Context(), event)
	if err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Failed to handle event", "error", err, "event_id", req.EventID)
		http.Error(w, "failed to handle event", http.StatusInternalServerError)
		return
	}

	resp := models.EventResponse{
		EventID:    req.EventID,
		Matched:    len(results),
		Executions: make([]models.ExecutionReference, 0, len(results)),
	}
	for _, result := range results {
		resp.Executions = append(resp.Executions, models.ExecutionReference{
			ExecutionID: result.Execution.ID,
			WorkflowID:  result.Execution.WorkflowID,
			Created:     result.Created,
			Status:      result.Execution.Status,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}
