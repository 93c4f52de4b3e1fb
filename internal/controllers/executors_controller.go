package controllers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/underwritepro/flowengine/internal/engine"
	"github.com/underwritepro/flowengine/pkg/flowengine/models"
)

// ExecutorsController lists the registered engine instances so operators can
// see which executors are alive and heartbeating.
type ExecutorsController struct {
	ExecutorRepo engine.ExecutorRepo
}

func NewExecutorsController(executorRepo engine.ExecutorRepo) *ExecutorsController {
	return &ExecutorsController{ExecutorRepo: executorRepo}
}

func (c *ExecutorsController) handleListExecutors(w http.ResponseWriter, r *http.Request) {
	executors, err := c.ExecutorRepo.GetExecutorsByLastActive(20)
	if err != nil {
		slog.Error("Failed to list executors", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	resp := make([]models.ExecutorResponse, 0, len(executors))
	for _, ex := range executors {
		resp = append(resp, models.ExecutorResponse{
			ID:         ex.ID,
			Name:       ex.Name,
			Started:    ex.Started,
			LastActive: ex.LastActive,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
