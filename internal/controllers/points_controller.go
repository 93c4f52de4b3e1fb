package controllers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/underwritepro/flowengine/internal/engine"
	"github.com/underwritepro/flowengine/pkg/flowengine/models"
)

// PointsController reports gamification balances.
type PointsController struct {
	PointsRepo engine.PointsRepo
}

func NewPointsController(pointsRepo engine.PointsRepo) *PointsController {
	return &PointsController{PointsRepo: pointsRepo}
}

func (c *PointsController) handleGetUserPoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.PathValue("id")
	if userID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	points, err := c.PointsRepo.GetUserPoints(userID)
	if err != nil {
		if err == sql.ErrNoRows {
			// no awards yet reads as a zero balance, not an error
			points = engine.ZeroBalance(userID)
		} else {
			slog.Error("Failed to load user points", "error", err, "user_id", userID)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	resp := models.UserPointsResponse{
		UserID:       points.UserID,
		TotalPoints:  points.TotalPoints,
		Level:        points.Level,
		LevelName:    points.LevelName,
		PointsToNext: points.PointsToNextLevel,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
