package engine

import (
	"context"
	"log/slog"

	"github.com/underwritepro/flowengine/internal/domain"
)

// Worker function that processes claimed actions from the queue.
func Worker(ctx context.Context, id int, executor *ActionExecutor, actionQueue <-chan domain.ExecutionAction) {
	for {
		select {
		case <-ctx.Done():
			return
		case action := <-actionQueue:
			slog.Info("Worker starting action", "worker_id", id, "execution_id", action.ExecutionID, "action_type", action.ActionType)
			executor.Execute(ctx, &action)
			slog.Info("Worker finished action", "worker_id", id, "execution_id", action.ExecutionID)
		}
	}
}
