package engine

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/underwritepro/flowengine/internal/config"
	"github.com/underwritepro/flowengine/internal/domain"
	"github.com/underwritepro/flowengine/pkg/flowengine/core"
)

// Scheduler polls the store for due actions, claims them and feeds a fixed
// worker pool. Claiming is a conditional update, so any number of scheduler
// instances can run against the same store: exactly one wins each action.
type Scheduler struct {
	executionRepo ExecutionRepo
	executorRepo  ExecutorRepo
	executor      *ActionExecutor
	executorID    int64
	wakeup        chan struct{}
	clock         core.Clock

	actionQueue chan domain.ExecutionAction
}

func NewScheduler(executionRepo ExecutionRepo, executorRepo ExecutorRepo, executor *ActionExecutor, clock core.Clock) *Scheduler {
	return &Scheduler{
		executionRepo: executionRepo,
		executorRepo:  executorRepo,
		executor:      executor,
		wakeup:        make(chan struct{}, 1),
		clock:         clock,
	}
}

// StartEngine starts polling for due actions at the given interval. Blocks
// until the context is cancelled.
func (s *Scheduler) StartEngine(ctx context.Context, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	s.registerExecutorInstance(ctx)

	go s.startReclaimService(ctx)

	queueSize := config.GetSystemSettingInteger(config.ENGINE_BATCH_SIZE)
	if queueSize <= 0 {
		queueSize = 10 // fallback default
	}
	s.actionQueue = make(chan domain.ExecutionAction, queueSize)

	workerCount := config.GetSystemSettingInteger(config.ENGINE_WORKER_COUNT)
	slog.Info("Starting workflow engine", "workers", workerCount, "queue_size", queueSize)
	for i := 0; i < workerCount; i++ {
		go Worker(ctx, i, s.executor, s.actionQueue)
	}

	slog.Info("Workflow engine started", "poll_interval", pollInterval.String())

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Workflow engine stopping due to context cancel")
			return
		case <-ticker.C:
			s.pollAndClaimActions(ctx)
		case <-s.wakeup:
			s.pollAndClaimActions(ctx)
		}
	}
}

// pollAndClaimActions queries for due actions and races to claim each one.
// Losing a claim is normal operation when multiple engine instances share
// the store.
func (s *Scheduler) pollAndClaimActions(ctx context.Context) {
	slog.Debug("Polling for due actions")

	batchSize := config.GetSystemSettingInteger(config.ENGINE_BATCH_SIZE)
	if len(s.actionQueue) >= batchSize {
		slog.Warn("action queue full, skipping poll, possibly slow or hung handlers")
		return
	}

	actions, err := s.executionRepo.FindDueActions(batchSize)
	if err != nil {
		slog.Error("Error fetching due actions", "error", err)
		return
	}

	for _, action := range *actions {
		claimed := s.executionRepo.ClaimAction(action.ID, s.executorID, action.Modified)
		if !claimed {
			slog.DebugContext(ctx, "Lost claim race, skipping", "action_row_id", action.ID, "execution_id", action.ExecutionID)
			continue
		}
		slog.InfoContext(ctx, "Claimed due action", "action_row_id", action.ID,
			"execution_id", action.ExecutionID, "action_type", action.ActionType)
		s.actionQueue <- action
	}
}

// startReclaimService finds actions whose claim expired, meaning the worker
// that held them died mid-execution, and puts them back in the pending pool.
func (s *Scheduler) startReclaimService(ctx context.Context) {
	dur, _ := time.ParseDuration(config.GetSystemSettingString(config.ENGINE_RECLAIM_INTERVAL))
	ticker := time.NewTicker(dur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Claim reclaim service stopping due to context cancel")
			return
		case <-ticker.C:
			timeoutMinutes := config.GetSystemSettingInteger(config.ENGINE_CLAIM_TIMEOUT_MINUTES)
			expired, err := s.executionRepo.FindExpiredClaims(timeoutMinutes, 100)
			if err != nil {
				slog.Error("Error finding expired claims", "error", err)
				continue
			}
			for _, action := range *expired {
				slog.Warn("Reclaiming expired claim", "action_row_id", action.ID,
					"execution_id", action.ExecutionID, "claimed_by", action.ClaimedBy.Int64)
				previousOwner := action.ClaimedBy
				if s.executionRepo.ReleaseClaim(action.ID, action.Modified) {
					_, _ = s.executionRepo.AppendLog(&domain.ExecutionLogEntry{
						ExecutionID: action.ExecutionID,
						ActionID:    action.ActionID,
						Attempt:     action.Attempt,
						Status:      "reclaimed",
						Detail:      "claim expired, previous executor: " + strconv.FormatInt(previousOwner.Int64, 10),
						DateTime:    s.clock.Now(),
					})
				}
			}
		}
	}
}

func (s *Scheduler) registerExecutorInstance(ctx context.Context) {
	name := config.GetSystemSettingString(config.EXECUTOR_NAME)
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			name = "flowengine"
		} else {
			name = hostname
		}
	}
	exec := &domain.Executor{Name: name, Started: s.clock.Now(), LastActive: s.clock.Now()}
	id, err := s.executorRepo.Save(exec)
	if err != nil {
		slog.Error("Failed to register executor", "error", err)
		return
	}
	s.executorID = id
	slog.Info("Registered executor", "executor_id", id, "name", name)

	// heartbeat so other instances can tell this one is alive
	hb := time.NewTicker(30 * time.Second)
	go func(executorID int64) {
		for {
			select {
			case <-ctx.Done():
				hb.Stop()
				return
			case <-hb.C:
				if err := s.executorRepo.UpdateLastActive(executorID, s.clock.Now()); err != nil {
					slog.Error("Failed to update executor last_active", "executor_id", executorID, "error", err)
				}
			}
		}
	}(id)
}

// Wakeup nudges the scheduler to poll immediately, used after new
// executions are created so first actions with no delay run right away.
func (s *Scheduler) Wakeup() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}
