package engine

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/underwritepro/flowengine/internal/domain"
)

// Level thresholds are cumulative total points. Index i is the floor of
// level i+1.
var levelThresholds = []int{0, 100, 250, 500, 1000, 2000, 5000, 10000}

var levelNames = []string{"Beginner", "Novice", "Intermediate", "Advanced", "Expert", "Master", "Legend", "Grandmaster"}

// ruleKeyByEventType maps event types with an implicit points rule. Events
// outside this map only award points through an explicit award_points action.
var ruleKeyByEventType = map[string]string{
	domain.EventLessonCompleted:  "complete_lesson",
	domain.EventDocumentUploaded: "upload_document",
}

// GamificationHook awards points off the event stream, independent of
// workflow matching. Awards are idempotent per originating event: the ledger
// row keyed (user, source event) is inserted first and an already present
// row makes the whole call a no-op, so redelivery never double-awards.
type GamificationHook struct {
	pointsRepo PointsRepo
}

func NewGamificationHook(pointsRepo PointsRepo) *GamificationHook {
	return &GamificationHook{pointsRepo: pointsRepo}
}

// OnEvent awards points when the event type has a rule and a user. Errors
// are logged, never propagated: a points hiccup must not affect workflow
// processing.
func (g *GamificationHook) OnEvent(event *domain.Event) {
	ruleKey, ok := ruleKeyByEventType[event.Type]
	if !ok {
		return
	}
	if event.UserID == "" {
		slog.Debug("Event has points rule but no user", "event_id", event.EventID, "type", event.Type)
		return
	}
	if _, err := g.Award(event.UserID, ruleKey, event.EventID); err != nil {
		slog.Error("Failed to award points", "error", err, "user_id", event.UserID, "rule_key", ruleKey, "event_id", event.EventID)
	}
}

// Award applies one points rule for one source event. Returns the awarded
// points, zero when the event was already awarded or no rule matches.
func (g *GamificationHook) Award(userID string, ruleKey string, sourceEventID string) (int, error) {
	rule, err := g.pointsRepo.GetRule(ruleKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Warn("No points rule for key", "rule_key", ruleKey)
			return 0, nil
		}
		return 0, err
	}

	created, err := g.pointsRepo.InsertLedgerEntry(&domain.PointsLedgerEntry{
		UserID:        userID,
		SourceEventID: sourceEventID,
		RuleKey:       ruleKey,
		Points:        rule.Points,
	})
	if err != nil {
		return 0, err
	}
	if !created {
		slog.Debug("Points already awarded for event", "user_id", userID, "source_event_id", sourceEventID)
		return 0, nil
	}

	total, err := g.pointsRepo.AddPoints(userID, rule.Points)
	if err != nil {
		return 0, err
	}

	level, name, toNext := levelFor(total)
	if err := g.pointsRepo.UpdateLevel(userID, level, name, toNext); err != nil {
		return 0, err
	}

	slog.Info("Awarded points", "user_id", userID, "rule_key", ruleKey, "points", rule.Points, "total", total, "level", level)
	return rule.Points, nil
}

// ZeroBalance is the balance of a user with no awards yet.
func ZeroBalance(userID string) *domain.UserPoints {
	level, name, toNext := levelFor(0)
	return &domain.UserPoints{
		UserID:            userID,
		Level:             level,
		LevelName:         name,
		PointsToNextLevel: toNext,
	}
}

// levelFor recomputes level, level name and points remaining to the next
// threshold from a total.
func levelFor(total int) (int, string, int) {
	level := 1
	for i, threshold := range levelThresholds {
		if total >= threshold {
			level = i + 1
		}
	}
	name := levelNames[level-1]
	if level < len(levelThresholds) {
		return level, name, levelThresholds[level] - total
	}
	return level, name, 0
}
