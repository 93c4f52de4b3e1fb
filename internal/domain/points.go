package domain

import "time"

// UserPoints is the per-user points balance. TotalPoints only ever grows;
// Level is derived from the cumulative thresholds in the engine.
type UserPoints struct {
	UserID            string
	TotalPoints       int
	Level             int
	LevelName         string
	PointsToNextLevel int
	Updated           time.Time
}

// PointsLedgerEntry records one award. (UserID, SourceEventID) is unique,
// which is what makes awarding at-most-once per originating event.
type PointsLedgerEntry struct {
	ID            int64
	UserID        string
	SourceEventID string
	RuleKey       string
	Points        int
	Created       time.Time
}

// PointsRule maps an action key to the points it awards.
type PointsRule struct {
	RuleKey string
	Points  int
}
