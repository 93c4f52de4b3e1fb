package repository

import (
	"database/sql"
	"log/slog"
	"strings"

	"github.com/underwritepro/flowengine/internal/config"
	"github.com/underwritepro/flowengine/internal/domain"
	"github.com/underwritepro/flowengine/pkg/flowengine/core"
)

// PointsRepository persists the user points balance, the award ledger and
// the rule table the gamification hook reads.
type PointsRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewPointsRepository(db *sql.DB, clock core.Clock) *PointsRepository {
	return &PointsRepository{db: db, clock: clock}
}

// GetRule looks up the points rule for an action key. Returns sql.ErrNoRows
// when no rule exists for the key.
func (r *PointsRepository) GetRule(ruleKey string) (*domain.PointsRule, error) {
	query := `SELECT rule_key, points FROM points_rules WHERE rule_key = ` + placeholder(1)
	var rule domain.PointsRule
	if err := r.db.QueryRow(query, ruleKey).Scan(&rule.RuleKey, &rule.Points); err != nil {
		return nil, err
	}
	return &rule, nil
}

// InsertLedgerEntry records one award attempt. (user_id, source_event_id) is
// unique; a redelivered event inserts nothing and returns false, which is the
// signal for the hook to no-op.
func (r *PointsRepository) InsertLedgerEntry(entry *domain.PointsLedgerEntry) (bool, error) {
	entry.Created = r.clock.Now()
	vals := []interface{}{entry.UserID, entry.SourceEventID, entry.RuleKey, entry.Points,
		formatDateInDatabase(entry.Created)}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}

	dbType := config.GetSystemSettingString(config.DATABASE_TYPE)
	var query string
	if dbType == config.DATABASE_TYPE_MYSQL {
		query = `INSERT IGNORE INTO points_ledger (
			user_id, source_event_id, rule_key, points, created
		) VALUES (` + strings.Join(pps, ", ") + `)`
	} else {
		query = `INSERT INTO points_ledger (
			user_id, source_event_id, rule_key, points, created
		) VALUES (` + strings.Join(pps, ", ") + `)
		ON CONFLICT (user_id, source_event_id) DO NOTHING`
	}

	result, err := r.db.Exec(query, vals...)
	if err != nil {
		slog.Error("Failed to insert ledger entry", "error", err, "user_id", entry.UserID, "source_event_id", entry.SourceEventID)
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// AddPoints increments the balance, inserting the row on first award.
// Returns the new total.
func (r *PointsRepository) AddPoints(userID string, points int) (int, error) {
	dbType := config.GetSystemSettingString(config.DATABASE_TYPE)
	var upsert string
	if dbType == config.DATABASE_TYPE_MYSQL {
		upsert = `INSERT INTO user_points (user_id, total_points, level, level_name, points_to_next_level, updated)
			VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, 1, 'Beginner', 100, ` + nowFunc(r.clock) + `)
			ON DUPLICATE KEY UPDATE total_points = total_points + VALUES(total_points), updated = VALUES(updated)`
	} else {
		upsert = `INSERT INTO user_points (user_id, total_points, level, level_name, points_to_next_level, updated)
			VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, 1, 'Beginner', 100, ` + nowFunc(r.clock) + `)
			ON CONFLICT (user_id)
			DO UPDATE SET total_points = user_points.total_points + EXCLUDED.total_points,
				updated = EXCLUDED.updated`
	}
	if _, err := r.db.Exec(upsert, userID, points); err != nil {
		return 0, err
	}

	var total int
	query := `SELECT total_points FROM user_points WHERE user_id = ` + placeholder(1)
	if err := r.db.QueryRow(query, userID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// UpdateLevel stores the recomputed level fields.
func (r *PointsRepository) UpdateLevel(userID string, level int, levelName string, pointsToNext int) error {
	query := `
		UPDATE user_points
		SET level = ` + placeholder(1) + `, level_name = ` + placeholder(2) + `,
		    points_to_next_level = ` + placeholder(3) + `, updated = ` + nowFunc(r.clock) + `
		WHERE user_id = ` + placeholder(4) + `
	`
	_, err := r.db.Exec(query, level, levelName, pointsToNext, userID)
	return err
}

func (r *PointsRepository) GetUserPoints(userID string) (*domain.UserPoints, error) {
	query := `
		SELECT user_id, total_points, level, level_name, points_to_next_level, updated
		FROM user_points WHERE user_id = ` + placeholder(1) + `
	`
	var up domain.UserPoints
	err := r.db.QueryRow(query, userID).Scan(
		&up.UserID,
		&up.TotalPoints,
		&up.Level,
		&up.LevelName,
		&up.PointsToNextLevel,
		&up.Updated,
	)
	if err != nil {
		return nil, err
	}
	return &up, nil
}
