package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/alem-economy/internal/domain/achievement"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository for PostgreSQL.
type AchievementRepository struct {
	q Querier
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(q Querier) *AchievementRepository {
	return &AchievementRepository{q: q}
}

const achievementColumns = `
	id, code, name, description, category, rarity, icon, reward,
	manual_only, active, hidden, criteria, created_at, updated_at`

// Create adds a catalog entry.
func (r *AchievementRepository) Create(ctx context.Context, a *achievement.Achievement) error {
	criteria, err := criteriaParam(a.Criteria)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO achievements (`+achievementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		a.ID, a.Code, a.Name, a.Description, string(a.Category), string(a.Rarity), a.Icon,
		int64(a.Reward), a.ManualOnly, a.Active, a.Hidden, criteria, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.Errorf("achievement", "Create", shared.ErrAlreadyExists,
				"achievement %s already exists", a.Code)
		}
		return fmt.Errorf("failed to create achievement: %w", err)
	}
	return nil
}

// Update saves a catalog entry.
func (r *AchievementRepository) Update(ctx context.Context, a *achievement.Achievement) error {
	criteria, err := criteriaParam(a.Criteria)
	if err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE achievements SET
			code = $1, name = $2, description = $3, category = $4, rarity = $5, icon = $6,
			reward = $7, manual_only = $8, active = $9, hidden = $10, criteria = $11, updated_at = $12
		WHERE id = $13
	`,
		a.Code, a.Name, a.Description, string(a.Category), string(a.Rarity), a.Icon,
		int64(a.Reward), a.ManualOnly, a.Active, a.Hidden, criteria, a.UpdatedAt, a.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.Errorf("achievement", "Update", shared.ErrAlreadyExists,
				"achievement code %s is taken", a.Code)
		}
		return fmt.Errorf("failed to update achievement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.Errorf("achievement", "Update", shared.ErrAchievementNotFound, "achievement %s not found", a.ID)
	}
	return nil
}

// Get returns an achievement by ID.
func (r *AchievementRepository) Get(ctx context.Context, id string) (*achievement.Achievement, error) {
	row := r.q.QueryRow(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE id = $1`, id)
	a, err := scanAchievement(row)
	if notFound(err) {
		return nil, shared.Errorf("achievement", "Get", shared.ErrAchievementNotFound, "achievement %s not found", id)
	}
	return a, err
}

// GetByCode returns an achievement by code.
func (r *AchievementRepository) GetByCode(ctx context.Context, code string) (*achievement.Achievement, error) {
	row := r.q.QueryRow(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE code = $1`, code)
	a, err := scanAchievement(row)
	if notFound(err) {
		return nil, shared.Errorf("achievement", "GetByCode", shared.ErrAchievementNotFound, "achievement %s not found", code)
	}
	return a, err
}

// List returns the catalog ordered by code.
func (r *AchievementRepository) List(ctx context.Context, opts achievement.ListOptions) ([]*achievement.Achievement, error) {
	var where []string
	if opts.ActiveOnly {
		where = append(where, "active")
	}
	if !opts.IncludeManual {
		where = append(where, "NOT manual_only")
	}
	query := `SELECT ` + achievementColumns + ` FROM achievements`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY code`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*achievement.Achievement, error) {
		return scanAchievement(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan achievements: %w", err)
	}
	return list, nil
}

func scanAchievement(row pgx.Row) (*achievement.Achievement, error) {
	var (
		a                achievement.Achievement
		category, rarity string
		reward           int64
		criteria         []byte
	)
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &category, &rarity, &a.Icon,
		&reward, &a.ManualOnly, &a.Active, &a.Hidden, &criteria, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Category = achievement.Category(category)
	a.Rarity = achievement.Rarity(rarity)
	a.Reward = ledger.Amount(reward)
	if len(criteria) > 0 {
		a.Criteria = achievement.DecodeCriteria(criteria)
	}
	return &a, nil
}

// criteriaParam renders criteria for a JSONB column; nil criteria are stored as NULL.
func criteriaParam(c achievement.Criteria) (interface{}, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := achievement.EncodeCriteria(c)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements achievement.ProgressRepository for PostgreSQL.
type ProgressRepository struct {
	q Querier
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(q Querier) *ProgressRepository {
	return &ProgressRepository{q: q}
}

const progressColumns = `
	account_id, achievement_id, unlocked, unlocked_at, percent, seen,
	manually_awarded, awarded_by, is_leaderboard_badge, created_at, updated_at`

// Get returns one progress row.
func (r *ProgressRepository) Get(ctx context.Context, accountID, achievementID string) (*achievement.Progress, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+progressColumns+` FROM achievement_progress
		WHERE account_id = $1 AND achievement_id = $2
	`, accountID, achievementID)
	p, err := scanProgress(row)
	if notFound(err) {
		return nil, shared.Errorf("achievement", "GetProgress", shared.ErrNotFound,
			"no progress for %s/%s", accountID, achievementID)
	}
	return p, err
}

// ListByAccount returns all progress rows of the account.
func (r *ProgressRepository) ListByAccount(ctx context.Context, accountID string) ([]*achievement.Progress, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+progressColumns+` FROM achievement_progress
		WHERE account_id = $1
		ORDER BY achievement_id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*achievement.Progress, error) {
		return scanProgress(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan progress: %w", err)
	}
	return list, nil
}

// Upsert creates or replaces a progress row.
func (r *ProgressRepository) Upsert(ctx context.Context, p *achievement.Progress) error {
	var unlockedAt *time.Time
	if p.Unlocked {
		unlockedAt = &p.UnlockedAt
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO achievement_progress (`+progressColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (account_id, achievement_id) DO UPDATE SET
			unlocked = EXCLUDED.unlocked,
			unlocked_at = EXCLUDED.unlocked_at,
			percent = EXCLUDED.percent,
			seen = EXCLUDED.seen,
			manually_awarded = EXCLUDED.manually_awarded,
			awarded_by = EXCLUDED.awarded_by,
			is_leaderboard_badge = EXCLUDED.is_leaderboard_badge,
			updated_at = EXCLUDED.updated_at
	`,
		p.AccountID, p.AchievementID, p.Unlocked, unlockedAt, p.Percent, p.Seen,
		p.ManuallyAwarded, p.AwardedBy, p.IsLeaderboardBadge, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// Delete removes a progress row.
func (r *ProgressRepository) Delete(ctx context.Context, accountID, achievementID string) error {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM achievement_progress WHERE account_id = $1 AND achievement_id = $2
	`, accountID, achievementID)
	if err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.Errorf("achievement", "DeleteProgress", shared.ErrNotFound,
			"no progress for %s/%s", accountID, achievementID)
	}
	return nil
}

func scanProgress(row pgx.Row) (*achievement.Progress, error) {
	var (
		p          achievement.Progress
		unlockedAt *time.Time
	)
	err := row.Scan(&p.AccountID, &p.AchievementID, &p.Unlocked, &unlockedAt, &p.Percent, &p.Seen,
		&p.ManuallyAwarded, &p.AwardedBy, &p.IsLeaderboardBadge, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if unlockedAt != nil {
		p.UnlockedAt = *unlockedAt
	}
	return &p, nil
}
