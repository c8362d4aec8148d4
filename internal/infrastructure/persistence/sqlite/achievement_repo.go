package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/alem-hub/alem-economy/internal/domain/achievement"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// AchievementRepository implements achievement.Repository for SQLite.
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
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO achievements (`+achievementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Code, a.Name, a.Description, string(a.Category), string(a.Rarity), a.Icon,
		int64(a.Reward), a.ManualOnly, a.Active, a.Hidden, criteria,
		toNanos(a.CreatedAt), toNanos(a.UpdatedAt),
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
	res, err := r.q.ExecContext(ctx, `
		UPDATE achievements SET
			code = ?, name = ?, description = ?, category = ?, rarity = ?, icon = ?,
			reward = ?, manual_only = ?, active = ?, hidden = ?, criteria = ?, updated_at = ?
		WHERE id = ?`,
		a.Code, a.Name, a.Description, string(a.Category), string(a.Rarity), a.Icon,
		int64(a.Reward), a.ManualOnly, a.Active, a.Hidden, criteria, toNanos(a.UpdatedAt), a.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.Errorf("achievement", "Update", shared.ErrAlreadyExists,
				"achievement code %s is taken", a.Code)
		}
		return fmt.Errorf("failed to update achievement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.Errorf("achievement", "Update", shared.ErrAchievementNotFound, "achievement %s not found", a.ID)
	}
	return nil
}

// Get returns an achievement by ID.
func (r *AchievementRepository) Get(ctx context.Context, id string) (*achievement.Achievement, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE id = ?`, id)
	a, err := scanAchievement(row)
	if notFound(err) {
		return nil, shared.Errorf("achievement", "Get", shared.ErrAchievementNotFound, "achievement %s not found", id)
	}
	return a, err
}

// GetByCode returns an achievement by code.
func (r *AchievementRepository) GetByCode(ctx context.Context, code string) (*achievement.Achievement, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE code = ?`, code)
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
		where = append(where, "active = 1")
	}
	if !opts.IncludeManual {
		where = append(where, "manual_only = 0")
	}
	query := `SELECT ` + achievementColumns + ` FROM achievements`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY code`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var list []*achievement.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAchievement(row scanner) (*achievement.Achievement, error) {
	var (
		a                    achievement.Achievement
		category, rarity     string
		reward               int64
		criteria             sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &category, &rarity, &a.Icon,
		&reward, &a.ManualOnly, &a.Active, &a.Hidden, &criteria, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.Category = achievement.Category(category)
	a.Rarity = achievement.Rarity(rarity)
	a.Reward = ledger.Amount(reward)
	if criteria.Valid && criteria.String != "" {
		a.Criteria = achievement.DecodeCriteria([]byte(criteria.String))
	}
	a.CreatedAt = fromNanos(createdAt)
	a.UpdatedAt = fromNanos(updatedAt)
	return &a, nil
}

// criteriaParam renders criteria as JSON text; nil criteria are stored as NULL.
func criteriaParam(c achievement.Criteria) (sql.NullString, error) {
	if c == nil {
		return sql.NullString{}, nil
	}
	raw, err := achievement.EncodeCriteria(c)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

// ProgressRepository implements achievement.ProgressRepository for SQLite.
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
	row := r.q.QueryRowContext(ctx, `
		SELECT `+progressColumns+` FROM achievement_progress
		WHERE account_id = ? AND achievement_id = ?`, accountID, achievementID)
	p, err := scanProgress(row)
	if notFound(err) {
		return nil, shared.Errorf("achievement", "GetProgress", shared.ErrNotFound,
			"no progress for %s/%s", accountID, achievementID)
	}
	return p, err
}

// ListByAccount returns all progress rows of the account.
func (r *ProgressRepository) ListByAccount(ctx context.Context, accountID string) ([]*achievement.Progress, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+progressColumns+` FROM achievement_progress
		WHERE account_id = ?
		ORDER BY achievement_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var list []*achievement.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Upsert creates or replaces a progress row.
func (r *ProgressRepository) Upsert(ctx context.Context, p *achievement.Progress) error {
	var unlockedAt sql.NullInt64
	if p.Unlocked {
		unlockedAt = sql.NullInt64{Int64: toNanos(p.UnlockedAt), Valid: true}
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO achievement_progress (`+progressColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, achievement_id) DO UPDATE SET
			unlocked = excluded.unlocked,
			unlocked_at = excluded.unlocked_at,
			percent = excluded.percent,
			seen = excluded.seen,
			manually_awarded = excluded.manually_awarded,
			awarded_by = excluded.awarded_by,
			is_leaderboard_badge = excluded.is_leaderboard_badge,
			updated_at = excluded.updated_at`,
		p.AccountID, p.AchievementID, p.Unlocked, unlockedAt, p.Percent, p.Seen,
		p.ManuallyAwarded, p.AwardedBy, p.IsLeaderboardBadge,
		toNanos(p.CreatedAt), toNanos(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// Delete removes a progress row.
func (r *ProgressRepository) Delete(ctx context.Context, accountID, achievementID string) error {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM achievement_progress WHERE account_id = ? AND achievement_id = ?`,
		accountID, achievementID)
	if err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.Errorf("achievement", "DeleteProgress", shared.ErrNotFound,
			"no progress for %s/%s", accountID, achievementID)
	}
	return nil
}

func scanProgress(row scanner) (*achievement.Progress, error) {
	var (
		p                    achievement.Progress
		unlockedAt           sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(&p.AccountID, &p.AchievementID, &p.Unlocked, &unlockedAt, &p.Percent, &p.Seen,
		&p.ManuallyAwarded, &p.AwardedBy, &p.IsLeaderboardBadge, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if unlockedAt.Valid {
		p.UnlockedAt = fromNanos(unlockedAt.Int64)
	}
	p.CreatedAt = fromNanos(createdAt)
	p.UpdatedAt = fromNanos(updatedAt)
	return &p, nil
}
