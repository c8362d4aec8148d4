package query

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/achievement"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST ACHIEVEMENTS QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// ListAccountAchievementsQuery - достижения студента вместе с прогрессом.
type ListAccountAchievementsQuery struct {
	AccountID string

	// UnlockedOnly - только полученные.
	UnlockedOnly bool

	// UnseenOnly - только полученные и ещё не просмотренные.
	UnseenOnly bool
}

// AchievementDTO - достижение с прогрессом студента.
type AchievementDTO struct {
	ID                 string     `json:"id"`
	Code               string     `json:"code"`
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	Category           string     `json:"category"`
	Rarity             string     `json:"rarity"`
	Icon               string     `json:"icon,omitempty"`
	Reward             string     `json:"reward,omitempty"`
	Hidden             bool       `json:"hidden"`
	Percent            int        `json:"percent"`
	Unlocked           bool       `json:"unlocked"`
	UnlockedAt         *time.Time `json:"unlocked_at,omitempty"`
	Seen               bool       `json:"seen"`
	ManuallyAwarded    bool       `json:"manually_awarded"`
	IsLeaderboardBadge bool       `json:"is_leaderboard_badge"`
}

// ListAchievementsHandler обрабатывает запросы по достижениям.
type ListAchievementsHandler struct {
	unit uow.UnitOfWork
}

// NewListAchievementsHandler создаёт новый обработчик.
func NewListAchievementsHandler(unit uow.UnitOfWork) *ListAchievementsHandler {
	return &ListAchievementsHandler{unit: unit}
}

// ForAccount возвращает достижения, видимые студенту. Скрытые достижения
// попадают в список только после получения; неактивные - только полученные.
func (h *ListAchievementsHandler) ForAccount(ctx context.Context, q ListAccountAchievementsQuery) ([]AchievementDTO, error) {
	if q.AccountID == "" {
		return nil, invalidQuery("ListAccountAchievements", errors.New("account_id is required"))
	}

	var out []AchievementDTO
	err := h.unit.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		out = nil
		if _, err := tx.Accounts().Get(ctx, q.AccountID); err != nil {
			return err
		}
		catalog, err := tx.Achievements().List(ctx, achievement.ListOptions{IncludeManual: true})
		if err != nil {
			return err
		}
		rows, err := tx.Progress().ListByAccount(ctx, q.AccountID)
		if err != nil {
			return err
		}
		byID := make(map[string]*achievement.Progress, len(rows))
		for _, p := range rows {
			byID[p.AchievementID] = p
		}

		for _, a := range catalog {
			p := byID[a.ID]
			unlocked := p != nil && p.Unlocked
			switch {
			case !achievement.Visible(a, p):
				continue
			case !a.Active && !unlocked:
				continue
			case q.UnlockedOnly && !unlocked:
				continue
			case q.UnseenOnly && (!unlocked || p.Seen):
				continue
			}
			out = append(out, toDTO(a, p))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Catalog возвращает весь каталог для администратора.
func (h *ListAchievementsHandler) Catalog(ctx context.Context, activeOnly bool) ([]AchievementDTO, error) {
	var out []AchievementDTO
	err := h.unit.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		out = nil
		catalog, err := tx.Achievements().List(ctx, achievement.ListOptions{
			ActiveOnly:    activeOnly,
			IncludeManual: true,
		})
		if err != nil {
			return err
		}
		for _, a := range catalog {
			out = append(out, toDTO(a, nil))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func toDTO(a *achievement.Achievement, p *achievement.Progress) AchievementDTO {
	dto := AchievementDTO{
		ID:          a.ID,
		Code:        a.Code,
		Name:        a.Name,
		Description: a.Description,
		Category:    string(a.Category),
		Rarity:      string(a.Rarity),
		Icon:        a.Icon,
		Hidden:      a.Hidden,
	}
	if a.HasReward() {
		dto.Reward = ledger.Primary.Format(a.Reward)
	}
	if p != nil {
		dto.Percent = p.Percent
		dto.Unlocked = p.Unlocked
		if p.Unlocked {
			at := p.UnlockedAt
			dto.UnlockedAt = &at
		}
		dto.Seen = p.Seen
		dto.ManuallyAwarded = p.ManuallyAwarded
		dto.IsLeaderboardBadge = p.IsLeaderboardBadge
	}
	return dto
}
