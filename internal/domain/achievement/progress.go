package achievement

import (
	"fmt"
	"time"

	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// Состояния: нет записи -> отслеживается (Unlocked=false) -> получено (конечное).
// Для скрытых достижений запись создаётся только в момент получения.
// ══════════════════════════════════════════════════════════════════════════════

// Progress - прогресс студента по одному достижению. Не больше одной записи
// на пару (AccountID, AchievementID).
type Progress struct {
	// AccountID - аккаунт.
	AccountID string

	// AchievementID - достижение.
	AchievementID string

	// Unlocked - получено ли достижение.
	Unlocked bool

	// UnlockedAt - когда получено (нулевое время, если не получено).
	UnlockedAt time.Time

	// Percent - прогресс 0..100.
	Percent int

	// Seen - студент видел уведомление о получении.
	Seen bool

	// ManuallyAwarded - выдано администратором.
	ManuallyAwarded bool

	// AwardedBy - кто выдал вручную.
	AwardedBy string

	// IsLeaderboardBadge - значок за место в рейтинге.
	IsLeaderboardBadge bool

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время изменения записи.
	UpdatedAt time.Time
}

// NewProgress создаёт запись в состоянии "отслеживается".
func NewProgress(accountID, achievementID string, percent int, now time.Time) *Progress {
	return &Progress{
		AccountID:     accountID,
		AchievementID: achievementID,
		Percent:       clampPercent(percent),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SetPercent обновляет прогресс. Для полученного достижения ничего не делает.
// Возвращает true, если значение изменилось.
func (p *Progress) SetPercent(percent int, now time.Time) bool {
	percent = clampPercent(percent)
	if p.Unlocked || p.Percent == percent {
		return false
	}
	p.Percent = percent
	p.UpdatedAt = now
	return true
}

// Unlock переводит запись в состояние "получено".
func (p *Progress) Unlock(now time.Time) error {
	if p.Unlocked {
		return shared.NewDomainError("achievement", "Unlock", shared.ErrAlreadyUnlocked,
			fmt.Sprintf("achievement %s already unlocked for %s", p.AchievementID, p.AccountID))
	}
	p.Unlocked = true
	p.UnlockedAt = now
	p.Percent = 100
	p.Seen = false
	p.UpdatedAt = now
	return nil
}

// Award - ручная выдача администратором.
func (p *Progress) Award(by string, leaderboardBadge bool, now time.Time) error {
	if err := p.Unlock(now); err != nil {
		return err
	}
	p.ManuallyAwarded = true
	p.AwardedBy = by
	p.IsLeaderboardBadge = leaderboardBadge
	return nil
}

// MarkSeen отмечает полученное достижение просмотренным.
func (p *Progress) MarkSeen(now time.Time) bool {
	if !p.Unlocked || p.Seen {
		return false
	}
	p.Seen = true
	p.UpdatedAt = now
	return true
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
