// Package achievement содержит каталог достижений, критерии их получения,
// прогресс студента по каждому достижению и вычислитель правил.
package achievement

import (
	"time"

	"github.com/alem-hub/alem-economy/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Category - категория достижения.
type Category string

const (
	CategoryProgress    Category = "PROGRESS"
	CategoryQuiz        Category = "QUIZ"
	CategoryEconomy     Category = "ECONOMY"
	CategoryLeaderboard Category = "LEADERBOARD"
	CategorySpecial     Category = "SPECIAL"
)

// Rarity - редкость достижения.
type Rarity string

const (
	RarityCommon    Rarity = "COMMON"
	RarityRare      Rarity = "RARE"
	RarityEpic      Rarity = "EPIC"
	RarityLegendary Rarity = "LEGENDARY"
)

// Achievement - определение достижения из каталога.
type Achievement struct {
	// ID - идентификатор.
	ID string

	// Code - уникальный читаемый код (slug).
	Code string

	// Name - название.
	Name string

	// Description - описание.
	Description string

	// Category - категория.
	Category Category

	// Rarity - редкость.
	Rarity Rarity

	// Icon - эмодзи или ссылка на иконку.
	Icon string

	// Reward - награда в квартерах основной валюты, 0 - без награды.
	Reward ledger.Amount

	// ManualOnly - выдаётся только администратором, автоматически не проверяется.
	ManualOnly bool

	// Active - участвует ли в автоматической проверке.
	Active bool

	// Hidden - не показывается, пока не получено.
	Hidden bool

	// Criteria - правило получения.
	Criteria Criteria

	// CreatedAt - время создания.
	CreatedAt time.Time

	// UpdatedAt - время изменения.
	UpdatedAt time.Time
}

// AutoEvaluated - проверяется ли достижение автоматически.
func (a *Achievement) AutoEvaluated() bool {
	return a.Active && !a.ManualOnly
}

// HasReward - есть ли у достижения денежная награда.
func (a *Achievement) HasReward() bool {
	return a.Reward > 0
}

// Visible - видно ли достижение студенту с данным прогрессом (p может быть nil).
// Скрытые достижения видны только после получения.
func Visible(a *Achievement, p *Progress) bool {
	if !a.Hidden {
		return true
	}
	return p != nil && p.Unlocked
}
