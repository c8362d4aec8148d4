// Package account содержит сущность учётной записи студента в экономике:
// позицию в программе, счётчики и флаги, от которых зависят награды.
package account

import (
	"fmt"
	"time"

	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Account - учётная запись студента. Балансы здесь не хранятся: они
// выводятся из леджера (см. пакет ledger).
type Account struct {
	// ID - идентификатор, выданный внешней системой.
	ID string

	// Path - путь обучения.
	Path curriculum.Path

	// Position - текущая позиция в программе.
	Position curriculum.Position

	// CurriculumComplete - пройден последний урок последнего пояса.
	CurriculumComplete bool

	// Locked - заблокированный аккаунт нельзя изменять.
	Locked bool

	// LessonsCompleted - всего завершено уроков.
	LessonsCompleted int64

	// LessonsSinceConversion - уроков с последней конвертации legacy-очков.
	LessonsSinceConversion int

	// QuizAnswered - всего ответов на квизы.
	QuizAnswered int64

	// QuizCorrect - правильных ответов на квизы.
	QuizCorrect int64

	// PurchasesMade - количество покупок.
	PurchasesMade int64

	// TotalEarned - всего заработано основной валюты (квартеры), только растёт.
	TotalEarned ledger.Amount

	// TotalSpent - всего потрачено (квартеры), без учёта возвратов, только растёт.
	TotalSpent ledger.Amount

	// AlternationFlag - флаг чередования floor/ceil для дробных ставок.
	AlternationFlag bool

	// CreatedAt - время создания.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// New создаёт аккаунт в начале программы.
func New(id string, path curriculum.Path, now time.Time) (*Account, error) {
	if id == "" {
		return nil, shared.NewDomainError("account", "New", shared.ErrInvalidInput, "account id is required")
	}
	return &Account{
		ID:        id,
		Path:      path.OrDefault(),
		Position:  curriculum.StartPosition(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Guards
// ─────────────────────────────────────────────────────────────────────────────

// EnsureUnlocked возвращает ErrAccountLocked для заблокированного аккаунта.
func (a *Account) EnsureUnlocked(op string) error {
	if a.Locked {
		return shared.NewDomainError("account", op, shared.ErrAccountLocked,
			fmt.Sprintf("account %s is locked", a.ID))
	}
	return nil
}

// EnsureCanProgress проверяет, что аккаунт может проходить уроки.
func (a *Account) EnsureCanProgress(op string) error {
	if err := a.EnsureUnlocked(op); err != nil {
		return err
	}
	if a.CurriculumComplete {
		return shared.NewDomainError("account", op, shared.ErrCurriculumComplete,
			fmt.Sprintf("account %s has completed the curriculum", a.ID))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// State changes
// ─────────────────────────────────────────────────────────────────────────────

// RecordLesson учитывает завершённый урок.
func (a *Account) RecordLesson() {
	a.LessonsCompleted++
	a.LessonsSinceConversion++
}

// ResetConversionCounter обнуляет счётчик после конвертации.
func (a *Account) ResetConversionCounter() {
	a.LessonsSinceConversion = 0
}

// RecordQuizAnswer учитывает ответ на квиз.
func (a *Account) RecordQuizAnswer(correct bool) {
	a.QuizAnswered++
	if correct {
		a.QuizCorrect++
	}
}

// NoteEarned увеличивает счётчик заработанного. Неположительные суммы игнорируются.
func (a *Account) NoteEarned(amount ledger.Amount) {
	if amount > 0 {
		a.TotalEarned += amount
	}
}

// NoteSpent увеличивает счётчик потраченного и число покупок.
func (a *Account) NoteSpent(amount ledger.Amount) {
	if amount > 0 {
		a.TotalSpent += amount
		a.PurchasesMade++
	}
}

// MoveTo переносит аккаунт на новую позицию.
func (a *Account) MoveTo(pos curriculum.Position) {
	a.Position = pos
}

// CompleteCurriculum отмечает, что программа пройдена.
func (a *Account) CompleteCurriculum() {
	a.CurriculumComplete = true
}

// SetLocked блокирует или разблокирует аккаунт. Возвращает false, если
// состояние не изменилось.
func (a *Account) SetLocked(locked bool) bool {
	if a.Locked == locked {
		return false
	}
	a.Locked = locked
	return true
}

// Touch обновляет время изменения.
func (a *Account) Touch(now time.Time) {
	a.UpdatedAt = now
}

// QuizAccuracy возвращает долю правильных ответов в процентах (0, если ответов нет).
func (a *Account) QuizAccuracy() int {
	if a.QuizAnswered == 0 {
		return 0
	}
	return int(a.QuizCorrect * 100 / a.QuizAnswered)
}
