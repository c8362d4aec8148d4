// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACCOUNT SUMMARY QUERY
// Балансы, позиция в программе и счётчики одного аккаунта.
// ══════════════════════════════════════════════════════════════════════════════

// GetAccountSummaryQuery содержит параметры запроса.
type GetAccountSummaryQuery struct {
	// AccountID - идентификатор аккаунта.
	AccountID string
}

// Validate проверяет корректность параметров.
func (q GetAccountSummaryQuery) Validate() error {
	if q.AccountID == "" {
		return errors.New("account_id is required")
	}
	return nil
}

// BalanceDTO - баланс в одной валюте.
type BalanceDTO struct {
	// Currency - код валюты.
	Currency string `json:"currency"`

	// Amount - баланс в минимальных единицах (для основной валюты - квартеры).
	Amount int64 `json:"amount"`

	// Display - баланс для показа, например "10.25".
	Display string `json:"display"`
}

// AccountSummaryDTO - сводка по аккаунту.
type AccountSummaryDTO struct {
	AccountID          string              `json:"account_id"`
	Path               string              `json:"path"`
	Position           curriculum.Position `json:"position"`
	Belt               string              `json:"belt"`
	CurriculumComplete bool                `json:"curriculum_complete"`
	Locked             bool                `json:"locked"`

	// Primary и Legacy - текущие балансы.
	Primary BalanceDTO `json:"primary"`
	Legacy  BalanceDTO `json:"legacy"`

	// ExpectedBalance - сколько должен был заработать студент на этой позиции
	// только за прохождение программы.
	ExpectedBalance BalanceDTO `json:"expected_balance"`

	// ProgressPercent - доля пройденных уроков (0-100).
	ProgressPercent int `json:"progress_percent"`

	LessonsCompleted int64  `json:"lessons_completed"`
	QuizAnswered     int64  `json:"quiz_answered"`
	QuizAccuracy     int    `json:"quiz_accuracy"`
	PurchasesMade    int64  `json:"purchases_made"`
	TotalEarned      string `json:"total_earned"`
	TotalSpent       string `json:"total_spent"`

	UpdatedAt time.Time `json:"updated_at"`
}

// GetAccountSummaryHandler обрабатывает запрос сводки.
type GetAccountSummaryHandler struct {
	unit uow.UnitOfWork
	calc *curriculum.Calculator
}

// NewGetAccountSummaryHandler создаёт новый обработчик.
func NewGetAccountSummaryHandler(unit uow.UnitOfWork, calc *curriculum.Calculator) *GetAccountSummaryHandler {
	return &GetAccountSummaryHandler{unit: unit, calc: calc}
}

// Handle выполняет запрос.
func (h *GetAccountSummaryHandler) Handle(ctx context.Context, q GetAccountSummaryQuery) (*AccountSummaryDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, invalidQuery("GetAccountSummary", err)
	}

	var dto *AccountSummaryDTO
	err := h.unit.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		acct, err := tx.Accounts().Get(ctx, q.AccountID)
		if err != nil {
			return err
		}
		l := readLedger(tx)
		primary, err := l.Balance(ctx, acct.ID, ledger.Primary)
		if err != nil {
			return err
		}
		legacy, err := l.Balance(ctx, acct.ID, ledger.Legacy)
		if err != nil {
			return err
		}

		var expected int64
		if acct.CurriculumComplete {
			expected, err = h.calc.ExpectedTotal(acct.Path)
		} else {
			expected, err = h.calc.ExpectedBalance(acct.Path, acct.Position)
		}
		if err != nil {
			return err
		}

		done, err := h.calc.Completed(acct.Path, acct.Position, acct.CurriculumComplete)
		if err != nil {
			return err
		}
		total, err := h.calc.Total(acct.Path)
		if err != nil {
			return err
		}
		percent := 0
		if total.Units > 0 {
			percent = done.Units * 100 / total.Units
		}

		dto = &AccountSummaryDTO{
			AccountID:          acct.ID,
			Path:               string(acct.Path),
			Position:           acct.Position,
			Belt:               acct.Position.Track.Title(),
			CurriculumComplete: acct.CurriculumComplete,
			Locked:             acct.Locked,
			Primary:            balanceDTO(ledger.Primary, primary),
			Legacy:             balanceDTO(ledger.Legacy, legacy),
			ExpectedBalance:    balanceDTO(ledger.Primary, ledger.Amount(expected)),
			ProgressPercent:    percent,
			LessonsCompleted:   acct.LessonsCompleted,
			QuizAnswered:       acct.QuizAnswered,
			QuizAccuracy:       acct.QuizAccuracy(),
			PurchasesMade:      acct.PurchasesMade,
			TotalEarned:        ledger.Primary.Format(acct.TotalEarned),
			TotalSpent:         ledger.Primary.Format(acct.TotalSpent),
			UpdatedAt:          acct.UpdatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func balanceDTO(cur ledger.Currency, amount ledger.Amount) BalanceDTO {
	return BalanceDTO{Currency: string(cur), Amount: int64(amount), Display: cur.Format(amount)}
}

// readLedger строит леджер для чтения внутри транзакции.
func readLedger(tx uow.Tx) *ledger.Ledger {
	return ledger.New(tx.Entries(), tx.Balances(), uuid.NewString)
}
