package query

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET HISTORY QUERY
// Постраничная история операций, новые сверху.
// ══════════════════════════════════════════════════════════════════════════════

// GetHistoryQuery содержит параметры запроса истории.
type GetHistoryQuery struct {
	AccountID string
	Currency  ledger.Currency

	// Limit - размер страницы (по умолчанию 50, максимум 500).
	Limit int

	// Cursor - NextCursor предыдущей страницы, 0 - с начала.
	Cursor int64
}

// Validate проверяет корректность параметров.
func (q *GetHistoryQuery) Validate() error {
	if q.AccountID == "" {
		return errors.New("account_id is required")
	}
	if q.Currency == "" {
		q.Currency = ledger.Primary
	}
	if !q.Currency.IsValid() {
		return errors.New("unknown currency")
	}
	if q.Cursor < 0 {
		return errors.New("cursor cannot be negative")
	}
	return nil
}

// EntryDTO - запись истории.
type EntryDTO struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Amount    int64     `json:"amount"`
	Display   string    `json:"display"`
	Kind      string    `json:"kind"`
	Source    string    `json:"source"`
	SourceID  string    `json:"source_id,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryDTO - страница истории.
type HistoryDTO struct {
	Currency   string     `json:"currency"`
	Entries    []EntryDTO `json:"entries"`
	NextCursor int64      `json:"next_cursor,omitempty"`
}

// GetHistoryHandler обрабатывает запрос истории.
type GetHistoryHandler struct {
	unit uow.UnitOfWork
}

// NewGetHistoryHandler создаёт новый обработчик.
func NewGetHistoryHandler(unit uow.UnitOfWork) *GetHistoryHandler {
	return &GetHistoryHandler{unit: unit}
}

// Handle выполняет запрос.
func (h *GetHistoryHandler) Handle(ctx context.Context, q GetHistoryQuery) (*HistoryDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, invalidQuery("GetHistory", err)
	}

	var dto *HistoryDTO
	err := h.unit.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		if _, err := tx.Accounts().Get(ctx, q.AccountID); err != nil {
			return err
		}
		page, err := readLedger(tx).History(ctx, q.AccountID, q.Currency, ledger.HistoryOptions{
			Limit:     q.Limit,
			BeforeSeq: q.Cursor,
		})
		if err != nil {
			return err
		}

		dto = &HistoryDTO{
			Currency:   string(q.Currency),
			Entries:    make([]EntryDTO, 0, len(page.Entries)),
			NextCursor: page.NextCursor,
		}
		for _, e := range page.Entries {
			dto.Entries = append(dto.Entries, EntryDTO{
				ID:        e.ID,
				Seq:       e.Seq,
				Amount:    int64(e.Amount),
				Display:   e.Display(),
				Kind:      string(e.Kind),
				Source:    string(e.Source),
				SourceID:  e.SourceID,
				Note:      e.Note,
				CreatedAt: e.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func invalidQuery(op string, err error) error {
	return shared.WrapError("query", op, shared.ErrValidation, "invalid query", err)
}
