package command

import (
	"context"
	"log/slog"

	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ReconcileHandler recomputes cached balances from the entries of an account.
type ReconcileHandler struct {
	exec *Executor
}

// NewReconcileHandler creates a new handler.
func NewReconcileHandler(exec *Executor) *ReconcileHandler {
	return &ReconcileHandler{exec: exec}
}

// Handle reconciles both currencies of the account. Drift is logged and
// reported; the cache is corrected either way.
func (h *ReconcileHandler) Handle(ctx context.Context, accountID string) ([]ledger.Reconciliation, error) {
	if accountID == "" {
		return nil, shared.NewDomainError("command", "Reconcile", shared.ErrValidation, "account_id is required")
	}

	var out []ledger.Reconciliation
	err := h.exec.Run(ctx, "Reconcile", accountID, func(ctx context.Context, s *uow.Session) error {
		out = out[:0]
		if _, err := s.Tx.Accounts().Get(ctx, accountID); err != nil {
			return err
		}
		for _, cur := range []ledger.Currency{ledger.Primary, ledger.Legacy} {
			r, err := s.Ledger.Reconcile(ctx, accountID, cur)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, r := range out {
		if r.Drifted() {
			h.exec.Logger().Warn("balance cache drift corrected",
				slog.String("account_id", r.AccountID),
				slog.String("currency", string(r.Currency)),
				slog.Int64("cached", int64(r.Cached)),
				slog.Int64("actual", int64(r.Actual)),
			)
		}
	}
	return out, nil
}
