package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/alem-economy/internal/application/saga"
	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PURCHASE / REFUND COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// PurchaseCommand spends primary currency on an item.
type PurchaseCommand struct {
	AccountID  string
	PurchaseID string
	Amount     ledger.Amount // quarters
	Item       string
}

// Validate validates the command.
func (c PurchaseCommand) Validate() error {
	if c.AccountID == "" {
		return errors.New("purchase: account_id is required")
	}
	if c.PurchaseID == "" {
		return errors.New("purchase: purchase_id is required")
	}
	if c.Amount <= 0 {
		return errors.New("purchase: amount must be positive")
	}
	return nil
}

// PurchaseResult contains the result of a purchase.
type PurchaseResult struct {
	Entry    *ledger.Entry
	Balance  ledger.Amount
	Unlocked []saga.Unlock
}

// PurchaseHandler handles PurchaseCommand.
type PurchaseHandler struct {
	exec *Executor
	flow *saga.AchievementFlow
}

// NewPurchaseHandler creates a new handler.
func NewPurchaseHandler(exec *Executor, flow *saga.AchievementFlow) *PurchaseHandler {
	return &PurchaseHandler{exec: exec, flow: flow}
}

// Handle executes the command. A purchase ID can be spent only once.
func (h *PurchaseHandler) Handle(ctx context.Context, cmd PurchaseCommand) (*PurchaseResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "Purchase", shared.ErrValidation, "invalid command", err)
	}

	var result *PurchaseResult
	err := h.exec.Run(ctx, "Purchase", cmd.AccountID, func(ctx context.Context, s *uow.Session) error {
		acct, err := s.Tx.Accounts().GetForUpdate(ctx, cmd.AccountID)
		if err != nil {
			return err
		}
		if err := acct.EnsureUnlocked("Purchase"); err != nil {
			return err
		}

		prior, err := s.Tx.Entries().ListBySource(ctx, acct.ID, ledger.SourcePurchase, cmd.PurchaseID)
		if err != nil {
			return err
		}
		for _, e := range prior {
			if e.Kind == ledger.KindSpend {
				return shared.NewDomainError("command", "Purchase", shared.ErrAlreadyExists,
					fmt.Sprintf("purchase %s already recorded", cmd.PurchaseID))
			}
		}

		entry, err := s.Ledger.RecordSpend(ctx, acct.ID, cmd.Amount, ledger.SourcePurchase, cmd.PurchaseID, cmd.Item)
		if err != nil {
			return err
		}
		acct.NoteSpent(cmd.Amount)
		if err := s.Note(ctx, entry); err != nil {
			return err
		}

		unlocked, err := h.flow.Run(ctx, s, acct)
		if err != nil {
			return err
		}
		acct.Touch(s.Now)
		if err := s.Tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}
		balance, err := s.Ledger.Balance(ctx, acct.ID, ledger.Primary)
		if err != nil {
			return err
		}
		result = &PurchaseResult{Entry: entry, Balance: balance, Unlocked: unlocked}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RefundCommand credits back all or part of a purchase.
type RefundCommand struct {
	AccountID  string
	PurchaseID string
	// Amount in quarters; zero refunds whatever is left of the purchase.
	Amount ledger.Amount
	Actor  string
	Reason string
}

// Validate validates the command.
func (c RefundCommand) Validate() error {
	if c.AccountID == "" {
		return errors.New("refund: account_id is required")
	}
	if c.PurchaseID == "" {
		return errors.New("refund: purchase_id is required")
	}
	if c.Amount < 0 {
		return errors.New("refund: amount cannot be negative")
	}
	return nil
}

// RefundResult contains the result of a refund.
type RefundResult struct {
	Entry   *ledger.Entry
	Balance ledger.Amount
}

// RefundHandler handles RefundCommand. Refunds never reduce the gross
// TotalSpent counter.
type RefundHandler struct {
	exec *Executor
}

// NewRefundHandler creates a new handler.
func NewRefundHandler(exec *Executor) *RefundHandler {
	return &RefundHandler{exec: exec}
}

// Handle executes the command.
func (h *RefundHandler) Handle(ctx context.Context, cmd RefundCommand) (*RefundResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "Refund", shared.ErrValidation, "invalid command", err)
	}

	var result *RefundResult
	err := h.exec.Run(ctx, "Refund", cmd.AccountID, func(ctx context.Context, s *uow.Session) error {
		acct, err := s.Tx.Accounts().GetForUpdate(ctx, cmd.AccountID)
		if err != nil {
			return err
		}
		if err := acct.EnsureUnlocked("Refund"); err != nil {
			return err
		}

		prior, err := s.Tx.Entries().ListBySource(ctx, acct.ID, ledger.SourcePurchase, cmd.PurchaseID)
		if err != nil {
			return err
		}
		var spent, refunded ledger.Amount
		for _, e := range prior {
			switch e.Kind {
			case ledger.KindSpend:
				spent -= e.Amount
			case ledger.KindRefund:
				refunded += e.Amount
			}
		}
		if spent == 0 {
			return shared.NewDomainError("command", "Refund", shared.ErrInvalidRefund,
				fmt.Sprintf("no purchase %s on this account", cmd.PurchaseID))
		}
		remaining := spent - refunded
		amount := cmd.Amount
		if amount == 0 {
			amount = remaining
		}
		if amount <= 0 || amount > remaining {
			return shared.NewDomainError("command", "Refund", shared.ErrInvalidRefund,
				fmt.Sprintf("refund of %s exceeds the %s left on purchase %s",
					ledger.Primary.Format(amount), ledger.Primary.Format(remaining), cmd.PurchaseID))
		}

		note := "refund"
		if cmd.Reason != "" {
			note += ": " + cmd.Reason
		}
		entry, err := s.Ledger.RecordRefund(ctx, acct.ID, amount, ledger.SourcePurchase, cmd.PurchaseID, note)
		if err != nil {
			return err
		}
		if err := s.Note(ctx, entry); err != nil {
			return err
		}
		balance, err := s.Ledger.Balance(ctx, acct.ID, ledger.Primary)
		if err != nil {
			return err
		}

		if cmd.Actor != "" {
			s.Effects.Audit(shared.AuditRecord{
				Actor:     cmd.Actor,
				Action:    "purchase.refund",
				AccountID: acct.ID,
				At:        s.Now,
				Details: map[string]interface{}{
					"purchase_id": cmd.PurchaseID,
					"amount":      int64(amount),
					"reason":      cmd.Reason,
				},
			})
		}
		result = &RefundResult{Entry: entry, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
