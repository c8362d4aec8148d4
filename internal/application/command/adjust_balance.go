package command

import (
	"context"
	"errors"

	"github.com/alem-hub/alem-economy/internal/application/saga"
	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN BALANCE COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// GrantLegacyCommand credits legacy points, e.g. when importing old balances.
type GrantLegacyCommand struct {
	AccountID string
	Points    ledger.Amount
	// Source is SourceAdmin or SourceImport.
	Source ledger.Source
	Actor  string
	Note   string
}

// Validate validates the command.
func (c GrantLegacyCommand) Validate() error {
	if c.AccountID == "" {
		return errors.New("grant_legacy: account_id is required")
	}
	if c.Points <= 0 {
		return errors.New("grant_legacy: points must be positive")
	}
	if c.Source != ledger.SourceAdmin && c.Source != ledger.SourceImport {
		return errors.New("grant_legacy: source must be ADMIN or IMPORT")
	}
	if c.Actor == "" {
		return errors.New("grant_legacy: actor is required")
	}
	return nil
}

// AdjustBalanceCommand records a signed admin correction in either currency.
type AdjustBalanceCommand struct {
	AccountID string
	Currency  ledger.Currency
	Delta     ledger.Amount
	Actor     string
	Reason    string
}

// Validate validates the command.
func (c AdjustBalanceCommand) Validate() error {
	if c.AccountID == "" {
		return errors.New("adjust_balance: account_id is required")
	}
	if !c.Currency.IsValid() {
		return errors.New("adjust_balance: unknown currency")
	}
	if c.Delta == 0 {
		return errors.New("adjust_balance: delta cannot be zero")
	}
	if c.Actor == "" || c.Reason == "" {
		return errors.New("adjust_balance: actor and reason are required")
	}
	return nil
}

// BalanceChangeResult is returned by admin balance commands.
type BalanceChangeResult struct {
	Entry    *ledger.Entry
	Balance  ledger.Amount
	Unlocked []saga.Unlock
}

// BalanceAdminHandler handles GrantLegacyCommand and AdjustBalanceCommand.
type BalanceAdminHandler struct {
	exec *Executor
	flow *saga.AchievementFlow
}

// NewBalanceAdminHandler creates a new handler.
func NewBalanceAdminHandler(exec *Executor, flow *saga.AchievementFlow) *BalanceAdminHandler {
	return &BalanceAdminHandler{exec: exec, flow: flow}
}

// GrantLegacy executes GrantLegacyCommand.
func (h *BalanceAdminHandler) GrantLegacy(ctx context.Context, cmd GrantLegacyCommand) (*BalanceChangeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "GrantLegacy", shared.ErrValidation, "invalid command", err)
	}
	return h.apply(ctx, "GrantLegacy", cmd.AccountID, cmd.Actor, "legacy.grant",
		func(ctx context.Context, s *uow.Session) (*ledger.Entry, error) {
			return s.Ledger.RecordGrant(ctx, cmd.AccountID, cmd.Points, cmd.Source, "", cmd.Note)
		},
		map[string]interface{}{"points": int64(cmd.Points), "source": string(cmd.Source), "note": cmd.Note})
}

// Adjust executes AdjustBalanceCommand.
func (h *BalanceAdminHandler) Adjust(ctx context.Context, cmd AdjustBalanceCommand) (*BalanceChangeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "AdjustBalance", shared.ErrValidation, "invalid command", err)
	}
	return h.apply(ctx, "AdjustBalance", cmd.AccountID, cmd.Actor, "balance.adjust",
		func(ctx context.Context, s *uow.Session) (*ledger.Entry, error) {
			return s.Ledger.RecordAdjust(ctx, cmd.AccountID, cmd.Currency, cmd.Delta, ledger.SourceAdmin, "", cmd.Reason)
		},
		map[string]interface{}{"currency": string(cmd.Currency), "delta": int64(cmd.Delta), "reason": cmd.Reason})
}

func (h *BalanceAdminHandler) apply(
	ctx context.Context,
	name, accountID, actor, action string,
	record func(ctx context.Context, s *uow.Session) (*ledger.Entry, error),
	details map[string]interface{},
) (*BalanceChangeResult, error) {
	var result *BalanceChangeResult
	err := h.exec.Run(ctx, name, accountID, func(ctx context.Context, s *uow.Session) error {
		acct, err := s.Tx.Accounts().GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := acct.EnsureUnlocked(name); err != nil {
			return err
		}

		entry, err := record(ctx, s)
		if err != nil {
			return err
		}
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
		balance, err := s.Ledger.Balance(ctx, accountID, entry.Currency)
		if err != nil {
			return err
		}

		s.Effects.Audit(shared.AuditRecord{
			Actor:     actor,
			Action:    action,
			AccountID: accountID,
			At:        s.Now,
			Details:   details,
		})
		result = &BalanceChangeResult{Entry: entry, Balance: balance, Unlocked: unlocked}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
