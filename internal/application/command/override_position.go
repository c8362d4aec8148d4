package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/alem-economy/internal/application/saga"
	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OVERRIDE POSITION COMMAND
// Admin correction: moves the account and records one ADJUST entry equal to
// expected(new) - expected(old), so the balance follows the curriculum.
// ══════════════════════════════════════════════════════════════════════════════

// OverridePositionCommand moves an account to an arbitrary valid position.
type OverridePositionCommand struct {
	AccountID string
	Position  curriculum.Position
	Actor     string
	Reason    string
}

// Validate validates the command.
func (c OverridePositionCommand) Validate() error {
	if c.AccountID == "" {
		return errors.New("override_position: account_id is required")
	}
	if c.Actor == "" {
		return errors.New("override_position: actor is required")
	}
	return nil
}

// OverridePositionResult contains the result of an override.
type OverridePositionResult struct {
	From       curriculum.Position
	To         curriculum.Position
	Adjustment *ledger.Entry
	Unlocked   []saga.Unlock
	Balance    ledger.Amount
}

// OverridePositionHandler handles OverridePositionCommand.
type OverridePositionHandler struct {
	exec *Executor
	calc *curriculum.Calculator
	flow *saga.AchievementFlow
}

// NewOverridePositionHandler creates a new handler.
func NewOverridePositionHandler(exec *Executor, calc *curriculum.Calculator, flow *saga.AchievementFlow) *OverridePositionHandler {
	return &OverridePositionHandler{exec: exec, calc: calc, flow: flow}
}

// Handle executes the command.
func (h *OverridePositionHandler) Handle(ctx context.Context, cmd OverridePositionCommand) (*OverridePositionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "OverridePosition", shared.ErrValidation, "invalid command", err)
	}

	var result *OverridePositionResult
	err := h.exec.Run(ctx, "OverridePosition", cmd.AccountID, func(ctx context.Context, s *uow.Session) error {
		acct, err := s.Tx.Accounts().GetForUpdate(ctx, cmd.AccountID)
		if err != nil {
			return err
		}
		if err := acct.EnsureUnlocked("OverridePosition"); err != nil {
			return err
		}
		if err := h.calc.Validate(acct.Path, cmd.Position); err != nil {
			return err
		}

		var before int64
		if acct.CurriculumComplete {
			before, err = h.calc.ExpectedTotal(acct.Path)
		} else {
			before, err = h.calc.ExpectedBalance(acct.Path, acct.Position)
		}
		if err != nil {
			return err
		}
		after, err := h.calc.ExpectedBalance(acct.Path, cmd.Position)
		if err != nil {
			return err
		}

		res := &OverridePositionResult{From: acct.Position, To: cmd.Position}
		if delta := after - before; delta != 0 {
			note := fmt.Sprintf("position override %s -> %s", acct.Position, cmd.Position)
			if cmd.Reason != "" {
				note += ": " + cmd.Reason
			}
			entry, err := s.Ledger.RecordAdjust(ctx, acct.ID, ledger.Primary, ledger.Amount(delta),
				ledger.SourceAdmin, cmd.Position.String(), note)
			if err != nil {
				return err
			}
			if err := s.Note(ctx, entry); err != nil {
				return err
			}
			res.Adjustment = entry
		}

		acct.MoveTo(cmd.Position)
		acct.CurriculumComplete = false

		res.Unlocked, err = h.flow.Run(ctx, s, acct)
		if err != nil {
			return err
		}
		acct.Touch(s.Now)
		if err := s.Tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}
		res.Balance, err = s.Ledger.Balance(ctx, acct.ID, ledger.Primary)
		if err != nil {
			return err
		}

		s.Effects.Emit(shared.PositionChangedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventPositionChanged, acct.ID, s.Now),
			From:      res.From.String(),
			To:        res.To.String(),
			Override:  true,
		})
		s.Effects.Audit(shared.AuditRecord{
			Actor:     cmd.Actor,
			Action:    "position.override",
			AccountID: acct.ID,
			At:        s.Now,
			Details: map[string]interface{}{
				"from":       res.From.String(),
				"to":         res.To.String(),
				"adjustment": int64(after - before),
				"reason":     cmd.Reason,
			},
		})
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
