package command

import (
	"context"
	"errors"

	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/account"
	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// OpenAccountCommand registers an account at the start of the curriculum.
type OpenAccountCommand struct {
	AccountID string
	Path      curriculum.Path
}

// Validate validates the command.
func (c OpenAccountCommand) Validate() error {
	if c.AccountID == "" {
		return errors.New("open_account: account_id is required")
	}
	return nil
}

// SetLockedCommand locks or unlocks an account.
type SetLockedCommand struct {
	AccountID string
	Locked    bool
	Actor     string
	Reason    string
}

// Validate validates the command.
func (c SetLockedCommand) Validate() error {
	if c.AccountID == "" {
		return errors.New("set_locked: account_id is required")
	}
	if c.Actor == "" {
		return errors.New("set_locked: actor is required")
	}
	return nil
}

// AccountAdminHandler handles account lifecycle commands.
type AccountAdminHandler struct {
	exec *Executor
	calc *curriculum.Calculator
}

// NewAccountAdminHandler creates a new handler.
func NewAccountAdminHandler(exec *Executor, calc *curriculum.Calculator) *AccountAdminHandler {
	return &AccountAdminHandler{exec: exec, calc: calc}
}

// Open executes OpenAccountCommand.
func (h *AccountAdminHandler) Open(ctx context.Context, cmd OpenAccountCommand) (*account.Account, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "OpenAccount", shared.ErrValidation, "invalid command", err)
	}

	var created *account.Account
	err := h.exec.Run(ctx, "OpenAccount", cmd.AccountID, func(ctx context.Context, s *uow.Session) error {
		acct, err := account.New(cmd.AccountID, cmd.Path, s.Now)
		if err != nil {
			return err
		}
		if err := h.calc.Validate(acct.Path, acct.Position); err != nil {
			return err
		}
		if err := s.Tx.Accounts().Create(ctx, acct); err != nil {
			return err
		}
		created = acct
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SetLocked executes SetLockedCommand. Returns whether the state changed.
func (h *AccountAdminHandler) SetLocked(ctx context.Context, cmd SetLockedCommand) (bool, error) {
	if err := cmd.Validate(); err != nil {
		return false, shared.WrapError("command", "SetLocked", shared.ErrValidation, "invalid command", err)
	}

	var changed bool
	err := h.exec.Run(ctx, "SetLocked", cmd.AccountID, func(ctx context.Context, s *uow.Session) error {
		acct, err := s.Tx.Accounts().GetForUpdate(ctx, cmd.AccountID)
		if err != nil {
			return err
		}
		changed = acct.SetLocked(cmd.Locked)
		if !changed {
			return nil
		}
		acct.Touch(s.Now)
		if err := s.Tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}

		action := "account.unlock"
		if cmd.Locked {
			action = "account.lock"
		}
		s.Effects.Emit(shared.AccountLockChangedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventAccountLockChanged, acct.ID, s.Now),
			Locked:    cmd.Locked,
		})
		s.Effects.Audit(shared.AuditRecord{
			Actor:     cmd.Actor,
			Action:    action,
			AccountID: acct.ID,
			At:        s.Now,
			Details:   map[string]interface{}{"reason": cmd.Reason},
		})
		return nil
	})
	return changed, err
}
