package command

import (
	"context"

	"github.com/alem-hub/alem-economy/internal/application/saga"
	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// EvaluateAccountResult contains the result of an evaluation pass.
type EvaluateAccountResult struct {
	AccountID string
	Skipped   bool
	Unlocked  []saga.Unlock
}

// EvaluateAccountHandler re-runs achievement evaluation for one account. The
// periodic sweep uses it to pick up catalog changes; locked accounts are
// skipped without error.
type EvaluateAccountHandler struct {
	exec *Executor
	flow *saga.AchievementFlow
}

// NewEvaluateAccountHandler creates a new handler.
func NewEvaluateAccountHandler(exec *Executor, flow *saga.AchievementFlow) *EvaluateAccountHandler {
	return &EvaluateAccountHandler{exec: exec, flow: flow}
}

// Handle evaluates the account.
func (h *EvaluateAccountHandler) Handle(ctx context.Context, accountID string) (*EvaluateAccountResult, error) {
	if accountID == "" {
		return nil, shared.NewDomainError("command", "EvaluateAccount", shared.ErrValidation, "account_id is required")
	}

	result := &EvaluateAccountResult{AccountID: accountID}
	err := h.exec.Run(ctx, "EvaluateAccount", accountID, func(ctx context.Context, s *uow.Session) error {
		result.Skipped, result.Unlocked = false, nil

		acct, err := s.Tx.Accounts().GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if acct.Locked {
			result.Skipped = true
			return nil
		}

		unlocked, err := h.flow.Run(ctx, s, acct)
		if err != nil {
			return err
		}
		if len(unlocked) > 0 {
			acct.Touch(s.Now)
			if err := s.Tx.Accounts().Update(ctx, acct); err != nil {
				return err
			}
		}
		result.Unlocked = unlocked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
