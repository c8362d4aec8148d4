package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator"
	"github.com/gosimple/slug"

	"github.com/alem-hub/alem-economy/internal/application/saga"
	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/achievement"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// DefineAchievementCommand creates or replaces a catalog entry, keyed by Code.
// An empty Code is derived from Name.
type DefineAchievementCommand struct {
	Code        string               `validate:"omitempty,max=64"`
	Name        string               `validate:"required,max=128"`
	Description string               `validate:"max=1024"`
	Category    achievement.Category `validate:"required,oneof=PROGRESS QUIZ ECONOMY LEADERBOARD SPECIAL"`
	Rarity      achievement.Rarity   `validate:"omitempty,oneof=COMMON RARE EPIC LEGENDARY"`
	Icon        string
	Reward      ledger.Amount `validate:"min=0"`
	ManualOnly  bool
	Hidden      bool
	Inactive    bool
	Criteria    achievement.Criteria `validate:"-"`
}

// AwardAchievementCommand unlocks an achievement by hand.
type AwardAchievementCommand struct {
	AccountID     string
	AchievementID string
	Actor         string
	Reason        string
}

// Validate validates the command.
func (c AwardAchievementCommand) Validate() error {
	if c.AccountID == "" || c.AchievementID == "" {
		return errors.New("award_achievement: account_id and achievement_id are required")
	}
	if c.Actor == "" {
		return errors.New("award_achievement: actor is required")
	}
	return nil
}

// RevokeAchievementCommand takes an unlocked achievement back and reverses its
// reward.
type RevokeAchievementCommand struct {
	AccountID     string
	AchievementID string
	Actor         string
	Reason        string
}

// Validate validates the command.
func (c RevokeAchievementCommand) Validate() error {
	if c.AccountID == "" || c.AchievementID == "" {
		return errors.New("revoke_achievement: account_id and achievement_id are required")
	}
	if c.Actor == "" {
		return errors.New("revoke_achievement: actor is required")
	}
	return nil
}

// MarkAchievementsSeenCommand marks unlocked achievements as seen. An empty
// AchievementIDs marks every unlocked one.
type MarkAchievementsSeenCommand struct {
	AccountID      string
	AchievementIDs []string
}

// AchievementAdminHandler handles catalog and manual award commands.
type AchievementAdminHandler struct {
	exec     *Executor
	flow     *saga.AchievementFlow
	validate *validator.Validate
}

// NewAchievementAdminHandler creates a new handler.
func NewAchievementAdminHandler(exec *Executor, flow *saga.AchievementFlow) *AchievementAdminHandler {
	return &AchievementAdminHandler{exec: exec, flow: flow, validate: validator.New()}
}

// Define executes DefineAchievementCommand.
func (h *AchievementAdminHandler) Define(ctx context.Context, cmd DefineAchievementCommand) (*achievement.Achievement, error) {
	criteria, err := h.checkDefinition(&cmd)
	if err != nil {
		return nil, err
	}

	var saved *achievement.Achievement
	err = h.exec.Run(ctx, "DefineAchievement", "", func(ctx context.Context, s *uow.Session) error {
		repo := s.Tx.Achievements()
		a, err := repo.GetByCode(ctx, cmd.Code)
		switch {
		case err == nil:
		case errors.Is(err, shared.ErrAchievementNotFound):
			a = nil
		default:
			return err
		}

		isNew := a == nil
		if isNew {
			a = &achievement.Achievement{ID: h.exec.NewID(), Code: cmd.Code, CreatedAt: s.Now}
		}
		a.Name = strings.TrimSpace(cmd.Name)
		a.Description = cmd.Description
		a.Category = cmd.Category
		a.Rarity = cmd.Rarity
		a.Icon = cmd.Icon
		a.Reward = cmd.Reward
		a.ManualOnly = cmd.ManualOnly
		a.Hidden = cmd.Hidden
		a.Active = !cmd.Inactive
		a.Criteria = criteria
		a.UpdatedAt = s.Now

		if isNew {
			err = repo.Create(ctx, a)
		} else {
			err = repo.Update(ctx, a)
		}
		if err != nil {
			return err
		}
		saved = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (h *AchievementAdminHandler) checkDefinition(cmd *DefineAchievementCommand) (achievement.Criteria, error) {
	invalid := func(err error) error {
		return shared.WrapError("command", "DefineAchievement", shared.ErrValidation, "invalid achievement", err)
	}

	if err := h.validate.Struct(cmd); err != nil {
		return nil, invalid(err)
	}
	if cmd.Code == "" {
		cmd.Code = slug.Make(cmd.Name)
	}
	if !slug.IsSlug(cmd.Code) {
		return nil, invalid(fmt.Errorf("code %q is not a slug", cmd.Code))
	}
	if cmd.Rarity == "" {
		cmd.Rarity = achievement.RarityCommon
	}

	criteria := cmd.Criteria
	switch c := criteria.(type) {
	case nil:
		if !cmd.ManualOnly {
			return nil, invalid(errors.New("criteria is required unless the achievement is manual only"))
		}
		return nil, nil
	case achievement.Unknown:
		return nil, shared.Errorf("command", "DefineAchievement", shared.ErrUnknownCriteriaType,
			"criteria type %q cannot be evaluated: %s", c.TypeName, c.Reason)
	case achievement.QuizAccuracy:
		if c.MinQuestions < 1 {
			c.MinQuestions = 1
		}
		criteria = c
	}

	if err := h.validate.Struct(criteria); err != nil {
		return nil, invalid(err)
	}
	return criteria, nil
}

// SetActive enables or disables automatic evaluation of an achievement.
func (h *AchievementAdminHandler) SetActive(ctx context.Context, achievementID string, active bool) error {
	if achievementID == "" {
		return shared.NewDomainError("command", "SetAchievementActive", shared.ErrValidation, "achievement_id is required")
	}
	return h.exec.Run(ctx, "SetAchievementActive", "", func(ctx context.Context, s *uow.Session) error {
		a, err := s.Tx.Achievements().Get(ctx, achievementID)
		if err != nil {
			return err
		}
		if a.Active == active {
			return nil
		}
		a.Active = active
		a.UpdatedAt = s.Now
		return s.Tx.Achievements().Update(ctx, a)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL AWARDS
// ══════════════════════════════════════════════════════════════════════════════

// Award executes AwardAchievementCommand. The reward is granted exactly as for
// an automatic unlock; the rest of the catalog is then evaluated.
func (h *AchievementAdminHandler) Award(ctx context.Context, cmd AwardAchievementCommand) ([]saga.Unlock, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "AwardAchievement", shared.ErrValidation, "invalid command", err)
	}

	var unlocks []saga.Unlock
	err := h.exec.Run(ctx, "AwardAchievement", cmd.AccountID, func(ctx context.Context, s *uow.Session) error {
		acct, err := s.Tx.Accounts().GetForUpdate(ctx, cmd.AccountID)
		if err != nil {
			return err
		}
		if err := acct.EnsureUnlocked("AwardAchievement"); err != nil {
			return err
		}
		a, err := s.Tx.Achievements().Get(ctx, cmd.AchievementID)
		if err != nil {
			return err
		}

		row, err := s.Tx.Progress().Get(ctx, acct.ID, a.ID)
		switch {
		case err == nil:
		case errors.Is(err, shared.ErrNotFound):
			row = nil
		default:
			return err
		}
		if row != nil && row.Unlocked {
			return shared.Errorf("achievement", "Award", shared.ErrAlreadyUnlocked,
				"achievement %s is already unlocked", a.Code)
		}

		u, err := h.flow.Unlock(ctx, s, acct, a, row, cmd.Actor, true)
		if err != nil {
			return err
		}
		more, err := h.flow.Run(ctx, s, acct)
		if err != nil {
			return err
		}
		acct.Touch(s.Now)
		if err := s.Tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}

		s.Effects.Audit(shared.AuditRecord{
			Actor:     cmd.Actor,
			Action:    "achievement.award",
			AccountID: acct.ID,
			At:        s.Now,
			Details: map[string]interface{}{
				"achievement_id": a.ID,
				"code":           a.Code,
				"reward":         int64(a.Reward),
				"reason":         cmd.Reason,
			},
		})
		unlocks = append([]saga.Unlock{u}, more...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return unlocks, nil
}

// Revoke executes RevokeAchievementCommand. The progress row is deleted and
// the reward, if any, is reversed with an adjustment that may take the balance
// below zero.
func (h *AchievementAdminHandler) Revoke(ctx context.Context, cmd RevokeAchievementCommand) (*ledger.Entry, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "RevokeAchievement", shared.ErrValidation, "invalid command", err)
	}

	var reversal *ledger.Entry
	err := h.exec.Run(ctx, "RevokeAchievement", cmd.AccountID, func(ctx context.Context, s *uow.Session) error {
		acct, err := s.Tx.Accounts().GetForUpdate(ctx, cmd.AccountID)
		if err != nil {
			return err
		}
		if err := acct.EnsureUnlocked("RevokeAchievement"); err != nil {
			return err
		}
		a, err := s.Tx.Achievements().Get(ctx, cmd.AchievementID)
		if err != nil {
			return err
		}

		row, err := s.Tx.Progress().Get(ctx, acct.ID, a.ID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if row == nil || !row.Unlocked {
			return shared.Errorf("achievement", "Revoke", shared.ErrNotUnlocked,
				"achievement %s is not unlocked", a.Code)
		}
		if err := s.Tx.Progress().Delete(ctx, acct.ID, a.ID); err != nil {
			return err
		}

		if a.HasReward() {
			reversal, err = s.Ledger.RecordAdjust(ctx, acct.ID, ledger.Primary, -a.Reward,
				ledger.SourceAchievement, a.ID, fmt.Sprintf("revoked: %s", a.Name))
			if err != nil {
				return err
			}
			if err := s.Note(ctx, reversal); err != nil {
				return err
			}
		}
		acct.Touch(s.Now)
		if err := s.Tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}

		s.Effects.Emit(shared.AchievementRevokedEvent{
			BaseEvent:     shared.NewBaseEvent(shared.EventAchievementRevoked, acct.ID, s.Now),
			AchievementID: a.ID,
			Reversed:      int64(a.Reward),
		})
		s.Effects.Audit(shared.AuditRecord{
			Actor:     cmd.Actor,
			Action:    "achievement.revoke",
			AccountID: acct.ID,
			At:        s.Now,
			Details: map[string]interface{}{
				"achievement_id": a.ID,
				"code":           a.Code,
				"reversed":       int64(a.Reward),
				"reason":         cmd.Reason,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// MarkSeen executes MarkAchievementsSeenCommand and returns how many rows
// changed. Locked accounts may still mark achievements as seen.
func (h *AchievementAdminHandler) MarkSeen(ctx context.Context, cmd MarkAchievementsSeenCommand) (int, error) {
	if cmd.AccountID == "" {
		return 0, shared.NewDomainError("command", "MarkAchievementsSeen", shared.ErrValidation, "account_id is required")
	}

	want := make(map[string]bool, len(cmd.AchievementIDs))
	for _, id := range cmd.AchievementIDs {
		want[id] = true
	}

	var changed int
	err := h.exec.Run(ctx, "MarkAchievementsSeen", cmd.AccountID, func(ctx context.Context, s *uow.Session) error {
		changed = 0
		rows, err := s.Tx.Progress().ListByAccount(ctx, cmd.AccountID)
		if err != nil {
			return err
		}
		for _, p := range rows {
			if len(want) > 0 && !want[p.AchievementID] {
				continue
			}
			if !p.MarkSeen(s.Now) {
				continue
			}
			if err := s.Tx.Progress().Upsert(ctx, p); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, err
}
