// Package saga contains business processes that orchestrate several domain
// operations inside one unit of work.
package saga

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/account"
	"github.com/alem-hub/alem-economy/internal/domain/achievement"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW
// Flow: Load Catalog → Load Progress → Evaluate Criteria → Unlock →
//
//	Grant Reward → Queue Notification
//
// Runs inside the caller's transaction. Counters on the account change when a
// reward is granted; the caller persists the account afterwards.
// ══════════════════════════════════════════════════════════════════════════════

// Unlock describes one achievement unlocked during a flow run.
type Unlock struct {
	Achievement *achievement.Achievement
	Progress    *achievement.Progress
	Reward      *ledger.Entry
	Manual      bool
}

// AchievementFlow evaluates and unlocks achievements for one account.
type AchievementFlow struct {
	evaluator *achievement.Evaluator
	logger    *slog.Logger
}

// NewAchievementFlow creates a new flow.
func NewAchievementFlow(evaluator *achievement.Evaluator, logger *slog.Logger) *AchievementFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &AchievementFlow{
		evaluator: evaluator,
		logger:    logger.With(slog.String("component", "achievement_flow")),
	}
}

// Run evaluates every active, automatically evaluated achievement. Already
// unlocked achievements are skipped, so repeated runs never unlock twice.
// Achievements are evaluated in catalog order and each sees the counters
// produced by earlier unlocks in the same run.
func (f *AchievementFlow) Run(ctx context.Context, s *uow.Session, acct *account.Account) ([]Unlock, error) {
	catalog, err := s.Tx.Achievements().List(ctx, achievement.ListOptions{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("achievement_flow: load catalog: %w", err)
	}
	if len(catalog) == 0 {
		return nil, nil
	}

	rows, err := s.Tx.Progress().ListByAccount(ctx, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("achievement_flow: load progress: %w", err)
	}
	byID := make(map[string]*achievement.Progress, len(rows))
	for _, p := range rows {
		byID[p.AchievementID] = p
	}

	legacy, err := s.Ledger.Balance(ctx, acct.ID, ledger.Legacy)
	if err != nil {
		return nil, err
	}

	var unlocks []Unlock
	for _, a := range catalog {
		if !a.AutoEvaluated() {
			continue
		}
		row := byID[a.ID]
		if row != nil && row.Unlocked {
			continue
		}

		res := f.evaluator.Evaluate(achievement.FactsFor(acct, legacy), a.Criteria)
		if res.Unlocked {
			u, err := f.Unlock(ctx, s, acct, a, row, "", false)
			if err != nil {
				return nil, err
			}
			unlocks = append(unlocks, u)
			continue
		}

		// hidden achievements get no row until they are unlocked
		if a.Hidden {
			continue
		}
		switch {
		case row == nil:
			row = achievement.NewProgress(acct.ID, a.ID, res.Percent, s.Now)
		case !row.SetPercent(res.Percent, s.Now):
			continue
		}
		if err := s.Tx.Progress().Upsert(ctx, row); err != nil {
			return nil, fmt.Errorf("achievement_flow: save progress: %w", err)
		}
	}

	if len(unlocks) > 0 {
		f.logger.Info("achievements unlocked",
			slog.String("account_id", acct.ID),
			slog.Int("count", len(unlocks)),
		)
	}
	return unlocks, nil
}

// Unlock moves the progress row to unlocked, grants the reward in the same
// transaction and queues the notification. row may be nil; by names the admin
// for manual awards.
func (f *AchievementFlow) Unlock(
	ctx context.Context,
	s *uow.Session,
	acct *account.Account,
	a *achievement.Achievement,
	row *achievement.Progress,
	by string,
	manual bool,
) (Unlock, error) {
	if row == nil {
		row = achievement.NewProgress(acct.ID, a.ID, 0, s.Now)
	}
	var err error
	if manual {
		err = row.Award(by, a.Category == achievement.CategoryLeaderboard, s.Now)
	} else {
		err = row.Unlock(s.Now)
	}
	if err != nil {
		return Unlock{}, err
	}
	if err := s.Tx.Progress().Upsert(ctx, row); err != nil {
		return Unlock{}, fmt.Errorf("achievement_flow: save progress: %w", err)
	}

	u := Unlock{Achievement: a, Progress: row, Manual: manual}
	if a.HasReward() {
		entry, err := s.Ledger.RecordEarn(ctx, acct.ID, a.Reward, ledger.SourceAchievement, a.ID,
			fmt.Sprintf("achievement: %s", a.Name))
		if err != nil {
			return Unlock{}, err
		}
		acct.NoteEarned(entry.Amount)
		if err := s.Note(ctx, entry); err != nil {
			return Unlock{}, err
		}
		u.Reward = entry
	}

	s.Effects.Emit(shared.AchievementUnlockedEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventAchievementUnlocked, acct.ID, s.Now),
		AchievementID: a.ID,
		Code:          a.Code,
		Name:          a.Name,
		Reward:        int64(a.Reward),
		Manual:        manual,
	})
	return u, nil
}
