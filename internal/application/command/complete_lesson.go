package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/alem-economy/internal/application/saga"
	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/account"
	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE LESSON COMMAND
// Pays the lesson reward (with floor/ceil alternation), stage and track
// bonuses, runs the legacy conversion and evaluates achievements, all in one
// transaction.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonCommand marks the lesson at the account's current position as done.
type CompleteLessonCommand struct {
	// AccountID is the account completing the lesson.
	AccountID string

	// Expected, when set, must equal the account's current position. It guards
	// against a client completing a lesson it is not looking at.
	Expected *curriculum.Position
}

// Validate validates the command.
func (c CompleteLessonCommand) Validate() error {
	if c.AccountID == "" {
		return errors.New("complete_lesson: account_id is required")
	}
	return nil
}

// CompleteLessonResult contains the result of completing a lesson.
type CompleteLessonResult struct {
	AccountID           string
	From                curriculum.Position
	To                  curriculum.Position
	StageCompleted      bool
	TrackCompleted      bool
	CurriculumCompleted bool
	Converted           bool
	Entries             []*ledger.Entry
	Unlocked            []saga.Unlock
	Balance             ledger.Amount
}

// CompleteLessonHandler handles CompleteLessonCommand.
type CompleteLessonHandler struct {
	exec       *Executor
	calc       *curriculum.Calculator
	flow       *saga.AchievementFlow
	conversion ledger.ConversionRule
}

// NewCompleteLessonHandler creates a new handler.
func NewCompleteLessonHandler(exec *Executor, calc *curriculum.Calculator, flow *saga.AchievementFlow, conversion ledger.ConversionRule) *CompleteLessonHandler {
	return &CompleteLessonHandler{exec: exec, calc: calc, flow: flow, conversion: conversion}
}

// Handle executes the command.
func (h *CompleteLessonHandler) Handle(ctx context.Context, cmd CompleteLessonCommand) (*CompleteLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "CompleteLesson", shared.ErrValidation, "invalid command", err)
	}

	var result *CompleteLessonResult
	err := h.exec.Run(ctx, "CompleteLesson", cmd.AccountID, func(ctx context.Context, s *uow.Session) error {
		acct, err := s.Tx.Accounts().GetForUpdate(ctx, cmd.AccountID)
		if err != nil {
			return err
		}
		if err := acct.EnsureCanProgress("CompleteLesson"); err != nil {
			return err
		}
		if cmd.Expected != nil && *cmd.Expected != acct.Position {
			return shared.NewDomainError("command", "CompleteLesson", shared.ErrInvalidPosition,
				fmt.Sprintf("account is at %s, not %s", acct.Position, *cmd.Expected))
		}

		res, err := h.complete(ctx, s, acct)
		if err != nil {
			return err
		}

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
		res.Entries = s.Entries()
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (h *CompleteLessonHandler) complete(ctx context.Context, s *uow.Session, acct *account.Account) (*CompleteLessonResult, error) {
	spec, err := h.calc.Schedule().Spec(acct.Position.Track, acct.Path)
	if err != nil {
		return nil, err
	}
	adv, err := h.calc.Advance(acct.Path, acct.Position)
	if err != nil {
		return nil, err
	}

	earn := func(amount int64, source ledger.Source, note string) error {
		if amount <= 0 {
			return nil
		}
		e, err := s.Ledger.RecordEarn(ctx, acct.ID, ledger.Amount(amount), source, adv.From.String(), note)
		if err != nil {
			return err
		}
		acct.NoteEarned(e.Amount)
		return s.Note(ctx, e)
	}

	amount, flag := spec.PerUnit.Split(acct.AlternationFlag)
	acct.AlternationFlag = flag
	if err := earn(amount, ledger.SourceProgress, "lesson completed"); err != nil {
		return nil, err
	}
	if adv.StageCompleted {
		if err := earn(spec.StageBonus, ledger.SourceProgress, fmt.Sprintf("level %d completed", adv.From.Stage)); err != nil {
			return nil, err
		}
	}
	if adv.TrackCompleted {
		if err := earn(spec.TrackBonus, ledger.SourceBeltUp, fmt.Sprintf("%s completed", adv.From.Track.Title())); err != nil {
			return nil, err
		}
	}

	acct.RecordLesson()
	acct.MoveTo(adv.Next)
	if adv.CurriculumCompleted {
		acct.CompleteCurriculum()
	}

	res := &CompleteLessonResult{
		AccountID:           acct.ID,
		From:                adv.From,
		To:                  adv.Next,
		StageCompleted:      adv.StageCompleted,
		TrackCompleted:      adv.TrackCompleted,
		CurriculumCompleted: adv.CurriculumCompleted,
	}

	converted, err := h.convert(ctx, s, acct)
	if err != nil {
		return nil, err
	}
	res.Converted = converted

	s.Effects.Emit(shared.PositionChangedEvent{
		BaseEvent:      shared.NewBaseEvent(shared.EventPositionChanged, acct.ID, s.Now),
		From:           adv.From.String(),
		To:             adv.Next.String(),
		StageCompleted: adv.StageCompleted,
	})
	if adv.TrackCompleted {
		ev := shared.TrackCompletedEvent{
			BaseEvent:          shared.NewBaseEvent(shared.EventTrackCompleted, acct.ID, s.Now),
			Track:              string(adv.From.Track),
			CurriculumComplete: adv.CurriculumCompleted,
		}
		if !adv.CurriculumCompleted {
			ev.NextTrack = string(adv.Next.Track)
		}
		s.Effects.Emit(ev)
	}
	return res, nil
}

// convert applies the legacy conversion at most once per completion.
func (h *CompleteLessonHandler) convert(ctx context.Context, s *uow.Session, acct *account.Account) (bool, error) {
	legacy, err := s.Ledger.Balance(ctx, acct.ID, ledger.Legacy)
	if err != nil {
		return false, err
	}
	if !h.conversion.Applies(legacy, acct.LessonsSinceConversion) {
		return false, nil
	}

	conv, err := s.Ledger.RecordConvert(ctx, acct.ID, h.conversion)
	if err != nil {
		return false, err
	}
	if err := s.Note(ctx, conv.Debit, conv.Credit); err != nil {
		return false, err
	}
	acct.ResetConversionCounter()

	s.Effects.Emit(shared.CurrencyConvertedEvent{
		BaseEvent:       shared.NewBaseEvent(shared.EventCurrencyConverted, acct.ID, s.Now),
		LegacyDebited:   int64(-conv.Debit.Amount),
		PrimaryCredited: int64(conv.Credit.Amount),
	})
	return true, nil
}
