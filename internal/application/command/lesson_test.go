package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-economy/internal/domain/achievement"
	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

func TestCompleteLesson_AlternatesFractionalRate(t *testing.T) {
	h := newHarness(t)
	h.open("acc-1")

	var paid []ledger.Amount
	for i := 0; i < 4; i++ {
		res := h.lesson("acc-1")
		for _, e := range res.Entries {
			paid = append(paid, e.Amount)
		}
	}

	// lesson, lesson + stage bonus, lesson, lesson + stage bonus + track bonus
	assert.Equal(t, []ledger.Amount{1, 2, 2, 1, 2, 2, 8}, paid)

	acct := h.account("acc-1")
	assert.Equal(t, curriculum.Position{Track: curriculum.Yellow, Stage: 1, Unit: 1}, acct.Position)
	assert.Equal(t, int64(4), acct.LessonsCompleted)
	assert.False(t, acct.AlternationFlag)

	expected, err := h.calc.ExpectedBalance(acct.Path, acct.Position)
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(expected), h.balance("acc-1", ledger.Primary))
	assert.Equal(t, ledger.Amount(18), acct.TotalEarned)

	assert.Len(t, h.sink.eventsOf(shared.EventPositionChanged), 4)
	tracks := h.sink.eventsOf(shared.EventTrackCompleted)
	require.Len(t, tracks, 1)
	assert.Equal(t, "YELLOW", tracks[0].(shared.TrackCompletedEvent).NextTrack)
}

func TestCompleteLesson_EntriesCarrySourcePosition(t *testing.T) {
	h := newHarness(t)
	h.open("acc-1")
	h.lesson("acc-1")
	res := h.lesson("acc-1")

	require.Len(t, res.Entries, 2)
	for _, e := range res.Entries {
		assert.Equal(t, ledger.KindEarn, e.Kind)
		assert.Equal(t, ledger.SourceProgress, e.Source)
		assert.Equal(t, "WHITE/1/2", e.SourceID)
	}
	assert.True(t, res.StageCompleted)
	assert.False(t, res.TrackCompleted)
	assert.Equal(t, ledger.Amount(5), res.Balance)
}

func TestCompleteLesson_FirstLessonUnlocksAchievement(t *testing.T) {
	h := newHarness(t)
	h.open("acc-1")
	first := h.define(DefineAchievementCommand{
		Name:     "First Lesson",
		Category: achievement.CategoryProgress,
		Reward:   ledger.Units(1),
		Criteria: achievement.LessonsCompleted{Threshold: 1},
	})
	assert.Equal(t, "first-lesson", first.Code)

	res := h.lesson("acc-1")
	require.Len(t, res.Unlocked, 1)
	assert.Equal(t, first.ID, res.Unlocked[0].Achievement.ID)
	require.NotNil(t, res.Unlocked[0].Reward)
	assert.Equal(t, ledger.SourceAchievement, res.Unlocked[0].Reward.Source)
	assert.Equal(t, ledger.Amount(5), res.Balance)

	acct := h.account("acc-1")
	assert.Equal(t, ledger.Amount(5), acct.TotalEarned)

	rows := h.progress("acc-1")
	require.Contains(t, rows, first.ID)
	assert.True(t, rows[first.ID].Unlocked)
	assert.False(t, rows[first.ID].Seen)

	unlocked := h.sink.eventsOf(shared.EventAchievementUnlocked)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "first-lesson", unlocked[0].(shared.AchievementUnlockedEvent).Code)
}

func TestCompleteLesson_UnlockIsMonotonic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.open("acc-1")
	first := h.define(DefineAchievementCommand{
		Name:     "First Lesson",
		Category: achievement.CategoryProgress,
		Reward:   ledger.Units(1),
		Criteria: achievement.LessonsCompleted{Threshold: 1},
	})
	h.lesson("acc-1")

	// moving back below the threshold does not take the achievement away
	_, err := h.handlers.OverridePosition.Handle(ctx, OverridePositionCommand{
		AccountID: "acc-1",
		Position:  curriculum.StartPosition(),
		Actor:     "admin",
	})
	require.NoError(t, err)
	assert.True(t, h.progress("acc-1")[first.ID].Unlocked)

	ev, err := h.handlers.Evaluate.Handle(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, ev.Unlocked)

	res := h.lesson("acc-1")
	assert.Empty(t, res.Unlocked)

	var rewards int
	for _, e := range h.entries("acc-1", ledger.Primary) {
		if e.Source == ledger.SourceAchievement {
			rewards++
		}
	}
	assert.Equal(t, 1, rewards)
	assert.Len(t, h.sink.eventsOf(shared.EventAchievementUnlocked), 1)
}

func TestCompleteLesson_HiddenAchievementHasNoProgressRow(t *testing.T) {
	h := newHarness(t)
	h.open("acc-1")
	visible := h.define(DefineAchievementCommand{
		Name: "Three Lessons", Category: achievement.CategoryProgress,
		Criteria: achievement.LessonsCompleted{Threshold: 3},
	})
	hidden := h.define(DefineAchievementCommand{
		Name: "Secret Three", Category: achievement.CategorySpecial, Hidden: true,
		Criteria: achievement.LessonsCompleted{Threshold: 3},
	})

	h.lesson("acc-1")
	rows := h.progress("acc-1")
	require.Contains(t, rows, visible.ID)
	assert.Equal(t, 33, rows[visible.ID].Percent)
	assert.NotContains(t, rows, hidden.ID)

	h.lesson("acc-1")
	res := h.lesson("acc-1")
	assert.Len(t, res.Unlocked, 2)

	rows = h.progress("acc-1")
	assert.True(t, rows[visible.ID].Unlocked)
	assert.True(t, rows[hidden.ID].Unlocked)
}

func TestCompleteLesson_ConvertsLegacyPoints(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.open("acc-1")

	_, err := h.handlers.Balances.GrantLegacy(ctx, GrantLegacyCommand{
		AccountID: "acc-1", Points: 15, Source: ledger.SourceImport, Actor: "import",
	})
	require.NoError(t, err)

	res := h.lesson("acc-1")
	assert.False(t, res.Converted)

	res = h.lesson("acc-1")
	assert.True(t, res.Converted)
	assert.Equal(t, ledger.Amount(5), h.balance("acc-1", ledger.Legacy))

	acct := h.account("acc-1")
	assert.Equal(t, 0, acct.LessonsSinceConversion)
	// conversion credits the balance but is not counted as earnings
	assert.Equal(t, ledger.Amount(5), acct.TotalEarned)
	assert.Equal(t, ledger.Amount(9), h.balance("acc-1", ledger.Primary))

	converted := h.sink.eventsOf(shared.EventCurrencyConverted)
	require.Len(t, converted, 1)
	assert.Equal(t, int64(10), converted[0].(shared.CurrencyConvertedEvent).LegacyDebited)
	assert.Equal(t, int64(4), converted[0].(shared.CurrencyConvertedEvent).PrimaryCredited)

	h.lesson("acc-1")
	res = h.lesson("acc-1")
	assert.False(t, res.Converted, "5 points are below the conversion cost")
}

func TestCompleteLesson_ExpectedPositionMismatch(t *testing.T) {
	h := newHarness(t)
	h.open("acc-1")

	wrong := curriculum.Position{Track: curriculum.White, Stage: 2, Unit: 1}
	_, err := h.handlers.CompleteLesson.Handle(context.Background(), CompleteLessonCommand{
		AccountID: "acc-1", Expected: &wrong,
	})
	assert.ErrorIs(t, err, shared.ErrInvalidPosition)
	assert.Empty(t, h.entries("acc-1", ledger.Primary))
	assert.Equal(t, curriculum.StartPosition(), h.account("acc-1").Position)
}

func TestCompleteLesson_FinalLessonCompletesCurriculum(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.open("acc-1")

	last := curriculum.Position{Track: curriculum.Black, Stage: 2, Unit: 2}
	over, err := h.handlers.OverridePosition.Handle(ctx, OverridePositionCommand{
		AccountID: "acc-1", Position: last, Actor: "admin", Reason: "transfer",
	})
	require.NoError(t, err)
	require.NotNil(t, over.Adjustment)
	assert.Equal(t, ledger.KindAdjust, over.Adjustment.Kind)
	assert.Equal(t, h.expected(last)-h.expected(curriculum.StartPosition()), over.Adjustment.Amount)

	res := h.lesson("acc-1")
	assert.True(t, res.CurriculumCompleted)
	assert.True(t, res.TrackCompleted)

	total, err := h.calc.ExpectedTotal(curriculum.DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(total), h.balance("acc-1", ledger.Primary))
	assert.True(t, h.account("acc-1").CurriculumComplete)

	_, err = h.handlers.CompleteLesson.Handle(ctx, CompleteLessonCommand{AccountID: "acc-1"})
	assert.ErrorIs(t, err, shared.ErrCurriculumComplete)
}

func TestCompleteLesson_UnknownAccount(t *testing.T) {
	h := newHarness(t)
	_, err := h.handlers.CompleteLesson.Handle(context.Background(), CompleteLessonCommand{AccountID: "ghost"})
	assert.ErrorIs(t, err, shared.ErrAccountNotFound)

	_, err = h.handlers.CompleteLesson.Handle(context.Background(), CompleteLessonCommand{})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestOverridePosition_RejectsInvalidPosition(t *testing.T) {
	h := newHarness(t)
	h.open("acc-1")

	_, err := h.handlers.OverridePosition.Handle(context.Background(), OverridePositionCommand{
		AccountID: "acc-1",
		Position:  curriculum.Position{Track: curriculum.White, Stage: 3, Unit: 1},
		Actor:     "admin",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidPosition)
	assert.Empty(t, h.entries("acc-1", ledger.Primary))
}

func TestOverridePosition_AdjustsByExpectedBalanceDelta(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.open("acc-1")

	steps := []struct {
		name string
		to   curriculum.Position
	}{
		{"forward", curriculum.Position{Track: curriculum.Yellow, Stage: 2, Unit: 1}},
		{"backward", curriculum.Position{Track: curriculum.White, Stage: 2, Unit: 1}},
	}
	from := curriculum.StartPosition()
	for _, step := range steps {
		over, err := h.handlers.OverridePosition.Handle(ctx, OverridePositionCommand{
			AccountID: "acc-1", Position: step.to, Actor: "admin",
		})
		require.NoError(t, err, step.name)
		require.NotNil(t, over.Adjustment, step.name)

		assert.Equal(t, ledger.KindAdjust, over.Adjustment.Kind, step.name)
		assert.Equal(t, h.expected(step.to)-h.expected(from), over.Adjustment.Amount, step.name)
		assert.Equal(t, h.expected(step.to), h.balance("acc-1", ledger.Primary), step.name)
		assert.Equal(t, from, over.From, step.name)
		from = step.to
	}

	assert.Len(t, h.entries("acc-1", ledger.Primary), 2)

	// same position: nothing to adjust
	over, err := h.handlers.OverridePosition.Handle(ctx, OverridePositionCommand{
		AccountID: "acc-1", Position: from, Actor: "admin",
	})
	require.NoError(t, err)
	assert.Nil(t, over.Adjustment)
}
