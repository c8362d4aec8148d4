package achievement

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

func testCalculator(t *testing.T) *curriculum.Calculator {
	t.Helper()
	var specs []curriculum.TrackSpec
	for _, track := range curriculum.Tracks() {
		specs = append(specs, curriculum.TrackSpec{
			Track:         track,
			Path:          curriculum.DefaultPath,
			UnitsPerStage: []int{8, 8},
			PerUnit:       curriculum.QuarterRate(4),
			StageBonus:    8,
		})
	}
	s, err := curriculum.NewSchedule(curriculum.DefaultPath, specs...)
	require.NoError(t, err)
	return curriculum.NewCalculator(s)
}

func newTestEvaluator(t *testing.T) (*Evaluator, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return NewEvaluator(testCalculator(t), logger), &buf
}

func TestDecodeCriteria(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Criteria
	}{
		{"lessons", `{"type":"LESSONS_COMPLETED","params":{"threshold":10}}`, LessonsCompleted{Threshold: 10}},
		{"levels", `{"type":"LEVELS_COMPLETED","params":{"threshold":2}}`, LevelsCompleted{Threshold: 2}},
		{"belt", `{"type":"BELT_REACHED","params":{"belt":"green"}}`, BeltReached{Belt: curriculum.Green}},
		{"quiz", `{"type":"QUIZ_ACCURACY","params":{"threshold":80,"minQuestions":20}}`, QuizAccuracy{Threshold: 80, MinQuestions: 20}},
		{"quiz default volume", `{"type":"QUIZ_ACCURACY","params":{"threshold":80}}`, QuizAccuracy{Threshold: 80, MinQuestions: 1}},
		{"earned", `{"type":"TOTAL_BUX_EARNED","params":{"threshold":100}}`, TotalBuxEarned{Threshold: 100}},
		{"spent", `{"type":"TOTAL_SPENT","params":{"threshold":5}}`, TotalSpent{Threshold: 5}},
		{"legacy", `{"type":"LEGACY_POINTS","params":{"threshold":50}}`, LegacyPoints{Threshold: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeCriteria([]byte(tt.raw)))
		})
	}
}

func TestDecodeCriteria_UnknownAndMalformed(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		typeName CriteriaType
	}{
		{"not json", `{{{`, ""},
		{"unrecognized tag", `{"type":"HOURS_WATCHED","params":{"threshold":1}}`, "HOURS_WATCHED"},
		{"missing params", `{"type":"LESSONS_COMPLETED"}`, TypeLessonsCompleted},
		{"wrong param type", `{"type":"LESSONS_COMPLETED","params":{"threshold":"ten"}}`, TypeLessonsCompleted},
		{"zero threshold", `{"type":"TOTAL_SPENT","params":{"threshold":0}}`, TypeTotalSpent},
		{"unknown belt", `{"type":"BELT_REACHED","params":{"belt":"PINK"}}`, TypeBeltReached},
		{"accuracy above 100", `{"type":"QUIZ_ACCURACY","params":{"threshold":120}}`, TypeQuizAccuracy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DecodeCriteria([]byte(tt.raw))
			u, ok := c.(Unknown)
			require.True(t, ok, "got %T", c)
			assert.Equal(t, tt.typeName, u.Type())
			assert.NotEmpty(t, u.Reason)
		})
	}

	assert.IsType(t, QuizStreak{}, DecodeCriteria([]byte(`{"type":"QUIZ_STREAK","params":{"days":3}}`)))
	assert.IsType(t, PurchasesMade{}, DecodeCriteria([]byte(`{"type":"PURCHASES_MADE","params":{"count":3}}`)))
}

func TestEncodeCriteria(t *testing.T) {
	raw, err := EncodeCriteria(BeltReached{Belt: curriculum.Blue})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"BELT_REACHED","params":{"belt":"BLUE"}}`, string(raw))
	assert.Equal(t, BeltReached{Belt: curriculum.Blue}, DecodeCriteria(raw))

	raw, err = EncodeCriteria(QuizStreak{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"QUIZ_STREAK"}`, string(raw))

	_, err = EncodeCriteria(nil)
	assert.Error(t, err)
}

func TestEvaluator_Evaluate(t *testing.T) {
	eval, _ := newTestEvaluator(t)

	start := Facts{Path: curriculum.DefaultPath, Position: curriculum.StartPosition()}
	afterOneLesson := start
	afterOneLesson.Position.Unit = 2

	yellow := Facts{Path: curriculum.DefaultPath, Position: curriculum.Position{Track: curriculum.Yellow, Stage: 2, Unit: 1}}

	tests := []struct {
		name     string
		facts    Facts
		criteria Criteria
		want     Result
	}{
		{"first lesson not yet", start, LessonsCompleted{Threshold: 1}, Result{}},
		{"first lesson done", afterOneLesson, LessonsCompleted{Threshold: 1}, Result{Unlocked: true, Percent: 100}},
		{"lessons partial", yellow, LessonsCompleted{Threshold: 48}, Result{Percent: 50}},
		{"levels", yellow, LevelsCompleted{Threshold: 3}, Result{Unlocked: true, Percent: 100}},
		{"levels partial", yellow, LevelsCompleted{Threshold: 6}, Result{Percent: 50}},
		{"belt reached", yellow, BeltReached{Belt: curriculum.Yellow}, Result{Unlocked: true, Percent: 100}},
		{"belt beyond", yellow, BeltReached{Belt: curriculum.White}, Result{Unlocked: true, Percent: 100}},
		{"belt ahead is all or nothing", yellow, BeltReached{Belt: curriculum.Blue}, Result{}},
		{"belt ahead on complete curriculum", Facts{Position: curriculum.StartPosition(), CurriculumComplete: true}, BeltReached{Belt: curriculum.Black}, Result{Unlocked: true, Percent: 100}},
		{
			"curriculum complete counts every lesson",
			Facts{Path: curriculum.DefaultPath, Position: curriculum.Position{Track: curriculum.Black, Stage: 2, Unit: 8}, CurriculumComplete: true},
			LessonsCompleted{Threshold: 144},
			Result{Unlocked: true, Percent: 100},
		},
		{"earned in display units", Facts{TotalEarned: ledger.Units(10)}, TotalBuxEarned{Threshold: 10}, Result{Unlocked: true, Percent: 100}},
		{"earned partial", Facts{TotalEarned: 10}, TotalBuxEarned{Threshold: 10}, Result{Percent: 25}},
		{"spent", Facts{TotalSpent: ledger.Units(3)}, TotalSpent{Threshold: 4}, Result{Percent: 75}},
		{"legacy", Facts{LegacyBalance: 60}, LegacyPoints{Threshold: 50}, Result{Unlocked: true, Percent: 100}},
		{"quiz met", Facts{QuizAnswered: 20, QuizCorrect: 16}, QuizAccuracy{Threshold: 80, MinQuestions: 20}, Result{Unlocked: true, Percent: 100}},
		{"quiz too few answers", Facts{QuizAnswered: 10, QuizCorrect: 10}, QuizAccuracy{Threshold: 80, MinQuestions: 20}, Result{Percent: 100}},
		{"quiz perfect but short of minimum", Facts{QuizAnswered: 2, QuizCorrect: 2}, QuizAccuracy{Threshold: 80, MinQuestions: 20}, Result{Percent: 100}},
		{"quiz accuracy scaled to threshold", Facts{QuizAnswered: 25, QuizCorrect: 10}, QuizAccuracy{Threshold: 80, MinQuestions: 20}, Result{Percent: 50}},
		{"quiz low accuracy", Facts{QuizAnswered: 40, QuizCorrect: 20}, QuizAccuracy{Threshold: 80, MinQuestions: 20}, Result{Percent: 62}},
		{"quiz nothing answered", Facts{}, QuizAccuracy{Threshold: 80, MinQuestions: 20}, Result{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eval.Evaluate(tt.facts, tt.criteria))
		})
	}
}

func TestEvaluator_UnsupportedCriteriaWarnAndFail(t *testing.T) {
	eval, logs := newTestEvaluator(t)
	facts := Facts{AccountID: "acc-1", TotalEarned: ledger.Units(1000), PurchasesMade: 100}

	for _, c := range []Criteria{
		QuizStreak{},
		PurchasesMade{},
		DecodeCriteria([]byte(`{"type":"HOURS_WATCHED","params":{}}`)),
		nil,
	} {
		assert.Equal(t, Result{}, eval.Evaluate(facts, c))
	}
	assert.Contains(t, logs.String(), "criteria not evaluated")
	assert.Contains(t, logs.String(), "HOURS_WATCHED")
}

func TestEvaluator_InvalidPositionIsNotMet(t *testing.T) {
	eval, logs := newTestEvaluator(t)
	facts := Facts{Path: curriculum.DefaultPath, Position: curriculum.Position{Track: curriculum.White, Stage: 9, Unit: 1}}

	assert.Equal(t, Result{}, eval.Evaluate(facts, LessonsCompleted{Threshold: 1}))
	assert.Contains(t, logs.String(), "only has 2 levels")
}

func TestProgress_StateMachine(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	p := NewProgress("acc-1", "ach-1", 140, now)
	assert.Equal(t, 100, p.Percent)
	assert.False(t, p.Unlocked)

	assert.True(t, p.SetPercent(40, now))
	assert.False(t, p.SetPercent(40, now))
	assert.False(t, p.MarkSeen(now))

	later := now.Add(time.Hour)
	require.NoError(t, p.Unlock(later))
	assert.Equal(t, later, p.UnlockedAt)
	assert.Equal(t, 100, p.Percent)

	// unlocked is terminal
	assert.False(t, p.SetPercent(10, later))
	assert.Equal(t, 100, p.Percent)
	err := p.Unlock(later)
	assert.True(t, errors.Is(err, shared.ErrAlreadyUnlocked))
	assert.True(t, errors.Is(p.Award("admin", false, later), shared.ErrAlreadyUnlocked))

	assert.True(t, p.MarkSeen(later))
	assert.False(t, p.MarkSeen(later))
}

func TestProgress_Award(t *testing.T) {
	now := time.Now()
	p := NewProgress("acc-1", "ach-1", 0, now)
	require.NoError(t, p.Award("admin-7", true, now))
	assert.True(t, p.Unlocked)
	assert.True(t, p.ManuallyAwarded)
	assert.True(t, p.IsLeaderboardBadge)
	assert.Equal(t, "admin-7", p.AwardedBy)
}

func TestVisible(t *testing.T) {
	hidden := &Achievement{Hidden: true}
	public := &Achievement{}

	assert.True(t, Visible(public, nil))
	assert.False(t, Visible(hidden, nil))
	assert.False(t, Visible(hidden, &Progress{}))
	assert.True(t, Visible(hidden, &Progress{Unlocked: true}))

	assert.True(t, (&Achievement{Active: true}).AutoEvaluated())
	assert.False(t, (&Achievement{Active: true, ManualOnly: true}).AutoEvaluated())
	assert.False(t, (&Achievement{}).AutoEvaluated())
}
