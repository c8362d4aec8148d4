package account

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

func TestNew(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	a, err := New("acc-1", "", now)
	require.NoError(t, err)
	assert.Equal(t, curriculum.DefaultPath, a.Path)
	assert.Equal(t, curriculum.StartPosition(), a.Position)
	assert.Equal(t, now, a.CreatedAt)

	_, err = New("", curriculum.DefaultPath, now)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestAccount_Guards(t *testing.T) {
	a := &Account{ID: "acc-1"}
	assert.NoError(t, a.EnsureCanProgress("CompleteLesson"))

	a.CompleteCurriculum()
	assert.True(t, errors.Is(a.EnsureCanProgress("CompleteLesson"), shared.ErrCurriculumComplete))
	assert.NoError(t, a.EnsureUnlocked("Purchase"))

	assert.True(t, a.SetLocked(true))
	assert.False(t, a.SetLocked(true))
	assert.True(t, errors.Is(a.EnsureUnlocked("Purchase"), shared.ErrAccountLocked))
	assert.True(t, errors.Is(a.EnsureCanProgress("CompleteLesson"), shared.ErrAccountLocked))
}

func TestAccount_Counters(t *testing.T) {
	a := &Account{ID: "acc-1"}

	a.RecordLesson()
	a.RecordLesson()
	assert.Equal(t, int64(2), a.LessonsCompleted)
	assert.Equal(t, 2, a.LessonsSinceConversion)
	a.ResetConversionCounter()
	assert.Equal(t, 0, a.LessonsSinceConversion)
	assert.Equal(t, int64(2), a.LessonsCompleted)

	a.NoteEarned(8)
	a.NoteEarned(-3)
	assert.EqualValues(t, 8, a.TotalEarned)

	a.NoteSpent(5)
	a.NoteSpent(0)
	assert.EqualValues(t, 5, a.TotalSpent)
	assert.Equal(t, int64(1), a.PurchasesMade)

	assert.Equal(t, 0, a.QuizAccuracy())
	a.RecordQuizAnswer(true)
	a.RecordQuizAnswer(true)
	a.RecordQuizAnswer(false)
	assert.Equal(t, int64(3), a.QuizAnswered)
	assert.Equal(t, 66, a.QuizAccuracy())
}
