package command

import (
	"context"
	"errors"

	"github.com/alem-hub/alem-economy/internal/application/saga"
	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// RecordQuizAnswerCommand records one answered quiz question.
type RecordQuizAnswerCommand struct {
	AccountID  string
	QuizID     string
	QuestionID string
	Correct    bool
}

// Validate validates the command.
func (c RecordQuizAnswerCommand) Validate() error {
	if c.AccountID == "" {
		return errors.New("record_quiz_answer: account_id is required")
	}
	if c.QuizID == "" {
		return errors.New("record_quiz_answer: quiz_id is required")
	}
	return nil
}

// RecordQuizAnswerResult contains the result of recording an answer.
type RecordQuizAnswerResult struct {
	Reward   *ledger.Entry
	Accuracy int
	Unlocked []saga.Unlock
}

// RecordQuizAnswerHandler handles RecordQuizAnswerCommand. Correct answers
// earn reward quarters when reward is positive.
type RecordQuizAnswerHandler struct {
	exec   *Executor
	flow   *saga.AchievementFlow
	reward ledger.Amount
}

// NewRecordQuizAnswerHandler creates a new handler.
func NewRecordQuizAnswerHandler(exec *Executor, flow *saga.AchievementFlow, reward ledger.Amount) *RecordQuizAnswerHandler {
	return &RecordQuizAnswerHandler{exec: exec, flow: flow, reward: reward}
}

// Handle executes the command.
func (h *RecordQuizAnswerHandler) Handle(ctx context.Context, cmd RecordQuizAnswerCommand) (*RecordQuizAnswerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "RecordQuizAnswer", shared.ErrValidation, "invalid command", err)
	}

	var result *RecordQuizAnswerResult
	err := h.exec.Run(ctx, "RecordQuizAnswer", cmd.AccountID, func(ctx context.Context, s *uow.Session) error {
		acct, err := s.Tx.Accounts().GetForUpdate(ctx, cmd.AccountID)
		if err != nil {
			return err
		}
		if err := acct.EnsureUnlocked("RecordQuizAnswer"); err != nil {
			return err
		}

		acct.RecordQuizAnswer(cmd.Correct)
		res := &RecordQuizAnswerResult{}

		if cmd.Correct && h.reward > 0 {
			sourceID := cmd.QuizID
			if cmd.QuestionID != "" {
				sourceID += "/" + cmd.QuestionID
			}
			entry, err := s.Ledger.RecordEarn(ctx, acct.ID, h.reward, ledger.SourceQuiz, sourceID, "correct quiz answer")
			if err != nil {
				return err
			}
			acct.NoteEarned(entry.Amount)
			if err := s.Note(ctx, entry); err != nil {
				return err
			}
			res.Reward = entry
		}

		res.Unlocked, err = h.flow.Run(ctx, s, acct)
		if err != nil {
			return err
		}
		acct.Touch(s.Now)
		if err := s.Tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}
		res.Accuracy = acct.QuizAccuracy()
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
