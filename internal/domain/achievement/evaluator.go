package achievement

import (
	"log/slog"

	"github.com/alem-hub/alem-economy/internal/domain/account"
	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RULE EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

// Facts - снимок состояния аккаунта, по которому проверяются критерии.
type Facts struct {
	AccountID          string
	Path               curriculum.Path
	Position           curriculum.Position
	CurriculumComplete bool
	QuizAnswered       int64
	QuizCorrect        int64
	PurchasesMade      int64
	TotalEarned        ledger.Amount
	TotalSpent         ledger.Amount
	LegacyBalance      ledger.Amount
}

// FactsFor собирает Facts из аккаунта и legacy-баланса.
func FactsFor(a *account.Account, legacyBalance ledger.Amount) Facts {
	return Facts{
		AccountID:          a.ID,
		Path:               a.Path,
		Position:           a.Position,
		CurriculumComplete: a.CurriculumComplete,
		QuizAnswered:       a.QuizAnswered,
		QuizCorrect:        a.QuizCorrect,
		PurchasesMade:      a.PurchasesMade,
		TotalEarned:        a.TotalEarned,
		TotalSpent:         a.TotalSpent,
		LegacyBalance:      legacyBalance,
	}
}

// Result - итог проверки: выполнено ли условие и прогресс 0..100.
type Result struct {
	Unlocked bool
	Percent  int
}

var notMet = Result{}

// Evaluator проверяет критерии. Без состояния, безопасен для конкурентного использования.
type Evaluator struct {
	calc   *curriculum.Calculator
	logger *slog.Logger
}

// NewEvaluator создаёт вычислитель.
func NewEvaluator(calc *curriculum.Calculator, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{calc: calc, logger: logger}
}

// Evaluate - тотальная функция: для неизвестных и некорректных критериев
// возвращает (false, 0) и пишет предупреждение в лог.
func (e *Evaluator) Evaluate(f Facts, c Criteria) Result {
	switch c := c.(type) {
	case LessonsCompleted:
		totals, ok := e.completed(f, c)
		if !ok {
			return notMet
		}
		return threshold(int64(totals.Units), c.Threshold)

	case LevelsCompleted:
		totals, ok := e.completed(f, c)
		if !ok {
			return notMet
		}
		return threshold(int64(totals.Stages), c.Threshold)

	case BeltReached:
		target := c.Belt.Ordinal()
		if target < 0 {
			e.warn(f, c, "unknown belt")
			return notMet
		}
		if f.CurriculumComplete || f.Position.Track.Ordinal() >= target {
			return Result{Unlocked: true, Percent: 100}
		}
		return notMet

	case QuizAccuracy:
		if f.QuizAnswered >= c.MinQuestions && f.QuizCorrect*100 >= int64(c.Threshold)*f.QuizAnswered {
			return Result{Unlocked: true, Percent: 100}
		}
		var accuracy int64
		if f.QuizAnswered > 0 {
			accuracy = f.QuizCorrect * 100 / f.QuizAnswered
		}
		// Прогресс - только точность; минимум вопросов проверяется при разблокировке.
		return Result{Percent: percent(accuracy, int64(c.Threshold))}

	case TotalBuxEarned:
		return threshold(int64(f.TotalEarned), int64(ledger.Units(c.Threshold)))

	case TotalSpent:
		return threshold(int64(f.TotalSpent), int64(ledger.Units(c.Threshold)))

	case LegacyPoints:
		return threshold(int64(f.LegacyBalance), c.Threshold)

	case QuizStreak, PurchasesMade:
		e.warn(f, c, "criteria type has no evaluation rule")
		return notMet

	case Unknown:
		e.warn(f, c, c.Reason)
		return notMet

	default:
		e.warn(f, c, "unsupported criteria")
		return notMet
	}
}

func (e *Evaluator) completed(f Facts, c Criteria) (curriculum.Totals, bool) {
	totals, err := e.calc.Completed(f.Path, f.Position, f.CurriculumComplete)
	if err != nil {
		e.warn(f, c, err.Error())
		return curriculum.Totals{}, false
	}
	return totals, true
}

func (e *Evaluator) warn(f Facts, c Criteria, reason string) {
	var typ CriteriaType
	if c != nil {
		typ = c.Type()
	}
	e.logger.Warn("criteria not evaluated",
		slog.String("account_id", f.AccountID),
		slog.String("criteria_type", string(typ)),
		slog.String("reason", reason),
	)
}

func threshold(current, target int64) Result {
	if current >= target {
		return Result{Unlocked: true, Percent: 100}
	}
	return Result{Percent: percent(current, target)}
}

func percent(current, target int64) int {
	if target <= 0 {
		return 100
	}
	if current <= 0 {
		return 0
	}
	if current >= target {
		return 100
	}
	return int(current * 100 / target)
}
