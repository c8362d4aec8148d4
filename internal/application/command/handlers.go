package command

import (
	"github.com/alem-hub/alem-economy/internal/application/saga"
	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
)

// Settings holds the economy parameters command handlers need.
type Settings struct {
	Conversion ledger.ConversionRule
	QuizReward ledger.Amount
}

// Handlers groups every command handler over one executor.
type Handlers struct {
	Accounts         *AccountAdminHandler
	CompleteLesson   *CompleteLessonHandler
	OverridePosition *OverridePositionHandler
	RecordQuiz       *RecordQuizAnswerHandler
	Purchase         *PurchaseHandler
	Refund           *RefundHandler
	Balances         *BalanceAdminHandler
	Achievements     *AchievementAdminHandler
	Evaluate         *EvaluateAccountHandler
	Reconcile        *ReconcileHandler
}

// NewHandlers wires all command handlers.
func NewHandlers(exec *Executor, calc *curriculum.Calculator, flow *saga.AchievementFlow, settings Settings) *Handlers {
	return &Handlers{
		Accounts:         NewAccountAdminHandler(exec, calc),
		CompleteLesson:   NewCompleteLessonHandler(exec, calc, flow, settings.Conversion),
		OverridePosition: NewOverridePositionHandler(exec, calc, flow),
		RecordQuiz:       NewRecordQuizAnswerHandler(exec, flow, settings.QuizReward),
		Purchase:         NewPurchaseHandler(exec, flow),
		Refund:           NewRefundHandler(exec),
		Balances:         NewBalanceAdminHandler(exec, flow),
		Achievements:     NewAchievementAdminHandler(exec, flow),
		Evaluate:         NewEvaluateAccountHandler(exec, flow),
		Reconcile:        NewReconcileHandler(exec),
	}
}
