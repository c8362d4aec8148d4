package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/alem-economy/internal/domain/account"
	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AccountRepository implements account.Repository for PostgreSQL.
type AccountRepository struct {
	q Querier
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(q Querier) *AccountRepository {
	return &AccountRepository{q: q}
}

const accountColumns = `
	id, path, track, stage, unit, curriculum_complete, locked,
	lessons_completed, lessons_since_conversion, quiz_answered, quiz_correct,
	purchases_made, total_earned, total_spent, alternation_flag, created_at, updated_at`

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.q.Exec(ctx, query,
		a.ID,
		string(a.Path),
		string(a.Position.Track),
		a.Position.Stage,
		a.Position.Unit,
		a.CurriculumComplete,
		a.Locked,
		a.LessonsCompleted,
		a.LessonsSinceConversion,
		a.QuizAnswered,
		a.QuizCorrect,
		a.PurchasesMade,
		int64(a.TotalEarned),
		int64(a.TotalSpent),
		a.AlternationFlag,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.Errorf("account", "Create", shared.ErrAlreadyExists, "account %s already exists", a.ID)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Get returns an account by ID.
func (r *AccountRepository) Get(ctx context.Context, id string) (*account.Account, error) {
	row := r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return r.scan(row, id)
}

// GetForUpdate returns an account and locks its row until the end of the transaction.
func (r *AccountRepository) GetForUpdate(ctx context.Context, id string) (*account.Account, error) {
	row := r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return r.scan(row, id)
}

// Update updates an account.
func (r *AccountRepository) Update(ctx context.Context, a *account.Account) error {
	query := `
		UPDATE accounts SET
			path = $1,
			track = $2,
			stage = $3,
			unit = $4,
			curriculum_complete = $5,
			locked = $6,
			lessons_completed = $7,
			lessons_since_conversion = $8,
			quiz_answered = $9,
			quiz_correct = $10,
			purchases_made = $11,
			total_earned = $12,
			total_spent = $13,
			alternation_flag = $14,
			updated_at = $15
		WHERE id = $16
	`

	tag, err := r.q.Exec(ctx, query,
		string(a.Path),
		string(a.Position.Track),
		a.Position.Stage,
		a.Position.Unit,
		a.CurriculumComplete,
		a.Locked,
		a.LessonsCompleted,
		a.LessonsSinceConversion,
		a.QuizAnswered,
		a.QuizCorrect,
		a.PurchasesMade,
		int64(a.TotalEarned),
		int64(a.TotalSpent),
		a.AlternationFlag,
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.Errorf("account", "Update", shared.ErrAccountNotFound, "account %s not found", a.ID)
	}
	return nil
}

// ListIDs returns up to limit account IDs greater than afterID in ascending order.
func (r *AccountRepository) ListIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM accounts WHERE id > $1 ORDER BY id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan account ids: %w", err)
	}
	return ids, nil
}

func (r *AccountRepository) scan(row pgx.Row, id string) (*account.Account, error) {
	var (
		a                       account.Account
		path, track             string
		totalEarned, totalSpent int64
	)
	err := row.Scan(
		&a.ID,
		&path,
		&track,
		&a.Position.Stage,
		&a.Position.Unit,
		&a.CurriculumComplete,
		&a.Locked,
		&a.LessonsCompleted,
		&a.LessonsSinceConversion,
		&a.QuizAnswered,
		&a.QuizCorrect,
		&a.PurchasesMade,
		&totalEarned,
		&totalSpent,
		&a.AlternationFlag,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if notFound(err) {
			return nil, shared.Errorf("account", "Get", shared.ErrAccountNotFound, "account %s not found", id)
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	a.Path = curriculum.Path(path)
	a.Position.Track = curriculum.Track(track)
	a.TotalEarned = ledger.Amount(totalEarned)
	a.TotalSpent = ledger.Amount(totalSpent)
	return &a, nil
}
