package sqlite

import (
	"context"
	"fmt"

	"github.com/alem-hub/alem-economy/internal/domain/account"
	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// AccountRepository implements account.Repository for SQLite.
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

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
		toNanos(a.CreatedAt),
		toNanos(a.UpdatedAt),
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
	return r.get(ctx, id)
}

// GetForUpdate returns an account by ID. The write lock taken at BEGIN already
// serializes writers, so no row lock is needed.
func (r *AccountRepository) GetForUpdate(ctx context.Context, id string) (*account.Account, error) {
	return r.get(ctx, id)
}

func (r *AccountRepository) get(ctx context.Context, id string) (*account.Account, error) {
	var (
		a                       account.Account
		path, track             string
		totalEarned, totalSpent int64
		createdAt, updatedAt    int64
	)
	err := r.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id).Scan(
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
		&createdAt,
		&updatedAt,
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
	a.CreatedAt = fromNanos(createdAt)
	a.UpdatedAt = fromNanos(updatedAt)
	return &a, nil
}

// Update saves an account.
func (r *AccountRepository) Update(ctx context.Context, a *account.Account) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts SET
			path = ?, track = ?, stage = ?, unit = ?,
			curriculum_complete = ?, locked = ?,
			lessons_completed = ?, lessons_since_conversion = ?,
			quiz_answered = ?, quiz_correct = ?, purchases_made = ?,
			total_earned = ?, total_spent = ?, alternation_flag = ?, updated_at = ?
		WHERE id = ?`,
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
		toNanos(a.UpdatedAt),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.Errorf("account", "Update", shared.ErrAccountNotFound, "account %s not found", a.ID)
	}
	return nil
}

// ListIDs returns up to limit account IDs greater than afterID in ascending order.
func (r *AccountRepository) ListIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id FROM accounts WHERE id > ? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
