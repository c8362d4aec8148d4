package account

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранения аккаунтов.
type Repository interface {
	// Create создаёт аккаунт.
	// Возвращает ошибку с ErrAlreadyExists, если аккаунт уже существует.
	Create(ctx context.Context, a *Account) error

	// Get возвращает аккаунт без блокировки строки.
	// Возвращает ошибку с ErrAccountNotFound, если аккаунт не найден.
	Get(ctx context.Context, id string) (*Account, error)

	// GetForUpdate возвращает аккаунт и блокирует его строку до конца транзакции.
	GetForUpdate(ctx context.Context, id string) (*Account, error)

	// Update сохраняет изменённый аккаунт.
	Update(ctx context.Context, a *Account) error

	// ListIDs возвращает до limit идентификаторов, больших afterID, по возрастанию.
	ListIDs(ctx context.Context, afterID string, limit int) ([]string, error)
}
