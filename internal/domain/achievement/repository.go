package achievement

import (
	"context"
)

// ListOptions фильтрует каталог.
type ListOptions struct {
	// ActiveOnly - только активные достижения.
	ActiveOnly bool

	// IncludeManual - включать достижения, выдаваемые только вручную.
	IncludeManual bool
}

// Repository - каталог достижений.
type Repository interface {
	// Create добавляет достижение. ErrAlreadyExists при повторе кода.
	Create(ctx context.Context, a *Achievement) error

	// Update сохраняет изменённое достижение.
	Update(ctx context.Context, a *Achievement) error

	// Get возвращает достижение. ErrAchievementNotFound, если нет.
	Get(ctx context.Context, id string) (*Achievement, error)

	// GetByCode возвращает достижение по коду. ErrAchievementNotFound, если нет.
	GetByCode(ctx context.Context, code string) (*Achievement, error)

	// List возвращает каталог, упорядоченный по коду.
	List(ctx context.Context, opts ListOptions) ([]*Achievement, error)
}

// ProgressRepository хранит записи Progress.
type ProgressRepository interface {
	// Get возвращает запись. Ошибка с ErrNotFound, если записи нет.
	Get(ctx context.Context, accountID, achievementID string) (*Progress, error)

	// ListByAccount возвращает все записи аккаунта.
	ListByAccount(ctx context.Context, accountID string) ([]*Progress, error)

	// Upsert создаёт или заменяет запись.
	Upsert(ctx context.Context, p *Progress) error

	// Delete удаляет запись. Ошибка с ErrNotFound, если записи нет.
	Delete(ctx context.Context, accountID, achievementID string) error
}
