package port

import (
	"context"

	"eggscan/internal/domain/entity"
)

// SessionRepository интерфейс хранилища активных соединений
type SessionRepository interface {
	// Save сохраняет или заменяет сессию
	Save(ctx context.Context, s *entity.Session) error

	// Get возвращает сессию по ID
	Get(ctx context.Context, id string) (*entity.Session, error)

	// UpdateState обновляет состояние сохранённой сессии
	UpdateState(ctx context.Context, id string, state entity.SessionState) error

	// Delete удаляет сессию
	Delete(ctx context.Context, id string) error

	// Count возвращает число сохранённых сессий
	Count(ctx context.Context) int
}
