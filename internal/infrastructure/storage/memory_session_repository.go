package storage

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"eggscan/internal/domain/entity"
	"eggscan/internal/domain/port"
)

// ErrSessionNotFound возвращается для неизвестного ID сессии.
var ErrSessionNotFound = errors.New("session not found")

// MemorySessionRepository хранит активные сессии в памяти.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entity.Session
}

// NewMemorySessionRepository создаёт пустое хранилище.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*entity.Session),
	}
}

// Save сохраняет копию сессии, заменяя прежнюю с тем же ID.
func (r *MemorySessionRepository) Save(ctx context.Context, s *entity.Session) error {
	cp := *s
	r.mu.Lock()
	r.sessions[s.ID] = &cp
	r.mu.Unlock()

	return nil
}

// Get возвращает копию сохранённой сессии.
func (r *MemorySessionRepository) Get(ctx context.Context, id string) (*entity.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, errors.Wrap(ErrSessionNotFound, id)
	}
	cp := *s
	return &cp, nil
}

// UpdateState обновляет состояние сохранённой сессии.
func (r *MemorySessionRepository) UpdateState(ctx context.Context, id string, state entity.SessionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return errors.Wrap(ErrSessionNotFound, id)
	}
	s.SetState(state)
	return nil
}

// Delete удаляет сессию. Неизвестные ID игнорируются.
func (r *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	return nil
}

// Count возвращает число активных сессий.
func (r *MemorySessionRepository) Count(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

var _ port.SessionRepository = (*MemorySessionRepository)(nil)
