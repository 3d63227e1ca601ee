package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"eggscan/internal/domain/entity"
	"eggscan/internal/domain/port"
)

// SessionService отслеживает жизненный цикл websocket-сессий.
type SessionService struct {
	repo port.SessionRepository
	now  func() time.Time
}

func NewSessionService(repo port.SessionRepository) *SessionService {
	return &SessionService{repo: repo, now: time.Now}
}

// Accept регистрирует новую сессию в состоянии accepting.
func (s *SessionService) Accept(ctx context.Context, remoteAddr string) (*entity.Session, error) {
	session := entity.NewSession(uuid.NewString(), remoteAddr, s.now())
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) SetState(ctx context.Context, id string, state entity.SessionState) error {
	return s.repo.UpdateState(ctx, id, state)
}

func (s *SessionService) Open(ctx context.Context, id string) error {
	return s.SetState(ctx, id, entity.StateOpen)
}

// Close помечает сессию закрытой и удаляет её.
func (s *SessionService) Close(ctx context.Context, id string) error {
	if err := s.repo.UpdateState(ctx, id, entity.StateClosed); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *SessionService) Get(ctx context.Context, id string) (*entity.Session, error) {
	return s.repo.Get(ctx, id)
}

// Active возвращает число активных сессий.
func (s *SessionService) Active(ctx context.Context) int {
	return s.repo.Count(ctx)
}
