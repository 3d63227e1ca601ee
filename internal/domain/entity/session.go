package entity

import "time"

// SessionState состояние жизненного цикла websocket-соединения.
type SessionState string

const (
	StateAccepting  SessionState = "accepting"
	StateOpen       SessionState = "open"       // простаивает, ждёт сообщение
	StateReceiving  SessionState = "receiving"  // чтение сообщения
	StateProcessing SessionState = "processing" // декодирование, препроцессинг, инференс
	StateResponding SessionState = "responding" // запись ответа
	StateClosed     SessionState = "closed"
)

// Session описывает одно соединение, обслуживаемое шлюзом.
type Session struct {
	ID         string
	RemoteAddr string
	State      SessionState
	OpenedAt   time.Time
	Messages   int // сколько сообщений получено
}

// NewSession создаёт сессию в состоянии accepting.
func NewSession(id, remoteAddr string, now time.Time) *Session {
	return &Session{
		ID:         id,
		RemoteAddr: remoteAddr,
		State:      StateAccepting,
		OpenedAt:   now,
	}
}

// SetState переводит сессию в state. Closed конечное состояние.
func (s *Session) SetState(state SessionState) {
	if s.State == StateClosed {
		return
	}
	if state == StateReceiving {
		s.Messages++
	}
	s.State = state
}

// Closed сообщает, дошла ли сессия до конечного состояния.
func (s *Session) Closed() bool {
	return s.State == StateClosed
}
