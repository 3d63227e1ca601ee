package api

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"eggscan/internal/domain/entity"
)

const writeWait = 10 * time.Second

// Session владеет одним websocket-соединением. Сообщения обрабатываются по
// одному, поэтому ответы уходят в порядке поступления кадров.
type Session struct {
	id     string
	gw     *Gateway
	conn   *websocket.Conn
	logger *zap.SugaredLogger
}

func newSession(gw *Gateway, conn *websocket.Conn, id, remote string) *Session {
	return &Session{
		id:     id,
		gw:     gw,
		conn:   conn,
		logger: gw.logger.Named("session").With("session_id", id, "remote", remote),
	}
}

// run крутит цикл, пока клиент не отключится, не случится фатальная ошибка
// или не закончится ctx. Соединение закрывается на любом пути.
func (s *Session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	})

	defer func() {
		stop()
		_ = s.conn.Close()
		messages := 0
		if info, err := s.gw.app.SessionService.Get(context.Background(), s.id); err == nil {
			messages = info.Messages
		}
		if err := s.gw.app.SessionService.Close(context.Background(), s.id); err != nil {
			s.logger.Warnw("failed to release session", "error", err)
		}
		s.logger.Infow("connection closed", "messages", messages)
	}()

	if err := s.gw.app.SessionService.Open(ctx, s.id); err != nil {
		s.logger.Debugw("failed to record session state", "state", entity.StateOpen, "error", err)
	}
	s.logger.Info("connection open")

	s.conn.SetReadLimit(s.gw.cfg.ReadLimitBytes)
	if interval := s.gw.cfg.PingInterval; interval > 0 {
		pongWait := 2 * interval
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go s.keepalive(ctx, interval)
	}

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				// закрыто через Shutdown
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				s.logger.Debugw("peer disconnected", "error", err)
			default:
				s.logger.Warnw("read failed", "error", err)
			}
			return
		}
		s.setState(ctx, entity.StateReceiving)

		s.setState(ctx, entity.StateProcessing)
		resp, fatal := s.handle(ctx, mt, data)

		s.setState(ctx, entity.StateResponding)
		if resp != nil {
			if err := s.write(resp); err != nil {
				s.logger.Warnw("write failed", "error", err)
				return
			}
		}
		if fatal != nil {
			s.logger.Errorw("closing connection after unexpected error", "error", fatal)
			return
		}
		s.setState(ctx, entity.StateOpen)
	}
}

// handle превращает одно сообщение в ответ. Паника перехватывается и
// считается фатальной.
func (s *Session) handle(ctx context.Context, mt int, data []byte) (resp interface{}, fatal error) {
	defer func() {
		if r := recover(); r != nil {
			resp = ErrorResponse{Error: msgInternal}
			fatal = errors.Errorf("panic in message handler: %v", r)
		}
	}()

	if mt == websocket.BinaryMessage {
		return s.streamResult(s.gw.app.InspectionService.InspectBytes(ctx, s.id, data))
	}

	req, err := parseRequest(data)
	if err != nil {
		if errors.Is(err, errInvalidJSON) && isRawFrame(data) {
			return s.streamResult(s.gw.app.InspectionService.InspectDataURL(ctx, s.id, string(data)))
		}
		s.logger.Warnw("rejected message", "kind", entity.MalformedEnvelope, "error", err)
		return ErrorResponse{Error: err.Error()}, nil
	}

	h, ok := s.gw.handlers[req.Action]
	if !ok {
		s.logger.Warnw("unknown action", "action", req.Action)
		return ErrorResponse{Error: msgUnknownAction}, nil
	}
	return h(ctx, s, req)
}

// failure формирует ответ на ошибку кадра. Фатальны только Unexpected.
func (s *Session) failure(f *entity.Failure) (interface{}, error) {
	if f.Fatal() {
		return ErrorResponse{Error: f.Error()}, f
	}
	s.logger.Warnw("frame failed", "kind", f.Kind, "error", f.Err)
	return ErrorResponse{Error: f.Error()}, nil
}

func (s *Session) write(v interface{}) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

func (s *Session) keepalive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.logger.Debugw("keepalive ping failed", "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) setState(ctx context.Context, state entity.SessionState) {
	if err := s.gw.app.SessionService.SetState(ctx, s.id, state); err != nil {
		s.logger.Debugw("failed to record session state", "state", state, "error", err)
	}
}
