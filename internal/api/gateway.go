// Package api открывает конвейер инспекции через websocket.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"eggscan/config"
	"eggscan/internal/container"
)

// Handler отвечает на одно сообщение. Ненулевая ошибка закрывает
// соединение, но ответ, если он есть, всё равно отправляется первым.
type Handler func(ctx context.Context, s *Session, req Request) (interface{}, error)

// Gateway принимает websocket-соединения и запускает Session для каждого.
type Gateway struct {
	cfg       config.ServerConfig
	echoImage bool
	app       *container.Container
	handlers  map[string]Handler
	upgrader  websocket.Upgrader
	logger    *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	sessions sync.WaitGroup
}

// NewGateway создаёт шлюз и реестр действий. Реестр не меняется в течение
// жизни шлюза.
func NewGateway(cfg config.ServerConfig, echoImage bool, app *container.Container, logger *zap.SugaredLogger) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		cfg:       cfg,
		echoImage: echoImage,
		app:       app,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// клиенты киоска открываются с других origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	g.handlers = map[string]Handler{
		ActionPing:            handlePing,
		ActionDefectDetection: g.handleDetection,
		ActionDefectStream:    g.handleStream,
		ActionStats:           g.handleStats,
	}
	return g
}

// Handler возвращает HTTP-маршруты: websocket и /health.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(g.cfg.WSPath, g.serveWS)
	mux.HandleFunc("GET /health", g.health)
	return mux
}

func (g *Gateway) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (g *Gateway) serveWS(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	g.sessions.Add(1)
	g.mu.Unlock()
	defer g.sessions.Done()

	info, err := g.app.SessionService.Accept(g.ctx, r.RemoteAddr)
	if err != nil {
		g.logger.Errorw("failed to register session", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader уже ответил клиенту
		g.logger.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		_ = g.app.SessionService.Close(context.Background(), info.ID)
		return
	}

	newSession(g, conn, info.ID, r.RemoteAddr).run(g.ctx)
}

// Shutdown перестаёт принимать соединения, закрывает открытые и ждёт
// завершения их сессий или окончания ctx.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.cancel()

	done := make(chan struct{})
	go func() {
		g.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
