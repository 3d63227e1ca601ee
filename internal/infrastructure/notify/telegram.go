package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"eggscan/internal/domain/entity"
	"eggscan/internal/domain/port"
)

const queueSize = 32

// sender это часть tgbotapi.BotAPI, которая нужна уведомителю.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Options определяют, какие детекции превращаются в уведомления.
type Options struct {
	ChatID        int64
	MinConfidence float64
	Cooldown      time.Duration // на каждую метку
}

// TelegramNotifier отправляет уведомление в чат, когда найдено яйцо с
// дефектом. Уведомления доставляются в фоне и отбрасываются, если очередь
// заполнена.
type TelegramNotifier struct {
	api    sender
	opts   Options
	clock  clock.Clock
	logger *zap.SugaredLogger

	mu       sync.Mutex
	lastSent map[string]time.Time
	closed   bool

	queue chan entity.Detection
	wg    sync.WaitGroup
}

// NewTelegramNotifier авторизует бота и запускает цикл доставки.
func NewTelegramNotifier(token string, opts Options, logger *zap.SugaredLogger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "authorize telegram bot")
	}
	logger.Infow("telegram bot authorized", "account", api.Self.UserName, "chat_id", opts.ChatID)

	return newTelegramNotifier(api, opts, clock.New(), logger), nil
}

func newTelegramNotifier(api sender, opts Options, clk clock.Clock, logger *zap.SugaredLogger) *TelegramNotifier {
	n := &TelegramNotifier{
		api:      api,
		opts:     opts,
		clock:    clk,
		logger:   logger,
		lastSent: make(map[string]time.Time),
		queue:    make(chan entity.Detection, queueSize),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

// Record реализует port.DetectionSink.
func (n *TelegramNotifier) Record(ctx context.Context, d entity.Detection) {
	if !entity.IsDefect(d.Prediction.Label) || d.Prediction.Confidence < n.opts.MinConfidence {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	now := n.clock.Now()
	if last, ok := n.lastSent[d.Prediction.Label]; ok && now.Sub(last) < n.opts.Cooldown {
		return
	}

	select {
	case n.queue <- d:
		n.lastSent[d.Prediction.Label] = now
	default:
		n.logger.Warnw("alert queue full, dropping alert", "label", d.Prediction.Label)
	}
}

func (n *TelegramNotifier) run() {
	defer n.wg.Done()
	for d := range n.queue {
		msg := tgbotapi.NewMessage(n.opts.ChatID, alertText(d))
		if _, err := n.api.Send(msg); err != nil {
			n.logger.Warnw("failed to send alert", "label", d.Prediction.Label, "error", err)
		}
	}
}

// Close перестаёт принимать уведомления и ждёт отправки очереди.
func (n *TelegramNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	n.wg.Wait()
	return nil
}

func alertText(d entity.Detection) string {
	return fmt.Sprintf("⚠️ Defect detected: %s (%.1f%%)\nFrame: %dx%d\nSession: %s\nTime: %s",
		d.Prediction.Label,
		d.Prediction.Confidence*100,
		d.FrameWidth, d.FrameHeight,
		d.SessionID,
		d.At.Format(time.RFC3339))
}

var _ port.DetectionSink = (*TelegramNotifier)(nil)
