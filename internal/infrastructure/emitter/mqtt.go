// Package emitter публикует детекции для внешних потребителей через MQTT.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"eggscan/config"
	"eggscan/internal/domain/entity"
	"eggscan/internal/domain/port"
)

const (
	queueSize      = 64
	publishTimeout = 2 * time.Second
	connectTimeout = 5 * time.Second
)

// client это часть mqtt.Client, которая нужна эмиттеру.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Message JSON-сообщение, публикуемое для каждой детекции.
type Message struct {
	SessionID   string  `json:"session_id"`
	Label       string  `json:"label"`
	Defect      bool    `json:"defect"`
	Confidence  float64 `json:"confidence"`
	BBox        [4]int  `json:"bbox"`
	FrameWidth  int     `json:"frame_width"`
	FrameHeight int     `json:"frame_height"`
	Timestamp   string  `json:"timestamp"`
}

// Stats счётчики эмиттера.
type Stats struct {
	Published uint64
	Dropped   uint64
	Errors    uint64
}

// MQTTEmitter публикует каждую детекцию в топик. Публикация идёт в фоновой
// горутине, медленный брокер не задерживает сессию.
type MQTTEmitter struct {
	client client
	topic  string
	qos    byte
	logger *zap.SugaredLogger

	mu     sync.Mutex
	stats  Stats
	closed bool

	queue chan Message
	wg    sync.WaitGroup
}

// Dial подключается к брокеру из конфигурации. Если брокер недоступен при
// старте, клиент продолжает попытки в фоне.
func Dial(ctx context.Context, cfg config.MQTTConfig, logger *zap.SugaredLogger) (*MQTTEmitter, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Infow("mqtt connection established", "broker", cfg.Broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warnw("mqtt connection lost, will auto-reconnect", "broker", cfg.Broker, "error", err)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return nil, errors.Wrapf(err, "connect to mqtt broker %s", cfg.Broker)
		}
	case <-time.After(connectTimeout):
		logger.Warnw("mqtt broker not reachable yet, retrying in background", "broker", cfg.Broker)
	case <-ctx.Done():
		c.Disconnect(0)
		return nil, ctx.Err()
	}

	return newMQTTEmitter(c, cfg.Topic, cfg.QoS, logger), nil
}

func newMQTTEmitter(c client, topic string, qos byte, logger *zap.SugaredLogger) *MQTTEmitter {
	e := &MQTTEmitter{
		client: c,
		topic:  topic,
		qos:    qos,
		logger: logger,
		queue:  make(chan Message, queueSize),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

// Record реализует port.DetectionSink.
func (e *MQTTEmitter) Record(ctx context.Context, d entity.Detection) {
	msg := Message{
		SessionID:   d.SessionID,
		Label:       d.Prediction.Label,
		Defect:      entity.IsDefect(d.Prediction.Label),
		Confidence:  d.Prediction.Confidence,
		BBox:        d.Prediction.Box.Slice(),
		FrameWidth:  d.FrameWidth,
		FrameHeight: d.FrameHeight,
		Timestamp:   d.At.UTC().Format(time.RFC3339Nano),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.queue <- msg:
	default:
		e.stats.Dropped++
	}
}

func (e *MQTTEmitter) run() {
	defer e.wg.Done()
	for msg := range e.queue {
		err := e.publish(msg)

		e.mu.Lock()
		if err != nil {
			e.stats.Errors++
		} else {
			e.stats.Published++
		}
		e.mu.Unlock()

		if err != nil {
			e.logger.Warnw("failed to publish detection", "topic", e.topic, "error", err)
		}
	}
}

func (e *MQTTEmitter) publish(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal detection")
	}

	token := e.client.Publish(e.topic, e.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return errors.Wrap(err, "publish")
	}

	e.logger.Debugw("detection published", "topic", e.topic, "label", msg.Label, "size", len(payload))
	return nil
}

// Stats возвращает копию счётчиков.
func (e *MQTTEmitter) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Close отправляет накопленные детекции и отключается от брокера.
func (e *MQTTEmitter) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	e.wg.Wait()
	e.client.Disconnect(250)

	st := e.Stats()
	e.logger.Infow("mqtt emitter closed", "published", st.Published, "dropped", st.Dropped, "errors", st.Errors)
	return nil
}

var _ port.DetectionSink = (*MQTTEmitter)(nil)
