package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config содержит все настройки сервиса. Собирается один раз при старте
// и не меняется после передачи в сервисы.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Inference InferenceConfig `yaml:"inference"`
	Notify    NotifyConfig    `yaml:"notify"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig описывает HTTP-листенер и websocket-транспорт.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	WSPath          string        `yaml:"ws_path"`
	ReadLimitBytes  int64         `yaml:"read_limit_bytes"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ModelConfig указывает на сохранённую модель классификатора.
type ModelConfig struct {
	Path           string `yaml:"path"`
	MetadataPath   string `yaml:"metadata_path"`
	RuntimeLibrary string `yaml:"runtime_library"` // библиотека onnxruntime, пусто = системная
}

// InferenceConfig ограничивает работу над одним кадром.
type InferenceConfig struct {
	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
	Timeout   time.Duration `yaml:"timeout"`
	EchoImage bool          `yaml:"echo_image"`
}

// NotifyConfig включает уведомления в Telegram, если задан TelegramToken.
type NotifyConfig struct {
	TelegramToken string        `yaml:"telegram_token"`
	ChatID        int64         `yaml:"chat_id"`
	MinConfidence float64       `yaml:"min_confidence"`
	Cooldown      time.Duration `yaml:"cooldown"`
}

// MQTTConfig включает публикацию детекций, если задан Broker.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

// LogConfig задаёт уровень и режим логгера.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			WSPath:          "/ws",
			ReadLimitBytes:  8 << 20,
			PingInterval:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Model: ModelConfig{
			Path:         "model/egg_resnet50.onnx",
			MetadataPath: "model/egg_resnet50.json",
		},
		Inference: InferenceConfig{
			Workers:   2,
			QueueSize: 16,
			Timeout:   10 * time.Second,
			EchoImage: true,
		},
		Notify: NotifyConfig{
			MinConfidence: 0.8,
			Cooldown:      time.Minute,
		},
		MQTT: MQTTConfig{
			Topic:    "eggscan/detections",
			ClientID: "eggscan",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load собирает конфигурацию: значения по умолчанию, затем YAML-файл по
// path (или CONFIG_FILE), затем переменные окружения (включая .env).
func Load(path string) (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %q", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %q", path)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate возвращает первую некорректную настройку.
func (c *Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return errors.New("server address is required")
	case !strings.HasPrefix(c.Server.WSPath, "/"):
		return errors.Errorf("websocket path %q must start with /", c.Server.WSPath)
	case c.Server.ReadLimitBytes <= 0:
		return errors.New("read limit must be positive")
	case c.Model.Path == "":
		return errors.New("MODEL_PATH is required")
	case c.Model.MetadataPath == "":
		return errors.New("MODEL_METADATA_PATH is required")
	case c.Inference.Workers < 1:
		return errors.Errorf("inference workers must be >= 1, got %d", c.Inference.Workers)
	case c.Inference.QueueSize < 0:
		return errors.Errorf("inference queue size must be >= 0, got %d", c.Inference.QueueSize)
	case c.Inference.Timeout <= 0:
		return errors.New("inference timeout must be positive")
	case c.Notify.MinConfidence < 0 || c.Notify.MinConfidence > 1:
		return errors.Errorf("notify min confidence %v outside [0,1]", c.Notify.MinConfidence)
	case c.Notify.TelegramToken != "" && c.Notify.ChatID == 0:
		return errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	case c.MQTT.QoS > 2:
		return errors.Errorf("mqtt qos %d outside 0..2", c.MQTT.QoS)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	setString(&cfg.Server.Addr, "ADDR")
	setString(&cfg.Server.WSPath, "WS_PATH")
	setString(&cfg.Model.Path, "MODEL_PATH")
	setString(&cfg.Model.MetadataPath, "MODEL_METADATA_PATH")
	setString(&cfg.Model.RuntimeLibrary, "ONNXRUNTIME_LIB")
	setString(&cfg.Notify.TelegramToken, "TELEGRAM_TOKEN")
	setString(&cfg.MQTT.Broker, "MQTT_BROKER")
	setString(&cfg.MQTT.Topic, "MQTT_TOPIC")
	setString(&cfg.MQTT.ClientID, "MQTT_CLIENT_ID")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	var err error
	if cfg.Inference.Workers, err = envInt("INFERENCE_WORKERS", cfg.Inference.Workers); err != nil {
		return err
	}
	if cfg.Inference.QueueSize, err = envInt("INFERENCE_QUEUE", cfg.Inference.QueueSize); err != nil {
		return err
	}
	if cfg.Inference.Timeout, err = envDuration("INFERENCE_TIMEOUT", cfg.Inference.Timeout); err != nil {
		return err
	}
	if cfg.Inference.EchoImage, err = envBool("ECHO_IMAGE", cfg.Inference.EchoImage); err != nil {
		return err
	}
	if cfg.Notify.Cooldown, err = envDuration("NOTIFY_COOLDOWN", cfg.Notify.Cooldown); err != nil {
		return err
	}
	if cfg.Log.Development, err = envBool("LOG_DEVELOPMENT", cfg.Log.Development); err != nil {
		return err
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrap(err, "parse TELEGRAM_CHAT_ID")
		}
		cfg.Notify.ChatID = id
	}
	if v := os.Getenv("NOTIFY_MIN_CONFIDENCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, "parse NOTIFY_MIN_CONFIDENCE")
		}
		cfg.Notify.MinConfidence = f
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", key)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "parse %s", key)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", key)
	}
	return d, nil
}
