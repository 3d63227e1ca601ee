package container

import (
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"eggscan/config"
	app "eggscan/internal/application"
	"eggscan/internal/domain/port"
	"eggscan/internal/infrastructure/storage"
)

// Container владеет сервисами приложения и всеми ресурсами, которые нужно
// освободить при остановке.
type Container struct {
	SessionService    *app.SessionService
	InspectionService *app.InspectionService
	Stats             *storage.DetectionStats

	pool       *app.Pool
	classifier port.Classifier
	closers    []io.Closer
}

// New собирает сервисы. Получатели, реализующие io.Closer, закрываются в
// Close после того, как пул опустеет.
func New(
	cfg config.InferenceConfig,
	decoder port.FrameDecoder,
	preprocessor port.Preprocessor,
	classifier port.Classifier,
	logger *zap.SugaredLogger,
	sinks ...port.DetectionSink,
) *Container {
	stats := storage.NewDetectionStats()
	pool := app.NewPool(cfg.Workers, cfg.QueueSize)

	all := append([]port.DetectionSink{stats}, sinks...)
	var closers []io.Closer
	for _, s := range sinks {
		if c, ok := s.(io.Closer); ok {
			closers = append(closers, c)
		}
	}

	return &Container{
		SessionService: app.NewSessionService(storage.NewMemorySessionRepository()),
		InspectionService: app.NewInspectionService(
			decoder, preprocessor, classifier, pool, cfg.Timeout, logger.Named("inspection"), all...),
		Stats:      stats,
		pool:       pool,
		classifier: classifier,
		closers:    closers,
	}
}

// Close дожидается пула, затем закрывает получателей и классификатор.
func (c *Container) Close() error {
	c.pool.Close()

	var err error
	for _, cl := range c.closers {
		err = multierr.Append(err, cl.Close())
	}
	return multierr.Append(err, c.classifier.Close())
}
