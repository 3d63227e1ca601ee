package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"eggscan/config"
	"eggscan/internal/api"
	"eggscan/internal/container"
	"eggscan/internal/domain/port"
	"eggscan/internal/infrastructure/emitter"
	"eggscan/internal/infrastructure/notify"
	"eggscan/internal/infrastructure/vision"
	"eggscan/internal/logging"
)

func main() {
	app := &cli.App{
		Name:  "eggscan",
		Usage: "classify egg frames streamed over websockets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address, overrides the configuration",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "ONNX model `FILE`, overrides the configuration",
			},
		},
		Action: serve,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("eggscan: %v", err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if model := c.String("model"); model != "" {
		cfg.Model.Path = model
	}
	return cfg, cfg.Validate()
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := logging.New("eggscan", cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Модель должна загрузиться до того, как откроется порт
	classifier, err := vision.LoadONNXClassifier(cfg.Model.Path, cfg.Model.MetadataPath, cfg.Model.RuntimeLibrary)
	if err != nil {
		return errors.Wrap(err, "failed to load classifier")
	}
	meta := classifier.Metadata()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return multierr.Append(err, classifier.Close())
	}

	pre := vision.ResNet50()
	pre.Size = meta.ImageSize

	app := container.New(cfg.Inference, vision.NewDecoder(), vision.NewPreprocessor(pre), classifier, logger, sinks...)
	logger.Infow("classifier loaded", "model", cfg.Model.Path, "classes", app.InspectionService.Labels(), "image_size", meta.ImageSize)

	gw := api.NewGateway(cfg.Server, cfg.Inference.EchoImage, app, logger.Named("gateway"))

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: gw.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("listening", "addr", cfg.Server.Addr, "ws_path", cfg.Server.WSPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		// hijacked websocket-соединения сервер не отслеживает
		err = multierr.Append(err, gw.Shutdown(shutdownCtx))
		return multierr.Append(err, app.Close())
	})

	if err := g.Wait(); err != nil {
		logger.Errorw("stopped with error", "error", err)
		return err
	}
	logger.Info("stopped")
	return nil
}

// buildSinks создаёт необязательных получателей детекций.
func buildSinks(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) ([]port.DetectionSink, error) {
	var sinks []port.DetectionSink

	if cfg.Notify.TelegramToken != "" {
		n, err := notify.NewTelegramNotifier(cfg.Notify.TelegramToken, notify.Options{
			ChatID:        cfg.Notify.ChatID,
			MinConfidence: cfg.Notify.MinConfidence,
			Cooldown:      cfg.Notify.Cooldown,
		}, logger.Named("notify"))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, n)
	}

	if cfg.MQTT.Broker != "" {
		e, err := emitter.Dial(ctx, cfg.MQTT, logger.Named("mqtt"))
		if err != nil {
			for _, s := range sinks {
				if cl, ok := s.(io.Closer); ok {
					_ = cl.Close()
				}
			}
			return nil, err
		}
		sinks = append(sinks, e)
	}

	return sinks, nil
}
