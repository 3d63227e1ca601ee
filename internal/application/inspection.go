package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"eggscan/internal/domain/entity"
	"eggscan/internal/domain/port"
)

// InspectionService прогоняет кадр через декодирование, препроцессинг и
// инференс и возвращает любой исход как значение.
type InspectionService struct {
	decoder      port.FrameDecoder
	preprocessor port.Preprocessor
	classifier   port.Classifier
	pool         *Pool
	timeout      time.Duration
	sinks        []port.DetectionSink
	logger       *zap.SugaredLogger
	now          func() time.Time
}

// NewInspectionService создаёт конвейер. timeout ограничивает обработку
// кадра от постановки в очередь до ответа классификатора.
func NewInspectionService(
	decoder port.FrameDecoder,
	preprocessor port.Preprocessor,
	classifier port.Classifier,
	pool *Pool,
	timeout time.Duration,
	logger *zap.SugaredLogger,
	sinks ...port.DetectionSink,
) *InspectionService {
	return &InspectionService{
		decoder:      decoder,
		preprocessor: preprocessor,
		classifier:   classifier,
		pool:         pool,
		timeout:      timeout,
		sinks:        sinks,
		logger:       logger,
		now:          time.Now,
	}
}

// Labels возвращает список классов классификатора.
func (s *InspectionService) Labels() entity.Labels {
	return s.classifier.Labels()
}

// InspectDataURL проверяет изображение в base64, возможно с префиксом
// data URL "<metadata>,".
func (s *InspectionService) InspectDataURL(ctx context.Context, sessionID, payload string) entity.Outcome {
	if payload == "" {
		return entity.Failed(entity.MalformedEnvelope, errors.New("No image data received"))
	}
	data, err := s.decoder.Unwrap(payload)
	if err != nil {
		return entity.Failed(entity.MalformedEnvelope, err)
	}
	return s.InspectBytes(ctx, sessionID, data)
}

// InspectBytes проверяет закодированный файл изображения.
func (s *InspectionService) InspectBytes(ctx context.Context, sessionID string, data []byte) entity.Outcome {
	start := s.now()

	jobCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := make(chan entity.Outcome, 1)
	err := s.pool.Do(jobCtx, func(ctx context.Context) {
		result <- s.process(ctx, data)
	})

	var out entity.Outcome
	switch {
	case err == nil:
		out = <-result
	case errors.Is(err, context.DeadlineExceeded):
		out = s.timedOut()
	case errors.Is(err, ErrPoolClosed):
		out = entity.Failed(entity.InferenceFailure, errors.New("service is shutting down"))
	default:
		out = entity.Failed(entity.InferenceFailure, errors.Wrap(err, "inspection aborted"))
	}

	if !out.OK() {
		return out
	}

	s.logger.Debugw("frame classified",
		"session_id", sessionID,
		"label", out.Prediction.Label,
		"confidence", out.Prediction.Confidence,
		"elapsed", s.now().Sub(start))

	d := entity.Detection{
		SessionID:   sessionID,
		Prediction:  out.Prediction,
		FrameWidth:  out.FrameWidth,
		FrameHeight: out.FrameHeight,
		At:          s.now(),
	}
	for _, sink := range s.sinks {
		sink.Record(ctx, d)
	}
	return out
}

// process выполняется на воркере пула. Каждый этап защищён: паника
// становится ошибкой этого этапа, и испорченный кадр стоит одного ответа
// с ошибкой, а не соединения.
func (s *InspectionService) process(ctx context.Context, data []byte) entity.Outcome {
	frame, err := guarded(s, "decode", func() (*entity.Frame, error) {
		return s.decoder.Decode(data)
	})
	if err != nil {
		return entity.Failed(entity.DecodeFailure, errors.Wrap(err, "failed to decode image"))
	}

	input, err := guarded(s, "preprocess", func() (*tensor.Dense, error) {
		return s.preprocessor.Preprocess(frame)
	})
	if err != nil {
		if errors.Is(err, entity.ErrInvariant) {
			return entity.Failed(entity.Unexpected, err)
		}
		return entity.Failed(entity.PreprocessFailure, errors.Wrap(err, "failed to preprocess image"))
	}

	p, err := guarded(s, "inference", func() (entity.Prediction, error) {
		probs, err := s.classifier.Infer(ctx, input)
		if err != nil {
			return entity.Prediction{}, errors.Wrap(err, "classifier failed")
		}
		return postprocess(probs, s.classifier.Labels())
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return s.timedOut()
		}
		return entity.Failed(entity.InferenceFailure, err)
	}
	p.Box = entity.CenteredBox(frame.Width, frame.Height)

	return entity.Succeeded(p, frame.Width, frame.Height)
}

// guarded выполняет один этап конвейера. Значение паники пишется в лог,
// вызывающий получает только общую ошибку.
func guarded[T any](s *InspectionService, stage string, fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("recovered panic in pipeline stage", "stage", stage, "panic", r, zap.Stack("stack"))
			err = errors.Errorf("internal error during %s", stage)
		}
	}()
	return fn()
}

func (s *InspectionService) timedOut() entity.Outcome {
	return entity.Failed(entity.InferenceFailure, errors.Errorf("inference timed out after %s", s.timeout))
}

// postprocess выбирает самый вероятный класс. При равенстве побеждает меньший индекс.
func postprocess(probs []float32, labels entity.Labels) (entity.Prediction, error) {
	if len(probs) == 0 || len(probs) != len(labels) {
		return entity.Prediction{}, errors.Errorf("classifier returned %d scores for %d classes", len(probs), len(labels))
	}

	best := 0
	for i, v := range probs {
		if v > probs[best] {
			best = i
		}
	}
	label, _ := labels.At(best)

	return entity.Prediction{
		Label:      label,
		Confidence: float64(probs[best]),
	}, nil
}
