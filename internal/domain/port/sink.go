package port

import (
	"context"

	"eggscan/internal/domain/entity"
)

// DetectionSink получает каждое успешное предсказание. Record не должен
// надолго блокировать вызывающего; медленные получатели держат свою очередь.
type DetectionSink interface {
	Record(ctx context.Context, d entity.Detection)
}
