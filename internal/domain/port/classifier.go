package port

import (
	"context"

	"gorgonia.org/tensor"

	"eggscan/internal/domain/entity"
)

// FrameDecoder превращает транспортные данные в сетку пикселей.
type FrameDecoder interface {
	// Unwrap извлекает байты изображения из строки "<metadata>,<base64>"
	Unwrap(payload string) ([]byte, error)

	// Decode декодирует файл изображения (jpeg, png, ...) из памяти
	Decode(data []byte) (*entity.Frame, error)
}

// Preprocessor превращает кадр во входной тензор классификатора.
type Preprocessor interface {
	Preprocess(frame *entity.Frame) (*tensor.Dense, error)
}

// Classifier отображает входной тензор в распределение вероятностей по
// классам модели. Реализация загружается один раз и общая для всех
// сессий.
type Classifier interface {
	// Infer возвращает по одной вероятности на класс в порядке выходного слоя
	Infer(ctx context.Context, input *tensor.Dense) ([]float32, error)

	// Labels возвращает список классов, соответствующий выходному слою
	Labels() entity.Labels

	Close() error
}
