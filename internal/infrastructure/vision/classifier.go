package vision

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
	"gorgonia.org/tensor"

	"eggscan/internal/domain/entity"
	"eggscan/internal/domain/port"
)

// ONNXClassifier запускает экспортированный классификатор яиц через
// onnxruntime. Сессия привязана к одной паре входного и выходного тензоров,
// поэтому вызовы Infer выполняются по очереди.
type ONNXClassifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	meta         Metadata
	labels       entity.Labels
}

// LoadONNXClassifier загружает модель и её метаданные. Пустой runtimeLib
// означает библиотеку onnxruntime по умолчанию.
func LoadONNXClassifier(modelPath, metadataPath, runtimeLib string) (*ONNXClassifier, error) {
	meta, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}

	if runtimeLib != "" {
		ort.SetSharedLibraryPath(runtimeLib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize ONNX environment")
	}

	c := &ONNXClassifier{meta: meta, labels: meta.Labels()}

	c.inputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "failed to create input tensor"), c.Close())
	}

	c.outputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "failed to create output tensor"), c.Close())
	}

	c.session, err = ort.NewAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{c.inputTensor}, []ort.ArbitraryTensor{c.outputTensor},
		nil)
	if err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "failed to create ONNX session for %s", modelPath), c.Close())
	}

	return c, nil
}

// Infer реализует port.Classifier.
func (c *ONNXClassifier) Infer(ctx context.Context, input *tensor.Dense) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := input.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("input tensor holds %T, want []float32", input.Data())
	}
	if len(data) != len(c.inputTensor.GetData()) {
		return nil, errors.Errorf("input tensor has %d values, model wants %d", len(data), len(c.inputTensor.GetData()))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	copy(c.inputTensor.GetData(), data)
	if err := c.session.Run(); err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}

	out := make([]float32, len(c.outputTensor.GetData()))
	copy(out, c.outputTensor.GetData())
	return out, nil
}

// Labels реализует port.Classifier.
func (c *ONNXClassifier) Labels() entity.Labels {
	return c.labels
}

func (c *ONNXClassifier) Metadata() Metadata {
	return c.meta
}

// Close освобождает сессию, тензоры и окружение onnxruntime.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.session != nil {
		err = multierr.Append(err, c.session.Destroy())
		c.session = nil
	}
	if c.inputTensor != nil {
		err = multierr.Append(err, c.inputTensor.Destroy())
		c.inputTensor = nil
	}
	if c.outputTensor != nil {
		err = multierr.Append(err, c.outputTensor.Destroy())
		c.outputTensor = nil
	}
	return multierr.Append(err, ort.DestroyEnvironment())
}

var _ port.Classifier = (*ONNXClassifier)(nil)
