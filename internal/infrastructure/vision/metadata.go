package vision

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"eggscan/internal/domain/entity"
)

// Metadata описывает экспортированную модель: имена тензоров, формы и список
// классов в порядке выходного слоя. Хранится в JSON рядом с файлом модели.
type Metadata struct {
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// LoadMetadata читает и проверяет файл метаданных.
func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, errors.Wrap(err, "failed to read metadata")
	}

	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return Metadata{}, errors.Wrap(err, "failed to parse metadata")
	}
	if md.InputName == "" {
		md.InputName = "input"
	}
	if md.OutputName == "" {
		md.OutputName = "output"
	}
	if md.ImageSize == 0 {
		md.ImageSize = 224
	}
	if len(md.InputShape) == 0 {
		md.InputShape = []int64{1, int64(md.ImageSize), int64(md.ImageSize), 3}
	}
	if len(md.OutputShape) == 0 {
		md.OutputShape = []int64{1, int64(len(md.Classes))}
	}

	if err := md.validate(); err != nil {
		return Metadata{}, errors.Wrapf(err, "invalid metadata %s", path)
	}
	return md, nil
}

func (md Metadata) validate() error {
	labels, err := entity.NewLabels(md.Classes)
	if err != nil {
		return err
	}
	if !labels.Contains(entity.GoodLabel) {
		return errors.Errorf("classes %v have no %q class", md.Classes, entity.GoodLabel)
	}
	size := int64(md.ImageSize)
	want := []int64{1, size, size, 3}
	if !equalShape(md.InputShape, want) {
		return errors.Errorf("input shape %v, want %v", md.InputShape, want)
	}
	if !equalShape(md.OutputShape, []int64{1, int64(len(md.Classes))}) {
		return errors.Errorf("output shape %v does not match %d classes", md.OutputShape, len(md.Classes))
	}
	return nil
}

// Labels возвращает список классов.
func (md Metadata) Labels() entity.Labels {
	labels, _ := entity.NewLabels(md.Classes)
	return labels
}

func equalShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
