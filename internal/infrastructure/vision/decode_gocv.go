//go:build gocv
// +build gocv

package vision

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"eggscan/internal/domain/entity"
)

// decodePixels декодирует через OpenCV. OpenCV хранит пиксели в порядке BGR,
// кадр помечается так же, препроцессор переставит каналы при необходимости.
func decodePixels(data []byte) (*entity.Frame, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, errors.New("failed to decode image")
	}
	if mat.Channels() != 3 {
		return nil, errors.Errorf("unexpected channel count %d", mat.Channels())
	}

	frame := &entity.Frame{
		Width:  mat.Cols(),
		Height: mat.Rows(),
		Order:  entity.BGR,
		Pix:    mat.ToBytes(),
	}
	return frame, nil
}
