//go:build !gocv
// +build !gocv

package vision

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"eggscan/internal/domain/entity"
)

// decodePixels декодирует стандартными кодеками и отдаёт RGB.
func decodePixels(data []byte) (*entity.Frame, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}

	frame := entity.NewFrame(b.Dx(), b.Dy(), entity.RGB)
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := frame.Offset(x, y)
			frame.Pix[i] = c.R
			frame.Pix[i+1] = c.G
			frame.Pix[i+2] = c.B
		}
	}
	return frame, nil
}
