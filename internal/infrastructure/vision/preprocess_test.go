package vision

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"eggscan/internal/domain/entity"
)

func solidFrame(w, h int, order entity.ChannelOrder, c [3]uint8) *entity.Frame {
	f := entity.NewFrame(w, h, order)
	for i := 0; i < len(f.Pix); i += 3 {
		f.Pix[i], f.Pix[i+1], f.Pix[i+2] = c[0], c[1], c[2]
	}
	return f
}

func TestPreprocess_ShapeForAnyResolution(t *testing.T) {
	p := NewPreprocessor(ResNet50())
	sizes := [][2]int{{1, 1}, {224, 224}, {640, 480}, {100, 900}, {1920, 1080}, {225, 7}}

	for _, s := range sizes {
		out, err := p.Preprocess(solidFrame(s[0], s[1], entity.RGB, [3]uint8{10, 20, 30}))
		require.NoError(t, err, "size %v", s)
		require.True(t, out.Shape().Eq(tensor.Shape{1, 224, 224, 3}), "size %v got %v", s, out.Shape())
	}
}

func TestPreprocess_BGRMeanCentering(t *testing.T) {
	p := NewPreprocessor(ResNet50())

	out, err := p.Preprocess(solidFrame(300, 200, entity.RGB, [3]uint8{10, 20, 30}))
	require.NoError(t, err)

	data := out.Data().([]float32)
	// первый пиксель, порядок BGR после центрирования
	require.InDelta(t, 30-103.939, data[0], 1e-3)
	require.InDelta(t, 20-116.779, data[1], 1e-3)
	require.InDelta(t, 10-123.68, data[2], 1e-3)

	last := len(data) - 3
	require.InDelta(t, 30-103.939, data[last], 1e-3)
	require.InDelta(t, 10-123.68, data[last+2], 1e-3)
}

func TestPreprocess_BGRInputNotSwappedTwice(t *testing.T) {
	p := NewPreprocessor(ResNet50())

	fromRGB, err := p.Preprocess(solidFrame(50, 50, entity.RGB, [3]uint8{10, 20, 30}))
	require.NoError(t, err)
	fromBGR, err := p.Preprocess(solidFrame(50, 50, entity.BGR, [3]uint8{30, 20, 10}))
	require.NoError(t, err)

	require.Equal(t, fromRGB.Data(), fromBGR.Data())
}

func TestPreprocess_Deterministic(t *testing.T) {
	p := NewPreprocessor(ResNet50())
	f := entity.NewFrame(37, 91, entity.RGB)
	for i := range f.Pix {
		f.Pix[i] = uint8(i * 7)
	}

	a, err := p.Preprocess(f)
	require.NoError(t, err)
	b, err := p.Preprocess(f)
	require.NoError(t, err)
	require.Equal(t, a.Data(), b.Data())
}

func TestPreprocess_InvalidFrame(t *testing.T) {
	p := NewPreprocessor(ResNet50())
	_, err := p.Preprocess(&entity.Frame{Width: 2, Height: 2, Pix: []uint8{1}})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrShapeInvariant))
}

func TestPreprocess_BrokenResizeIsInvariantViolation(t *testing.T) {
	p := NewPreprocessor(ResNet50())
	p.resample = func(w, h uint, img image.Image) image.Image {
		return image.NewRGBA(image.Rect(0, 0, int(w), int(h)-1))
	}

	_, err := p.Preprocess(solidFrame(300, 200, entity.RGB, [3]uint8{1, 2, 3}))
	require.True(t, errors.Is(err, ErrShapeInvariant))
	require.True(t, errors.Is(err, entity.ErrInvariant))
	require.Contains(t, err.Error(), "224x223")
}

func TestPreprocess_OffsetResizeBounds(t *testing.T) {
	p := NewPreprocessor(PreprocessConfig{Size: 4, Order: entity.RGB})
	p.resample = func(w, h uint, img image.Image) image.Image {
		out := image.NewRGBA(image.Rect(10, 10, 10+int(w), 10+int(h)))
		for i := range out.Pix {
			out.Pix[i] = 9
		}
		return out
	}

	out, err := p.Preprocess(solidFrame(8, 8, entity.RGB, [3]uint8{1, 2, 3}))
	require.NoError(t, err)
	for _, v := range out.Data().([]float32) {
		require.Equal(t, float32(9), v)
	}
}
