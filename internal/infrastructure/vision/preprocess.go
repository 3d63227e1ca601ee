package vision

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"eggscan/internal/domain/entity"
	"eggscan/internal/domain/port"
)

// ErrShapeInvariant означает, что ресайз дал тензор неверной формы.
// Это ошибка в коде, а не плохой входной кадр.
var ErrShapeInvariant = errors.Wrap(entity.ErrInvariant, "preprocessed tensor has unexpected shape")

// PreprocessConfig описывает входной контракт классификатора.
type PreprocessConfig struct {
	Size  int                 // сторона квадратного входа
	Order entity.ChannelOrder // порядок каналов, на котором обучалась модель
	Mean  [3]float32          // среднее по каналу, в порядке Order
}

// ResNet50 соответствует препроцессингу Keras ResNet50 "caffe": вход в BGR,
// вычитаются средние ImageNet, без масштабирования.
func ResNet50() PreprocessConfig {
	return PreprocessConfig{
		Size:  224,
		Order: entity.BGR,
		Mean:  [3]float32{103.939, 116.779, 123.68},
	}
}

// Preprocessor превращает кадры в float32-тензоры (1, Size, Size, 3).
type Preprocessor struct {
	cfg      PreprocessConfig
	resample func(width, height uint, img image.Image) image.Image
}

// NewPreprocessor создаёт препроцессор для cfg.
func NewPreprocessor(cfg PreprocessConfig) *Preprocessor {
	return &Preprocessor{cfg: cfg, resample: bilinear}
}

func bilinear(width, height uint, img image.Image) image.Image {
	return resize.Resize(width, height, img, resize.Bilinear)
}

// Shape возвращает форму тензора, который выдаёт Preprocess.
func (p *Preprocessor) Shape() tensor.Shape {
	return tensor.Shape{1, p.cfg.Size, p.cfg.Size, 3}
}

// Preprocess переставляет каналы, растягивает кадр до Size x Size без
// сохранения пропорций, вычитает средние по каналам и добавляет измерение
// батча.
func (p *Preprocessor) Preprocess(frame *entity.Frame) (*tensor.Dense, error) {
	if !frame.Valid() {
		return nil, errors.New("frame has no pixels or inconsistent dimensions")
	}

	ordered := frame.Reorder(p.cfg.Order)
	resized := p.stretch(ordered)
	if b := resized.Bounds(); b.Dx() != p.cfg.Size || b.Dy() != p.cfg.Size {
		return nil, errors.Wrapf(ErrShapeInvariant, "resized to %dx%d, want %dx%d", b.Dx(), b.Dy(), p.cfg.Size, p.cfg.Size)
	}

	size := p.cfg.Size
	data := make([]float32, size*size*3)
	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c0, c1, c2 := channelsAt(resized, x, y)
			data[i] = float32(c0) - p.cfg.Mean[0]
			data[i+1] = float32(c1) - p.cfg.Mean[1]
			data[i+2] = float32(c2) - p.cfg.Mean[2]
			i += 3
		}
	}

	return tensor.New(tensor.WithShape(p.Shape()...), tensor.WithBacking(data)), nil
}

// stretch приводит кадр к размеру входа модели. Каналы кадра лежат в слотах
// R, G и B изображения RGBA независимо от реального порядка; билинейная
// интерполяция обрабатывает каналы независимо.
func (p *Preprocessor) stretch(frame *entity.Frame) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for src, dst := 0, 0; src < len(frame.Pix); src, dst = src+3, dst+4 {
		img.Pix[dst] = frame.Pix[src]
		img.Pix[dst+1] = frame.Pix[src+1]
		img.Pix[dst+2] = frame.Pix[src+2]
		img.Pix[dst+3] = 0xff
	}

	size := p.cfg.Size
	if frame.Width == size && frame.Height == size {
		return img
	}
	return p.resample(uint(size), uint(size), img)
}

func channelsAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	b := img.Bounds()
	x, y = b.Min.X+x, b.Min.Y+y
	if rgba, ok := img.(*image.RGBA); ok {
		i := rgba.PixOffset(x, y)
		return rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2]
	}
	r, g, bl, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(bl >> 8)
}

var _ port.Preprocessor = (*Preprocessor)(nil)
