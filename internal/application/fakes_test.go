package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"eggscan/internal/domain/entity"
	"eggscan/internal/infrastructure/vision"
)

var eggLabels = entity.Labels{"cracked", "dirty", "good"}

type fakeClassifier struct {
	probs  []float32
	err    error
	block  chan struct{}
	panics bool
	calls  int
	mu     sync.Mutex
}

func (f *fakeClassifier) Infer(ctx context.Context, input *tensor.Dense) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panics {
		panic("index out of range [3] with length 3")
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float32, len(f.probs))
	copy(out, f.probs)
	return out, nil
}

func (f *fakeClassifier) Labels() entity.Labels { return eggLabels }

func (f *fakeClassifier) Close() error { return nil }

type panicPreprocessor struct{}

func (panicPreprocessor) Preprocess(*entity.Frame) (*tensor.Dense, error) {
	panic("boom")
}

// invariantPreprocessor ведёт себя как ресайз, потерявший строку.
type invariantPreprocessor struct{}

func (invariantPreprocessor) Preprocess(*entity.Frame) (*tensor.Dense, error) {
	return nil, errors.Wrap(entity.ErrInvariant, "resized to 224x223")
}

// panicDecoder кодек, который падает на некоторых данных.
type panicDecoder struct {
	*vision.Decoder
}

func (d panicDecoder) Decode(data []byte) (*entity.Frame, error) {
	if string(data) == "evil" {
		panic("codec bug on crafted bytes")
	}
	return d.Decoder.Decode(data)
}

type recordingSink struct {
	mu   sync.Mutex
	seen []entity.Detection
}

func (r *recordingSink) Record(ctx context.Context, d entity.Detection) {
	r.mu.Lock()
	r.seen = append(r.seen, d)
	r.mu.Unlock()
}

func (r *recordingSink) detections() []entity.Detection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Detection(nil), r.seen...)
}

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
