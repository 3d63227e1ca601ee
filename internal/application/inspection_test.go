package app

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"eggscan/internal/domain/entity"
	"eggscan/internal/domain/port"
	"eggscan/internal/infrastructure/vision"
)

func newTestService(t *testing.T, clf *fakeClassifier, pre port.Preprocessor, sinks ...port.DetectionSink) *InspectionService {
	t.Helper()
	pool := NewPool(2, 4)
	t.Cleanup(pool.Close)
	if pre == nil {
		pre = vision.NewPreprocessor(vision.ResNet50())
	}
	return NewInspectionService(vision.NewDecoder(), pre, clf, pool, time.Second, zaptest.NewLogger(t).Sugar(), sinks...)
}

func TestInspect_Success(t *testing.T) {
	sink := &recordingSink{}
	svc := newTestService(t, &fakeClassifier{probs: []float32{0.91, 0.06, 0.03}}, nil, sink)

	out := svc.InspectDataURL(context.Background(), "s1", pngDataURL(t, 400, 300))
	require.True(t, out.OK(), "%v", out.Failure)
	require.Equal(t, "cracked", out.Prediction.Label)
	require.InDelta(t, 0.91, out.Prediction.Confidence, 1e-6)
	require.Equal(t, [4]int{100, 75, 200, 150}, out.Prediction.Box.Slice())

	seen := sink.detections()
	require.Len(t, seen, 1)
	require.Equal(t, "s1", seen[0].SessionID)
	require.Equal(t, 400, seen[0].FrameWidth)
}

func TestInspect_Deterministic(t *testing.T) {
	svc := newTestService(t, &fakeClassifier{probs: []float32{0.2, 0.3, 0.5}}, nil)
	payload := pngDataURL(t, 64, 48)

	first := svc.InspectDataURL(context.Background(), "s", payload)
	for i := 0; i < 5; i++ {
		again := svc.InspectDataURL(context.Background(), "s", payload)
		require.Equal(t, first.Prediction, again.Prediction)
	}
	require.Equal(t, "good", first.Prediction.Label)
}

func TestInspect_FailureKinds(t *testing.T) {
	svc := newTestService(t, &fakeClassifier{probs: []float32{0.2, 0.3, 0.5}}, nil)
	ctx := context.Background()

	cases := []struct {
		name    string
		payload string
		kind    entity.FailureKind
	}{
		{"empty", "", entity.MalformedEnvelope},
		{"no comma", "aGVsbG8=", entity.MalformedEnvelope},
		{"bad base64", "data:image/png;base64,@@@", entity.MalformedEnvelope},
		{"not an image", "data:image/png;base64,aGVsbG8gd29ybGQ=", entity.DecodeFailure},
	}
	for _, tc := range cases {
		out := svc.InspectDataURL(ctx, "s", tc.payload)
		require.False(t, out.OK(), tc.name)
		require.Equal(t, tc.kind, out.Failure.Kind, tc.name)
	}
}

func TestInspect_InferenceFailure(t *testing.T) {
	svc := newTestService(t, &fakeClassifier{err: errors.New("runtime gone")}, nil)

	out := svc.InspectDataURL(context.Background(), "s", pngDataURL(t, 10, 10))
	require.False(t, out.OK())
	require.Equal(t, entity.InferenceFailure, out.Failure.Kind)
	require.Contains(t, out.Failure.Error(), "runtime gone")
}

func TestInspect_WrongScoreCount(t *testing.T) {
	svc := newTestService(t, &fakeClassifier{probs: []float32{1}}, nil)

	out := svc.InspectDataURL(context.Background(), "s", pngDataURL(t, 10, 10))
	require.Equal(t, entity.InferenceFailure, out.Failure.Kind)
}

func TestInspect_Timeout(t *testing.T) {
	clf := &fakeClassifier{probs: []float32{1, 0, 0}, block: make(chan struct{})}
	defer close(clf.block)

	pool := NewPool(1, 1)
	defer pool.Close()
	svc := NewInspectionService(vision.NewDecoder(), vision.NewPreprocessor(vision.ResNet50()), clf, pool,
		30*time.Millisecond, zaptest.NewLogger(t).Sugar())

	out := svc.InspectDataURL(context.Background(), "s", pngDataURL(t, 10, 10))
	require.Equal(t, entity.InferenceFailure, out.Failure.Kind)
	require.Contains(t, out.Failure.Error(), "timed out")
}

func TestInspect_PanicsAreStageFailures(t *testing.T) {
	sink := &recordingSink{}
	pool := NewPool(1, 1)
	t.Cleanup(pool.Close)
	logger := zaptest.NewLogger(t).Sugar()
	pre := vision.NewPreprocessor(vision.ResNet50())
	ctx := context.Background()

	decodePanic := NewInspectionService(panicDecoder{vision.NewDecoder()}, pre,
		&fakeClassifier{probs: []float32{1, 0, 0}}, pool, time.Second, logger, sink)
	out := decodePanic.InspectBytes(ctx, "s", []byte("evil"))
	require.Equal(t, entity.DecodeFailure, out.Failure.Kind)
	require.False(t, out.Failure.Fatal())
	require.NotContains(t, out.Failure.Error(), "codec bug")

	// тот же сервис продолжает работать
	out = decodePanic.InspectDataURL(ctx, "s", pngDataURL(t, 10, 10))
	require.True(t, out.OK())

	prePanic := NewInspectionService(vision.NewDecoder(), panicPreprocessor{},
		&fakeClassifier{probs: []float32{1, 0, 0}}, pool, time.Second, logger, sink)
	out = prePanic.InspectDataURL(ctx, "s", pngDataURL(t, 10, 10))
	require.Equal(t, entity.PreprocessFailure, out.Failure.Kind)
	require.NotContains(t, out.Failure.Error(), "boom")

	inferPanic := NewInspectionService(vision.NewDecoder(), pre,
		&fakeClassifier{panics: true}, pool, time.Second, logger, sink)
	out = inferPanic.InspectDataURL(ctx, "s", pngDataURL(t, 10, 10))
	require.Equal(t, entity.InferenceFailure, out.Failure.Kind)
	require.NotContains(t, out.Failure.Error(), "index out of range")

	require.Len(t, sink.detections(), 1)
}

func TestInspect_ShapeInvariantIsUnexpected(t *testing.T) {
	sink := &recordingSink{}
	svc := newTestService(t, &fakeClassifier{probs: []float32{1, 0, 0}}, invariantPreprocessor{}, sink)

	out := svc.InspectDataURL(context.Background(), "s", pngDataURL(t, 10, 10))
	require.Equal(t, entity.Unexpected, out.Failure.Kind)
	require.True(t, out.Failure.Fatal())
	require.Empty(t, sink.detections())
}

func TestInspectBytes_Raw(t *testing.T) {
	svc := newTestService(t, &fakeClassifier{probs: []float32{0.1, 0.8, 0.1}}, nil)

	data, err := vision.UnwrapDataURL(pngDataURL(t, 20, 40))
	require.NoError(t, err)

	out := svc.InspectBytes(context.Background(), "s", data)
	require.True(t, out.OK())
	require.Equal(t, "dirty", out.Prediction.Label)
	require.Equal(t, 20, out.FrameWidth)
	require.Equal(t, 40, out.FrameHeight)
}

func TestPostprocess_TiesPickLowestIndex(t *testing.T) {
	p, err := postprocess([]float32{0.4, 0.4, 0.2}, eggLabels)
	require.NoError(t, err)
	require.Equal(t, "cracked", p.Label)

	_, err = postprocess(nil, eggLabels)
	require.Error(t, err)
}
