package entity

import (
	"fmt"
	"time"
)

// Prediction результат классификации одного кадра. Confidence в родной
// для модели шкале вероятностей 0..1.
type Prediction struct {
	Label      string
	Confidence float64
	Box        BoundingBox
}

// FailureKind тип ошибки обработки кадра.
type FailureKind int

const (
	MalformedEnvelope FailureKind = iota + 1
	DecodeFailure
	PreprocessFailure
	InferenceFailure
	// Unexpected единственный тип, который закрывает соединение.
	Unexpected
)

func (k FailureKind) String() string {
	switch k {
	case MalformedEnvelope:
		return "malformed_envelope"
	case DecodeFailure:
		return "decode_failure"
	case PreprocessFailure:
		return "preprocess_failure"
	case InferenceFailure:
		return "inference_failure"
	case Unexpected:
		return "unexpected"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// Failure ошибка кадра с указанием типа.
type Failure struct {
	Kind FailureKind
	Err  error
}

// NewFailure оборачивает err с типом kind.
func NewFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

func (f *Failure) Error() string {
	return f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Fatal сообщает, должна ли ошибка закрыть соединение.
func (f *Failure) Fatal() bool {
	return f.Kind == Unexpected
}

// Outcome результат проверки одного кадра: Prediction или Failure,
// но не оба сразу.
type Outcome struct {
	Prediction  Prediction
	FrameWidth  int
	FrameHeight int
	Failure     *Failure
}

// Succeeded создаёт успешный результат.
func Succeeded(p Prediction, width, height int) Outcome {
	return Outcome{Prediction: p, FrameWidth: width, FrameHeight: height}
}

// Failed создаёт неуспешный результат.
func Failed(kind FailureKind, err error) Outcome {
	return Outcome{Failure: NewFailure(kind, err)}
}

// OK сообщает, содержит ли результат предсказание.
func (o Outcome) OK() bool {
	return o.Failure == nil
}

// Detection успешное предсказание, которое передаётся получателям.
type Detection struct {
	SessionID   string
	Prediction  Prediction
	FrameWidth  int
	FrameHeight int
	At          time.Time
}
