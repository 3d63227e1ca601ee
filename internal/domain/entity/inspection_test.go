package entity

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	ok := Succeeded(Prediction{Label: "good", Confidence: 0.9}, 10, 20)
	require.True(t, ok.OK())
	require.Equal(t, 10, ok.FrameWidth)

	cause := errors.New("bad bytes")
	failed := Failed(DecodeFailure, cause)
	require.False(t, failed.OK())
	require.Equal(t, DecodeFailure, failed.Failure.Kind)
	require.Equal(t, "bad bytes", failed.Failure.Error())
	require.ErrorIs(t, failed.Failure, cause)
	require.False(t, failed.Failure.Fatal())
	require.True(t, NewFailure(Unexpected, cause).Fatal())
}

func TestFailureKindString(t *testing.T) {
	require.Equal(t, "malformed_envelope", MalformedEnvelope.String())
	require.Equal(t, "inference_failure", InferenceFailure.String())
	require.Equal(t, "FailureKind(99)", FailureKind(99).String())
}
