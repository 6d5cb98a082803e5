package downloader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_NilErrNotRetryable(t *testing.T) {
	ok, longWait := Classifier{}.Retryable(nil)
	assert.False(t, ok)
	assert.False(t, longWait)
}

func TestClassifier_NotReadyGetsLongWait(t *testing.T) {
	ok, longWait := Classifier{}.Retryable(newErr(KindNotReady, "not ready"))
	assert.True(t, ok)
	assert.True(t, longWait)
}

func TestClassifier_TransportUsesNormalCurve(t *testing.T) {
	ok, longWait := Classifier{}.Retryable(newErr(KindTransport, "boom"))
	assert.True(t, ok)
	assert.False(t, longWait)
}

func TestClassifier_UntaggedErrorStillRetried(t *testing.T) {
	ok, longWait := Classifier{}.Retryable(errors.New("plain"))
	assert.True(t, ok)
	assert.False(t, longWait)
}

func TestKindOf_ExtractsTaggedKind(t *testing.T) {
	err := wrapErr(KindAuth, errors.New("401"))
	kind, tagged := KindOf(err)
	assert.True(t, tagged)
	assert.Equal(t, KindAuth, kind)
}

func TestKindOf_UntaggedFalse(t *testing.T) {
	_, tagged := KindOf(errors.New("plain"))
	assert.False(t, tagged)
}
