package uploader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_NilErrNotRetryable(t *testing.T) {
	ok, longWait := Classifier{}.Retryable(nil)
	assert.False(t, ok)
	assert.False(t, longWait)
}

func TestClassifier_TransientIsRetryable(t *testing.T) {
	ok, _ := Classifier{}.Retryable(&Error{Kind: KindTransient, Err: assert.AnError})
	assert.True(t, ok)
}

func TestClassifier_FatalIsNotRetryable(t *testing.T) {
	ok, _ := Classifier{}.Retryable(&Error{Kind: KindFatal, Err: assert.AnError})
	assert.False(t, ok)
}

func TestClassifier_UntaggedErrorStillRetried(t *testing.T) {
	ok, _ := Classifier{}.Retryable(assert.AnError)
	assert.True(t, ok)
}

func TestParseRangeEnd(t *testing.T) {
	k, err := parseRangeEnd("bytes=0-1048575")
	assert.NoError(t, err)
	assert.Equal(t, int64(1048575), k)
}

func TestParseRangeEnd_Malformed(t *testing.T) {
	_, err := parseRangeEnd("not-a-range")
	assert.Error(t, err)
}

func TestVerify_MatchingMD5AndSize(t *testing.T) {
	u := &Uploader{}
	result := &Result{RemoteMD5: "abc123", RemoteSize: 1000}
	assert.NoError(t, u.verify(result, "ABC123", 1000))
}

func TestVerify_MismatchedMD5(t *testing.T) {
	u := &Uploader{}
	result := &Result{RemoteMD5: "abc123", RemoteSize: 1000}
	assert.Error(t, u.verify(result, "def456", 1000))
}

func TestVerify_MissingRemoteMD5(t *testing.T) {
	u := &Uploader{}
	result := &Result{RemoteSize: 1000}
	assert.Error(t, u.verify(result, "abc123", 1000))
}

func TestVerify_SizeMismatchBeyondTolerance(t *testing.T) {
	u := &Uploader{}
	result := &Result{RemoteMD5: "abc123", RemoteSize: 5000}
	assert.Error(t, u.verify(result, "abc123", 1000))
}
