package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeetingGuard_TryAcquireRelease(t *testing.T) {
	g := NewMeetingGuard()
	require.NoError(t, g.TryAcquire("m1"))
	assert.ErrorIs(t, g.TryAcquire("m1"), ErrInFlight)
	g.Release("m1")
	assert.NoError(t, g.TryAcquire("m1"))
}

func TestFileLocks_SerializesSamePath(t *testing.T) {
	f := NewFileLocks()
	unlock := f.Lock("/tmp/x.mp4")
	acquired := make(chan struct{})
	go func() {
		u := f.Lock("/tmp/x.mp4")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock should not acquire while first holds it")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired
}

func TestUploadSemaphore_BoundsConcurrency(t *testing.T) {
	s := NewUploadSemaphore(2)
	require.NoError(t, s.Acquire(context.Background()))
	require.NoError(t, s.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	s.Release()
	require.NoError(t, s.Acquire(context.Background()))
}

func TestRetryGuard_TryAcquireRelease(t *testing.T) {
	g := NewRetryGuard()
	assert.True(t, g.TryAcquire("k"))
	assert.False(t, g.TryAcquire("k"))
	g.Release("k")
	assert.True(t, g.TryAcquire("k"))
}
