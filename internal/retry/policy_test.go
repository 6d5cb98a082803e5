package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Delay_CapsAtMax(t *testing.T) {
	p := Policy{Base: time.Second, Max: 5 * time.Second, Attempts: 10}
	for attempt := 0; attempt < 10; attempt++ {
		d := p.Delay(attempt)
		assert.LessOrEqual(t, d, p.Max+time.Duration(float64(p.Max)*0.2))
	}
}

func TestPolicy_Do_SucceedsWithoutRetry(t *testing.T) {
	p := Policy{Base: time.Millisecond, Max: time.Millisecond, Attempts: 3}
	calls := 0
	err := p.Do(context.Background(), nil, nil, func(attempt int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_RetriesUntilSuccess(t *testing.T) {
	p := Policy{Base: time.Millisecond, Max: time.Millisecond, Attempts: 5}
	calls := 0
	err := p.Do(context.Background(), nil, AlwaysRetryable{}, func(attempt int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_Do_ExhaustsAttempts(t *testing.T) {
	p := Policy{Base: time.Millisecond, Max: time.Millisecond, Attempts: 3}
	calls := 0
	err := p.Do(context.Background(), nil, AlwaysRetryable{}, func(attempt int) error {
		calls++
		return errors.New("always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

type stopImmediately struct{}

func (stopImmediately) Retryable(err error) (bool, bool) { return false, false }

func TestPolicy_Do_StopsWhenClassifierSaysNotRetryable(t *testing.T) {
	p := Policy{Base: time.Millisecond, Max: time.Millisecond, Attempts: 5}
	calls := 0
	wantErr := errors.New("fatal")
	err := p.Do(context.Background(), nil, stopImmediately{}, func(attempt int) error {
		calls++
		return wantErr
	})
	assert.Equal(t, wantErr, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_HonorsContextCancellation(t *testing.T) {
	p := Policy{Base: time.Second, Max: time.Second, Attempts: 5}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Do(ctx, nil, AlwaysRetryable{}, func(attempt int) error {
		return errors.New("fails")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
