// Package retry implements the exponential-backoff-with-jitter policy
// (§4.3) shared by the downloader and uploader. It is parameterizable per
// caller so download and upload can carry independent attempt bounds.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy computes retry delays: delay(attempt) = min(Max, Base*2^attempt) + U[0, 0.2*delay).
type Policy struct {
	Base     time.Duration
	Max      time.Duration
	Attempts int
	Label    string
}

// DefaultDownloadPolicy matches §4.3 defaults for the download label.
func DefaultDownloadPolicy() Policy {
	return Policy{Base: 30 * time.Second, Max: 300 * time.Second, Attempts: 10, Label: "download"}
}

// DefaultUploadPolicy matches §4.3 defaults for the upload label.
func DefaultUploadPolicy() Policy {
	return Policy{Base: 30 * time.Second, Max: 300 * time.Second, Attempts: 10, Label: "upload"}
}

// Delay returns the backoff delay before attempt N (0-indexed).
func (p Policy) Delay(attempt int) time.Duration {
	exp := float64(p.Base) * math.Pow(2, float64(attempt))
	if exp > float64(p.Max) {
		exp = float64(p.Max)
	}
	jitter := rand.Float64() * 0.2 * exp
	return time.Duration(exp + jitter)
}

// ErrExhausted is returned by Do when the policy allows no attempts
// (Attempts <= 0). When attempts run out, Do returns the last attempt's
// error instead.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Classifier decides whether an error observed by an attempt is worth
// retrying at all (e.g. a fatal 4xx should abort immediately) and whether
// it requires a longer "not-ready" style wait instead of the normal curve.
type Classifier interface {
	// Retryable reports whether err should be retried. ok=false means the
	// policy should stop immediately and return err to the caller.
	Retryable(err error) (ok bool, longWait bool)
}

// AlwaysRetryable treats every non-nil error as retryable with the normal curve.
type AlwaysRetryable struct{}

// Retryable implements Classifier.
func (AlwaysRetryable) Retryable(err error) (bool, bool) { return err != nil, false }

// Do runs fn up to p.Attempts times, sleeping p.Delay(attempt) between
// failures, honoring ctx cancellation during the sleep. A "not-ready"
// classification (longWait) sleeps a fixed long interval instead of the
// exponential curve, matching §4.1's warmup semantics.
func (p Policy) Do(ctx context.Context, logger *zap.Logger, classifier Classifier, fn func(attempt int) error) error {
	if classifier == nil {
		classifier = AlwaysRetryable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		ok, longWait := classifier.Retryable(lastErr)
		if !ok {
			return lastErr
		}
		if attempt == p.Attempts-1 {
			break
		}
		delay := p.Delay(attempt)
		if longWait {
			delay = p.Max
		}
		logger.Warn(p.Label+":retry",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if lastErr == nil {
		lastErr = ErrExhausted
	}
	return lastErr
}
