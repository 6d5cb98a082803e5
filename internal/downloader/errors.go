package downloader

import "errors"

// Kind is the failure taxonomy of §4.1 / §7.
type Kind int

const (
	// KindNotReady means the artifact is still being finalized upstream; retry with long backoff.
	KindNotReady Kind = iota
	// KindTransport means a network/5xx error; retry with normal backoff.
	KindTransport
	// KindInvalidArtifact means the downloaded bytes failed validation; delete partial, retry.
	KindInvalidArtifact
	// KindAuth means a 401/403 was observed; retry once after a forced token refresh.
	KindAuth
)

// Error wraps a download failure with its taxonomy kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

// Unwrap supports errors.Is/As against the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

func wrapErr(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the taxonomy kind from err, if it carries one.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// Classifier adapts the download failure taxonomy to retry.Classifier:
// KindNotReady gets the long warmup-style wait, everything else (including
// KindAuth, already retried once inline by Download) follows the normal
// exponential curve. KindInvalidArtifact is still retried since the
// partial file has already been removed by validate.
type Classifier struct{}

// Retryable implements retry.Classifier.
func (Classifier) Retryable(err error) (ok bool, longWait bool) {
	if err == nil {
		return false, false
	}
	kind, tagged := KindOf(err)
	if !tagged {
		return true, false
	}
	return true, kind == KindNotReady
}
