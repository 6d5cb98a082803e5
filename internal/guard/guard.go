// Package guard holds the per-process concurrency primitives of §4.4:
// an in-flight meeting set, a per-path file lock map, a bounded upload
// semaphore, and a retry-target dedup guard. All of it is process-local
// by design (§1 Non-goals: no horizontal scaling); a restart loses state.
package guard

import (
	"context"
	"sync"
)

// ErrInFlight is returned by TryAcquire when the key is already held.
var ErrInFlight = errInFlight{}

type errInFlight struct{}

func (errInFlight) Error() string { return "in-flight" }

// MeetingGuard tracks external meeting ids currently being processed.
type MeetingGuard struct {
	mu sync.Mutex
	m  map[string]struct{}
}

// NewMeetingGuard creates an empty in-flight set.
func NewMeetingGuard() *MeetingGuard {
	return &MeetingGuard{m: make(map[string]struct{})}
}

// TryAcquire claims externalMeetingID for the duration of one pipeline run.
// Returns ErrInFlight if another run already holds it.
func (g *MeetingGuard) TryAcquire(externalMeetingID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.m[externalMeetingID]; busy {
		return ErrInFlight
	}
	g.m[externalMeetingID] = struct{}{}
	return nil
}

// Release frees externalMeetingID. Always called in a finally-style scope
// by the caller, regardless of pipeline outcome (§4.7).
func (g *MeetingGuard) Release(externalMeetingID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.m, externalMeetingID)
}

// FileLocks serializes download/upload phases that touch the same local path.
type FileLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileLocks creates an empty path-lock map.
func NewFileLocks() *FileLocks {
	return &FileLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until path's single-slot mutex is free, then claims it.
// Call the returned func to release.
func (f *FileLocks) Lock(path string) func() {
	f.mu.Lock()
	l, ok := f.locks[path]
	if !ok {
		l = &sync.Mutex{}
		f.locks[path] = l
	}
	f.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// UploadSemaphore bounds concurrent uploads across all pipelines (default 3).
type UploadSemaphore struct {
	ch chan struct{}
}

// NewUploadSemaphore creates a semaphore with the given capacity.
func NewUploadSemaphore(capacity int) *UploadSemaphore {
	if capacity <= 0 {
		capacity = 3
	}
	return &UploadSemaphore{ch: make(chan struct{}, capacity)}
}

// Acquire blocks until a slot is free or ctx is done.
func (s *UploadSemaphore) Acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot.
func (s *UploadSemaphore) Release() {
	select {
	case <-s.ch:
	default:
	}
}

// RetryGuard surfaces "already-in-progress" for concurrent manual retries
// of the same target key.
type RetryGuard struct {
	mu sync.Mutex
	m  map[string]struct{}
}

// NewRetryGuard creates an empty retry-target guard.
func NewRetryGuard() *RetryGuard {
	return &RetryGuard{m: make(map[string]struct{})}
}

// TryAcquire claims key for the duration of one retry dispatch.
func (g *RetryGuard) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.m[key]; busy {
		return false
	}
	g.m[key] = struct{}{}
	return true
}

// Release frees key.
func (g *RetryGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.m, key)
}
