// Package courses implements the Course Resolver (C5): cascading
// match strategies plus normalized-variant and progressive-truncation
// fallbacks, per §4.5, backed by a TTL cache of per-name lookup results.
package courses

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edurecord/pipeline/internal/cache"
	"github.com/edurecord/pipeline/internal/lms"
)

// ErrNoCourseResolved is returned when every strategy and fallback fails
// and no default course id is configured.
var ErrNoCourseResolved = errors.New("courses: no-course-resolved")

const coursesCacheKeyPrefix = "courses:lookup:"

// Resolver maps a meeting topic to a numeric course id.
type Resolver struct {
	lms            *lms.Client
	cache          *cache.Store
	cacheTTL       time.Duration
	defaultCourseID *int64
	logger         *zap.Logger
}

// New creates a Course Resolver.
func New(lmsClient *lms.Client, cacheStore *cache.Store, cacheTTL time.Duration, defaultCourseID *int64, logger *zap.Logger) *Resolver {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{lms: lmsClient, cache: cacheStore, cacheTTL: cacheTTL, defaultCourseID: defaultCourseID, logger: logger}
}

// Resolve implements §4.5's full cascade: exact match, field lookups,
// free-text search, then the same cascade against normalized variants,
// then progressive right-truncation, then the configured default.
func (r *Resolver) Resolve(ctx context.Context, topic string) (int64, error) {
	if id, ok := r.tryCachedOrLive(ctx, topic); ok {
		return id, nil
	}

	for _, variant := range normalizedVariants(topic) {
		if variant == topic || variant == "" {
			continue
		}
		if id, ok := r.tryCachedOrLive(ctx, variant); ok {
			return id, nil
		}
	}

	for _, truncated := range progressiveTruncations(topic) {
		if id, ok := r.tryCachedOrLive(ctx, truncated); ok {
			return id, nil
		}
	}

	if r.defaultCourseID != nil {
		r.logger.Info("courses:default-fallback", zap.String("topic", topic), zap.Int64("course_id", *r.defaultCourseID))
		return *r.defaultCourseID, nil
	}
	return 0, ErrNoCourseResolved
}

// tryCachedOrLive runs the four-strategy cascade of §4.5 steps 1-4 for a
// single candidate name, consulting the TTL cache first.
func (r *Resolver) tryCachedOrLive(ctx context.Context, name string) (int64, bool) {
	if name == "" {
		return 0, false
	}
	cacheKey := coursesCacheKeyPrefix + name
	if r.cache != nil {
		var cached int64
		if found, err := r.cache.Get(ctx, cacheKey, &cached); err == nil && found {
			return cached, true
		}
	}

	id, ok := r.lookupLive(ctx, name)
	if ok && r.cache != nil {
		_ = r.cache.Set(ctx, cacheKey, id, r.cacheTTL)
	}
	return id, ok
}

func (r *Resolver) lookupLive(ctx context.Context, name string) (int64, bool) {
	if course, err := r.lms.ExactNameMatch(ctx, name); err == nil && course != nil {
		return course.ID, true
	}
	if course, err := r.lms.CourseByFullName(ctx, name); err == nil && course != nil {
		return course.ID, true
	}
	if course, err := r.lms.CourseByShortName(ctx, name); err == nil && course != nil {
		return course.ID, true
	}
	if courses, err := r.lms.SearchCourses(ctx, name); err == nil && len(courses) > 0 {
		return courses[0].ID, true
	}
	return 0, false
}

var bracketedSuffix = regexp.MustCompile(`\s*[\(\[][^()\[\]]*[\)\]]\s*$`)
var delimiterSplit = regexp.MustCompile(`[-–—:|]`)
var upperSuffix = regexp.MustCompile(`\s+[A-Z]{1,3}$`)

// normalizedVariants implements §4.5's variant-builder chain (a)-(c) as a
// cascading reduction: each round tries (a) then (b) then (c) against the
// current candidate, applies whichever fires first, and records the
// result. This repeats against the new candidate until none of the three
// fire. A single pass over the original topic is not enough: the trailing
// "(EP)" in "Matemáticas Básicas (EP) - Lunes" only becomes visible to
// rule (a) after rule (b) has already stripped the "- Lunes" suffix.
func normalizedVariants(topic string) []string {
	var variants []string
	current := topic
	for i := 0; i < 8; i++ {
		next, changed := reduceOnce(current)
		if !changed || next == current {
			break
		}
		variants = append(variants, next)
		current = next
	}
	return variants
}

func reduceOnce(s string) (string, bool) {
	if trimmed := strings.TrimSpace(bracketedSuffix.ReplaceAllString(s, "")); trimmed != s {
		return trimmed, true
	}
	if loc := delimiterSplit.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[:loc[0]]), true
	}
	if stripped := strings.TrimSpace(upperSuffix.ReplaceAllString(s, "")); stripped != s {
		return stripped, true
	}
	return s, false
}

// progressiveTruncations implements §4.5's word-dropping fallback: drop
// the last word, then the last two, then the last three, requiring at
// least two words remain.
func progressiveTruncations(topic string) []string {
	words := strings.Fields(topic)
	var out []string
	for drop := 1; drop <= 3; drop++ {
		remaining := len(words) - drop
		if remaining < 2 {
			break
		}
		out = append(out, strings.Join(words[:remaining], " "))
	}
	return out
}
