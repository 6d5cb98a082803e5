package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(client, nil)
}

type cachedCourse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestSetGet_RoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Set(ctx, "course:1", cachedCourse{ID: 1, Name: "Algebra"}, time.Minute)
	require.NoError(t, err)

	var got cachedCourse
	found, err := s.Get(ctx, "course:1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cachedCourse{ID: 1, Name: "Algebra"}, got)
}

func TestGet_MissingKeyReturnsFalse(t *testing.T) {
	s := newTestStore(t)
	var got cachedCourse
	found, err := s.Get(context.Background(), "course:missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate_RemovesKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "token:1", "abc", time.Minute))

	require.NoError(t, s.Invalidate(ctx, "token:1"))

	var got string
	found, err := s.Get(ctx, "token:1", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMarkGivenUp_IsGivenUp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	given, err := s.IsGivenUp(ctx, "rec-1")
	require.NoError(t, err)
	assert.False(t, given)

	require.NoError(t, s.MarkGivenUp(ctx, "rec-1"))

	given, err = s.IsGivenUp(ctx, "rec-1")
	require.NoError(t, err)
	assert.True(t, given)
}
