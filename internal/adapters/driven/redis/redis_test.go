package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	_, err = Connect(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestLock_AcquireRelease(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	first := NewLock(client)
	second := NewLock(client)
	require.NotEqual(t, first.Owner(), second.Owner())

	ok, err := first.Acquire(ctx, "seed", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	holder, err := first.Holder(ctx, "seed")
	require.NoError(t, err)
	assert.Equal(t, first.Owner(), holder)

	// not reentrant and exclusive
	ok, err = first.Acquire(ctx, "seed", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = second.Acquire(ctx, "seed", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// a foreign release leaves the lock alone
	require.NoError(t, second.Release(ctx, "seed"))
	holder, _ = first.Holder(ctx, "seed")
	assert.Equal(t, first.Owner(), holder)

	require.NoError(t, first.Release(ctx, "seed"))
	holder, _ = first.Holder(ctx, "seed")
	assert.Empty(t, holder)

	ok, err = second.Acquire(ctx, "seed", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_Expires(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	first := NewLock(client)
	second := NewLock(client)

	ok, err := first.Acquire(ctx, "seed", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = second.Acquire(ctx, "seed", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_ReleaseNotHeld(t *testing.T) {
	_, client := setupTestRedis(t)
	assert.NoError(t, NewLock(client).Release(context.Background(), "nothing"))
	assert.NoError(t, NewLock(client).Ping(context.Background()))
}

func TestResponseCache_GetSet(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewResponseCache(client)
	ctx := context.Background()

	gen, err := cache.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	resp, err := cache.Get(ctx, gen, "k")
	require.NoError(t, err)
	assert.Nil(t, resp)

	want := &domain.RAGResponse{
		Answer:       "25 días",
		Confidence:   0.5,
		Query:        "vacaciones",
		AnswerSource: domain.AnswerSourceTemplate,
		Sources:      []domain.SearchResult{},
	}
	require.NoError(t, cache.Set(ctx, gen, "k", want, time.Minute))

	got, err := cache.Get(ctx, gen, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Answer, got.Answer)
	assert.Equal(t, want.Confidence, got.Confidence)
	assert.Equal(t, want.AnswerSource, got.AnswerSource)
}

func TestResponseCache_TTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewResponseCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 0, "k", &domain.RAGResponse{Answer: "a"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, 0, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	// zero ttl stores nothing
	require.NoError(t, cache.Set(ctx, 0, "z", &domain.RAGResponse{Answer: "a"}, 0))
	got, _ = cache.Get(ctx, 0, "z")
	assert.Nil(t, got)
}

func TestResponseCache_Invalidate(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewResponseCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 0, "k", &domain.RAGResponse{Answer: "old"}, time.Minute))
	require.NoError(t, cache.Invalidate(ctx))

	gen, err := cache.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	got, err := cache.Get(ctx, gen, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.Set(ctx, gen, "k", &domain.RAGResponse{Answer: "new"}, time.Minute))
	got, err = cache.Get(ctx, gen, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Answer)
	assert.NoError(t, cache.Ping(ctx))
}

// An answer composed before an invalidation is written under the generation
// it was read in, which is no longer the current one.
func TestResponseCache_SetAfterInvalidateIsUnreachable(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewResponseCache(client)
	ctx := context.Background()

	before, err := cache.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx))
	require.NoError(t, cache.Set(ctx, before, "k", &domain.RAGResponse{Answer: "stale"}, time.Minute))

	current, err := cache.Generation(ctx)
	require.NoError(t, err)
	got, err := cache.Get(ctx, current, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResponseCache_GenerationReadError(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewResponseCache(client)
	ctx := context.Background()

	mr.Set(cacheGenerationKey, "not a number")
	_, err := cache.Generation(ctx)
	assert.Error(t, err)
}
