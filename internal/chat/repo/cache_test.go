package repo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/model"
	errx "github.com/Chative-core-poc-v1/sqlchat/internal/core/error"
)

func vizPayload() *model.EnrichmentPayload {
	return &model.EnrichmentPayload{Visualization: &model.Visualization{
		Explanation: "totals by customer",
		Config:      model.VisualizationConfig{ChartType: "bar", X: "name", Y: "total"},
		Data:        []model.Record{{"name": "alice", "total": json.Number("50")}},
	}}
}

func TestMemoryEnrichmentCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryEnrichmentCache(time.Minute, time.Minute)

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	p := &model.EnrichmentPayload{Insight: &model.Insight{Text: "hi"}}
	require.NoError(t, c.Set(ctx, "k", p, 0))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryEnrichmentCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryEnrichmentCache(time.Minute, 0)

	require.NoError(t, c.Set(ctx, "k", vizPayload(), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisEnrichmentCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisEnrichmentCache(rdb, ttl), mr
}

func TestRedisEnrichmentCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, 30*time.Minute)

	_, ok, err := c.Get(ctx, "visualization:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "visualization:abc", vizPayload(), 0))
	assert.True(t, mr.Exists("enrichment:visualization:abc"))
	assert.Equal(t, 30*time.Minute, mr.TTL("enrichment:visualization:abc"))

	got, ok, err := c.Get(ctx, "visualization:abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, vizPayload(), got)

	require.NoError(t, c.Delete(ctx, "visualization:abc"))
	_, ok, err = c.Get(ctx, "visualization:abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisEnrichmentCache_TTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, time.Hour)

	require.NoError(t, c.Set(ctx, "insight:x", &model.EnrichmentPayload{Insight: &model.Insight{Text: "t"}}, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("enrichment:insight:x"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := c.Get(ctx, "insight:x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisEnrichmentCache_CorruptValue(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, 0)
	require.NoError(t, mr.Set("enrichment:bad", "{not json"))

	_, ok, err := c.Get(ctx, "bad")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisEnrichmentCache_Unavailable(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, 0)
	mr.Close()

	_, _, err := c.Get(ctx, "k")
	require.Error(t, err)
	assert.NotZero(t, errx.StatusOf(err))
	assert.Error(t, c.Set(ctx, "k", vizPayload(), 0))
}
