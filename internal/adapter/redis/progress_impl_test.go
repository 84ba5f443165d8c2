package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/leadexport-service/internal/entity"
)

func testClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestProgressPublishAndLatest(t *testing.T) {
	_, client := testClient(t)
	store := NewProgressStore(client)
	ctx := context.Background()

	ev := entity.ProgressEvent{
		JobID:             "job-1",
		Phase:             entity.PhaseExtracting,
		ListingsFound:     23,
		ListingsExtracted: 18,
	}
	require.NoError(t, store.Publish(ctx, ev))

	got, err := store.Latest(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ev, *got)
}

func TestProgressLatestEventWins(t *testing.T) {
	_, client := testClient(t)
	store := NewProgressStore(client)
	ctx := context.Background()

	require.NoError(t, store.Publish(ctx, entity.ProgressEvent{JobID: "job-1", Phase: entity.PhaseLoadingMore, ListingsExtracted: 5}))
	require.NoError(t, store.Publish(ctx, entity.ProgressEvent{JobID: "job-1", Phase: entity.PhaseComplete, ListingsExtracted: 12}))

	got, err := store.Latest(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entity.PhaseComplete, got.Phase)
	assert.Equal(t, 12, got.ListingsExtracted)
}

func TestProgressLatestUnknownJob(t *testing.T) {
	_, client := testClient(t)
	store := NewProgressStore(client)

	got, err := store.Latest(context.Background(), "never-published")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProgressStoredWithTTL(t *testing.T) {
	mr, client := testClient(t)
	store := NewProgressStore(client)
	ctx := context.Background()

	require.NoError(t, store.Publish(ctx, entity.ProgressEvent{JobID: "job-1", Phase: entity.PhaseAwaitingReady}))

	key := progressKeyPrefix + "job-1"
	require.True(t, mr.Exists(key))
	assert.Equal(t, progressTTL, mr.TTL(key))

	// Payload on the wire is plain JSON so other consumers can subscribe.
	var ev entity.ProgressEvent
	raw, err := mr.Get(key)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	assert.Equal(t, "job-1", ev.JobID)
}
