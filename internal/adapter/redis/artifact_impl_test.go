package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/leadexport-service/internal/repository"
)

func TestArtifactStoreAndFetch(t *testing.T) {
	_, client := testClient(t)
	repo := NewArtifactRepo(client, time.Hour)
	ctx := context.Background()

	// xlsx blobs are binary; the round trip must be byte-exact.
	data := []byte{0x50, 0x4b, 0x03, 0x04, 0x00, 0xff, 0xfe, 0x00}
	handle, err := repo.Store(ctx, "export_1717200000.xlsx", data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(handle, artifactKeyPrefix))

	filename, got, err := repo.Fetch(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "export_1717200000.xlsx", filename)
	assert.Equal(t, data, got)
}

func TestArtifactHandlesAreOpaqueAndUnique(t *testing.T) {
	_, client := testClient(t)
	repo := NewArtifactRepo(client, time.Hour)
	ctx := context.Background()

	h1, err := repo.Store(ctx, "a.xlsx", []byte("a"))
	require.NoError(t, err)
	h2, err := repo.Store(ctx, "a.xlsx", []byte("a"))
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestArtifactFetchUnknownHandle(t *testing.T) {
	_, client := testClient(t)
	repo := NewArtifactRepo(client, time.Hour)

	_, _, err := repo.Fetch(context.Background(), "artifact:does-not-exist")
	assert.ErrorIs(t, err, repository.ErrArtifactNotFound)
}

func TestArtifactExpires(t *testing.T) {
	mr, client := testClient(t)
	repo := NewArtifactRepo(client, time.Minute)
	ctx := context.Background()

	handle, err := repo.Store(ctx, "soon-gone.xlsx", []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL(handle))

	mr.FastForward(2 * time.Minute)

	_, _, err = repo.Fetch(ctx, handle)
	assert.ErrorIs(t, err, repository.ErrArtifactNotFound)
}
