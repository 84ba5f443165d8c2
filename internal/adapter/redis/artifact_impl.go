package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/user/leadexport-service/internal/repository"
)

const artifactKeyPrefix = "artifact:"

// ArtifactRepoImpl stores finished spreadsheet blobs in Redis under a TTL.
// Spreadsheets for a paid export are small (well under a megabyte for a few
// hundred listings) and short-lived: the user downloads them right away.
type ArtifactRepoImpl struct {
	client *redis.Client
	ttl    time.Duration
}

// NewArtifactRepo creates a new instance of ArtifactRepoImpl.
func NewArtifactRepo(client *redis.Client, ttl time.Duration) *ArtifactRepoImpl {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ArtifactRepoImpl{client: client, ttl: ttl}
}

// Store saves the blob and returns an opaque download handle.
func (r *ArtifactRepoImpl) Store(ctx context.Context, filename string, data []byte) (string, error) {
	handle := artifactKeyPrefix + uuid.NewString()

	if err := r.client.HSet(ctx, handle, "filename", filename, "data", data).Err(); err != nil {
		return "", fmt.Errorf("%w: storing artifact: %v", repository.ErrStorageUnavailable, err)
	}
	if err := r.client.Expire(ctx, handle, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: setting artifact expiry: %v", repository.ErrStorageUnavailable, err)
	}
	return handle, nil
}

// Fetch resolves a download handle. Expired and unknown handles both return
// ErrArtifactNotFound.
func (r *ArtifactRepoImpl) Fetch(ctx context.Context, handle string) (string, []byte, error) {
	fields, err := r.client.HGetAll(ctx, handle).Result()
	if err != nil {
		return "", nil, fmt.Errorf("%w: fetching artifact: %v", repository.ErrStorageUnavailable, err)
	}
	if len(fields) == 0 {
		return "", nil, repository.ErrArtifactNotFound
	}
	return fields["filename"], []byte(fields["data"]), nil
}
