package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/leadexport-service/internal/entity"
)

const (
	progressKeyPrefix     = "export:progress:"
	progressChannelPrefix = "export:progress:events:"
	progressTTL           = 30 * time.Minute
)

// ProgressStoreImpl publishes progress events on a per-job pub/sub channel
// and retains the latest event under a TTL'd key so the UI can poll.
type ProgressStoreImpl struct {
	client *redis.Client
}

// NewProgressStore creates a new instance of ProgressStoreImpl.
func NewProgressStore(client *redis.Client) *ProgressStoreImpl {
	return &ProgressStoreImpl{client: client}
}

// Publish stores the event as the latest for its job and fans it out to
// subscribers. Best-effort by contract: callers ignore the error beyond
// logging it.
func (s *ProgressStoreImpl) Publish(ctx context.Context, ev entity.ProgressEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshalling progress event: %w", err)
	}
	if err := s.client.Set(ctx, progressKeyPrefix+ev.JobID, payload, progressTTL).Err(); err != nil {
		return fmt.Errorf("storing progress event: %w", err)
	}
	return s.client.Publish(ctx, progressChannelPrefix+ev.JobID, payload).Err()
}

// Latest returns the most recent event for the job, or nil when none has
// been published yet.
func (s *ProgressStoreImpl) Latest(ctx context.Context, jobID string) (*entity.ProgressEvent, error) {
	payload, err := s.client.Get(ctx, progressKeyPrefix+jobID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading progress event: %w", err)
	}
	var ev entity.ProgressEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("unmarshalling progress event: %w", err)
	}
	return &ev, nil
}
