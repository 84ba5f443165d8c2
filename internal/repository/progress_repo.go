package repository

import (
	"context"

	"github.com/user/leadexport-service/internal/entity"
)

// ProgressSink receives one-way progress notifications from a running
// session. Publishing is best-effort: a sink failure must never abort the
// session that emitted the event.
type ProgressSink interface {
	Publish(ctx context.Context, ev entity.ProgressEvent) error
}

// ProgressStore additionally retains the latest event per job so the UI can
// poll instead of subscribing.
type ProgressStore interface {
	ProgressSink
	Latest(ctx context.Context, jobID string) (*entity.ProgressEvent, error)
}
