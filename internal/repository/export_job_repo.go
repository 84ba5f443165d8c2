package repository

import (
	"context"
	"time"

	"github.com/user/leadexport-service/internal/entity"
)

// ExportJobRepository manages export job rows and owns the settlement write.
type ExportJobRepository interface {
	// Create inserts a new job in its current status.
	Create(ctx context.Context, job *entity.ExportJob) error

	// FindByID returns the job or ErrJobNotFound.
	FindByID(ctx context.Context, id string) (*entity.ExportJob, error)

	// ListByUser returns the user's jobs, newest first.
	ListByUser(ctx context.Context, userID string) ([]*entity.ExportJob, error)

	// SetStatus moves the job to the given non-terminal-success status.
	// Completion never goes through here; it is only reachable via Settle.
	SetStatus(ctx context.Context, id string, status entity.JobStatus, failReason string) error

	// Settle atomically performs the processing -> completed transition:
	// it re-checks the user's balance, appends exactly one consumption
	// transaction for the job's cost and sets the download handle. Calling
	// Settle on an already-completed job is a no-op. Returns
	// ErrInsufficientCredits when the re-checked balance no longer covers
	// the cost; in that case no transaction is written. Implementations
	// must serialise concurrent settlements for the same user.
	Settle(ctx context.Context, id string, downloadHandle string) error

	// FindStuck returns jobs sitting in processing for longer than olderThan,
	// for an external reconciliation pass.
	FindStuck(ctx context.Context, olderThan time.Duration) ([]*entity.ExportJob, error)
}
