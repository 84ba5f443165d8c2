package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/leadexport-service/internal/entity"
	"github.com/user/leadexport-service/internal/repository"
)

// ExportJobRepoImpl implements ExportJobRepository over PostgreSQL. Jobs are
// never deleted; together with the ledger they form the billing audit trail.
type ExportJobRepoImpl struct {
	db *pgxpool.Pool
}

// NewExportJobRepo creates a new instance of ExportJobRepoImpl.
func NewExportJobRepo(db *pgxpool.Pool) *ExportJobRepoImpl {
	return &ExportJobRepoImpl{db: db}
}

const jobColumns = `id, user_id, target_business_id, query, location, status, cost, download_handle, fail_reason, created_at, updated_at`

// Create inserts a new job row.
func (r *ExportJobRepoImpl) Create(ctx context.Context, job *entity.ExportJob) error {
	query := `
		INSERT INTO export_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err := r.db.Exec(ctx, query,
		job.ID, job.UserID, job.TargetBusinessID, job.Query, job.Location,
		job.Status, job.Cost, job.DownloadHandle, job.FailReason,
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting job: %v", repository.ErrStorageUnavailable, err)
	}
	return nil
}

// FindByID returns the job or ErrJobNotFound.
func (r *ExportJobRepoImpl) FindByID(ctx context.Context, id string) (*entity.ExportJob, error) {
	query := `SELECT ` + jobColumns + ` FROM export_jobs WHERE id = $1;`
	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrJobNotFound
		}
		return nil, fmt.Errorf("%w: finding job: %v", repository.ErrStorageUnavailable, err)
	}
	return job, nil
}

// ListByUser returns the user's jobs, newest first.
func (r *ExportJobRepoImpl) ListByUser(ctx context.Context, userID string) ([]*entity.ExportJob, error) {
	query := `SELECT ` + jobColumns + ` FROM export_jobs WHERE user_id = $1 ORDER BY created_at DESC;`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing jobs: %v", repository.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var jobs []*entity.ExportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning job: %v", repository.ErrStorageUnavailable, err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating jobs: %v", repository.ErrStorageUnavailable, err)
	}
	return jobs, nil
}

// SetStatus moves a job to a non-completed status. Completed is only
// reachable through Settle.
func (r *ExportJobRepoImpl) SetStatus(ctx context.Context, id string, status entity.JobStatus, failReason string) error {
	if status == entity.JobCompleted {
		return fmt.Errorf("completion must go through Settle")
	}
	query := `
		UPDATE export_jobs
		SET status = $2, fail_reason = $3, updated_at = $4
		WHERE id = $1 AND status NOT IN ('completed', 'failed');
	`
	tag, err := r.db.Exec(ctx, query, id, status, failReason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: updating job status: %v", repository.ErrStorageUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		// Either unknown or already terminal; terminal states are sticky.
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return findErr
		}
	}
	return nil
}

// Settle performs the processing -> completed transition atomically:
// row-lock the job, bail out if it is already completed, re-check the
// balance under a per-user advisory lock, append exactly one consumption
// transaction and set the download handle. Either every write commits or
// none does.
func (r *ExportJobRepoImpl) Settle(ctx context.Context, id string, downloadHandle string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning settlement: %v", repository.ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var userID, status string
	var cost int
	err = tx.QueryRow(ctx,
		`SELECT user_id, status, cost FROM export_jobs WHERE id = $1 FOR UPDATE;`, id,
	).Scan(&userID, &status, &cost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrJobNotFound
		}
		return fmt.Errorf("%w: locking job: %v", repository.ErrStorageUnavailable, err)
	}

	// Idempotence guard: a second settlement of the same job is a no-op.
	if status == string(entity.JobCompleted) {
		return nil
	}
	if status != string(entity.JobProcessing) {
		return fmt.Errorf("job %s is %s, not processing", id, status)
	}

	// Serialise settlements for the same user so two concurrent jobs cannot
	// both pass the balance re-check.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1));`, userID); err != nil {
		return fmt.Errorf("%w: acquiring user lock: %v", repository.ErrStorageUnavailable, err)
	}

	var balance int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE user_id = $1;`, userID,
	).Scan(&balance)
	if err != nil {
		return fmt.Errorf("%w: re-checking balance: %v", repository.ErrStorageUnavailable, err)
	}
	if balance < cost {
		return repository.ErrInsufficientCredits
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO credit_transactions (id, user_id, amount, kind, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6);`,
		uuid.NewString(), userID, -cost, entity.KindConsumption,
		fmt.Sprintf("export job %s", id), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: writing consumption: %v", repository.ErrStorageUnavailable, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE export_jobs
		SET status = $2, download_handle = $3, fail_reason = '', updated_at = $4
		WHERE id = $1;`,
		id, entity.JobCompleted, downloadHandle, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: completing job: %v", repository.ErrStorageUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing settlement: %v", repository.ErrStorageUnavailable, err)
	}
	return nil
}

// FindStuck returns jobs sitting in processing for longer than olderThan.
func (r *ExportJobRepoImpl) FindStuck(ctx context.Context, olderThan time.Duration) ([]*entity.ExportJob, error) {
	query := `SELECT ` + jobColumns + ` FROM export_jobs WHERE status = 'processing' AND updated_at < $1 ORDER BY updated_at;`
	rows, err := r.db.Query(ctx, query, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("%w: querying stuck jobs: %v", repository.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var jobs []*entity.ExportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning stuck job: %v", repository.ErrStorageUnavailable, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*entity.ExportJob, error) {
	var job entity.ExportJob
	err := row.Scan(
		&job.ID, &job.UserID, &job.TargetBusinessID, &job.Query, &job.Location,
		&job.Status, &job.Cost, &job.DownloadHandle, &job.FailReason,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
