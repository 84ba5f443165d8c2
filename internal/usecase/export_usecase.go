package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/leadexport-service/internal/artifact"
	"github.com/user/leadexport-service/internal/entity"
	"github.com/user/leadexport-service/internal/extract"
	"github.com/user/leadexport-service/internal/repository"
	"github.com/user/leadexport-service/pkg/metrics"
)

// Fail reason tags stored on the job and surfaced to the caller so the UI
// can offer a specific remedy.
const (
	ReasonInsufficientCredits = "insufficient_credits"
	ReasonPageLoadTimeout     = "page_load_timeout"
	ReasonNoData              = "no_data"
	ReasonCancelled           = "cancelled"
	ReasonStorageUnavailable  = "storage_unavailable"
	ReasonExtractionFailed    = "extraction_failed"
)

// ExtractionRunner executes a single extraction session.
type ExtractionRunner interface {
	Run(ctx context.Context, opts extract.Options) (*entity.ExtractionSession, error)
}

// RunnerFactory produces one runner per job. Each runner owns its own page
// session; runners for distinct jobs share no mutable state.
type RunnerFactory func(ctx context.Context, jobID string) (ExtractionRunner, error)

// ArtifactBuilder packages a record set into a downloadable artifact.
type ArtifactBuilder interface {
	Build(records []*entity.BusinessRecord, opts artifact.Options) (*artifact.Artifact, error)
}

// RequestExportInput carries one export request.
type RequestExportInput struct {
	UserID           string
	TargetBusinessID string
	Query            string
	Location         string
	Cost             int
}

// ExportManager is the export state machine: admission control, extraction,
// packaging and exactly-once settlement.
type ExportManager interface {
	RequestExport(ctx context.Context, input RequestExportInput) (*entity.ExportJob, error)
	GetJob(ctx context.Context, jobID string) (*entity.ExportJob, error)
	ListJobs(ctx context.Context, userID string) ([]*entity.ExportJob, error)
	CancelJob(ctx context.Context, jobID string) error
	Progress(ctx context.Context, jobID string) (*entity.ProgressEvent, error)
	Download(ctx context.Context, jobID string) (filename string, data []byte, err error)

	// StuckJobs lists jobs left in processing beyond olderThan, feeding an
	// external reconciliation pass.
	StuckJobs(ctx context.Context, olderThan time.Duration) ([]*entity.ExportJob, error)
}

type exportUseCase struct {
	jobRepo      repository.ExportJobRepository
	ledger       CreditLedger
	artifactRepo repository.ArtifactRepository
	progress     repository.ProgressStore
	newRunner    RunnerFactory
	builder      ArtifactBuilder
	jobTimeout   time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewExportManager creates the export state machine use case.
func NewExportManager(
	jobRepo repository.ExportJobRepository,
	ledger CreditLedger,
	artifactRepo repository.ArtifactRepository,
	progress repository.ProgressStore,
	newRunner RunnerFactory,
	builder ArtifactBuilder,
	jobTimeout time.Duration,
) ExportManager {
	if jobTimeout <= 0 {
		jobTimeout = 10 * time.Minute
	}
	return &exportUseCase{
		jobRepo:      jobRepo,
		ledger:       ledger,
		artifactRepo: artifactRepo,
		progress:     progress,
		newRunner:    newRunner,
		builder:      builder,
		jobTimeout:   jobTimeout,
		cancels:      make(map[string]context.CancelFunc),
	}
}

// RequestExport admits a job against the credit balance and, if admitted,
// starts its worker. Admission rejection is synchronous: the job is recorded
// as failed, no extraction is attempted and no transaction is written.
func (uc *exportUseCase) RequestExport(ctx context.Context, input RequestExportInput) (*entity.ExportJob, error) {
	if input.Query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	now := time.Now().UTC()
	job := &entity.ExportJob{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		Query:     input.Query,
		Location:  input.Location,
		Status:    entity.JobPending,
		Cost:      input.Cost,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.TargetBusinessID != "" {
		job.TargetBusinessID = &input.TargetBusinessID
	}

	if err := uc.ledger.CheckAndReserve(ctx, input.UserID, input.Cost); err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			job.Status = entity.JobFailed
			job.FailReason = ReasonInsufficientCredits
			if createErr := uc.jobRepo.Create(ctx, job); createErr != nil {
				return nil, fmt.Errorf("recording rejected job: %w", createErr)
			}
			metrics.ExportsTotal.WithLabelValues("failed", ReasonInsufficientCredits).Inc()
			return job, repository.ErrInsufficientCredits
		}
		return nil, fmt.Errorf("admission check: %w", err)
	}

	if err := uc.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("creating export job: %w", err)
	}
	if err := uc.jobRepo.SetStatus(ctx, job.ID, entity.JobProcessing, ""); err != nil {
		return nil, fmt.Errorf("moving job to processing: %w", err)
	}
	job.Status = entity.JobProcessing

	workerCtx, cancel := context.WithTimeout(context.Background(), uc.jobTimeout)
	uc.registerCancel(job.ID, cancel)
	go uc.process(workerCtx, job)

	slog.Info("Export job admitted", "job_id", job.ID, "user_id", job.UserID, "query", job.Query)
	return job, nil
}

// process runs one job end to end. It is the only writer of the job's
// terminal state.
func (uc *exportUseCase) process(ctx context.Context, job *entity.ExportJob) {
	defer uc.unregisterCancel(job.ID)
	start := time.Now()

	runner, err := uc.newRunner(ctx, job.ID)
	if err != nil {
		slog.Error("Failed to start extraction runner", "job_id", job.ID, "error", err)
		uc.fail(ctx, job.ID, ReasonExtractionFailed)
		return
	}

	opts := extract.Options{
		JobID:    job.ID,
		Query:    job.Query,
		Location: job.Location,
	}
	if job.TargetBusinessID != nil {
		opts.TargetBusinessID = *job.TargetBusinessID
		opts.IncludeDetails = true
	}

	session, runErr := runner.Run(ctx, opts)
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	if session != nil {
		metrics.ListingsExtractedTotal.Add(float64(len(session.Records)))
	}

	if runErr != nil {
		// The session still carries any records accumulated before the
		// failure; current policy is to not bill partial sessions.
		reason := ReasonExtractionFailed
		switch {
		case errors.Is(runErr, repository.ErrPageLoadTimeout):
			reason = ReasonPageLoadTimeout
		case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
			reason = ReasonCancelled
		}
		slog.Warn("Extraction session failed",
			"job_id", job.ID,
			"reason", reason,
			"partial_records", sessionLen(session),
			"error", runErr,
		)
		uc.fail(ctx, job.ID, reason)
		return
	}

	art, err := uc.builder.Build(session.Records, artifact.Options{
		Query:      job.Query,
		Location:   job.Location,
		ExportedAt: time.Now().UTC(),
	})
	if err != nil {
		reason := ReasonExtractionFailed
		if errors.Is(err, repository.ErrNoData) {
			reason = ReasonNoData
		}
		slog.Warn("Artifact build failed", "job_id", job.ID, "error", err)
		uc.fail(ctx, job.ID, reason)
		return
	}

	handle, err := uc.artifactRepo.Store(ctx, art.Filename, art.Data)
	if err != nil {
		slog.Error("Artifact store failed", "job_id", job.ID, "error", err)
		uc.fail(ctx, job.ID, ReasonStorageUnavailable)
		return
	}

	uc.settle(ctx, job, handle)
}

// settle performs the processing -> completed transition. The repository
// write is atomic and idempotent; when it fails for anything other than a
// balance shortfall the job deliberately stays in processing so the
// reconciliation pass can retry, rather than completing without a debit or
// failing after work succeeded.
func (uc *exportUseCase) settle(ctx context.Context, job *entity.ExportJob, handle string) {
	err := uc.jobRepo.Settle(ctx, job.ID, handle)
	switch {
	case err == nil:
		metrics.ExportsTotal.WithLabelValues("completed", "").Inc()
		metrics.CreditsConsumedTotal.Add(float64(job.Cost))
		slog.Info("Export job settled", "job_id", job.ID, "cost", job.Cost, "handle", handle)
	case errors.Is(err, repository.ErrInsufficientCredits):
		// A concurrent export consumed the balance between admission and
		// settlement. No transaction was written; fail the job.
		uc.fail(ctx, job.ID, ReasonInsufficientCredits)
	default:
		slog.Error("Settlement failed, job left in processing for reconciliation",
			"job_id", job.ID, "error", err)
	}
}

func (uc *exportUseCase) fail(ctx context.Context, jobID, reason string) {
	metrics.ExportsTotal.WithLabelValues("failed", reason).Inc()
	// The worker context may already be cancelled; the terminal write must
	// still go through.
	if err := uc.jobRepo.SetStatus(context.WithoutCancel(ctx), jobID, entity.JobFailed, reason); err != nil {
		slog.Error("Failed to mark job failed", "job_id", jobID, "reason", reason, "error", err)
	}
}

func (uc *exportUseCase) GetJob(ctx context.Context, jobID string) (*entity.ExportJob, error) {
	return uc.jobRepo.FindByID(ctx, jobID)
}

func (uc *exportUseCase) ListJobs(ctx context.Context, userID string) ([]*entity.ExportJob, error) {
	return uc.jobRepo.ListByUser(ctx, userID)
}

// CancelJob signals the job's worker. Cancelling a terminal job is a no-op.
func (uc *exportUseCase) CancelJob(ctx context.Context, jobID string) error {
	uc.mu.Lock()
	cancel, ok := uc.cancels[jobID]
	uc.mu.Unlock()
	if ok {
		cancel()
		return nil
	}

	job, err := uc.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == entity.JobPending || job.Status == entity.JobProcessing {
		// Worker is not in this process (or already gone); record the intent.
		return uc.jobRepo.SetStatus(ctx, jobID, entity.JobFailed, ReasonCancelled)
	}
	return nil
}

func (uc *exportUseCase) Progress(ctx context.Context, jobID string) (*entity.ProgressEvent, error) {
	return uc.progress.Latest(ctx, jobID)
}

func (uc *exportUseCase) Download(ctx context.Context, jobID string) (string, []byte, error) {
	job, err := uc.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return "", nil, err
	}
	if job.Status != entity.JobCompleted || job.DownloadHandle == nil {
		return "", nil, repository.ErrArtifactNotFound
	}
	return uc.artifactRepo.Fetch(ctx, *job.DownloadHandle)
}

func (uc *exportUseCase) StuckJobs(ctx context.Context, olderThan time.Duration) ([]*entity.ExportJob, error) {
	return uc.jobRepo.FindStuck(ctx, olderThan)
}

func (uc *exportUseCase) registerCancel(jobID string, cancel context.CancelFunc) {
	uc.mu.Lock()
	uc.cancels[jobID] = cancel
	uc.mu.Unlock()
}

func (uc *exportUseCase) unregisterCancel(jobID string) {
	uc.mu.Lock()
	if cancel, ok := uc.cancels[jobID]; ok {
		cancel()
		delete(uc.cancels, jobID)
	}
	uc.mu.Unlock()
}

func sessionLen(s *entity.ExtractionSession) int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}
