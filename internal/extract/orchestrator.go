package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/user/leadexport-service/internal/entity"
	"github.com/user/leadexport-service/internal/repository"
)

// PageSource is the live page collaborator. The orchestrator only reads node
// text/attributes and triggers the page's own load-more mechanism; nodes can
// appear, disappear or be restructured between reads.
type PageSource interface {
	// Open navigates to the search results for query/location.
	Open(ctx context.Context, query, location string) error
	// LandmarkPresent reports whether the results landmark element exists.
	LandmarkPresent(ctx context.Context) (bool, error)
	// ContentHeight returns the current height of the results pane.
	ContentHeight(ctx context.Context) (int64, error)
	// LoadMore triggers the page's pagination/scroll mechanism.
	LoadMore(ctx context.Context) error
	// ListingsHTML snapshots the results pane markup.
	ListingsHTML(ctx context.Context) (string, error)
	// DetailHTML opens a single listing and snapshots its detail pane.
	DetailHTML(ctx context.Context, externalID string) (string, error)
	// Close releases the underlying page resources.
	Close(ctx context.Context) error
}

// Config bounds the orchestrator's waits. All waits are cooperative
// suspensions, never busy loops.
type Config struct {
	ReadyPollInterval time.Duration // delay between readiness polls
	ReadyMaxAttempts  int           // polls before giving up with ErrPageLoadTimeout
	SettleInterval    time.Duration // wait after each LoadMore before re-measuring
	StallThreshold    int           // consecutive unchanged heights meaning "no more results"
	ScrollRate        rate.Limit    // LoadMore/DetailHTML actions per second
	DetailLimit       int           // max detail panes fetched per session
}

// DefaultConfig returns bounds suitable for a slow third-party page.
func DefaultConfig() Config {
	return Config{
		ReadyPollInterval: 500 * time.Millisecond,
		ReadyMaxAttempts:  20,
		SettleInterval:    1200 * time.Millisecond,
		StallThreshold:    3,
		ScrollRate:        rate.Limit(2),
		DetailLimit:       20,
	}
}

// Options select what one session harvests.
type Options struct {
	JobID            string
	Query            string
	Location         string
	TargetBusinessID string // when set, enrich the matching record with reviews/posts
	IncludeDetails   bool
}

// Orchestrator drives one harvest: readiness wait, incremental load-more,
// per-listing extraction and completion detection.
type Orchestrator struct {
	page      PageSource
	resolver  *Resolver
	extractor *Extractor
	progress  repository.ProgressSink
	limiter   *rate.Limiter
	cfg       Config
}

// NewOrchestrator wires an orchestrator over the given page source. progress
// may be nil when no one is listening.
func NewOrchestrator(page PageSource, resolver *Resolver, progress repository.ProgressSink, cfg Config) *Orchestrator {
	if cfg.StallThreshold <= 0 {
		cfg.StallThreshold = 3
	}
	if cfg.ReadyMaxAttempts <= 0 {
		cfg.ReadyMaxAttempts = 20
	}
	if cfg.ScrollRate <= 0 {
		cfg.ScrollRate = rate.Inf
	}
	return &Orchestrator{
		page:      page,
		resolver:  resolver,
		extractor: NewExtractor(resolver),
		progress:  progress,
		limiter:   rate.NewLimiter(cfg.ScrollRate, 1),
		cfg:       cfg,
	}
}

// Run executes a full session. The returned session always carries whatever
// records were accumulated, even on cancellation; the caller decides what a
// partial result is worth. The error is non-nil only for session-fatal
// conditions (load timeout, cancellation, page source loss).
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*entity.ExtractionSession, error) {
	session := &entity.ExtractionSession{
		Query:     opts.Query,
		Location:  opts.Location,
		Status:    entity.SessionRunning,
		StartedAt: time.Now().UTC(),
	}
	seen := make(map[string]struct{})

	defer func() {
		session.EndedAt = time.Now().UTC()
		if err := o.page.Close(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Failed to close page source", "error", err)
		}
	}()

	if err := o.page.Open(ctx, opts.Query, opts.Location); err != nil {
		session.Status = entity.SessionFailed
		return session, fmt.Errorf("opening results page: %w", err)
	}

	if err := o.awaitReady(ctx, opts.JobID, session); err != nil {
		session.Status = entity.SessionFailed
		return session, err
	}

	lastHeight := int64(-1)
	for session.StableHeightCount < o.cfg.StallThreshold {
		if err := ctx.Err(); err != nil {
			session.Status = entity.SessionStalled
			return session, err
		}

		o.emit(ctx, opts.JobID, entity.PhaseLoadingMore, session)
		if err := o.limiter.Wait(ctx); err != nil {
			session.Status = entity.SessionStalled
			return session, err
		}
		if err := o.page.LoadMore(ctx); err != nil {
			slog.Warn("Load-more action failed", "query", opts.Query, "error", err)
		}
		if err := sleepCtx(ctx, o.cfg.SettleInterval); err != nil {
			session.Status = entity.SessionStalled
			return session, err
		}

		height, err := o.page.ContentHeight(ctx)
		if err != nil {
			session.Status = entity.SessionFailed
			return session, fmt.Errorf("measuring results pane: %w", err)
		}
		if height == lastHeight {
			session.StableHeightCount++
		} else {
			session.StableHeightCount = 0
			lastHeight = height
		}

		if err := o.extractPass(ctx, opts.JobID, session, seen); err != nil {
			session.Status = entity.SessionStalled
			return session, err
		}
	}

	// Height stopped changing: one final pass over anything still unprocessed.
	if err := o.extractPass(ctx, opts.JobID, session, seen); err != nil {
		session.Status = entity.SessionStalled
		return session, err
	}

	if opts.IncludeDetails {
		o.enrichDetails(ctx, opts, session)
	}

	session.Status = entity.SessionComplete
	o.emit(ctx, opts.JobID, entity.PhaseComplete, session)
	slog.Info("Extraction session complete",
		"query", opts.Query,
		"records", len(session.Records),
		"skipped", session.ListingsSkipped,
	)
	return session, nil
}

// awaitReady polls for the results landmark at a fixed interval, bounded by
// ReadyMaxAttempts. Exceeding the bound is fatal for the session.
func (o *Orchestrator) awaitReady(ctx context.Context, jobID string, session *entity.ExtractionSession) error {
	o.emit(ctx, jobID, entity.PhaseAwaitingReady, session)
	for attempt := 0; attempt < o.cfg.ReadyMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		present, err := o.page.LandmarkPresent(ctx)
		if err != nil {
			slog.Warn("Readiness probe failed", "attempt", attempt, "error", err)
		} else if present {
			return nil
		}
		if err := sleepCtx(ctx, o.cfg.ReadyPollInterval); err != nil {
			return err
		}
	}
	return repository.ErrPageLoadTimeout
}

// extractPass processes every listing card currently present and not yet
// seen. Per-listing failures are absorbed: the offending card is skipped,
// counted and logged, and the pass continues.
func (o *Orchestrator) extractPass(ctx context.Context, jobID string, session *entity.ExtractionSession, seen map[string]struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	html, err := o.page.ListingsHTML(ctx)
	if err != nil {
		return fmt.Errorf("snapshotting results pane: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parsing results pane: %w", err)
	}

	cards, ok := o.resolver.ResolveAll(FieldCard, doc.Selection)
	if !ok {
		return nil
	}
	session.ListingsFound = cards.Length()

	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}
		rec, err := o.extractListing(card)
		if err != nil {
			session.ListingsSkipped++
			slog.Warn("Skipping listing", "index", i, "error", err)
			return true
		}
		key := rec.DedupeKey()
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		session.Records = append(session.Records, rec)
		return true
	})

	o.emit(ctx, jobID, entity.PhaseExtracting, session)
	return ctx.Err()
}

// extractListing isolates one card extraction. A broken card must never take
// the session down, so panics from hostile markup are converted to errors.
func (o *Orchestrator) extractListing(card *goquery.Selection) (rec *entity.BusinessRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("listing extraction panicked: %v", r)
		}
	}()
	return o.extractor.Extract(card)
}

// enrichDetails opens detail panes to attach reviews and posts. Best-effort:
// detail failures never degrade the session.
func (o *Orchestrator) enrichDetails(ctx context.Context, opts Options, session *entity.ExtractionSession) {
	fetched := 0
	for _, rec := range session.Records {
		if ctx.Err() != nil || (o.cfg.DetailLimit > 0 && fetched >= o.cfg.DetailLimit) {
			return
		}
		if rec.PlaceID == nil {
			continue
		}
		if opts.TargetBusinessID != "" && *rec.PlaceID != opts.TargetBusinessID {
			continue
		}
		if err := o.limiter.Wait(ctx); err != nil {
			return
		}
		html, err := o.page.DetailHTML(ctx, *rec.PlaceID)
		if err != nil {
			slog.Warn("Detail pane fetch failed", "place_id", *rec.PlaceID, "error", err)
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}
		rec.Reviews = o.extractor.ExtractReviews(doc.Selection)
		rec.Posts = o.extractor.ExtractPosts(doc.Selection)
		fetched++
	}
}

func (o *Orchestrator) emit(ctx context.Context, jobID, phase string, session *entity.ExtractionSession) {
	if o.progress == nil {
		return
	}
	ev := entity.ProgressEvent{
		JobID:             jobID,
		Phase:             phase,
		ListingsFound:     session.ListingsFound,
		ListingsExtracted: len(session.Records),
	}
	if err := o.progress.Publish(ctx, ev); err != nil {
		slog.Debug("Progress publish failed", "job_id", jobID, "error", err)
	}
}

// sleepCtx suspends for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
