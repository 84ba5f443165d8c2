package repository

import "errors"

// Error taxonomy shared across layers. Callers match with errors.Is and map
// each condition to a specific remedy at the delivery boundary.
var (
	// ErrListingDiscarded marks a listing candidate that failed validation
	// (typically a missing name). Per-listing and recoverable: the session
	// skips the listing and continues.
	ErrListingDiscarded = errors.New("listing discarded: required fields missing")

	// ErrPageLoadTimeout means no content ever appeared before the readiness
	// bound was exhausted. Fatal for the whole session.
	ErrPageLoadTimeout = errors.New("page load timeout: readiness landmark never appeared")

	// ErrNoData means zero valid records reached the artifact builder. The
	// job fails and nothing is billed.
	ErrNoData = errors.New("no data: empty record set")

	// ErrInsufficientCredits rejects admission or settlement when the balance
	// does not cover the job cost.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrStorageUnavailable wraps ledger/job persistence failures. Surfaced
	// as retryable to the caller.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrJobNotFound is returned for lookups of unknown job ids.
	ErrJobNotFound = errors.New("export job not found")

	// ErrArtifactNotFound is returned when a download handle has expired or
	// never existed.
	ErrArtifactNotFound = errors.New("artifact not found")
)
