package conversion

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// CacheEntry is the persisted record for one distinct document content.
// A row with CompletedAt unset is a reservation: some owner is (or was)
// converting the document. Once completed the row is immutable.
type CacheEntry struct {
	Fingerprint     string          `json:"fingerprint"`
	SourceTimestamp time.Time       `json:"source_timestamp"`
	ReservedAt      time.Time       `json:"reserved_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
}

func (e *CacheEntry) Completed() bool {
	return e.CompletedAt != nil
}

// ReservationAge reports how long the current reservation has been held.
func (e *CacheEntry) ReservationAge(now time.Time) time.Duration {
	return now.Sub(e.ReservedAt)
}

// ReserveOutcome is the result of a conditional insert on the cache table.
// Losing the insert race is an expected branch, not an error.
type ReserveOutcome int

const (
	ReserveAcquired ReserveOutcome = iota
	ReserveAlreadyReserved
	ReserveAlreadyCompleted
)

// ReclaimOutcome is the result of attempting to take over a stale
// reservation.
type ReclaimOutcome int

const (
	ReclaimAcquired ReclaimOutcome = iota
	ReclaimNotStale
	ReclaimNotFound
)

// ErrNotReserved is returned by Complete when no reserved row matches the
// fingerprint: the reservation was already completed by someone else or
// reclaimed from under the caller. Callers treat it as a lost race.
var ErrNotReserved = errors.New("no reserved cache entry for fingerprint")

// ErrDocumentRejected marks converter failures caused by the input itself,
// as opposed to the converter crashing. Converter implementations wrap it.
var ErrDocumentRejected = errors.New("converter rejected the document")

type CacheStats struct {
	TotalEntries    int64  `json:"total_entries"`
	Completed       int64  `json:"completed"`
	Reserved        int64  `json:"reserved"`
	ResultBytes     int64  `json:"result_bytes"`
	HumanResultSize string `json:"human_result_size"`
}

type PoolStats struct {
	Workers         int   `json:"workers"`
	QueueCapacity   int   `json:"queue_capacity"`
	ActiveWorkers   int   `json:"active_workers"`
	TotalDispatched int64 `json:"total_dispatched"`
	TotalConverted  int64 `json:"total_converted"`
	TotalErrors     int64 `json:"total_errors"`
}

type ConversionStats struct {
	Cache CacheStats `json:"cache"`
	Pool  PoolStats  `json:"pool"`
}

// ICacheStore is the persistent, uniquely-keyed record of reservations and
// completed results. Every operation is atomic with respect to the store;
// exclusivity comes from the fingerprint's uniqueness constraint, never
// from application-level locking.
type ICacheStore interface {
	// Lookup returns the entry for the fingerprint, or nil when absent.
	Lookup(ctx context.Context, fp string) (*CacheEntry, error)
	// Reserve attempts to insert a new reserved row. Concurrent callers
	// racing on the same fingerprint get exactly one ReserveAcquired.
	Reserve(ctx context.Context, fp string, sourceTimestamp time.Time) (ReserveOutcome, error)
	// Complete transitions a reserved row to completed. Returns
	// ErrNotReserved when no matching reserved row exists.
	Complete(ctx context.Context, fp string, result json.RawMessage) error
	// ReclaimStale takes over a reservation older than olderThan,
	// resetting its reservation clock.
	ReclaimStale(ctx context.Context, fp string, olderThan time.Time) (ReclaimOutcome, error)
	Stats(ctx context.Context) (CacheStats, error)
}

// Converter turns raw document bytes into structured JSON. Implementations
// must honor ctx cancellation and wrap input-caused failures with
// ErrDocumentRejected.
type Converter interface {
	Convert(ctx context.Context, document []byte) (json.RawMessage, error)
}

// Fetcher retrieves a source document from a remote location.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type IConversionUsecase interface {
	Convert(ctx context.Context, document []byte, sourceTimestamp time.Time) (json.RawMessage, error)
	ConvertFromURL(ctx context.Context, url string, sourceTimestamp time.Time) (json.RawMessage, error)
	Stats(ctx context.Context) (ConversionStats, error)
}

// ConvertRequest is the inbound shape of a byte-upload conversion before
// validation. SourceTimestamp stays a string until validated.
type ConvertRequest struct {
	Document        []byte
	SourceTimestamp string
}

// ConvertURLRequest is the inbound shape of a by-URL conversion.
type ConvertURLRequest struct {
	URL             string `json:"url"`
	SourceTimestamp string `json:"source_timestamp"`
}
