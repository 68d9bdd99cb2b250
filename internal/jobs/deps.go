package jobs

import (
	"context"
	"time"
)

// RecordStore is the durable keyed store of JobRecords. Implemented by
// internal/store. Every mutation is an idempotent upgrade: progress only
// moves up, status only moves forward, terminal states are final.
type RecordStore interface {
	// Create persists a new record. The record must not already exist.
	Create(ctx context.Context, rec *JobRecord) error

	// Get returns the record for a job id, or ErrNotFound.
	Get(ctx context.Context, jobID string) (*JobRecord, error)

	// SetQueueMessageID attaches the queue correlation id after publish.
	SetQueueMessageID(ctx context.Context, jobID, messageID string) error

	// AdvanceProgress raises progress to at least the given value on a
	// non-terminal record and returns the stored value. It never lowers
	// progress.
	AdvanceProgress(ctx context.Context, jobID string, progress int) (int, error)

	// MarkProcessing moves a queued record to processing. A no-op for
	// records already past queued.
	MarkProcessing(ctx context.Context, jobID string) error

	// MarkCompleted finalizes a non-terminal record with its results and
	// progress 100. Repeated calls on a completed record are no-ops.
	MarkCompleted(ctx context.Context, jobID string, results []OutputSegment) error

	// MarkFailed finalizes a non-terminal record with an error message.
	// Repeated calls on a failed record are no-ops.
	MarkFailed(ctx context.Context, jobID string, errorMessage string) error

	Close() error
}

// BlobStore locates source media and observes worker outputs. Implemented
// by internal/blob. The output prefix is read-only from this service's
// perspective; only the worker writes there.
type BlobStore interface {
	// ResolveSource finds the input object for an upload id under the
	// known key conventions, or returns ErrNotFound.
	ResolveSource(ctx context.Context, id string) (SourceObject, error)

	// ListOutputs returns recognized media outputs under the job-scoped
	// output prefix, inspecting at most max entries.
	ListOutputs(ctx context.Context, jobID string, max int) ([]OutputSegment, error)

	// StatOutput returns one named output, or ErrNotFound.
	StatOutput(ctx context.Context, jobID, filename string) (OutputSegment, error)

	// PresignDownload produces a time-limited retrieval URL for a stored
	// object.
	PresignDownload(ctx context.Context, storageKey string, expiry time.Duration) (string, error)
}

// QueueClient publishes work orders for the external worker fleet.
// Implemented by internal/queue. Delivery is at-least-once.
type QueueClient interface {
	// Publish durably enqueues a work order and returns its message id.
	Publish(ctx context.Context, order WorkOrder) (string, error)
}
