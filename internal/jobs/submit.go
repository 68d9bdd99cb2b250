package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/logger"
	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/split"
)

// Submitter turns a split request into a queued job. It composes the split
// plan builder, the blob store, the record store and the queue; it never
// waits on the worker itself.
type Submitter struct {
	store RecordStore
	blob  BlobStore
	queue QueueClient
	now   func() time.Time
}

// NewSubmitter creates a Submitter with its dependencies injected.
func NewSubmitter(store RecordStore, blob BlobStore, queue QueueClient) *Submitter {
	return &Submitter{
		store: store,
		blob:  blob,
		queue: queue,
		now:   time.Now,
	}
}

// Submit validates the request, resolves the source object, persists a
// queued JobRecord and publishes the work order. The record exists before
// the publish so a status poll never 404s on a job the client was told
// about. Returns the new job id with status queued.
func (s *Submitter) Submit(ctx context.Context, sourceKey string, req split.Request) (SubmissionResult, error) {
	cfg, err := split.Build(req)
	if err != nil {
		return SubmissionResult{}, validationError(err)
	}

	source, err := s.blob.ResolveSource(ctx, sourceKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SubmissionResult{}, notFoundError("source object for key " + sourceKey)
		}
		return SubmissionResult{}, storeError(err)
	}

	rec := &JobRecord{
		JobID:       uuid.New().String(),
		Status:      StatusQueued,
		Progress:    0,
		Source:      source,
		SplitConfig: cfg,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return SubmissionResult{}, storeError(err)
	}

	order := WorkOrder{
		Operation:        OperationSplitVideo,
		SourceBucket:     source.Bucket,
		SourceKey:        source.Key,
		JobID:            rec.JobID,
		SplitConfig:      cfg,
		ExpectedSegments: split.ExpectedSegments(cfg),
	}
	messageID, err := s.queue.Publish(ctx, order)
	if err != nil {
		// The record stays queued with no consumer. That is harmless: it is
		// never promoted past queued and completion relies on blob evidence.
		logger.Error("work order publish failed", "job_id", rec.JobID, "error", err)
		return SubmissionResult{}, queueError(err)
	}

	// Correlation id only; submission already succeeded.
	if err := s.store.SetQueueMessageID(ctx, rec.JobID, messageID); err != nil {
		logger.Warn("could not record queue message id", "job_id", rec.JobID, "error", err)
	}

	logger.Info("split job submitted",
		"job_id", rec.JobID,
		"method", cfg.Method,
		"source_key", source.Key,
		"message_id", messageID)

	return SubmissionResult{JobID: rec.JobID, Status: StatusQueued}, nil
}
