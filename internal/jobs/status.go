package jobs

import (
	"context"
	"errors"

	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/logger"
)

// completionEvidence is how many recognized output objects the blob store
// must hold before a job is reported completed on blob evidence alone.
// Every split produces at least two segments under the supported methods.
const completionEvidence = 2

// Progress floors derived from blob evidence. Derived progress is always
// clamped to the previously persisted value, never below it.
const (
	progressQueued    = 0
	progressStarted   = 25
	progressOneOutput = 50
	progressDone      = 100
)

// Reconciler serves status polls by reconciling the job record with blob
// evidence. Terminal records are sticky; non-terminal state is re-derived
// from a bounded listing of the job's output prefix, with progress clamped
// so it never regresses from the caller's point of view.
type Reconciler struct {
	store      RecordStore
	blob       BlobStore
	listingCap int
	notify     Notifier
}

// NewReconciler creates a Reconciler. listingCap bounds how many blob
// entries a single poll inspects.
func NewReconciler(store RecordStore, blob BlobStore, listingCap int, notify Notifier) *Reconciler {
	if listingCap <= 0 {
		listingCap = 200
	}
	return &Reconciler{store: store, blob: blob, listingCap: listingCap, notify: notify}
}

// GetStatus returns the reconciled client-visible state of a job.
//
// The strategy chain, cheapest and most authoritative first:
//  1. a terminal record is returned unchanged, no blob access
//  2. blob evidence drives the derived status and progress
//  3. derived progress is clamped to the persisted value
//  4. terminal observations are persisted once, idempotently
//  5. a failed listing falls back to the last persisted state
func (r *Reconciler) GetStatus(ctx context.Context, jobID string) (JobView, error) {
	rec, err := r.store.Get(ctx, jobID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			// Record store down. Blob evidence may still answer the poll.
			logger.Warn("record store read failed", "job_id", jobID, "error", err)
			return r.statusFromEvidenceOnly(ctx, jobID, err)
		}
		rec = nil
	}

	// Terminal states are sticky and never re-derived.
	if rec != nil && rec.Status.IsTerminal() {
		return viewOf(rec), nil
	}

	outputs, listErr := r.blob.ListOutputs(ctx, jobID, r.listingCap)
	if listErr != nil {
		logger.Warn("output listing failed, serving last known state", "job_id", jobID, "error", listErr)
		if rec == nil {
			return JobView{}, notFoundError("job " + jobID)
		}
		// Transient blob hiccups never regress the client's view.
		return viewOf(rec), nil
	}

	if rec == nil {
		if len(outputs) == 0 {
			return JobView{}, notFoundError("job " + jobID)
		}
		// No record but the worker left evidence: report what the blob
		// store proves without persisting anything. Records are only ever
		// created at submission time.
		return evidenceView(jobID, outputs), nil
	}

	if len(outputs) >= completionEvidence {
		return r.completeFromEvidence(ctx, rec, outputs), nil
	}

	derived := progressStarted
	if len(outputs) == 1 {
		derived = progressOneOutput
	}
	return r.advance(ctx, rec, derived), nil
}

// advance reports a processing view at the derived progress floor, clamped
// to the persisted value, and persists the upgrade.
func (r *Reconciler) advance(ctx context.Context, rec *JobRecord, derived int) JobView {
	previous := rec.Progress

	if rec.Status == StatusQueued {
		if err := r.store.MarkProcessing(ctx, rec.JobID); err != nil {
			logger.Warn("could not mark job processing", "job_id", rec.JobID, "error", err)
		}
	}

	reported := derived
	if previous > reported {
		reported = previous
	}

	stored, err := r.store.AdvanceProgress(ctx, rec.JobID, derived)
	if err != nil {
		logger.Warn("could not persist progress", "job_id", rec.JobID, "error", err)
	} else if stored > reported {
		// Another writer (the worker) got further than blob evidence shows.
		reported = stored
	}

	view := viewOf(rec)
	view.Status = StatusProcessing
	view.Progress = reported

	if rec.Status != StatusProcessing || reported > previous {
		r.notify.emit(JobEvent{Type: "job_update", JobID: rec.JobID, Status: StatusProcessing, Progress: reported})
	}
	return view
}

// completeFromEvidence promotes the record to completed on first
// observation and returns the terminal view. Result metadata already on the
// record wins over the bare listing, which carries no duration or codec
// details.
func (r *Reconciler) completeFromEvidence(ctx context.Context, rec *JobRecord, outputs []OutputSegment) JobView {
	results := outputs
	if len(rec.Results) >= len(outputs) {
		results = rec.Results
	}

	if err := r.store.MarkCompleted(ctx, rec.JobID, results); err != nil {
		logger.Warn("could not persist completion", "job_id", rec.JobID, "error", err)
	}

	rec.Status = StatusCompleted
	rec.Progress = progressDone
	rec.Results = results

	r.notify.emit(JobEvent{Type: "job_update", JobID: rec.JobID, Status: StatusCompleted, Progress: progressDone})
	return viewOf(rec)
}

// evidenceView derives a view purely from blob evidence, for jobs whose
// record is unreadable or missing.
func evidenceView(jobID string, outputs []OutputSegment) JobView {
	view := JobView{JobID: jobID, Results: make([]SegmentView, 0, len(outputs))}
	switch {
	case len(outputs) >= completionEvidence:
		view.Status = StatusCompleted
		view.Progress = progressDone
		for _, seg := range outputs {
			view.Results = append(view.Results, SegmentView{Filename: seg.Filename, Size: seg.SizeBytes})
		}
	case len(outputs) == 1:
		view.Status = StatusProcessing
		view.Progress = progressOneOutput
	default:
		view.Status = StatusProcessing
		view.Progress = progressStarted
	}
	return view
}

// statusFromEvidenceOnly answers a poll when the record store is down.
// With blob evidence the job is still reportable; without it the store
// error surfaces, since "not found" cannot be proven.
func (r *Reconciler) statusFromEvidenceOnly(ctx context.Context, jobID string, storeErr error) (JobView, error) {
	outputs, err := r.blob.ListOutputs(ctx, jobID, r.listingCap)
	if err != nil || len(outputs) == 0 {
		return JobView{}, storeError(storeErr)
	}
	return evidenceView(jobID, outputs), nil
}
