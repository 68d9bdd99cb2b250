package jobs

import (
	"context"
	"errors"

	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/logger"
)

// WorkerUpdate is a progress report from the external FFmpeg worker,
// delivered through the callback endpoint. Updates arrive at-least-once and
// out of order; every field is applied as an idempotent upgrade.
type WorkerUpdate struct {
	Progress     *int            `json:"progress,omitempty"`
	Status       Status          `json:"status,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Results      []OutputSegment `json:"results,omitempty"`
}

// Updater applies worker progress reports to the record store under the
// same monotonicity and sticky-terminal guards the reconciler obeys.
type Updater struct {
	store  RecordStore
	notify Notifier
}

// NewUpdater creates an Updater.
func NewUpdater(store RecordStore, notify Notifier) *Updater {
	return &Updater{store: store, notify: notify}
}

// Apply folds one worker update into the job record. Regressions (lower
// progress, backward status) are silently dropped rather than rejected, so
// duplicate and reordered deliveries are harmless.
func (u *Updater) Apply(ctx context.Context, jobID string, update WorkerUpdate) error {
	switch update.Status {
	case "", StatusProcessing, StatusCompleted, StatusFailed:
	default:
		return validationError(errInvalidStatus(update.Status))
	}
	if update.Progress != nil && (*update.Progress < 0 || *update.Progress > 100) {
		return validationError(errInvalidProgress(*update.Progress))
	}

	rec, err := u.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return storeError(err)
	}
	if rec.Status.IsTerminal() {
		// Late or duplicate report after the job finished.
		logger.Debug("dropping worker update for terminal job", "job_id", jobID, "status", rec.Status)
		return nil
	}

	switch update.Status {
	case StatusCompleted:
		results := update.Results
		if len(results) == 0 {
			results = rec.Results
		}
		if err := u.store.MarkCompleted(ctx, jobID, results); err != nil {
			return storeError(err)
		}
		u.notify.emit(JobEvent{Type: "job_update", JobID: jobID, Status: StatusCompleted, Progress: progressDone})
		return nil

	case StatusFailed:
		msg := update.ErrorMessage
		if msg == "" {
			msg = "worker reported failure"
		}
		if err := u.store.MarkFailed(ctx, jobID, msg); err != nil {
			return storeError(err)
		}
		u.notify.emit(JobEvent{Type: "job_update", JobID: jobID, Status: StatusFailed, Progress: rec.Progress, Error: msg})
		return nil
	}

	if err := u.store.MarkProcessing(ctx, jobID); err != nil {
		return storeError(err)
	}
	reported := rec.Progress
	if update.Progress != nil {
		stored, err := u.store.AdvanceProgress(ctx, jobID, *update.Progress)
		if err != nil {
			return storeError(err)
		}
		reported = stored
	}
	if rec.Status != StatusProcessing || reported > rec.Progress {
		u.notify.emit(JobEvent{Type: "job_update", JobID: jobID, Status: StatusProcessing, Progress: reported})
	}
	return nil
}
