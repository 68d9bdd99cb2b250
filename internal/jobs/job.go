package jobs

import (
	"time"

	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/split"
)

// Status represents the current state of a split job
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true for states that are never left again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SourceObject locates the input media in the blob store.
type SourceObject struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// OutputSegment is one output file produced by the worker.
type OutputSegment struct {
	Filename   string  `json:"filename"`
	SizeBytes  int64   `json:"size_bytes"`
	StorageKey string  `json:"storage_key"`
	Duration   float64 `json:"duration,omitempty"`
	Codec      string  `json:"codec,omitempty"`
}

// JobRecord is the durable, queryable representation of one split job.
// Exactly one record exists per job id; it is created at submission time
// and only ever upgraded afterwards (status forward, progress up).
type JobRecord struct {
	JobID          string          `json:"job_id"`
	Status         Status          `json:"status"`
	Progress       int             `json:"progress"` // 0-100, never decreases
	Source         SourceObject    `json:"source"`
	SplitConfig    split.Config    `json:"split_config"`
	Results        []OutputSegment `json:"results,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	QueueMessageID string          `json:"queue_message_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    time.Time       `json:"completed_at,omitempty"`
	FailedAt       time.Time       `json:"failed_at,omitempty"`
}

// WorkOrder is the message published for the external FFmpeg worker.
// Delivery is at-least-once; workers must treat it as idempotent.
type WorkOrder struct {
	Operation        string       `json:"operation"` // always "split_video"
	SourceBucket     string       `json:"source_bucket"`
	SourceKey        string       `json:"source_key"`
	JobID            string       `json:"job_id"`
	SplitConfig      split.Config `json:"split_config"`
	ExpectedSegments int          `json:"expected_segments,omitempty"` // 0 = unknown
}

// OperationSplitVideo is the only operation this service publishes.
const OperationSplitVideo = "split_video"

// SegmentView is the client-facing shape of one result entry.
type SegmentView struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	URL      string `json:"url,omitempty"`
}

// JobView is the client-facing reconciled state of a job.
type JobView struct {
	JobID        string        `json:"job_id"`
	Status       Status        `json:"status"`
	Progress     int           `json:"progress"`
	Results      []SegmentView `json:"results"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// SubmissionResult is what a successful submission returns to the caller.
type SubmissionResult struct {
	JobID  string `json:"job_id"`
	Status Status `json:"status"`
}

// JobEvent is broadcast to stream subscribers on observed job transitions.
type JobEvent struct {
	Type     string `json:"type"` // "job_update"
	JobID    string `json:"job_id"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

// Notifier receives job events. Implementations must not block; the
// services call it inline on the request path.
type Notifier func(JobEvent)

func (n Notifier) emit(ev JobEvent) {
	if n != nil {
		n(ev)
	}
}

// viewOf builds the client view from a record.
func viewOf(rec *JobRecord) JobView {
	view := JobView{
		JobID:        rec.JobID,
		Status:       rec.Status,
		Progress:     rec.Progress,
		Results:      make([]SegmentView, 0, len(rec.Results)),
		ErrorMessage: rec.ErrorMessage,
	}
	for _, seg := range rec.Results {
		view.Results = append(view.Results, SegmentView{
			Filename: seg.Filename,
			Size:     seg.SizeBytes,
		})
	}
	return view
}
