package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/jobs"
	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/split"
)

// SplitService starts split jobs.
type SplitService interface {
	Submit(ctx context.Context, sourceKey string, req split.Request) (jobs.SubmissionResult, error)
}

// StatusService serves reconciled job state.
type StatusService interface {
	GetStatus(ctx context.Context, jobID string) (jobs.JobView, error)
}

// DownloadService resolves time-limited download URLs.
type DownloadService interface {
	ResolveDownload(ctx context.Context, jobID, filename string) (string, error)
}

// UpdateService ingests worker progress reports.
type UpdateService interface {
	Apply(ctx context.Context, jobID string, update jobs.WorkerUpdate) error
}

// RecordReader exposes raw job records.
type RecordReader interface {
	Get(ctx context.Context, jobID string) (*jobs.JobRecord, error)
}

// Pinger reports reachability of a dependency for the health endpoint.
type Pinger func(ctx context.Context) error

// Timeouts bound each request path independently of the worker's own
// processing time.
type Timeouts struct {
	Submit   time.Duration
	Status   time.Duration
	Download time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Submit <= 0 {
		t.Submit = 10 * time.Second
	}
	if t.Status <= 0 {
		t.Status = 5 * time.Second
	}
	if t.Download <= 0 {
		t.Download = 5 * time.Second
	}
	return t
}

// Handler provides HTTP API handlers
type Handler struct {
	splits    SplitService
	status    StatusService
	downloads DownloadService
	updates   UpdateService
	records   RecordReader
	hub       *Hub
	timeouts  Timeouts
	pingers   map[string]Pinger
}

// NewHandler creates a new API handler
func NewHandler(splits SplitService, status StatusService, downloads DownloadService, updates UpdateService, records RecordReader, hub *Hub, timeouts Timeouts) *Handler {
	return &Handler{
		splits:    splits,
		status:    status,
		downloads: downloads,
		updates:   updates,
		records:   records,
		hub:       hub,
		timeouts:  timeouts.withDefaults(),
		pingers:   make(map[string]Pinger),
	}
}

// RegisterPinger adds a dependency check to the health endpoint.
func (h *Handler) RegisterPinger(name string, p Pinger) {
	h.pingers[name] = p
}

// response helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusForError maps the closed error taxonomy to HTTP statuses. This is
// the single translation point between error kinds and the wire.
func statusForError(err error) int {
	switch {
	case errors.Is(err, jobs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrQueueUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, jobs.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage hides internal detail for not-found errors so the key
// layout never leaks.
func errorMessage(err error) string {
	if errors.Is(err, jobs.ErrNotFound) {
		return "not found"
	}
	return err.Error()
}

func writeErrorFor(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), errorMessage(err))
}

// SplitRequest is the request body for starting a split job.
type SplitRequest struct {
	S3Key string `json:"s3_key"`
	split.Request
}

// SubmitSplit handles POST /api/split.
// Responds 202 immediately; the encode itself runs on the worker fleet.
func (h *Handler) SubmitSplit(w http.ResponseWriter, r *http.Request) {
	var req SplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.S3Key == "" {
		writeError(w, http.StatusBadRequest, "s3_key is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeouts.Submit)
	defer cancel()

	result, err := h.splits.Submit(ctx, req.S3Key, req.Request)
	if err != nil {
		writeErrorFor(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, result)
}

// JobStatus handles GET /api/jobs/{id}/status
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job ID required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeouts.Status)
	defer cancel()

	view, err := h.status.GetStatus(ctx, id)
	if err != nil {
		writeErrorFor(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// GetJob handles GET /api/jobs/{id} - the raw stored record
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job ID required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeouts.Status)
	defer cancel()

	rec, err := h.records.Get(ctx, id)
	if err != nil {
		writeErrorFor(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Download handles GET /api/jobs/{id}/download/{filename}
// Redirects to a time-limited URL rather than proxying bytes.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	filename := r.PathValue("filename")
	if id == "" || filename == "" {
		writeError(w, http.StatusBadRequest, "job ID and filename required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeouts.Download)
	defer cancel()

	url, err := h.downloads.ResolveDownload(ctx, id, filename)
	if err != nil {
		writeErrorFor(w, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// WorkerProgress handles POST /api/jobs/{id}/progress - the worker callback
func (h *Handler) WorkerProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job ID required")
		return
	}

	var update jobs.WorkerUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeouts.Status)
	defer cancel()

	if err := h.updates.Apply(ctx, id, update); err != nil {
		writeErrorFor(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Healthz handles GET /api/healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.pingers))
	healthy := true
	for name, ping := range h.pingers {
		if err := ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, checks)
}
