package api

import (
	"net/http"

	videosplitter "github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000"
)

// registerAPIRoutes registers all API endpoints on the given mux
func registerAPIRoutes(mux *http.ServeMux, h *Handler) {
	// Job submission and queries
	mux.HandleFunc("POST /api/split", h.SubmitSplit)
	mux.HandleFunc("GET /api/jobs/stream", h.JobStream)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /api/jobs/{id}/status", h.JobStatus)
	mux.HandleFunc("GET /api/jobs/{id}/download/{filename}", h.Download)

	// Worker callback
	mux.HandleFunc("POST /api/jobs/{id}/progress", h.WorkerProgress)

	// Misc
	mux.HandleFunc("GET /api/healthz", h.Healthz)
}

// NewRouter creates a new HTTP router with all API endpoints
func NewRouter(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	registerAPIRoutes(mux, h)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "video-splitter",
			"version": videosplitter.Version,
		})
	})

	return mux
}
