package api

import (
	"net/http"
	"time"

	"github.com/sioma/spot-ingest/internal/pkg/httputil"
)

// IngestStatus is the watcher surface the API needs.
type IngestStatus interface {
	IsHealthy() bool
	IsRunning() bool
	LastRunAt() time.Time
	Trigger()
}

// IngestTrigger kicks off a bucket scan outside the ticker.
func (h *Handlers) IngestTrigger(w http.ResponseWriter, r *http.Request) {
	if h.watcher == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "ingest watcher not enabled")
		return
	}
	if h.watcher.IsRunning() {
		httputil.OK(w, map[string]string{"status": "already_running"})
		return
	}
	h.watcher.Trigger()
	httputil.OK(w, map[string]string{"status": "triggered"})
}

// IngestGetStatus reports watcher health and run state.
func (h *Handlers) IngestGetStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"enabled": h.watcher != nil,
	}
	if h.watcher != nil {
		status["healthy"] = h.watcher.IsHealthy()
		status["running"] = h.watcher.IsRunning()
		if lastRun := h.watcher.LastRunAt(); !lastRun.IsZero() {
			status["last_run_at"] = lastRun
		}
	}
	httputil.OK(w, status)
}
