// Package api exposes the spot validation pipeline and the SIOMA catalog
// over HTTP for the upload frontend.
package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/sioma/spot-ingest/internal/filereader"
	"github.com/sioma/spot-ingest/internal/pkg/httputil"
	"github.com/sioma/spot-ingest/internal/sioma"
	"github.com/sioma/spot-ingest/internal/spots"
	"github.com/sioma/spot-ingest/internal/storage"
)

// maxUploadBytes caps spot file uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// SiomaAPI is the slice of the SIOMA client the handlers use directly.
type SiomaAPI interface {
	Fincas(ctx context.Context) ([]sioma.Finca, error)
	Submit(ctx context.Context, rows []spots.CleanedRow) (map[string]any, error)
}

// Handlers carries the dependencies of all API endpoints. Store and watcher
// are optional; their endpoints answer 503 when not configured.
type Handlers struct {
	client  SiomaAPI
	catalog sioma.CatalogSource
	store   *storage.Store
	watcher IngestStatus

	autoRemoveDuplicates bool
}

// NewHandlers wires the endpoint dependencies.
func NewHandlers(client SiomaAPI, catalog sioma.CatalogSource, store *storage.Store, watcher IngestStatus, autoRemoveDuplicates bool) *Handlers {
	return &Handlers{
		client:               client,
		catalog:              catalog,
		store:                store,
		watcher:              watcher,
		autoRemoveDuplicates: autoRemoveDuplicates,
	}
}

// HealthCheck answers liveness probes.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

// GetFincas proxies the plantation catalog.
func (h *Handlers) GetFincas(w http.ResponseWriter, r *http.Request) {
	fincas, err := h.client.Fincas(r.Context())
	if err != nil {
		httputil.BadGateway(w, "could not fetch fincas from SIOMA", err)
		return
	}
	httputil.OK(w, fincas)
}

// GetLotes returns the lote catalog, scoped to ?finca_id= when given.
func (h *Handlers) GetLotes(w http.ResponseWriter, r *http.Request) {
	lotes, err := h.catalog.Lotes(r.Context(), r.URL.Query().Get("finca_id"))
	if err != nil {
		httputil.BadGateway(w, "could not fetch lotes from SIOMA", err)
		return
	}
	httputil.OK(w, lotes)
}

// ValidateFile accepts a multipart upload (file + finca_id) and runs the
// full pipeline against the finca's lote catalog. The response is the
// complete validation result; data-quality findings are part of the payload,
// never an HTTP error.
func (h *Handlers) ValidateFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "missing file field")
		return
	}
	defer file.Close()

	fincaID := strings.TrimSpace(r.FormValue("finca_id"))
	if fincaID == "" {
		httputil.BadRequest(w, "missing finca_id field")
		return
	}

	opts := spots.Options{AutoRemoveDuplicates: h.autoRemoveDuplicates}
	if v := r.FormValue("auto_remove_duplicates"); v != "" {
		flag, err := strconv.ParseBool(v)
		if err != nil {
			httputil.BadRequest(w, "invalid auto_remove_duplicates value")
			return
		}
		opts.AutoRemoveDuplicates = flag
	}

	lotes, err := h.catalog.Lotes(r.Context(), fincaID)
	if err != nil {
		httputil.BadGateway(w, "could not fetch lotes from SIOMA", err)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	rows, err := filereader.ReadSpotFile(data, header.Filename)
	if err != nil {
		httputil.BadRequest(w, "could not read file: "+err.Error())
		return
	}

	result := spots.Validate(rows, lotes, opts)

	if h.store != nil {
		run := storage.RunFromResult(header.Filename, fincaID, "upload", result)
		if err := h.store.RecordRun(r.Context(), run); err != nil {
			log.Printf("[api] record run for %s: %v", header.Filename, err)
		}
	}

	httputil.OK(w, result)
}

// reportRequest is the body of the report download endpoint: the issue
// lists of a previous validation, as returned by ValidateFile.
type reportRequest struct {
	Errors   []spots.Issue `json:"errors"`
	Warnings []spots.Issue `json:"warnings"`
	Filename string        `json:"filename"`
}

// DownloadReport renders the issue lists as a CSV attachment.
func (h *Handlers) DownloadReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	csvContent := spots.ErrorReportCSV(req.Errors, req.Warnings)
	if csvContent == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	filename := req.Filename
	if filename == "" {
		filename = spots.DefaultReportFilename
	}
	// Only the base name; path separators would corrupt the header.
	filename = strings.NewReplacer("/", "_", "\\", "_", `"`, "_").Replace(filename)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write([]byte(csvContent))
}

// submitRequest carries previously validated rows for the SIOMA upload.
type submitRequest struct {
	Data []spots.CleanedRow `json:"data"`
}

// SubmitValidated forwards validated rows to SIOMA.
func (h *Handlers) SubmitValidated(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Data) == 0 {
		httputil.BadRequest(w, "no data to submit")
		return
	}

	resp, err := h.client.Submit(r.Context(), req.Data)
	if err != nil {
		httputil.BadGateway(w, "could not submit data to SIOMA", err)
		return
	}

	httputil.OK(w, map[string]any{
		"status":         "enviado",
		"message":        fmt.Sprintf("%d spots submitted to SIOMA", len(req.Data)),
		"response_sioma": resp,
	})
}

// ListRuns returns the validation-run history.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "run log not configured")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	runs, err := h.store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	httputil.OK(w, runs)
}

// RunStats returns aggregate counters over the run log.
func (h *Handlers) RunStats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "run log not configured")
		return
	}

	stats, err := h.store.Stats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}
