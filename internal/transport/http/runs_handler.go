package http

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/briantruongvn/ngocson-tss-converter/internal/errors"
	"github.com/briantruongvn/ngocson-tss-converter/internal/pipeline"
	"github.com/briantruongvn/ngocson-tss-converter/internal/quality"
)

// RunService is the slice of the run manager the runs handler needs.
type RunService interface {
	Get(runID string) (pipeline.Snapshot, error)
	List() []pipeline.Snapshot
	Cancel(runID string) error
	Report(runID string) (quality.Report, error)
	FinalArtifact(runID string) (string, error)
}

// RunsHandler serves run status, reports and deliverables.
type RunsHandler struct {
	manager RunService
	logger  *slog.Logger
}

// NewRunsHandler creates a runs handler.
func NewRunsHandler(manager RunService, logger *slog.Logger) *RunsHandler {
	if manager == nil {
		panic("manager cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{
		manager: manager,
		logger:  logger.With(slog.String("handler", "runs")),
	}
}

// Routes mounts the run endpoints.
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Route("/{runID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Cancel)
		r.Get("/report", h.Report)
		r.Get("/download", h.Download)
	})
	return r
}

// RunListResponse wraps the run list.
type RunListResponse struct {
	Runs  []pipeline.Snapshot `json:"runs"`
	Count int                 `json:"count"`
}

// List handles GET /api/runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	runs := h.manager.List()
	render.JSON(w, r, RunListResponse{Runs: runs, Count: len(runs)})
}

// Get handles GET /api/runs/{runID}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	snap, err := h.manager.Get(runID)
	if err != nil {
		h.renderRunError(w, r, runID, err)
		return
	}
	render.JSON(w, r, snap)
}

// Cancel handles DELETE /api/runs/{runID}.
func (h *RunsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := h.manager.Cancel(runID); err != nil {
		h.renderRunError(w, r, runID, err)
		return
	}

	h.logger.InfoContext(r.Context(), "run cancelled", slog.String("run_id", runID))
	render.JSON(w, r, map[string]string{
		"run_id": runID,
		"status": "cancelling",
	})
}

// Report handles GET /api/runs/{runID}/report.
func (h *RunsHandler) Report(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	report, err := h.manager.Report(runID)
	if err != nil {
		h.renderRunError(w, r, runID, err)
		return
	}
	render.JSON(w, r, report)
}

// Download handles GET /api/runs/{runID}/download, streaming the final
// workbook of a completed run.
func (h *RunsHandler) Download(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	path, err := h.manager.FinalArtifact(runID)
	if err != nil {
		h.renderRunError(w, r, runID, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func (h *RunsHandler) renderRunError(w http.ResponseWriter, r *http.Request, runID string, err error) {
	switch {
	case errors.Is(err, pipeline.ErrRunNotFound):
		render.Render(w, r, apierrors.ErrRunNotFound)
	case errors.Is(err, pipeline.ErrRunNotRunning):
		render.Render(w, r, apierrors.NewWithDetails(http.StatusConflict, "RUN_NOT_RUNNING",
			"Run is not active", runID))
	case errors.Is(err, pipeline.ErrRunNotCompleted):
		render.Render(w, r, apierrors.NewWithDetails(http.StatusConflict, "RUN_NOT_COMPLETED",
			"Run has not produced its deliverable yet", runID))
	default:
		h.logger.ErrorContext(r.Context(), "run request failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.ErrInternalServer)
	}
}
