package http

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/render"
	"github.com/google/uuid"

	apierrors "github.com/briantruongvn/ngocson-tss-converter/internal/errors"
	"github.com/briantruongvn/ngocson-tss-converter/internal/pipeline"
)

// RunStarter is the slice of the run manager the convert handler needs.
type RunStarter interface {
	Start(inputPath string) (pipeline.Snapshot, error)
}

// UploadRecorder receives upload size observations. Satisfied by the
// metrics collector; nil disables recording.
type UploadRecorder interface {
	UploadReceived(sizeBytes int64)
}

// ConvertHandler accepts workbook uploads and starts conversion runs.
type ConvertHandler struct {
	manager   RunStarter
	uploadDir string
	maxBytes  int64
	recorder  UploadRecorder
	logger    *slog.Logger
	errs      *apierrors.ErrorHandler
}

// NewConvertHandler creates a convert handler. Uploads land in
// uploadDir under a per-upload directory so original file names
// survive into the output naming scheme.
func NewConvertHandler(manager RunStarter, uploadDir string, maxBytes int64, recorder UploadRecorder, logger *slog.Logger) *ConvertHandler {
	if manager == nil {
		panic("manager cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConvertHandler{
		manager:   manager,
		uploadDir: uploadDir,
		maxBytes:  maxBytes,
		recorder:  recorder,
		logger:    logger.With(slog.String("handler", "convert")),
		errs:      apierrors.NewErrorHandler(logger, false),
	}
}

// ConvertResponse wraps the accepted run snapshot.
type ConvertResponse struct {
	Run pipeline.Snapshot `json:"run"`
}

// Convert handles POST /api/convert. It expects a multipart form with
// a "file" field holding an .xlsx workbook and answers 202 with the
// pending run snapshot.
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			render.Render(w, r, apierrors.FileTooLargeError(-1, h.maxBytes))
			return
		}
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		render.Render(w, r, apierrors.ErrValidation("file", "multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	if err := checkUploadName(header.Filename); err != nil {
		render.Render(w, r, apierrors.FileFormatError(err.Error()))
		return
	}
	if header.Size > h.maxBytes {
		render.Render(w, r, apierrors.FileTooLargeError(header.Size, h.maxBytes))
		return
	}

	inputPath, err := h.saveUpload(file, header)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to persist upload",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.FileSystemError("upload", err))
		return
	}

	if h.recorder != nil {
		h.recorder.UploadReceived(header.Size)
	}

	snap, err := h.manager.Start(inputPath)
	if err != nil {
		// Typed validation errors from the manager map to RFC 7807
		// responses; a CSV renamed to .xlsx comes back 400 here.
		os.Remove(inputPath)
		h.errs.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "conversion run accepted",
		slog.String("run_id", snap.ID),
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, ConvertResponse{Run: snap})
}

// saveUpload writes the uploaded workbook to a fresh directory keeping
// the original base name, which the conversion steps use for output
// naming.
func (h *ConvertHandler) saveUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	dir := filepath.Join(h.uploadDir, uuid.New().String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	dst := filepath.Join(dir, filepath.Base(header.Filename))
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(dst)
		return "", err
	}
	return dst, nil
}

func checkUploadName(name string) error {
	base := filepath.Base(name)
	if base == "" || base == "." {
		return errors.New("upload has no file name")
	}
	if !strings.EqualFold(filepath.Ext(base), ".xlsx") {
		return errors.New("only .xlsx workbooks are accepted")
	}
	if strings.HasPrefix(base, "~$") {
		return errors.New("Excel lock files are not valid inputs")
	}
	return nil
}
