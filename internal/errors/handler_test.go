package errors

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *ErrorHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewErrorHandler(logger, false)
}

func TestErrorToProblem_ContextErrors(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/convert", nil)

	tests := []struct {
		name string
		err  error
	}{
		{"deadline exceeded", context.DeadlineExceeded},
		{"canceled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := h.ErrorToProblem(tt.err, r)
			assert.Equal(t, http.StatusGatewayTimeout, problem.Status)
			assert.Equal(t, TypeTimeout, problem.Type)
		})
	}
}

func TestErrorToProblem_APIError(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodGet, "/api/runs/abc", nil)

	problem := h.ErrorToProblem(ErrRunNotFound, r)

	assert.Equal(t, http.StatusNotFound, problem.Status)
	assert.Equal(t, TypeNotFound, problem.Type)
	assert.Equal(t, "RUN_NOT_FOUND", problem.Extensions["error_code"])
	assert.Equal(t, "/api/runs/abc", problem.Instance)
}

func TestErrorToProblem_AppError(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/convert", nil)

	tests := []struct {
		name       string
		err        *AppError
		wantStatus int
		wantType   string
	}{
		{
			name:       "format error maps to 400",
			err:        NewFormatError("extension .csv not supported", nil),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeFileFormat,
		},
		{
			name:       "validation error maps to 400",
			err:        NewAppValidationError("input required"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
		},
		{
			name:       "structure error maps to 422",
			err:        NewStructureError("template sheet missing", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeWorkbookStructure,
		},
		{
			name:       "extraction error maps to 422",
			err:        NewExtractionError("no data rows", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeInternal,
		},
		{
			name:       "not found maps to 404",
			err:        NewNotFoundError("run"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "access error maps to 500",
			err:        NewAccessError("cannot read file", errors.New("permission denied")),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := h.ErrorToProblem(tt.err, r)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, string(tt.err.Type), problem.Extensions["error_type"])
		})
	}
}

func TestErrorToProblem_AppErrorContext(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/convert", nil)

	appErr := NewMappingError("no rows mapped", nil).WithContext("sheet", "P Packaging")
	problem := h.ErrorToProblem(appErr, r)

	assert.Equal(t, "P Packaging", problem.Extensions["sheet"])
}

func TestErrorToProblem_UnknownError(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)

	problem := h.ErrorToProblem(errors.New("something odd"), r)

	assert.Equal(t, http.StatusInternalServerError, problem.Status)
	assert.Equal(t, TypeInternal, problem.Type)
}

func TestHandleError_RendersProblem(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
	w := httptest.NewRecorder()

	h.HandleError(w, r, ErrRunNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "RUN_NOT_FOUND")
}

func TestHandleError_NilError(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	h.HandleError(w, r, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandlePanic(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/convert", nil)
	w := httptest.NewRecorder()

	h.HandlePanic(w, r, "unexpected nil workbook")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal Server Error")
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	problem := NewProblemDetails(
		http.StatusBadRequest,
		TypeFileFormat,
		"Invalid File Format",
		"only .xlsx is supported",
		"/api/convert",
	).WithExtension("error_code", "INVALID_FILE_FORMAT")

	data, err := problem.MarshalJSON()
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"type":"/errors/file/invalid-format"`)
	assert.Contains(t, s, `"status":400`)
	assert.Contains(t, s, `"error_code":"INVALID_FILE_FORMAT"`)
}
