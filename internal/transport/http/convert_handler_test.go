package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/briantruongvn/ngocson-tss-converter/internal/errors"
	"github.com/briantruongvn/ngocson-tss-converter/internal/pipeline"
)

type fakeStarter struct {
	started []string
	snap    pipeline.Snapshot
	err     error
}

func (f *fakeStarter) Start(inputPath string) (pipeline.Snapshot, error) {
	f.started = append(f.started, inputPath)
	if f.err != nil {
		return pipeline.Snapshot{}, f.err
	}
	snap := f.snap
	snap.InputPath = inputPath
	return snap, nil
}

type fakeUploadRecorder struct {
	bytes []int64
}

func (f *fakeUploadRecorder) UploadReceived(sizeBytes int64) {
	f.bytes = append(f.bytes, sizeBytes)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestConvertHandler_AcceptsUpload(t *testing.T) {
	starter := &fakeStarter{snap: pipeline.Snapshot{ID: "run-1", Status: pipeline.StatusPending}}
	recorder := &fakeUploadRecorder{}
	uploadDir := t.TempDir()
	h := NewConvertHandler(starter, uploadDir, 1<<20, recorder, discardLogger())

	body, contentType := multipartUpload(t, "file", "Supplier Report.xlsx", []byte("workbook-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Convert(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp ConvertResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.Run.ID)

	// The original base name must survive so output naming works.
	require.Len(t, starter.started, 1)
	assert.Equal(t, "Supplier Report.xlsx", filepath.Base(starter.started[0]))

	saved, err := os.ReadFile(starter.started[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("workbook-bytes"), saved)

	require.Len(t, recorder.bytes, 1)
	assert.Equal(t, int64(len("workbook-bytes")), recorder.bytes[0])
}

func TestConvertHandler_RejectsMissingFileField(t *testing.T) {
	starter := &fakeStarter{}
	h := NewConvertHandler(starter, t.TempDir(), 1<<20, nil, discardLogger())

	body, contentType := multipartUpload(t, "document", "report.xlsx", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Convert(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, starter.started)
}

func TestConvertHandler_RejectsWrongExtension(t *testing.T) {
	starter := &fakeStarter{}
	h := NewConvertHandler(starter, t.TempDir(), 1<<20, nil, discardLogger())

	body, contentType := multipartUpload(t, "file", "report.csv", []byte("a,b"))
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Convert(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_FILE_FORMAT")
	assert.Empty(t, starter.started)
}

func TestConvertHandler_RejectsExcelLockFile(t *testing.T) {
	starter := &fakeStarter{}
	h := NewConvertHandler(starter, t.TempDir(), 1<<20, nil, discardLogger())

	body, contentType := multipartUpload(t, "file", "~$report.xlsx", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Convert(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, starter.started)
}

func TestConvertHandler_RejectsOversizedUpload(t *testing.T) {
	starter := &fakeStarter{}
	h := NewConvertHandler(starter, t.TempDir(), 64, nil, discardLogger())

	body, contentType := multipartUpload(t, "file", "big.xlsx", bytes.Repeat([]byte("x"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Convert(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, starter.started)
}

func TestConvertHandler_StartFailureCleansUpUpload(t *testing.T) {
	starter := &fakeStarter{err: apierrors.NewFormatError("workbook has no sheets", nil)}
	uploadDir := t.TempDir()
	h := NewConvertHandler(starter, uploadDir, 1<<20, nil, discardLogger())

	body, contentType := multipartUpload(t, "file", "empty.xlsx", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Convert(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, starter.started, 1)
	_, err := os.Stat(starter.started[0])
	assert.True(t, os.IsNotExist(err))
}
