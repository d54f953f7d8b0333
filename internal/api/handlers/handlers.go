package handlers

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/receipt-archiver/internal/api/middleware"
	"github.com/dvloznov/receipt-archiver/internal/pipeline"
	"github.com/dvloznov/receipt-archiver/internal/runs"
)

//go:embed index.html
var indexPage []byte

// maxUploadMemory bounds how much of a multipart body is held in memory
// before spilling to disk.
const maxUploadMemory = 32 << 20

// ReceiptProcessor runs the pipeline for one uploaded file.
type ReceiptProcessor interface {
	Process(ctx context.Context, filename string, upload io.Reader) (*pipeline.Result, error)
}

// UploadHandler handles the camera page and receipt uploads.
type UploadHandler struct {
	processor ReceiptProcessor
	log       zerolog.Logger
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(processor ReceiptProcessor, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		processor: processor,
		log:       log,
	}
}

// Index handles GET / with the auto-capturing camera page.
func (h *UploadHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(indexPage)
}

// Upload handles POST /upload.
//
// Response contract: 400 with a specific plain-text body for client input
// errors and the no-text rejection, 200 with the Drive file ID on success,
// 500 with a generic body on service failure.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		middleware.WriteText(w, http.StatusBadRequest, "No file part in the request")
		return
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		// A part named "file" with an empty filename is parsed as a plain
		// form value, not a file.
		if _, selected := r.MultipartForm.Value["file"]; selected {
			middleware.WriteText(w, http.StatusBadRequest, "No file selected")
			return
		}
		middleware.WriteText(w, http.StatusBadRequest, "No file part in the request")
		return
	}

	header := files[0]
	if header.Filename == "" {
		middleware.WriteText(w, http.StatusBadRequest, "No file selected")
		return
	}

	file, err := header.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to open uploaded file part")
		middleware.WriteText(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer file.Close()

	h.log.Info().
		Str("filename", header.Filename).
		Int64("size", header.Size).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Msg("Receipt upload received")

	// Once a run begins it goes to completion or failure; a client
	// disconnect must not cancel in-flight OCR or Drive calls.
	result, err := h.processor.Process(context.WithoutCancel(r.Context()), header.Filename, file)
	if errors.Is(err, pipeline.ErrNoText) {
		middleware.WriteText(w, http.StatusBadRequest, "No text detected in image")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("filename", header.Filename).Msg("Pipeline execution failed")
		middleware.WriteText(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	middleware.WriteText(w, http.StatusOK,
		fmt.Sprintf("Receipt processed and uploaded successfully! Drive File ID: %s", result.FileID))
}

// RunsHandler exposes the in-memory run tracker.
type RunsHandler struct {
	store *runs.Store
	log   zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(store *runs.Store, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		store: store,
		log:   log,
	}
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := h.store.Get(runID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Run not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, run)
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := runs.Filter{
		Status: runs.Status(r.URL.Query().Get("status")),
	}

	runsList, err := h.store.List(filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runsList,
		"count": len(runsList),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
