package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/receipt-archiver/internal/pipeline"
	"github.com/dvloznov/receipt-archiver/internal/runs"
)

type mockProcessor struct {
	ProcessFunc func(ctx context.Context, filename string, upload io.Reader) (*pipeline.Result, error)
}

func (m *mockProcessor) Process(ctx context.Context, filename string, upload io.Reader) (*pipeline.Result, error) {
	return m.ProcessFunc(ctx, filename, upload)
}

func multipartUpload(t *testing.T, fieldName, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(fieldName, filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUpload_Success(t *testing.T) {
	var gotFilename string
	handler := NewUploadHandler(&mockProcessor{
		ProcessFunc: func(ctx context.Context, filename string, upload io.Reader) (*pipeline.Result, error) {
			gotFilename = filename
			return &pipeline.Result{FileID: "drive-file-42", Category: "Meals", Quarter: "Q1"}, nil
		},
	}, zerolog.Nop())

	body, contentType := multipartUpload(t, "file", "receipt.jpg", []byte("jpeg bytes"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "drive-file-42") {
		t.Errorf("body = %q, want it to contain the file ID", rec.Body.String())
	}
	if gotFilename != "receipt.jpg" {
		t.Errorf("pipeline received filename %q", gotFilename)
	}
}

func TestUpload_NoFilePart(t *testing.T) {
	handler := NewUploadHandler(&mockProcessor{
		ProcessFunc: func(ctx context.Context, filename string, upload io.Reader) (*pipeline.Result, error) {
			t.Fatal("pipeline must not run without a file")
			return nil, nil
		},
	}, zerolog.Nop())

	// Multipart body with a different field name entirely.
	body, contentType := multipartUpload(t, "document", "receipt.jpg", []byte("bytes"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if rec.Body.String() != "No file part in the request" {
		t.Errorf("body = %q, want exact message", rec.Body.String())
	}
}

func TestUpload_NotMultipart(t *testing.T) {
	handler := NewUploadHandler(&mockProcessor{
		ProcessFunc: func(ctx context.Context, filename string, upload io.Reader) (*pipeline.Result, error) {
			return nil, nil
		},
	}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("plain body"))
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if rec.Body.String() != "No file part in the request" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestUpload_EmptyFilename(t *testing.T) {
	handler := NewUploadHandler(&mockProcessor{
		ProcessFunc: func(ctx context.Context, filename string, upload io.Reader) (*pipeline.Result, error) {
			t.Fatal("pipeline must not run for an empty filename")
			return nil, nil
		},
	}, zerolog.Nop())

	// A part named "file" with filename="" is what the camera form sends
	// when no photo was selected.
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename=""`)
	header.Set("Content-Type", "application/octet-stream")
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("creating part: %v", err)
	}
	part.Write([]byte(""))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if rec.Body.String() != "No file selected" {
		t.Errorf("body = %q, want exact message", rec.Body.String())
	}
}

func TestUpload_PipelineSurvivesClientDisconnect(t *testing.T) {
	handler := NewUploadHandler(&mockProcessor{
		ProcessFunc: func(ctx context.Context, filename string, upload io.Reader) (*pipeline.Result, error) {
			if ctx.Err() != nil {
				t.Errorf("pipeline context already canceled: %v", ctx.Err())
			}
			return &pipeline.Result{FileID: "drive-file-42"}, nil
		},
	}, zerolog.Nop())

	body, contentType := multipartUpload(t, "file", "receipt.jpg", []byte("bytes"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)

	// Simulate the client going away before the pipeline starts.
	reqCtx, cancel := context.WithCancel(req.Context())
	cancel()
	req = req.WithContext(reqCtx)

	rec := httptest.NewRecorder()
	handler.Upload(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 despite disconnected client", rec.Code)
	}
}

func TestUpload_NoTextDetected(t *testing.T) {
	handler := NewUploadHandler(&mockProcessor{
		ProcessFunc: func(ctx context.Context, filename string, upload io.Reader) (*pipeline.Result, error) {
			return nil, pipeline.ErrNoText
		},
	}, zerolog.Nop())

	body, contentType := multipartUpload(t, "file", "blank.jpg", []byte("white"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if rec.Body.String() != "No text detected in image" {
		t.Errorf("body = %q, want exact message", rec.Body.String())
	}
}

func TestUpload_ServiceFailure(t *testing.T) {
	handler := NewUploadHandler(&mockProcessor{
		ProcessFunc: func(ctx context.Context, filename string, upload io.Reader) (*pipeline.Result, error) {
			return nil, errors.New("vision unavailable")
		},
	}, zerolog.Nop())

	body, contentType := multipartUpload(t, "file", "receipt.jpg", []byte("bytes"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "vision unavailable") {
		t.Error("service error details must not leak to the client")
	}
}

func TestIndex_ServesCameraPage(t *testing.T) {
	handler := NewUploadHandler(&mockProcessor{
		ProcessFunc: func(ctx context.Context, filename string, upload io.Reader) (*pipeline.Result, error) {
			return nil, nil
		},
	}, zerolog.Nop())

	rec := httptest.NewRecorder()
	handler.Index(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	page := rec.Body.String()
	if !strings.Contains(page, `action="/upload"`) {
		t.Error("page missing upload form action")
	}
	if !strings.Contains(page, `capture="camera"`) {
		t.Error("page missing camera capture input")
	}
	if !strings.Contains(page, "window.onload = triggerCamera") {
		t.Error("page missing auto-trigger")
	}
}

func TestRunsHandler(t *testing.T) {
	store := runs.NewStore()
	store.Save(&runs.Run{
		RunID:     "run-1",
		Filename:  "receipt.jpg",
		Stage:     runs.StageDone,
		Status:    runs.StatusCompleted,
		CreatedAt: time.Now(),
	})

	handler := NewRunsHandler(store, zerolog.Nop())

	t.Run("GetRun", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.GetRun(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil), "run-1")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var run runs.Run
		if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if run.RunID != "run-1" || run.Status != runs.StatusCompleted {
			t.Errorf("unexpected run: %+v", run)
		}
	})

	t.Run("GetRunMissing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.GetRun(rec, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil), "nope")

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("ListRuns", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if resp.Count != 1 {
			t.Errorf("count = %d, want 1", resp.Count)
		}
	})
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
