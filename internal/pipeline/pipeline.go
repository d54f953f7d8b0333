// Package pipeline sequences the receipt processing stages: persist the
// upload to scratch, normalize the image, extract text, categorize it and
// place the original file into the Drive archive tree.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/receipt-archiver/internal/runs"
)

// ErrNoText is returned when OCR finds no text in the uploaded image.
// It is a clean client-facing rejection, not a service failure.
var ErrNoText = errors.New("no text detected in image")

// Result reports a successfully archived receipt.
type Result struct {
	// RunID identifies this pipeline run.
	RunID string
	// FileID is the archived file's Drive identifier.
	FileID string
	// Category is the label assigned to the receipt.
	Category string
	// Quarter is the fiscal quarter folder the file was placed under.
	Quarter string
}

// Config carries the dependencies and settings for a Pipeline.
type Config struct {
	Normalizer   Normalizer
	Extractor    TextExtractor
	Categorizer  Categorizer
	Archive      Archiver
	Runs         *runs.Store
	RootFolderID string
	ScratchDir   string
	Log          zerolog.Logger

	// Now supplies the current time used for fiscal-quarter resolution.
	// Defaults to time.Now.
	Now func() time.Time
}

// Pipeline runs the linear receipt processing sequence. Service clients are
// injected once at construction and shared across requests; each Process
// call owns all per-request state.
type Pipeline struct {
	normalizer   Normalizer
	extractor    TextExtractor
	categorizer  Categorizer
	archive      Archiver
	runs         *runs.Store
	rootFolderID string
	scratchDir   string
	log          zerolog.Logger
	now          func() time.Time
}

// New creates a Pipeline from the given config.
func New(cfg Config) *Pipeline {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		normalizer:   cfg.Normalizer,
		extractor:    cfg.Extractor,
		categorizer:  cfg.Categorizer,
		archive:      cfg.Archive,
		runs:         cfg.Runs,
		rootFolderID: cfg.RootFolderID,
		scratchDir:   cfg.ScratchDir,
		log:          cfg.Log,
		now:          now,
	}
}

// Process runs the full pipeline for one uploaded file and returns the
// archived file's identifiers.
//
// The upload is spooled to a request-unique scratch path which is removed on
// every exit, including propagated service failures. ErrNoText signals the
// no-text rejection; all other errors are service failures.
func (p *Pipeline) Process(ctx context.Context, filename string, upload io.Reader) (*Result, error) {
	run := &runs.Run{
		RunID:     uuid.NewString(),
		Filename:  filename,
		Stage:     runs.StageReceived,
		Status:    runs.StatusRunning,
		CreatedAt: p.now(),
	}
	p.saveRun(run)

	// Scratch path is keyed by run ID, never by the client filename, so
	// concurrent uploads sharing a name cannot collide.
	localPath := filepath.Join(p.scratchDir, run.RunID+"-"+filepath.Base(filename))
	if err := spoolUpload(localPath, upload); err != nil {
		p.failRun(run, err)
		return nil, err
	}
	defer func() {
		if err := os.Remove(localPath); err != nil {
			p.log.Warn().Err(err).Str("path", localPath).Msg("Failed to remove scratch file")
		}
	}()

	imageBytes, err := os.ReadFile(localPath)
	if err != nil {
		err = fmt.Errorf("reading scratch file: %w", err)
		p.failRun(run, err)
		return nil, err
	}

	normalized, err := p.normalizer.Normalize(imageBytes)
	if err != nil {
		p.failRun(run, err)
		return nil, err
	}
	p.advanceRun(run, runs.StageNormalized)

	text, err := p.extractor.ExtractText(ctx, normalized)
	if err != nil {
		p.failRun(run, err)
		return nil, err
	}
	if text == "" {
		p.rejectRun(run)
		return nil, ErrNoText
	}
	p.advanceRun(run, runs.StageTranscribed)

	category, err := p.categorizer.Categorize(ctx, text)
	if err != nil {
		p.failRun(run, err)
		return nil, err
	}
	run.Category = category
	p.advanceRun(run, runs.StageCategorized)

	quarter := QuarterOf(p.now())
	run.Quarter = quarter

	quarterFolderID, err := p.archive.EnsureFolder(ctx, quarter, p.rootFolderID)
	if err != nil {
		p.failRun(run, err)
		return nil, err
	}
	categoryFolderID, err := p.archive.EnsureFolder(ctx, category, quarterFolderID)
	if err != nil {
		p.failRun(run, err)
		return nil, err
	}

	// The original, non-normalized file is what gets archived.
	fileID, err := p.archive.UploadFile(ctx, localPath, filepath.Base(filename), categoryFolderID)
	if err != nil {
		p.failRun(run, err)
		return nil, err
	}
	run.DriveFileID = fileID
	p.advanceRun(run, runs.StagePlaced)

	p.finishRun(run, runs.StageDone, runs.StatusCompleted)

	p.log.Info().
		Str("run_id", run.RunID).
		Str("category", category).
		Str("quarter", quarter).
		Str("drive_file_id", fileID).
		Msg("Receipt archived")

	return &Result{
		RunID:    run.RunID,
		FileID:   fileID,
		Category: category,
		Quarter:  quarter,
	}, nil
}

// spoolUpload writes the upload to localPath. On failure the partial file is
// removed so an aborted upload leaves nothing behind.
func spoolUpload(localPath string, upload io.Reader) error {
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("creating scratch file: %w", err)
	}
	if _, err := io.Copy(f, upload); err != nil {
		f.Close()
		os.Remove(localPath)
		return fmt.Errorf("spooling upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(localPath)
		return fmt.Errorf("closing scratch file: %w", err)
	}
	return nil
}

func (p *Pipeline) saveRun(run *runs.Run) {
	if p.runs == nil {
		return
	}
	if err := p.runs.Save(run); err != nil {
		p.log.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to save run state")
	}
}

func (p *Pipeline) advanceRun(run *runs.Run, stage runs.Stage) {
	run.Stage = stage
	p.saveRun(run)
}

func (p *Pipeline) rejectRun(run *runs.Run) {
	run.Error = ErrNoText.Error()
	p.finishRun(run, runs.StageTranscribed, runs.StatusRejected)
}

func (p *Pipeline) failRun(run *runs.Run, err error) {
	run.Error = err.Error()
	p.finishRun(run, run.Stage, runs.StatusFailed)
}

func (p *Pipeline) finishRun(run *runs.Run, stage runs.Stage, status runs.Status) {
	finished := p.now()
	run.Stage = stage
	run.Status = status
	run.FinishedAt = &finished
	p.saveRun(run)
}
