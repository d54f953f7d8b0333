// Command archive-receipt runs the receipt pipeline on a local image file
// without going through the HTTP surface.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/dvloznov/receipt-archiver/internal/classify"
	"github.com/dvloznov/receipt-archiver/internal/config"
	driveArchive "github.com/dvloznov/receipt-archiver/internal/drive"
	"github.com/dvloznov/receipt-archiver/internal/imaging"
	"github.com/dvloznov/receipt-archiver/internal/logger"
	"github.com/dvloznov/receipt-archiver/internal/ocr"
	"github.com/dvloznov/receipt-archiver/internal/pipeline"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	var (
		filePath   string
		configPath string
	)

	flag.StringVar(&filePath, "file", "", "Path to local receipt image (required)")
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the YAML config file")
	flag.Parse()

	if filePath == "" {
		log.Fatal().Msg("Usage: archive-receipt -file /path/to/receipt.jpg [-config config.yaml]")
	}

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := os.MkdirAll(cfg.Server.UploadDir, 0755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Server.UploadDir).Msg("Failed to create upload directory")
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	ocrClient, err := ocr.NewClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create OCR client")
	}
	defer ocrClient.Close()

	classifier, err := classify.NewClassifier(ctx, cfg.Model.Name, cfg.Categories)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create classifier")
	}

	var driveOpts []option.ClientOption
	if cfg.Drive.CredentialsFile != "" {
		driveOpts = append(driveOpts,
			option.WithCredentialsFile(cfg.Drive.CredentialsFile),
			option.WithScopes(drive.DriveScope),
		)
	}
	archive, err := driveArchive.NewArchive(ctx, driveOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Drive archive client")
	}

	proc := pipeline.New(pipeline.Config{
		Normalizer:   imaging.NewNormalizer(cfg.Image.MaxDimension, cfg.Image.Quality),
		Extractor:    ocrClient,
		Categorizer:  classifier,
		Archive:      archive,
		RootFolderID: cfg.Drive.RootFolderID,
		ScratchDir:   cfg.Server.UploadDir,
		Log:          log,
	})

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", filePath).Msg("Failed to open receipt image")
	}
	defer f.Close()

	result, err := proc.Process(ctx, filePath, f)
	if err != nil {
		log.Fatal().Err(err).Msg("Pipeline execution failed")
	}

	log.Info().
		Str("drive_file_id", result.FileID).
		Str("category", result.Category).
		Str("quarter", result.Quarter).
		Msg("Receipt archived successfully")
}
