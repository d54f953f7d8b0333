package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/dvloznov/receipt-archiver/internal/api/handlers"
	"github.com/dvloznov/receipt-archiver/internal/api/middleware"
	"github.com/dvloznov/receipt-archiver/internal/classify"
	"github.com/dvloznov/receipt-archiver/internal/config"
	driveArchive "github.com/dvloznov/receipt-archiver/internal/drive"
	"github.com/dvloznov/receipt-archiver/internal/imaging"
	"github.com/dvloznov/receipt-archiver/internal/logger"
	"github.com/dvloznov/receipt-archiver/internal/ocr"
	"github.com/dvloznov/receipt-archiver/internal/pipeline"
	"github.com/dvloznov/receipt-archiver/internal/runs"
)

func main() {
	// Parse command-line flags
	var (
		port       = flag.String("port", "", "HTTP server port (overrides config)")
		configPath = flag.String("config", "config.yaml", "Path to the YAML config file")
	)
	flag.Parse()

	// Load .env for local development; a missing file is fine.
	_ = godotenv.Load()

	// Initialize logger
	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	if err := os.MkdirAll(cfg.Server.UploadDir, 0755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Server.UploadDir).Msg("Failed to create upload directory")
	}

	ctx := context.Background()

	// Service clients are created once and held for the process lifetime.
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

	runStore := runs.NewStore()

	proc := pipeline.New(pipeline.Config{
		Normalizer:   imaging.NewNormalizer(cfg.Image.MaxDimension, cfg.Image.Quality),
		Extractor:    ocrClient,
		Categorizer:  classifier,
		Archive:      archive,
		Runs:         runStore,
		RootFolderID: cfg.Drive.RootFolderID,
		ScratchDir:   cfg.Server.UploadDir,
		Log:          log,
	})

	// Initialize handlers
	uploadHandler := handlers.NewUploadHandler(proc, log)
	runsHandler := handlers.NewRunsHandler(runStore, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			middleware.WriteText(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		uploadHandler.Index(w, r)
	})

	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			middleware.WriteText(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		uploadHandler.Upload(w, r)
	})

	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		runsHandler.ListRuns(w, r)
	})

	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
		if runID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Run ID is required")
			return
		}
		runsHandler.GetRun(w, r, runID)
	})

	mux.HandleFunc("/health", handlers.Health)

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server. The write timeout covers OCR, categorization and
	// the Drive upload for a single receipt.
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting receipt archiver")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
