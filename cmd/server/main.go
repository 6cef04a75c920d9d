package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/audio"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/cleanup"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/config"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/handlers"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/logging"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/metrics"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/queue"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/storage"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	envFile := flag.String("env", ".env", "path to a .env file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logBuffer := logging.NewLogBuffer(1000)
	log := logging.New(cfg.Log, logBuffer)

	if err := run(cfg, log, logBuffer); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger, logBuffer *logging.LogBuffer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
		return fmt.Errorf("create temp directory: %w", err)
	}
	if err := os.MkdirAll(cfg.Storage.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	log.Info().Msg("initializing components")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics := metrics.NewPipeline(reg)

	runner := audio.ExecRunner{}
	transcriber, err := transcription.NewBackend(cfg.Provider.Backend, runner,
		cfg.TranscriptionProvider(), cfg.TranscriptionWhisper(), log)
	if err != nil {
		return fmt.Errorf("initialize transcriber: %w", err)
	}

	proberOpts := []audio.ProberOption{
		audio.WithFallbackHook(pipelineMetrics.ProbeFallback),
		audio.WithProbeLogger(log.With().Str("component", "probe").Logger()),
	}
	if cfg.Probe.WAVHeader {
		proberOpts = append(proberOpts, audio.WithWAVHeader())
	}
	pipeline := transcription.NewPipeline(
		audio.NewProber(runner, cfg.Probe.FFprobe, proberOpts...),
		audio.NewExtractor(runner, cfg.Probe.FFmpeg),
		transcriber,
		cfg.TranscriptionPipeline(),
		transcription.WithLogger(log.With().Str("component", "pipeline").Logger()),
		transcription.WithMetrics(pipelineMetrics),
	)

	localStorage := storage.NewLocalStorage(cfg.Storage.OutputDir)

	// Google Drive is optional: without credentials transcripts stay local and
	// /gdrive falls back to public links.
	var (
		uploader   queue.Uploader
		downloader handlers.Downloader = &storage.PublicDrive{}
	)
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err := storage.NewDriveClient(ctx, storage.DriveConfig{
			CredentialsFile: cfg.GoogleDrive.CredentialsFile,
			TokenFile:       cfg.GoogleDrive.TokenFile,
			FolderName:      cfg.GoogleDrive.FolderName,
		}, log)
		if err != nil {
			log.Warn().Err(err).Msg("google drive not available, transcripts will only be saved locally")
		} else {
			uploader, downloader = driveClient, driveClient
			log.Info().Msg("google drive integration enabled")
		}
	} else {
		log.Info().Msg("google drive credentials not found, saving locally only")
	}

	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	workerPool := queue.NewWorkerPool(cfg.Workers.Count, cfg.Workers.QueueSize, queue.Deps{
		Pipeline: pipeline,
		Local:    localStorage,
		Drive:    uploader,
		DB:       db,
		Metrics:  metrics.NewQueue(reg),
		Log:      log,
		Language: cfg.Provider.Language,
	})
	workerPool.Start(ctx)

	sweeper := cleanup.NewScheduler(cfg.Storage.TempDir, cfg.Cleanup.IntervalMinutes, cfg.Cleanup.MaxAgeHours, log)
	sweeper.PruneJobs(workerPool.Store())
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.Limits.MaxFileSizeMB * audio.MiB,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: logBuffer}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	uploadHandler := handlers.NewUploadHandler(workerPool, cfg.Storage.TempDir, cfg.Limits.MaxFileSizeMB, log)
	gdriveHandler := handlers.NewGDriveHandler(workerPool, downloader, cfg.Storage.TempDir, log)
	youtubeHandler := handlers.NewYouTubeHandler(ctx, workerPool, runner, cfg.YouTube.Binary, cfg.Storage.TempDir, log)
	streamHandler := handlers.NewStreamHandler(workerPool, cfg.Storage.TempDir, cfg.Limits.MaxFileSizeMB, log)
	jobsHandler := handlers.NewJobsHandler(workerPool.Store(), db, localStorage)

	app.Get("/health", handlers.Health(cfg.Provider.Backend))
	app.Get("/metrics", handlers.Metrics(reg))
	app.Get("/logs", handlers.Logs(logBuffer))

	app.Post("/upload", uploadHandler.Handle)
	app.Post("/gdrive", gdriveHandler.Handle)
	app.Post("/youtube", youtubeHandler.Handle)
	app.Use("/ws", streamHandler.Upgrade)
	app.Get("/ws/stream", websocket.New(streamHandler.Handle))

	app.Get("/jobs/:id", jobsHandler.Status)
	app.Get("/transcripts", jobsHandler.List)
	app.Get("/transcripts/:id/text", jobsHandler.Text)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info().Str("addr", addr).Str("backend", cfg.Provider.Backend).Msg("server starting")

	errCh := make(chan error, 1)
	go func() { errCh <- app.Listen(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down gracefully")
	if err := app.Shutdown(); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("http shutdown")
	}
	workerPool.Stop()
	return nil
}
