package handlers

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/audio"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/queue"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// captureTimeout bounds a single yt-dlp run.
const captureTimeout = 30 * time.Minute

// Tracker lets a handler report on a job before it is queued.
type Tracker interface {
	Enqueuer
	Track(job *queue.Job) error
	Fail(job *queue.Job, err error)
}

// YouTubeHandler captures audio from a video URL with yt-dlp.
type YouTubeHandler struct {
	ctx     context.Context
	queue   Tracker
	runner  audio.Runner
	binary  string
	tempDir string
	log     zerolog.Logger
}

// NewYouTubeHandler creates a new YouTube handler. Background captures are
// canceled when ctx is done.
func NewYouTubeHandler(ctx context.Context, q Tracker, runner audio.Runner, binary, tempDir string, log zerolog.Logger) *YouTubeHandler {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YouTubeHandler{
		ctx:     ctx,
		queue:   q,
		runner:  runner,
		binary:  binary,
		tempDir: tempDir,
		log:     log.With().Str("component", "youtube").Logger(),
	}
}

// YouTubeRequest represents the request body
type YouTubeRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Handle starts the capture in the background and returns the job ID at once;
// the job is queued when the download finishes.
func (h *YouTubeHandler) Handle(c *fiber.Ctx) error {
	var req YouTubeRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body", "ERR_INVALID_BODY")
	}
	if req.URL == "" {
		return errorJSON(c, fiber.StatusBadRequest, "URL is required", "ERR_NO_URL")
	}
	if req.Name == "" {
		req.Name = "youtube_video"
	}

	jobID := uuid.New().String()
	job := queue.NewJob(jobID, req.Name, types.SourceYouTube, filepath.Join(h.tempDir, jobID+".opus"))
	if err := h.queue.Track(job); err != nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "Server is shutting down", "ERR_SHUTTING_DOWN")
	}

	go func() {
		ctx, cancel := context.WithTimeout(h.ctx, captureTimeout)
		defer cancel()

		if err := h.capture(ctx, req.URL, job.FilePath); err != nil {
			h.log.Error().Err(err).Str("job_id", jobID).Msg("failed to capture youtube audio")
			h.queue.Fail(job, err)
			return
		}
		if err := h.queue.EnqueueJob(job); err != nil {
			h.log.Error().Err(err).Str("job_id", jobID).Msg("failed to queue youtube job")
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  jobID,
		"status":  types.StatusCapturing,
		"message": "YouTube audio capture started (this may take a few minutes for long videos)",
	})
}

// capture extracts the audio track to outputPath.
func (h *YouTubeHandler) capture(ctx context.Context, url, outputPath string) error {
	h.log.Info().Str("url", url).Msg("downloading with yt-dlp")
	stdout, stderr, err := h.runner.Run(ctx, h.binary,
		"-x",
		"--audio-format", "opus",
		"--no-playlist",
		"-o", outputPath,
		url,
	)
	if err != nil {
		return fmt.Errorf("yt-dlp failed: %w\nOutput: %s%s", err, stdout, stderr)
	}
	return nil
}
