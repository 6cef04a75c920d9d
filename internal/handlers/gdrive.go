package handlers

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/audio"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/queue"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// Downloader fetches a Drive file by ID. *storage.DriveClient and
// *storage.PublicDrive implement it.
type Downloader interface {
	Download(ctx context.Context, fileID string, w io.Writer) (name string, err error)
}

// GDriveHandler handles Google Drive link processing
type GDriveHandler struct {
	queue      Enqueuer
	downloader Downloader
	tempDir    string
	log        zerolog.Logger
}

// NewGDriveHandler creates a new Google Drive handler
func NewGDriveHandler(q Enqueuer, downloader Downloader, tempDir string, log zerolog.Logger) *GDriveHandler {
	return &GDriveHandler{
		queue:      q,
		downloader: downloader,
		tempDir:    tempDir,
		log:        log.With().Str("component", "gdrive").Logger(),
	}
}

// GDriveRequest represents the request body
type GDriveRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Handle downloads the linked file and queues it.
func (h *GDriveHandler) Handle(c *fiber.Ctx) error {
	var req GDriveRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body", "ERR_INVALID_BODY")
	}
	if req.URL == "" {
		return errorJSON(c, fiber.StatusBadRequest, "URL is required", "ERR_NO_URL")
	}

	fileID := extractGDriveFileID(req.URL)
	if fileID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid Google Drive URL", "ERR_INVALID_URL")
	}

	jobID := uuid.New().String()
	partial := filepath.Join(h.tempDir, jobID+".part")
	out, err := os.Create(partial)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to save downloaded file", "ERR_SAVE_FAILED")
	}

	h.log.Info().Str("file_id", fileID).Msg("downloading from google drive")
	name, err := h.downloader.Download(c.UserContext(), fileID, out)
	out.Close()
	if err != nil {
		os.Remove(partial)
		h.log.Warn().Err(err).Str("file_id", fileID).Msg("google drive download failed")
		return errorJSON(c, fiber.StatusBadRequest, "File not accessible (may be private or doesn't exist)", "ERR_FILE_NOT_ACCESSIBLE")
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !audio.ValidateAudioFormat(name) {
		ext = ".mp3"
	}
	tempPath := filepath.Join(h.tempDir, jobID+ext)
	if err := os.Rename(partial, tempPath); err != nil {
		os.Remove(partial)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to save downloaded file", "ERR_SAVE_FAILED")
	}

	if req.Name == "" {
		req.Name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if req.Name == "" {
		req.Name = "gdrive_file"
	}

	job := queue.NewJob(jobID, req.Name, types.SourceGDrive, tempPath)
	return enqueue(c, h.queue, job, "Google Drive file downloaded, processing started")
}

var (
	gdriveFilePath = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	gdriveIDParam  = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	gdriveBareID   = regexp.MustCompile(`^([a-zA-Z0-9_-]{25,40})$`)
)

// extractGDriveFileID extracts the file ID from various Google Drive URL formats
func extractGDriveFileID(url string) string {
	for _, re := range []*regexp.Regexp{gdriveFilePath, gdriveIDParam, gdriveBareID} {
		if m := re.FindStringSubmatch(url); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
