package handlers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/audio"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/queue"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// UploadHandler handles file uploads
type UploadHandler struct {
	queue     Enqueuer
	tempDir   string
	maxSizeMB int
	log       zerolog.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(q Enqueuer, tempDir string, maxSizeMB int, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		queue:     q,
		tempDir:   tempDir,
		maxSizeMB: maxSizeMB,
		log:       log.With().Str("component", "upload").Logger(),
	}
}

// Handle processes the upload request
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "No file uploaded", "ERR_NO_FILE")
	}

	requestName := c.FormValue("name")
	if requestName == "" {
		requestName = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}

	maxSize := int64(h.maxSizeMB) * audio.MiB
	if file.Size > maxSize {
		return errorJSON(c, fiber.StatusBadRequest, fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB), "ERR_FILE_TOO_LARGE")
	}
	if file.Size == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "Uploaded file is empty", "ERR_EMPTY_FILE")
	}

	if !audio.ValidateAudioFormat(file.Filename) {
		return errorJSON(c, fiber.StatusBadRequest,
			fmt.Sprintf("Unsupported audio format (supported: %s)", strings.Join(audio.SupportedFormats(), ", ")),
			"ERR_INVALID_FORMAT")
	}

	jobID := uuid.New().String()
	tempPath := filepath.Join(h.tempDir, jobID+strings.ToLower(filepath.Ext(file.Filename)))

	if err := c.SaveFile(file, tempPath); err != nil {
		h.log.Error().Err(err).Msg("failed to save uploaded file")
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to save file", "ERR_SAVE_FAILED")
	}

	job := queue.NewJob(jobID, requestName, types.SourceUpload, tempPath)
	return enqueue(c, h.queue, job, "File uploaded successfully, processing started")
}
