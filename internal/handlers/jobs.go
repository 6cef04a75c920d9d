package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/queue"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/storage"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// JobLookup returns a snapshot of a job. *queue.Store implements it.
type JobLookup interface {
	Get(id string) (queue.Job, bool)
}

// TranscriptIndex is the metadata database.
type TranscriptIndex interface {
	GetTranscript(jobID string) (*types.Transcript, error)
	ListTranscripts(limit int) ([]types.Transcript, error)
}

// TranscriptReader returns stored transcript text.
type TranscriptReader interface {
	ReadTranscript(path string) (string, error)
}

// JobsHandler serves job status and finished transcripts.
type JobsHandler struct {
	jobs   JobLookup
	index  TranscriptIndex
	reader TranscriptReader
}

func NewJobsHandler(jobs JobLookup, index TranscriptIndex, reader TranscriptReader) *JobsHandler {
	return &JobsHandler{jobs: jobs, index: index, reader: reader}
}

// Status handles GET /jobs/:id.
func (h *JobsHandler) Status(c *fiber.Ctx) error {
	job, ok := h.jobs.Get(c.Params("id"))
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "Job not found", "ERR_NOT_FOUND")
	}
	return c.JSON(job)
}

// List handles GET /transcripts.
func (h *JobsHandler) List(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		return errorJSON(c, fiber.StatusBadRequest, "limit must be between 1 and 500", "ERR_INVALID_LIMIT")
	}
	transcripts, err := h.index.ListTranscripts(limit)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err.Error(), "ERR_DB")
	}
	return c.JSON(transcripts)
}

// Text handles GET /transcripts/:id/text.
func (h *JobsHandler) Text(c *fiber.Ctx) error {
	t, err := h.index.GetTranscript(c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "Transcript not found", "ERR_NOT_FOUND")
	}
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err.Error(), "ERR_DB")
	}
	if t.LocalPath == "" {
		return errorJSON(c, fiber.StatusNotFound, "Transcript file path not found", "ERR_NOT_FOUND")
	}

	text, err := h.reader.ReadTranscript(t.LocalPath)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to read transcript file", "ERR_READ_FAILED")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(text)
}
