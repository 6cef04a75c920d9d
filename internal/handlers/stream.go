package handlers

import (
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/audio"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/queue"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// StreamHandler receives a recording over a WebSocket. Binary frames carry
// audio, a text frame sets the name and the text frame "END" finishes.
type StreamHandler struct {
	queue     Enqueuer
	tempDir   string
	maxSizeMB int
	log       zerolog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(q Enqueuer, tempDir string, maxSizeMB int, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		queue:     q,
		tempDir:   tempDir,
		maxSizeMB: maxSizeMB,
		log:       log.With().Str("component", "stream").Logger(),
	}
}

// Upgrade rejects plain HTTP requests on the stream route.
func (h *StreamHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handle processes WebSocket connections
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	jobID := uuid.New().String()
	log := h.log.With().Str("job_id", jobID).Logger()
	tempPath := filepath.Join(h.tempDir, jobID+".webm")

	f, err := os.Create(tempPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to create stream file")
		_ = c.WriteJSON(fiber.Map{"error": "Failed to save stream", "code": "ERR_SAVE_FAILED"})
		return
	}

	var (
		requestName string
		written     int64
		maxBytes    = int64(h.maxSizeMB) * audio.MiB
		finished    bool
	)
	log.Info().Msg("websocket connection established")

	for !finished {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("websocket read error")
			break
		}

		switch messageType {
		case websocket.TextMessage:
			msg := string(message)
			if msg == "END" {
				finished = true
				continue
			}
			if len(msg) > 0 && len(msg) < 200 {
				requestName = msg
			}
		case websocket.BinaryMessage:
			if written+int64(len(message)) > maxBytes {
				f.Close()
				os.Remove(tempPath)
				_ = c.WriteJSON(fiber.Map{"error": "Stream too large", "code": "ERR_FILE_TOO_LARGE"})
				return
			}
			n, err := f.Write(message)
			written += int64(n)
			if err != nil {
				log.Error().Err(err).Msg("failed to write stream chunk")
				f.Close()
				os.Remove(tempPath)
				return
			}
		}
	}

	if err := f.Close(); err != nil || written == 0 {
		os.Remove(tempPath)
		if written == 0 {
			log.Info().Msg("no audio data received")
			_ = c.WriteJSON(fiber.Map{"error": "No audio received", "code": "ERR_NO_FILE"})
		}
		return
	}

	if requestName == "" {
		requestName = "stream_recording"
	}
	log.Info().Int64("bytes", written).Str("path", tempPath).Msg("stream saved")

	job := queue.NewJob(jobID, requestName, types.SourceStream, tempPath)
	if err := h.queue.EnqueueJob(job); err != nil {
		_ = c.WriteJSON(fiber.Map{"error": err.Error(), "code": "ERR_QUEUE"})
		return
	}
	_ = c.WriteJSON(fiber.Map{"job_id": jobID, "status": job.Status})
}
