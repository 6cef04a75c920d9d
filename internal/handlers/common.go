package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/queue"
)

// Enqueuer accepts jobs for processing. *queue.WorkerPool implements it.
type Enqueuer interface {
	EnqueueJob(job *queue.Job) error
}

func errorJSON(c *fiber.Ctx, status int, msg, code string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}

// enqueue submits job and writes the accepted response.
func enqueue(c *fiber.Ctx, q Enqueuer, job *queue.Job, message string) error {
	if err := q.EnqueueJob(job); err != nil {
		switch {
		case errors.Is(err, queue.ErrQueueFull):
			return errorJSON(c, fiber.StatusServiceUnavailable, "Server busy, try again later", "ERR_QUEUE_FULL")
		case errors.Is(err, queue.ErrPoolStopped):
			return errorJSON(c, fiber.StatusServiceUnavailable, "Server is shutting down", "ERR_SHUTTING_DOWN")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to queue job", "ERR_QUEUE")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  job.ID,
		"status":  job.Status,
		"message": message,
	})
}
