package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/audio"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/metrics"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

var (
	// ErrQueueFull is returned by EnqueueJob when no slot is free.
	ErrQueueFull = errors.New("job queue is full")
	// ErrPoolStopped is returned for jobs submitted after Stop.
	ErrPoolStopped = errors.New("worker pool is shutting down")
)

// Pipeline is satisfied by *transcription.Pipeline.
type Pipeline interface {
	TranscribeLargeAudio(ctx context.Context, path string) (*transcription.Result, error)
}

// TranscriptSaver writes the transcript somewhere durable and returns its path.
type TranscriptSaver interface {
	SaveTranscript(t *types.Transcript) (string, error)
}

// Uploader copies a saved transcript to remote storage and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, t *types.Transcript) (string, error)
}

// MetadataStore records finished transcripts.
type MetadataStore interface {
	SaveTranscript(t *types.Transcript) error
}

// Deps are the collaborators of a WorkerPool. Drive, DB and Metrics may be nil.
type Deps struct {
	Pipeline Pipeline
	Local    TranscriptSaver
	Drive    Uploader
	DB       MetadataStore
	Store    *Store
	Metrics  *metrics.Queue
	Log      zerolog.Logger
	Language string
}

// WorkerPool manages a pool of workers processing transcription jobs
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	deps        Deps
	log         zerolog.Logger
	wg          sync.WaitGroup

	// mu guards stopped and the close of jobQueue.
	mu      sync.Mutex
	stopped bool

	// uploadBackoff is the pause after a failed Drive attempt.
	uploadBackoff func(attempt int) time.Duration
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount, queueSize int, deps Deps) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 100
	}
	if deps.Store == nil {
		deps.Store = NewStore()
	}
	return &WorkerPool{
		jobQueue:    make(chan *Job, queueSize),
		workerCount: workerCount,
		deps:        deps,
		log:         deps.Log.With().Str("component", "queue").Logger(),
		uploadBackoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
}

// Store returns the job store the pool reports into.
func (wp *WorkerPool) Store() *Store { return wp.deps.Store }

// Start launches the workers. They stop when Stop is called; ctx is handed
// to every pipeline run.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.log.Info().Int("workers", wp.workerCount).Msg("starting worker pool")
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Stop closes the queue and waits for in-flight jobs to finish. Jobs
// submitted afterwards fail with ErrPoolStopped. Calling Stop twice is safe.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if !wp.stopped {
		wp.stopped = true
		close(wp.jobQueue)
	}
	wp.mu.Unlock()
	wp.wg.Wait()
}

// EnqueueJob adds a job to the queue
func (wp *WorkerPool) EnqueueJob(job *Job) error {
	job.Status = types.StatusQueued
	job.CreatedAt = time.Now()
	wp.deps.Store.put(job)

	if err := wp.send(job); err != nil {
		wp.fail(job, err)
		wp.cleanupTempFile(job.FilePath)
		return err
	}
	wp.deps.Metrics.Enqueued()
	wp.log.Info().Str("job_id", job.ID).Str("source", job.SourceType).Str("name", job.RequestName).Msg("job enqueued")
	return nil
}

func (wp *WorkerPool) send(job *Job) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		return ErrPoolStopped
	}
	select {
	case wp.jobQueue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log := wp.log.With().Int("worker", id).Logger()
	log.Debug().Msg("worker started")

	for job := range wp.jobQueue {
		wp.deps.Metrics.Started()
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Str("job_id", job.ID).Interface("panic", r).Str("stack", string(debug.Stack())).
						Msg("panic processing job")
					wp.fail(job, fmt.Errorf("worker panic: %v", r))
					wp.cleanupTempFile(job.FilePath)
				}
			}()

			wp.processJob(ctx, log, job)
		}()
		final, _ := wp.deps.Store.Get(job.ID)
		wp.deps.Metrics.Finished(job.SourceType, final.Status)
	}
}

// processJob runs the pipeline and stores the transcript. The uploaded file
// is removed whatever happens; nothing is stored when transcription fails.
func (wp *WorkerPool) processJob(ctx context.Context, log zerolog.Logger, job *Job) {
	log = log.With().Str("job_id", job.ID).Logger()
	log.Info().Msg("processing job")
	defer wp.cleanupTempFile(job.FilePath)

	started := time.Now()
	wp.deps.Store.update(job.ID, func(j *Job) {
		j.Status = types.StatusProcessing
		j.StartedAt = started
	})

	res, err := wp.deps.Pipeline.TranscribeLargeAudio(ctx, job.FilePath)
	if err != nil {
		log.Error().Err(err).Str("kind", errorKind(err)).Msg("transcription failed")
		wp.fail(job, err)
		return
	}

	t := &types.Transcript{
		JobID:          job.ID,
		Name:           job.RequestName,
		Source:         job.SourceType,
		Text:           res.Text,
		Language:       wp.deps.Language,
		Duration:       res.Duration,
		Segments:       len(res.Segments),
		SingleShot:     res.SingleShot,
		WordCount:      len(strings.Fields(res.Text)),
		ProcessingTime: time.Since(started).Seconds(),
		ProcessedAt:    time.Now(),
	}
	if res.SingleShot {
		t.Segments = 1
	}

	localPath, err := wp.deps.Local.SaveTranscript(t)
	if err != nil {
		log.Error().Err(err).Msg("local save failed")
		wp.fail(job, fmt.Errorf("local save failed: %w", err))
		return
	}
	t.LocalPath = localPath

	if wp.deps.Drive != nil {
		t.GDriveURL = wp.uploadWithRetry(ctx, log, t)
	}

	if wp.deps.DB != nil {
		if err := wp.deps.DB.SaveTranscript(t); err != nil {
			log.Error().Err(err).Msg("database save failed")
		}
	}

	wp.deps.Store.update(job.ID, func(j *Job) {
		j.Status = types.StatusCompleted
		j.Result = t
		j.FinishedAt = time.Now()
	})
	log.Info().Str("local", localPath).Str("gdrive", t.GDriveURL).Int("segments", t.Segments).
		Float64("processing_time", t.ProcessingTime).Msg("job completed")
}

func (wp *WorkerPool) uploadWithRetry(ctx context.Context, log zerolog.Logger, t *types.Transcript) string {
	const attempts = 3
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var url string
		url, err = wp.deps.Drive.Upload(ctx, t)
		if err == nil {
			return url
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("google drive upload failed")
		if attempt < attempts {
			select {
			case <-time.After(wp.uploadBackoff(attempt)):
			case <-ctx.Done():
				return ""
			}
		}
	}
	log.Warn().Msg("google drive upload failed after 3 attempts, keeping local copy only")
	return ""
}

// Track registers a job that is not ready to queue yet, such as a download
// still in progress. After Stop the job is recorded as failed and
// ErrPoolStopped is returned.
func (wp *WorkerPool) Track(job *Job) error {
	job.Status = types.StatusCapturing
	job.CreatedAt = time.Now()
	wp.deps.Store.put(job)

	wp.mu.Lock()
	stopped := wp.stopped
	wp.mu.Unlock()
	if stopped {
		wp.fail(job, ErrPoolStopped)
		return ErrPoolStopped
	}
	return nil
}

// Fail marks a tracked job as failed without running it.
func (wp *WorkerPool) Fail(job *Job, err error) {
	wp.fail(job, err)
	wp.cleanupTempFile(job.FilePath)
}

func (wp *WorkerPool) fail(job *Job, err error) {
	wp.deps.Store.update(job.ID, func(j *Job) {
		j.Status = types.StatusFailed
		j.Error = err.Error()
		j.ErrorKind = errorKind(err)
		j.FinishedAt = time.Now()
	})
}

// errorKind names the failure class for API clients.
func errorKind(err error) string {
	if k := transcription.KindOf(err); k != "" {
		return "provider_" + string(k)
	}
	var invalid *audio.InvalidInputError
	var extract *audio.ExtractionError
	switch {
	case errors.As(err, &invalid):
		return "invalid_input"
	case errors.As(err, &extract):
		return "extraction"
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	case errors.Is(err, ErrPoolStopped):
		return "shutdown"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

// cleanupTempFile removes a temporary file
func (wp *WorkerPool) cleanupTempFile(filePath string) {
	if filePath == "" {
		return
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		wp.log.Warn().Err(err).Str("path", filePath).Msg("failed to cleanup temp file")
	}
}
