package queue

import (
	"sync"
	"time"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// Job represents a transcription job
type Job struct {
	ID          string            `json:"job_id"`
	RequestName string            `json:"name"`
	SourceType  string            `json:"source"`
	FilePath    string            `json:"-"`
	Status      string            `json:"status"`
	Error       string            `json:"error,omitempty"`
	ErrorKind   string            `json:"error_kind,omitempty"`
	Result      *types.Transcript `json:"result,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   time.Time         `json:"started_at,omitzero"`
	FinishedAt  time.Time         `json:"finished_at,omitzero"`
}

// NewJob creates a new job with default values
func NewJob(id, requestName, sourceType, filePath string) *Job {
	return &Job{
		ID:          id,
		RequestName: requestName,
		SourceType:  sourceType,
		FilePath:    filePath,
		Status:      types.StatusQueued,
		CreatedAt:   time.Now(),
	}
}

// Store keeps the state of submitted jobs until Prune drops them. Readers get
// copies, so a job can be inspected while a worker updates it.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

func (s *Store) put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
}

func (s *Store) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
	}
}

// Get returns a snapshot of the job.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Prune drops finished jobs that ended before cutoff and returns how many
// were removed. Jobs still capturing, queued or processing are kept.
func (s *Store) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, j := range s.jobs {
		if !j.FinishedAt.IsZero() && j.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}
