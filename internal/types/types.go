package types

import "time"

// Job status constants
const (
	StatusCapturing  = "CAPTURING"
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Source type constants
const (
	SourceUpload  = "upload"
	SourceGDrive  = "gdrive"
	SourceYouTube = "youtube"
	SourceStream  = "stream"
	SourceCLI     = "cli"
)

// Transcript is a finished transcription together with where it was stored.
type Transcript struct {
	JobID          string    `json:"job_id"`
	Name           string    `json:"name"`
	Source         string    `json:"source"`
	Text           string    `json:"-"`
	Language       string    `json:"language"`
	Duration       float64   `json:"duration"`
	Segments       int       `json:"segments"`
	SingleShot     bool      `json:"single_shot"`
	WordCount      int       `json:"word_count"`
	ProcessingTime float64   `json:"processing_time"` // seconds
	ProcessedAt    time.Time `json:"processed_at"`
	LocalPath      string    `json:"local_path,omitempty"`
	GDriveURL      string    `json:"gdrive_url,omitempty"`
}
