package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// ErrNotFound is returned when no transcript has the requested job ID.
var ErrNotFound = errors.New("transcript not found")

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL UNIQUE,
	request_name TEXT NOT NULL,
	source_type TEXT NOT NULL,
	gdrive_url TEXT NOT NULL DEFAULT '',
	local_path TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	duration REAL,
	segments INTEGER NOT NULL DEFAULT 1,
	single_shot INTEGER NOT NULL DEFAULT 1,
	processing_time REAL,
	word_count INTEGER
);

CREATE INDEX IF NOT EXISTS idx_created_at ON transcripts(created_at);
CREATE INDEX IF NOT EXISTS idx_request_name ON transcripts(request_name);
`

const selectColumns = `job_id, request_name, source_type, gdrive_url, local_path, created_at,
	language, duration, segments, single_shot, processing_time, word_count`

// NewMetadataDB opens (creating if needed) the database at dbPath.
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// workers write concurrently; sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveTranscript saves transcript metadata to the database
func (mdb *MetadataDB) SaveTranscript(t *types.Transcript) error {
	_, err := mdb.db.Exec(`
	INSERT INTO transcripts (job_id, request_name, source_type, gdrive_url, local_path, created_at,
		language, duration, segments, single_shot, processing_time, word_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.JobID, t.Name, t.Source, t.GDriveURL, t.LocalPath, t.ProcessedAt,
		t.Language, t.Duration, t.Segments, t.SingleShot, t.ProcessingTime, t.WordCount)
	if err != nil {
		return fmt.Errorf("failed to save transcript metadata: %w", err)
	}
	return nil
}

// GetTranscript retrieves transcript metadata by job ID
func (mdb *MetadataDB) GetTranscript(jobID string) (*types.Transcript, error) {
	row := mdb.db.QueryRow(`SELECT `+selectColumns+` FROM transcripts WHERE job_id = ?`, jobID)
	t, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	return t, nil
}

// ListTranscripts returns the newest transcripts first.
func (mdb *MetadataDB) ListTranscripts(limit int) ([]types.Transcript, error) {
	rows, err := mdb.db.Query(`SELECT `+selectColumns+` FROM transcripts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	transcripts := []types.Transcript{}
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		transcripts = append(transcripts, *t)
	}
	return transcripts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTranscript(s scanner) (*types.Transcript, error) {
	var (
		t              types.Transcript
		duration, proc sql.NullFloat64
		words          sql.NullInt64
	)
	err := s.Scan(&t.JobID, &t.Name, &t.Source, &t.GDriveURL, &t.LocalPath, &t.ProcessedAt,
		&t.Language, &duration, &t.Segments, &t.SingleShot, &proc, &words)
	if err != nil {
		return nil, err
	}
	t.Duration = duration.Float64
	t.ProcessingTime = proc.Float64
	t.WordCount = int(words.Int64)
	return &t, nil
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}
