package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// ErrOutsideOutputDir is returned when asked to read a file the storage does
// not own.
var ErrOutsideOutputDir = errors.New("path is outside the transcript directory")

// LocalStorage handles saving transcripts to the local filesystem
type LocalStorage struct {
	outputDir string
	now       func() time.Time
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
		now:       time.Now,
	}
}

// SaveTranscript writes <dir>/YYYY/MM/DD/<timestamp>_<name>_transcript.txt
// and a _meta.json next to it, returning the text file path.
func (ls *LocalStorage) SaveTranscript(t *types.Transcript) (string, error) {
	now := ls.now()
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	base := fmt.Sprintf("%s_%s", now.Format("20060102_150405"), sanitizeFilename(t.Name))
	txtPath := filepath.Join(dateDir, base+"_transcript.txt")
	metaPath := filepath.Join(dateDir, base+"_meta.json")

	if err := os.WriteFile(txtPath, []byte(t.Text), 0644); err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}

	meta := *t
	meta.LocalPath = txtPath
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaJSON, 0644); err != nil {
		return "", fmt.Errorf("failed to save metadata: %w", err)
	}

	return txtPath, nil
}

// ReadTranscript returns the text stored at path, which must lie inside the
// output directory.
func (ls *LocalStorage) ReadTranscript(path string) (string, error) {
	root, err := filepath.Abs(ls.outputDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideOutputDir
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var filenameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
)

// sanitizeFilename removes invalid characters from filename
func sanitizeFilename(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	result := filenameReplacer.Replace(strings.TrimSpace(name))
	if len(result) > 100 {
		result = result[:100]
	}
	if result == "" || strings.Trim(result, "._") == "" {
		result = "recording"
	}
	return result
}
