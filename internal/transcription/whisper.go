package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/audio"
)

// WhisperConfig configures the local Whisper CLI.
type WhisperConfig struct {
	Python   string // interpreter, "python" if empty
	Model    string // model name or a path containing it (ggml-small.bin -> small)
	Language string
	WorkDir  string // parent for per-call output dirs, os.TempDir() if empty
}

// WhisperCLI transcribes with a locally installed `python -m whisper`.
// Calls are serialized: one model run saturates the CPU anyway.
type WhisperCLI struct {
	runner   audio.Runner
	python   string
	model    string
	language string
	workDir  string
	mu       sync.Mutex
}

// NewWhisperCLI creates a transcriber that shells out through runner.
func NewWhisperCLI(runner audio.Runner, cfg WhisperConfig) *WhisperCLI {
	python := cfg.Python
	if python == "" {
		python = "python"
	}
	lang := cfg.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	return &WhisperCLI{
		runner:   runner,
		python:   python,
		model:    ModelName(cfg.Model),
		language: lang,
		workDir:  cfg.WorkDir,
	}
}

// ModelName extracts a Whisper model size from a name or file path,
// defaulting to "small".
func ModelName(s string) string {
	s = strings.ToLower(s)
	for _, name := range []string{"tiny", "base", "small", "medium", "large"} {
		if strings.Contains(s, name) {
			return name
		}
	}
	return "small"
}

// Transcribe runs Whisper on path and returns the recognized text.
func (w *WhisperCLI) Transcribe(ctx context.Context, path string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	outDir, err := os.MkdirTemp(w.workDir, "whisper-*")
	if err != nil {
		return "", fmt.Errorf("create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	stdout, stderr, err := w.runner.Run(ctx, w.python, "-m", "whisper",
		abs,
		"--model", w.model,
		"--output_dir", outDir,
		"--output_format", "json",
		"--language", w.language,
		"--fp16", "False",
	)
	if err != nil {
		return "", &ProviderError{
			Kind:    KindRejected,
			Segment: -1,
			Err:     fmt.Errorf("whisper failed: %w\nOutput: %s%s", err, stdout, stderr),
		}
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	data, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return "", &ProviderError{Kind: KindRejected, Segment: -1,
			Err: fmt.Errorf("failed to read whisper output: %w", err)}
	}

	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return "", &ProviderError{Kind: KindRejected, Segment: -1,
			Err: fmt.Errorf("failed to parse whisper JSON: %w", err)}
	}
	return strings.TrimSpace(out.Text), nil
}

// whisperOutput is the part of the Whisper CLI's JSON file we read.
type whisperOutput struct {
	Text string `json:"text"`
}
