// Package config loads the service configuration from a YAML file, a .env
// file and environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/audio"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/logging"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
)

// Backends accepted in provider.backend.
const (
	BackendOpenAI         = "openai"
	BackendWhisper        = "whisper"
	BackendWhisperThenAPI = "whisper+openai"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         logging.Config    `yaml:"log"`
	Provider    ProviderConfig    `yaml:"provider"`
	Whisper     WhisperConfig     `yaml:"whisper"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Probe       ProbeConfig       `yaml:"probe"`
	Workers     WorkersConfig     `yaml:"workers"`
	Storage     StorageConfig     `yaml:"storage"`
	Cleanup     CleanupConfig     `yaml:"cleanup"`
	GoogleDrive GoogleDriveConfig `yaml:"google_drive"`
	YouTube     YouTubeConfig     `yaml:"youtube"`
	Limits      LimitsConfig      `yaml:"limits"`
}

type ServerConfig struct {
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	Host string `yaml:"host"`
}

type ProviderConfig struct {
	Backend        string `yaml:"backend" validate:"oneof=openai whisper whisper+openai"`
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url" validate:"omitempty,url"`
	Model          string `yaml:"model"`
	Language       string `yaml:"language" validate:"required"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=0"`
}

type WhisperConfig struct {
	Python string `yaml:"python"`
	Model  string `yaml:"model"`
}

type PipelineConfig struct {
	SingleShotThresholdMB int    `yaml:"single_shot_threshold_mb" validate:"min=1"`
	MaxSegmentMB          int    `yaml:"max_segment_mb" validate:"min=1,ltefield=SingleShotThresholdMB"`
	Separator             string `yaml:"separator"`
	Concurrency           int    `yaml:"concurrency" validate:"min=1,max=16"`
}

type ProbeConfig struct {
	FFprobe   string `yaml:"ffprobe"`
	FFmpeg    string `yaml:"ffmpeg"`
	WAVHeader bool   `yaml:"wav_header"`
}

type WorkersConfig struct {
	Count     int `yaml:"count" validate:"min=1"`
	QueueSize int `yaml:"queue_size" validate:"min=1"`
}

type StorageConfig struct {
	TempDir   string `yaml:"temp_dir" validate:"required"`
	OutputDir string `yaml:"output_dir" validate:"required"`
	Database  string `yaml:"database" validate:"required"`
}

type CleanupConfig struct {
	IntervalMinutes int `yaml:"interval_minutes" validate:"min=1"`
	MaxAgeHours     int `yaml:"max_age_hours" validate:"min=1"`
}

type GoogleDriveConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	FolderName      string `yaml:"folder_name"`
}

type YouTubeConfig struct {
	Binary string `yaml:"binary"`
}

type LimitsConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb" validate:"min=1"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Host: "0.0.0.0"},
		Log:    logging.Config{Level: "info", Format: "console"},
		Provider: ProviderConfig{
			Backend:        BackendOpenAI,
			Model:          transcription.DefaultModel,
			Language:       transcription.DefaultLanguage,
			TimeoutSeconds: 600,
		},
		Whisper: WhisperConfig{Python: "python", Model: "small"},
		Pipeline: PipelineConfig{
			SingleShotThresholdMB: transcription.DefaultSingleShotThreshold / audio.MiB,
			MaxSegmentMB:          transcription.DefaultMaxSegmentBytes / audio.MiB,
			Separator:             transcription.DefaultSeparator,
			Concurrency:           1,
		},
		Probe:       ProbeConfig{FFprobe: "ffprobe", FFmpeg: "ffmpeg"},
		Workers:     WorkersConfig{Count: 2, QueueSize: 100},
		Storage:     StorageConfig{TempDir: "temp", OutputDir: "transcripts", Database: "transcripts.db"},
		Cleanup:     CleanupConfig{IntervalMinutes: 30, MaxAgeHours: 24},
		GoogleDrive: GoogleDriveConfig{CredentialsFile: "credentials.json", TokenFile: "token.json", FolderName: "Transcripts"},
		YouTube:     YouTubeConfig{Binary: "yt-dlp"},
		Limits:      LimitsConfig{MaxFileSizeMB: 500},
	}
}

// Load reads path on top of the defaults, then loads envFile (if it exists)
// and applies environment overrides. Either path may be empty.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("TRANSCRIBER_LANGUAGE"); v != "" {
		c.Provider.Language = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the provider settings the backend
// needs.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Provider.Backend != BackendWhisper && c.Provider.APIKey == "" && c.Provider.BaseURL == "" {
		return errors.New("invalid config: provider.api_key (or OPENAI_API_KEY) is required for the openai backend")
	}
	return nil
}

// ProviderTimeout is the HTTP timeout for one provider call; zero means none.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// TranscriptionProvider converts the provider section for the transcription
// package.
func (c *Config) TranscriptionProvider() transcription.ProviderConfig {
	return transcription.ProviderConfig{
		APIKey:   c.Provider.APIKey,
		BaseURL:  c.Provider.BaseURL,
		Model:    c.Provider.Model,
		Language: c.Provider.Language,
		Timeout:  c.ProviderTimeout(),
	}
}

// TranscriptionWhisper converts the whisper section.
func (c *Config) TranscriptionWhisper() transcription.WhisperConfig {
	return transcription.WhisperConfig{
		Python:   c.Whisper.Python,
		Model:    c.Whisper.Model,
		Language: c.Provider.Language,
		WorkDir:  c.Storage.TempDir,
	}
}

// TranscriptionPipeline converts the pipeline section.
func (c *Config) TranscriptionPipeline() transcription.Config {
	return transcription.Config{
		SingleShotThreshold: int64(c.Pipeline.SingleShotThresholdMB) * audio.MiB,
		MaxSegmentBytes:     int64(c.Pipeline.MaxSegmentMB) * audio.MiB,
		Separator:           c.Pipeline.Separator,
		Concurrency:         c.Pipeline.Concurrency,
		TempDir:             c.Storage.TempDir,
	}
}
