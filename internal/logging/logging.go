// Package logging builds the service's zerolog logger and keeps recent lines
// in memory for the /logs endpoint.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Config contains logging configuration.
type Config struct {
	Level   string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format  string `yaml:"format" validate:"omitempty,oneof=console json"`
	NoColor bool   `yaml:"no_color"`
}

// ApplyDefaults fills empty fields.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
}

// New creates a logger writing to stdout and to every extra writer. Extra
// writers always get JSON lines regardless of Format.
func New(cfg Config, extra ...io.Writer) zerolog.Logger {
	cfg.ApplyDefaults()
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if strings.ToLower(cfg.Format) == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05", NoColor: cfg.NoColor}
	}
	if len(extra) > 0 {
		out = zerolog.MultiLevelWriter(append([]io.Writer{out}, extra...)...)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// LogBuffer captures the last N log lines in memory.
type LogBuffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewLogBuffer keeps at most max lines.
func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = 1000
	}
	return &LogBuffer{lines: make([]string, 0, max), max: max}
}

func (lb *LogBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, strings.TrimRight(string(p), "\n"))
	if len(lb.lines) > lb.max {
		lb.lines = lb.lines[len(lb.lines)-lb.max:]
	}
	return len(p), nil
}

// Lines returns a copy of the buffered lines, oldest first.
func (lb *LogBuffer) Lines() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	out := make([]string, len(lb.lines))
	copy(out, lb.lines)
	return out
}
