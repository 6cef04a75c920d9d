package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
)

// SecondsPerMiB is the size-based duration estimate used when every probe
// fails: 1 MiB of audio is taken to be about one minute. It is deliberately
// coarse and only keeps segmentation roughly proportionate.
const SecondsPerMiB = 60.0

// Strategy is one way of finding a file's playable duration. It reports
// ok=false instead of an error so the prober can move on to the next one.
type Strategy interface {
	Name() string
	Duration(ctx context.Context, path string) (seconds float64, ok bool)
}

// FormatStrategy reads container-level duration with ffprobe.
type FormatStrategy struct {
	Runner Runner
	Binary string
}

func (FormatStrategy) Name() string { return "format" }

func (s FormatStrategy) Duration(ctx context.Context, path string) (float64, bool) {
	out, err := runProbe(ctx, s.Runner, s.Binary, "-show_entries", "format=duration", path)
	if err != nil {
		return 0, false
	}
	return parseSeconds(out.Format.Duration)
}

// StreamStrategy reads the first audio stream's duration with ffprobe. Some
// containers (raw ADTS, broken mp4 moov) only carry it there.
type StreamStrategy struct {
	Runner Runner
	Binary string
}

func (StreamStrategy) Name() string { return "stream" }

func (s StreamStrategy) Duration(ctx context.Context, path string) (float64, bool) {
	out, err := runProbe(ctx, s.Runner, s.Binary,
		"-select_streams", "a:0", "-show_entries", "stream=duration", path)
	if err != nil || len(out.Streams) == 0 {
		return 0, false
	}
	return parseSeconds(out.Streams[0].Duration)
}

// WAVHeaderStrategy computes duration from a RIFF/WAVE header without any
// external tool. Only applies to .wav files.
type WAVHeaderStrategy struct{}

func (WAVHeaderStrategy) Name() string { return "wav_header" }

func (WAVHeaderStrategy) Duration(_ context.Context, path string) (float64, bool) {
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return 0, false
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, false
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, false
	}
	return validSeconds(d.Seconds())
}

// EstimateFromSize is the last resort: size in MiB times SecondsPerMiB.
func EstimateFromSize(size int64) float64 {
	if size <= 0 {
		return 0
	}
	return float64(size) / MiB * SecondsPerMiB
}

// Prober determines a file's duration by trying its strategies in order and
// falling back to EstimateFromSize. ProbeDuration never returns an error.
type Prober struct {
	strategies []Strategy
	onFallback func(strategy string)
	log        zerolog.Logger
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithStrategies replaces the default strategy chain.
func WithStrategies(s ...Strategy) ProberOption {
	return func(p *Prober) { p.strategies = s }
}

// WithWAVHeader adds the WAV header strategy after the ffprobe ones.
func WithWAVHeader() ProberOption {
	return func(p *Prober) { p.strategies = append(p.strategies, WAVHeaderStrategy{}) }
}

// WithFallbackHook is called with the name of every strategy that failed.
func WithFallbackHook(fn func(strategy string)) ProberOption {
	return func(p *Prober) { p.onFallback = fn }
}

// WithProbeLogger sets the logger.
func WithProbeLogger(l zerolog.Logger) ProberOption {
	return func(p *Prober) { p.log = l }
}

// NewProber creates a prober using ffprobeBin ("ffprobe" if empty) for the
// container and stream strategies.
func NewProber(runner Runner, ffprobeBin string, opts ...ProberOption) *Prober {
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	p := &Prober{
		strategies: []Strategy{
			FormatStrategy{Runner: runner, Binary: ffprobeBin},
			StreamStrategy{Runner: runner, Binary: ffprobeBin},
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProbeDuration returns the duration of path in seconds.
func (p *Prober) ProbeDuration(ctx context.Context, path string) float64 {
	for _, s := range p.strategies {
		if d, ok := p.try(ctx, s, path); ok {
			return d
		}
		p.log.Warn().Str("strategy", s.Name()).Str("path", path).Msg("duration probe failed, falling back")
		if p.onFallback != nil {
			p.onFallback(s.Name())
		}
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	est := EstimateFromSize(size)
	p.log.Warn().Int64("size", size).Float64("estimate_seconds", est).Str("path", path).
		Msg("using size-based duration estimate")
	return est
}

func (p *Prober) try(ctx context.Context, s Strategy, path string) (d float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Str("strategy", s.Name()).Msg("duration strategy panicked")
			d, ok = 0, false
		}
	}()
	return s.Duration(ctx, path)
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		Duration string `json:"duration"`
	} `json:"streams"`
}

func runProbe(ctx context.Context, r Runner, bin string, args ...string) (*ffprobeOutput, error) {
	full := append([]string{"-v", "error"}, args[:len(args)-1]...)
	full = append(full, "-of", "json", args[len(args)-1])

	stdout, stderr, err := r.Run(ctx, bin, full...)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w\nOutput: %s", err, string(stderr))
	}
	var out ffprobeOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe json: %w", err)
	}
	return &out, nil
}

func parseSeconds(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return validSeconds(v)
}

func validSeconds(v float64) (float64, bool) {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
