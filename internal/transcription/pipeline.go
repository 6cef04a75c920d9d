package transcription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/audio"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/metrics"
)

const (
	// DefaultSingleShotThreshold is the provider's upload ceiling. Files at or
	// under it are sent whole.
	DefaultSingleShotThreshold = 25 * audio.MiB
	// DefaultMaxSegmentBytes leaves headroom under the ceiling because segments
	// are cut by time, not bytes.
	DefaultMaxSegmentBytes = 20 * audio.MiB
)

// Config tunes the pipeline.
type Config struct {
	SingleShotThreshold int64
	MaxSegmentBytes     int64
	Separator           string
	Concurrency         int
	TempDir             string // parent of per-run segment dirs, os.TempDir() if empty
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SingleShotThreshold: DefaultSingleShotThreshold,
		MaxSegmentBytes:     DefaultMaxSegmentBytes,
		Separator:           DefaultSeparator,
		Concurrency:         1,
	}
}

// Result is a finished transcription.
type Result struct {
	Text       string          `json:"text"`
	Segments   []audio.Segment `json:"segments,omitempty"`
	Duration   float64         `json:"duration"`
	SingleShot bool            `json:"single_shot"`
	Elapsed    time.Duration   `json:"elapsed"`
}

// DurationProber is satisfied by *audio.Prober.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) float64
}

// SegmentExtractor is satisfied by *audio.Extractor.
type SegmentExtractor interface {
	ExtractSegment(ctx context.Context, source string, seg audio.Segment, outDir string) (string, error)
}

// Pipeline transcribes recordings of any size, splitting those above the
// provider's ceiling into segments.
type Pipeline struct {
	prober      DurationProber
	extractor   SegmentExtractor
	transcriber Transcriber
	cfg         Config
	log         zerolog.Logger
	metrics     *metrics.Pipeline
	progress    func(done, total int)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

func WithMetrics(m *metrics.Pipeline) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithProgress is called after each segment is transcribed. With
// concurrency above one it may be called from several goroutines.
func WithProgress(fn func(done, total int)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// NewPipeline wires the pipeline. Zero values in cfg take the defaults.
func NewPipeline(prober DurationProber, extractor SegmentExtractor, transcriber Transcriber, cfg Config, opts ...Option) *Pipeline {
	def := DefaultConfig()
	if cfg.SingleShotThreshold <= 0 {
		cfg.SingleShotThreshold = def.SingleShotThreshold
	}
	if cfg.MaxSegmentBytes <= 0 {
		cfg.MaxSegmentBytes = def.MaxSegmentBytes
	}
	if cfg.Separator == "" {
		cfg.Separator = def.Separator
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	p := &Pipeline{
		prober:      prober,
		extractor:   extractor,
		transcriber: transcriber,
		cfg:         cfg,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// TranscribeLargeAudio transcribes the file at path. The file is only read.
// Segment files and their directory are gone when this returns, whatever the
// outcome.
func (p *Pipeline) TranscribeLargeAudio(ctx context.Context, path string) (res *Result, err error) {
	start := time.Now()
	log := p.log.With().Str("file", filepath.Base(path)).Logger()

	info, err := os.Stat(path)
	if err != nil {
		return nil, &audio.InvalidInputError{Field: "path", Value: path, Reason: err.Error()}
	}
	if info.IsDir() {
		return nil, &audio.InvalidInputError{Field: "path", Value: path, Reason: "is a directory"}
	}
	size := info.Size()
	log.Info().Str("state", "start").Int64("size", size).Msg("transcription started")

	route := "segmented"
	defer func() {
		elapsed := time.Since(start)
		p.metrics.ObserveRun(route, err, elapsed)
		if err != nil {
			log.Error().Err(err).Str("state", "failed").Dur("elapsed", elapsed).Msg("transcription failed")
			return
		}
		if res == nil {
			return
		}
		res.Elapsed = elapsed
		log.Info().Str("state", "done").Dur("elapsed", elapsed).Int("chars", len(res.Text)).Msg("transcription finished")
	}()

	if size <= p.cfg.SingleShotThreshold {
		route = "single_shot"
		log.Info().Str("state", "single_shot").Msg("file under provider limit, sending whole")
		text, terr := p.transcriber.Transcribe(ctx, path)
		if terr != nil {
			return nil, fmt.Errorf("single-shot transcription: %w", terr)
		}
		return &Result{Text: text, SingleShot: true}, nil
	}

	dir, err := os.MkdirTemp(p.cfg.TempDir, "segments-*")
	if err != nil {
		return nil, fmt.Errorf("create segment dir: %w", err)
	}
	defer p.removeDir(log, dir)

	duration := p.prober.ProbeDuration(ctx, path)
	segments, err := audio.Plan(size, duration, p.cfg.MaxSegmentBytes)
	if err != nil {
		return nil, err
	}
	log.Info().Str("state", "plan").Int("segments", len(segments)).Float64("duration", duration).
		Float64("segment_length", segments[0].Length).Msg("segment plan ready")

	texts, err := p.transcribeSegments(ctx, path, segments, dir, log)
	if err != nil {
		return nil, err
	}

	log.Info().Str("state", "assemble").Int("segments", len(texts)).Msg("assembling transcript")
	return &Result{
		Text:     Assemble(texts, p.cfg.Separator),
		Segments: segments,
		Duration: duration,
	}, nil
}

func (p *Pipeline) transcribeSegments(ctx context.Context, source string, segments []audio.Segment, dir string, log zerolog.Logger) ([]string, error) {
	texts := make([]string, len(segments))
	var done atomic.Int64

	if p.cfg.Concurrency == 1 {
		for _, seg := range segments {
			if err := p.processSegment(ctx, source, seg, dir, texts, &done, log); err != nil {
				return nil, err
			}
		}
		return texts, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, seg := range segments {
		seg := seg
		g.Go(func() error {
			return p.processSegment(gctx, source, seg, dir, texts, &done, log)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}

// processSegment extracts, transcribes and deletes one segment. texts is
// written only at seg.Index, so concurrent calls never share a slot.
func (p *Pipeline) processSegment(ctx context.Context, source string, seg audio.Segment, dir string, texts []string, done *atomic.Int64, log zerolog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := p.extractor.ExtractSegment(ctx, source, seg, dir)
	if err != nil {
		return err
	}
	defer p.removeFile(log, out)

	log.Debug().Str("state", "segment").Int("index", seg.Index).Stringer("range", seg).Msg("transcribing segment")
	text, err := p.transcriber.Transcribe(ctx, out)
	if err != nil {
		return withSegment(err, seg.Index)
	}
	texts[seg.Index] = text

	p.metrics.SegmentTranscribed()
	n := done.Add(1)
	if p.progress != nil {
		p.progress(int(n), len(texts))
	}
	return nil
}

func (p *Pipeline) removeFile(log zerolog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("state", "cleanup").Str("path", path).Msg("failed to remove segment file")
	}
}

func (p *Pipeline) removeDir(log zerolog.Logger, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		log.Warn().Err(err).Str("state", "cleanup").Str("dir", dir).Msg("failed to remove segment dir")
		return
	}
	log.Debug().Str("state", "cleanup").Str("dir", dir).Msg("segment dir removed")
}
