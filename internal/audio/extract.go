package audio

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Extractor carves time ranges out of a recording with ffmpeg stream copy.
type Extractor struct {
	runner Runner
	ffmpeg string
}

// NewExtractor creates an extractor using ffmpegBin ("ffmpeg" if empty).
func NewExtractor(runner Runner, ffmpegBin string) *Extractor {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return &Extractor{runner: runner, ffmpeg: ffmpegBin}
}

// SegmentFileName returns a fresh segment file name keeping ext.
func SegmentFileName(ext string) string {
	id := uuid.New()
	return "segment_" + hex.EncodeToString(id[:]) + strings.ToLower(ext)
}

// Extract copies [start, start+length) of source into a new file in outDir
// without re-encoding and returns its path.
func (e *Extractor) Extract(ctx context.Context, source string, start, length float64, outDir string) (string, error) {
	return e.ExtractSegment(ctx, source, Segment{Index: -1, Start: start, Length: length}, outDir)
}

// ExtractSegment is Extract for a planned segment; the index ends up in any
// returned *ExtractionError.
func (e *Extractor) ExtractSegment(ctx context.Context, source string, seg Segment, outDir string) (string, error) {
	out := filepath.Join(outDir, SegmentFileName(filepath.Ext(source)))
	ss, t := seekRange(seg.Start, seg.Length)

	_, stderr, err := e.runner.Run(ctx, e.ffmpeg,
		"-y",
		"-i", source,
		"-ss", ss,
		"-t", t,
		"-c", "copy",
		out,
	)
	if err != nil {
		// ffmpeg may leave a truncated file behind
		_ = os.Remove(out)
		return "", &ExtractionError{
			Source: source,
			Index:  seg.Index,
			Start:  seg.Start,
			Length: seg.Length,
			Output: strings.TrimSpace(string(stderr)),
			Err:    err,
		}
	}
	return out, nil
}
