package audio

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// MiB is one mebibyte. Provider ceilings and segment sizes are expressed in it.
const MiB = 1024 * 1024

var supportedFormats = []string{
	".mp3", ".mp4", ".wav", ".m4a", ".ogg", ".flac", ".webm", ".aac", ".wma",
}

// ValidateAudioFormat checks if the file extension is one we accept for upload.
func ValidateAudioFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// SupportedFormats returns the accepted extensions, dot included.
func SupportedFormats() []string {
	out := make([]string, len(supportedFormats))
	copy(out, supportedFormats)
	return out
}

// seekRange renders start and length for ffmpeg's -ss / -t flags at
// millisecond precision. The length is measured between the rounded start and
// the rounded end, so consecutive segments meet without a gap or overlap.
func seekRange(start, length float64) (ss, t string) {
	from := math.Round(start * 1000)
	to := math.Round((start + length) * 1000)
	return formatMillis(from), formatMillis(to - from)
}

func formatMillis(ms float64) string {
	return strconv.FormatFloat(ms/1000, 'f', 3, 64)
}
