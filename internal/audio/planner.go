package audio

import (
	"fmt"
	"math"
)

// Segment is one time-bounded slice of the source recording.
type Segment struct {
	Index  int     `json:"index"`
	Start  float64 `json:"start"`
	Length float64 `json:"length"`
}

// End returns the exclusive end offset in seconds.
func (s Segment) End() float64 {
	return s.Start + s.Length
}

func (s Segment) String() string {
	return fmt.Sprintf("segment %d: %.3fs-%.3fs", s.Index, s.Start, s.End())
}

// SegmentCount returns how many equal parts a file of fileSize bytes needs so
// that each is at most maxSegmentBytes on average. Never less than 1.
func SegmentCount(fileSize, maxSegmentBytes int64) int {
	if fileSize <= 0 || maxSegmentBytes <= 0 {
		return 1
	}
	n := int(math.Ceil(float64(fileSize) / float64(maxSegmentBytes)))
	if n < 1 {
		n = 1
	}
	return n
}

// Plan splits [0, duration) into SegmentCount equal-length segments.
//
// The split is uniform in time, not in bytes: with stream copy the size of a
// segment is only roughly length/duration of the source, so VBR audio can
// produce a segment above maxSegmentBytes.
func Plan(fileSize int64, duration float64, maxSegmentBytes int64) ([]Segment, error) {
	if fileSize <= 0 {
		return nil, &InvalidInputError{Field: "file_size", Value: fileSize, Reason: "must be positive"}
	}
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil, &InvalidInputError{Field: "duration", Value: duration, Reason: "must be a positive finite number of seconds"}
	}
	if maxSegmentBytes <= 0 {
		return nil, &InvalidInputError{Field: "max_segment_bytes", Value: maxSegmentBytes, Reason: "must be positive"}
	}

	count := SegmentCount(fileSize, maxSegmentBytes)
	length := duration / float64(count)

	segments := make([]Segment, count)
	for i := range segments {
		segments[i] = Segment{
			Index:  i,
			Start:  float64(i) * length,
			Length: length,
		}
	}
	return segments, nil
}
