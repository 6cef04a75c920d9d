package audio

import "fmt"

// InvalidInputError is returned when a size or duration cannot be planned
// against. It always points at a caller bug or an empty/corrupt upload.
type InvalidInputError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// ExtractionError is returned when the stream-copy tool fails to carve out a
// segment. Output holds the tool's diagnostic text.
type ExtractionError struct {
	Source string
	Index  int
	Start  float64
	Length float64
	Output string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract segment %d [%.3fs +%.3fs] from %s: %v\nOutput: %s",
		e.Index, e.Start, e.Length, e.Source, e.Err, e.Output)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
