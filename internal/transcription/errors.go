package transcription

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure so callers can branch without matching
// on message text.
type Kind string

const (
	KindAuth     Kind = "auth"
	KindQuota    Kind = "quota"
	KindNetwork  Kind = "network"
	KindRejected Kind = "rejected"
)

// ProviderError is returned when the speech-to-text provider fails on a file.
// Segment is -1 for single-shot calls.
type ProviderError struct {
	Kind       Kind
	Segment    int
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("transcription provider (%s)", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Segment >= 0 {
		msg += fmt.Sprintf(" on segment %d", e.Segment)
	}
	return msg + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindOf returns the provider failure kind of err, or "" if err does not
// carry a *ProviderError.
func KindOf(err error) Kind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// withSegment stamps a segment index onto a provider error, leaving other
// errors alone.
func withSegment(err error, index int) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		cp := *pe
		cp.Segment = index
		return &cp
	}
	return err
}
