package stt

import (
	"fmt"
	"strings"
)

// ModelLoadError is returned when every tier from Requested down to tiny
// failed to load. Tried is in descending order.
type ModelLoadError struct {
	Requested Tier
	Tried     []Tier
	Err       error // last load error
}

func (e *ModelLoadError) Error() string {
	names := make([]string, len(e.Tried))
	for i, t := range e.Tried {
		names[i] = t.String()
	}
	msg := fmt.Sprintf("failed to load speech model (requested %s, tried %s)", e.Requested, strings.Join(names, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// TranscriptionError wraps a failure during inference.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return "transcription failed: " + e.Err.Error()
}

func (e *TranscriptionError) Unwrap() error { return e.Err }
