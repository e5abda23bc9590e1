package audio

import (
	"errors"
	"fmt"
)

// ErrDeviceBusy is returned when a tone is requested while another is still
// sounding on the same emitter.
var ErrDeviceBusy = errors.New("audio device busy")

// AudioError reports that the output device could not produce a tone.
type AudioError struct {
	Op          string
	FrequencyHz int
	DurationMs  int
	Err         error
}

func (e *AudioError) Error() string {
	return fmt.Sprintf("audio: %s %d Hz for %d ms: %v", e.Op, e.FrequencyHz, e.DurationMs, e.Err)
}

func (e *AudioError) Unwrap() error { return e.Err }
