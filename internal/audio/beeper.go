package audio

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/cbegin/beepseq-go/internal/chiptune"
)

// Beeper is a tone emitter backed by the ebiten audio context. EmitTone blocks
// for the length of the tone, so callers get sequential monophonic playback by
// calling it in a loop.
type Beeper struct {
	mu         sync.Mutex
	sampleRate int
	params     chiptune.Params
	volume     float64
	sleep      func(time.Duration)
}

type BeeperOption func(*Beeper)

// WithVolume scales the tone's master gain; 1.0 is the default level.
func WithVolume(volume float64) BeeperOption {
	return func(b *Beeper) {
		if volume < 0 {
			volume = 0
		}
		b.volume = volume
	}
}

func WithToneParams(params chiptune.Params) BeeperOption {
	return func(b *Beeper) {
		b.params = params
	}
}

func NewBeeper(sampleRate int, opts ...BeeperOption) (*Beeper, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	b := &Beeper{
		sampleRate: sampleRate,
		params:     chiptune.DefaultParams(),
		volume:     1,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(b)
	}
	if _, err := openDevice(sampleRate); err != nil {
		return nil, &AudioError{Op: "open", Err: err}
	}
	return b, nil
}

// EmitTone plays one beep and returns once its duration has elapsed. It fails
// with *AudioError when the device cannot play the tone or is already busy.
func (b *Beeper) EmitTone(frequencyHz, durationMs int) error {
	if !b.mu.TryLock() {
		return &AudioError{Op: "emit", FrequencyHz: frequencyHz, DurationMs: durationMs, Err: ErrDeviceBusy}
	}
	defer b.mu.Unlock()

	if durationMs <= 0 {
		return nil
	}
	tone := chiptune.NewTone(b.sampleRate, float64(frequencyHz), durationMs, b.params)
	tone.SetMasterGain(b.params.MasterGain * b.volume)
	v, err := startVoice(b.sampleRate, tone)
	if err != nil {
		return &AudioError{Op: "emit", FrequencyHz: frequencyHz, DurationMs: durationMs, Err: err}
	}
	b.sleep(toneDuration(durationMs))
	if err := v.stop(); err != nil {
		return &AudioError{Op: "stop", FrequencyHz: frequencyHz, DurationMs: durationMs, Err: err}
	}
	return nil
}

// Silent is a tone emitter that produces no sound but keeps the timing of a
// real device. It is used for dry runs and when no device is available.
type Silent struct {
	Sleep func(time.Duration)
}

func (s Silent) EmitTone(frequencyHz, durationMs int) error {
	sleep := s.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	if durationMs > 0 {
		sleep(toneDuration(durationMs))
	}
	return nil
}

// toneDuration converts milliseconds to a time.Duration, saturating instead
// of wrapping for durations past the time.Duration range.
func toneDuration(durationMs int) time.Duration {
	const maxMs = math.MaxInt64 / int64(time.Millisecond)
	if int64(durationMs) > maxMs {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(durationMs) * time.Millisecond
}
