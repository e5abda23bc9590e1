// Package chiptune renders single monotone beeps: one pulse (or triangle)
// oscillator with a short click-free attack and release.
package chiptune

import (
	"math"
	"sync/atomic"
)

type Wave int

const (
	WavePulse Wave = iota
	WaveTriangle
)

type Params struct {
	MasterGain float64
	AttackSec  float64
	ReleaseSec float64
	PulseDuty  float64
	Wave       Wave
	StepLevels int
}

func DefaultParams() Params {
	return Params{
		MasterGain: 0.28,
		AttackSec:  0.004,
		ReleaseSec: 0.012,
		PulseDuty:  0.5,
		Wave:       WavePulse,
		StepLevels: 16,
	}
}

// Tone is a fixed-length beep. It implements the audio package's
// FinishingSource: Process fills interleaved stereo frames and Finished turns
// true once every frame of the beep has been produced.
type Tone struct {
	sampleRate float64
	params     Params
	freq       float64
	frames     int
	pos        int
	phase      float64
	masterGain uint64
	dcPrevIn   float64
	dcPrevOut  float64
	finished   atomic.Bool
}

// MaxFrames is the longest beep a Tone renders; longer durations are cut.
const MaxFrames = math.MaxInt32

// NewTone prepares a beep of frequencyHz lasting durationMs.
func NewTone(sampleRate int, frequencyHz float64, durationMs int, params Params) *Tone {
	if params.PulseDuty <= 0 || params.PulseDuty >= 1 {
		params.PulseDuty = 0.5
	}
	t := &Tone{
		sampleRate: float64(sampleRate),
		params:     params,
		freq:       frequencyHz,
		frames:     FramesFor(sampleRate, durationMs),
		masterGain: math.Float64bits(params.MasterGain),
	}
	if t.frames == 0 {
		t.finished.Store(true)
	}
	return t
}

// FramesFor converts a duration to sample frames, clamped to 0..MaxFrames.
func FramesFor(sampleRate int, durationMs int) int {
	frames := math.Round(float64(sampleRate) * float64(durationMs) / 1000)
	switch {
	case !(frames > 0):
		return 0
	case frames >= MaxFrames:
		return MaxFrames
	}
	return int(frames)
}

// Frames is the total length of the beep in sample frames.
func (t *Tone) Frames() int { return t.frames }

func (t *Tone) Finished() bool { return t.finished.Load() }

func (t *Tone) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&t.masterGain, math.Float64bits(gain))
}

// Process writes interleaved stereo samples. Frames past the end of the beep
// are silent.
func (t *Tone) Process(dst []float32) {
	gain := math.Float64frombits(atomic.LoadUint64(&t.masterGain))
	for i := 0; i+1 < len(dst); i += 2 {
		var s float64
		if t.pos < t.frames {
			s = t.renderWave() * t.envelope() * gain
			t.pos++
			if t.pos == t.frames {
				t.finished.Store(true)
			}
		}
		s = clamp(t.dcBlock(s), -1, 1)
		dst[i] = float32(s)
		dst[i+1] = float32(s)
	}
}

// envelope ramps linearly in and out so the beep edges do not click.
func (t *Tone) envelope() float64 {
	env := 1.0
	attack := int(t.params.AttackSec * t.sampleRate)
	release := int(t.params.ReleaseSec * t.sampleRate)
	if attack > t.frames/2 {
		attack = t.frames / 2
	}
	if release > t.frames/2 {
		release = t.frames / 2
	}
	if attack > 0 && t.pos < attack {
		env = float64(t.pos) / float64(attack)
	}
	if left := t.frames - t.pos; release > 0 && left <= release {
		env = math.Min(env, float64(left)/float64(release))
	}
	return quantize(env, t.params.StepLevels)
}

func (t *Tone) dcBlock(x float64) float64 {
	const r = 0.995
	y := x - t.dcPrevIn + r*t.dcPrevOut
	t.dcPrevIn = x
	t.dcPrevOut = y
	return y
}

// polyBLEP reduces aliasing at waveform discontinuities.
// p is the phase position [0,1), dt is the phase increment per sample.
func polyBLEP(p, dt float64) float64 {
	if p < dt {
		p /= dt
		return p + p - p*p - 1
	}
	if p > 1-dt {
		p = (p - 1) / dt
		return p*p + p + p + 1
	}
	return 0
}

func (t *Tone) renderWave() float64 {
	dt := t.freq / t.sampleRate
	t.phase += dt
	if t.phase >= 1 {
		t.phase -= math.Floor(t.phase)
	}
	switch t.params.Wave {
	case WaveTriangle:
		return 2*math.Abs(2*t.phase-1) - 1
	default:
		out := -1.0
		if t.phase < t.params.PulseDuty {
			out = 1
		}
		out += polyBLEP(t.phase, dt)
		out -= polyBLEP(math.Mod(t.phase-t.params.PulseDuty+1, 1), dt)
		return out
	}
}

func quantize(v float64, steps int) float64 {
	if steps <= 1 {
		return v
	}
	n := math.Round(v*float64(steps-1)) / float64(steps-1)
	return clamp(n, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FrequencyToMIDI returns the nearest MIDI note number for a frequency,
// clamped to 0..127.
func FrequencyToMIDI(frequencyHz float64) int {
	if frequencyHz <= 0 {
		return 0
	}
	n := int(math.Round(69 + 12*math.Log2(frequencyHz/440)))
	if n < 0 {
		return 0
	}
	if n > 127 {
		return 127
	}
	return n
}
