package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/cbegin/beepseq-go/internal/chiptune"
)

// bytesPerFrame is one stereo frame of little-endian float32.
const bytesPerFrame = 8

// toneReader feeds a single beep to ebiten as float32 stereo. The read that
// carries the last frame of the beep also returns io.EOF, which lets the
// ebiten player drain and go idle on its own.
type toneReader struct {
	mu      sync.Mutex
	tone    *chiptune.Tone
	scratch []float32
}

func newToneReader(tone *chiptune.Tone) *toneReader {
	return &toneReader{tone: tone}
}

func (r *toneReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tone.Finished() {
		return 0, io.EOF
	}
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	samples := frames * 2
	if cap(r.scratch) < samples {
		r.scratch = make([]float32, samples)
	}
	r.scratch = r.scratch[:samples]
	r.tone.Process(r.scratch)
	for i, s := range r.scratch {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	n := frames * bytesPerFrame
	if r.tone.Finished() {
		return n, io.EOF
	}
	return n, nil
}

// The ebiten context can be created once per process and is bound to one
// sample rate.
var (
	deviceOnce sync.Once
	device     *ebitaudio.Context
	deviceErr  error
	deviceRate int
)

func openDevice(sampleRate int) (*ebitaudio.Context, error) {
	deviceOnce.Do(func() {
		deviceRate = sampleRate
		defer func() {
			// NewContext panics when no output device can be opened.
			if r := recover(); r != nil {
				deviceErr = fmt.Errorf("open audio device: %v", r)
			}
		}()
		device = ebitaudio.NewContext(sampleRate)
	})
	if deviceErr != nil {
		return nil, deviceErr
	}
	if deviceRate != sampleRate {
		return nil, fmt.Errorf("audio device already open at %d Hz (requested %d Hz)", deviceRate, sampleRate)
	}
	return device, nil
}

// voice is one beep sounding on the shared device.
type voice struct {
	player *ebitaudio.Player
}

func startVoice(sampleRate int, tone *chiptune.Tone) (*voice, error) {
	ctx, err := openDevice(sampleRate)
	if err != nil {
		return nil, err
	}
	pl, err := ctx.NewPlayerF32(newToneReader(tone))
	if err != nil {
		return nil, err
	}
	pl.Play()
	return &voice{player: pl}, nil
}

func (v *voice) stop() error {
	v.player.Pause()
	return v.player.Close()
}
