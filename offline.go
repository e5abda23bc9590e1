package beepseq

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cbegin/beepseq-go/internal/chiptune"
	"github.com/cbegin/beepseq-go/internal/notes"
)

// MaxRenderFrames bounds an offline render: about 25 minutes at 44.1 kHz,
// 512 MiB of stereo float32.
const MaxRenderFrames = 1 << 26

// ErrRenderTooLong is returned when a sequence exceeds MaxRenderFrames.
var ErrRenderTooLong = errors.New("sequence too long to render")

// RenderSamples renders seq offline as interleaved stereo float32, one tone
// after another in index order with no gaps.
func RenderSamples(seq *notes.Sequence, sampleRate int, params chiptune.Params) ([]float32, error) {
	melody := seq.Melody()
	tones := make([]*chiptune.Tone, 0, len(melody))
	frames := 0
	for _, ev := range melody {
		n := chiptune.FramesFor(sampleRate, ev.DurationMs)
		if n > MaxRenderFrames-frames {
			return nil, fmt.Errorf("%w: note %d pushes past %d frames", ErrRenderTooLong, ev.Index, MaxRenderFrames)
		}
		frames += n
		tones = append(tones, chiptune.NewTone(sampleRate, float64(ev.FrequencyHz), ev.DurationMs, params))
	}
	out := make([]float32, frames*2)
	at := 0
	for _, tone := range tones {
		n := tone.Frames() * 2
		tone.Process(out[at : at+n])
		at += n
	}
	return out, nil
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
