package store

import (
	"bytes"
	"fmt"
	"io"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/beepseq-go/internal/chiptune"
	"github.com/cbegin/beepseq-go/internal/notes"
)

const (
	midiTicksPerQuarter = 960
	midiTempoBPM        = 120
	midiVelocity        = 100
	midiChannel         = 0
)

// maxDeltaTicks is the largest delta a variable-length quantity can hold.
const maxDeltaTicks = 0x0FFFFFFF

// msToTicks converts wall time to ticks at the fixed export tempo, clamped to
// what one SMF delta can encode.
func msToTicks(ms int) uint32 {
	if ms <= 0 {
		return 0
	}
	const msPerQuarter = 60000 / midiTempoBPM
	const maxMs = maxDeltaTicks * msPerQuarter / midiTicksPerQuarter
	if uint64(ms) > maxMs {
		return maxDeltaTicks
	}
	return uint32(uint64(ms) * midiTicksPerQuarter / msPerQuarter)
}

// EncodeMIDI renders seq as a single-track Standard MIDI File. Notes are laid
// out back to back in index order, each mapped to the nearest key.
func EncodeMIDI(w io.Writer, seq *notes.Sequence) error {
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(midiTicksPerQuarter)

	var tr smf.Track
	tr.Add(0, smf.MetaMeter(4, 4))
	tr.Add(0, smf.MetaTempo(float64(midiTempoBPM)))

	for _, ev := range seq.Melody() {
		ticks := msToTicks(ev.DurationMs)
		if ticks == 0 {
			continue
		}
		key := uint8(chiptune.FrequencyToMIDI(float64(ev.FrequencyHz)))
		tr.Add(0, midi.NoteOn(midiChannel, key, midiVelocity))
		tr.Add(ticks, midi.NoteOff(midiChannel, key))
	}
	tr.Close(0)

	if err := sm.Add(tr); err != nil {
		return fmt.Errorf("adding track: %w", err)
	}
	if _, err := sm.WriteTo(w); err != nil {
		return fmt.Errorf("writing midi: %w", err)
	}
	return nil
}

// ExportMIDI writes seq to path as a Standard MIDI File.
func ExportMIDI(path string, seq *notes.Sequence) error {
	var buf bytes.Buffer
	if err := EncodeMIDI(&buf, seq); err != nil {
		return &IOError{Kind: WriteFailure, Path: path, Err: err}
	}
	return writeFile(path, buf.Bytes())
}

// WriteBytes writes an already encoded export to path.
func WriteBytes(path string, data []byte) error {
	return writeFile(path, data)
}
