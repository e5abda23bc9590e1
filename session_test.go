package beepseq

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/beepseq-go/internal/config"
	"github.com/cbegin/beepseq-go/internal/notes"
	"github.com/cbegin/beepseq-go/internal/sequencer"
	"github.com/cbegin/beepseq-go/internal/store"
)

type toneLog struct {
	mu    sync.Mutex
	tones []int
	fail  error
}

func (l *toneLog) EmitTone(frequencyHz, durationMs int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	l.tones = append(l.tones, frequencyHz)
	return nil
}

func (l *toneLog) played() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.tones...)
}

type fakeReporter struct {
	mu        sync.Mutex
	errs      []error
	playbacks []string
}

func (r *fakeReporter) CaptureError(_ context.Context, err error, _ map[string]string) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *fakeReporter) RecordPlayback(_ context.Context, _ int, _ time.Duration, outcome string) {
	r.mu.Lock()
	r.playbacks = append(r.playbacks, outcome)
	r.mu.Unlock()
}

func (r *fakeReporter) Flush(time.Duration) {}

func (r *fakeReporter) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.playbacks...)
}

func edit(s *Session, buf *TextBuffer, text string) {
	buf.SetText(text)
	s.TextChanged()
}

func TestDefaultNotesCompile(t *testing.T) {
	seq, err := Compile(DefaultNotes)
	require.NoError(t, err)
	assert.Equal(t, 7, seq.Len())
	assert.Equal(t, 3500*time.Millisecond, seq.TotalDuration())
	assert.Equal(t, DefaultNotes, notes.Canonical(seq))
}

func TestSessionFormat(t *testing.T) {
	buf := NewTextBuffer("{10:(1046,250),1:(261,500)}")
	s := NewSession(buf)

	require.NoError(t, s.Format())
	assert.Equal(t, "{\n    10: (1046, 250),\n     1: ( 261, 500)\n}", buf.Text())

	// formatting is recorded, so it can be undone
	require.True(t, s.Undo())
	assert.Equal(t, "{10:(1046,250),1:(261,500)}", buf.Text())
}

func TestSessionFormatErrorLeavesBuffer(t *testing.T) {
	buf := NewTextBuffer("{1: (300,)}")
	s := NewSession(buf)

	err := s.Format()
	require.Error(t, err)
	assert.True(t, notes.IsKind(err, notes.InvalidShape))
	assert.Equal(t, "{1: (300,)}", buf.Text())
	assert.False(t, s.CanUndo())
}

func TestSessionUndoRedo(t *testing.T) {
	buf := NewTextBuffer("A")
	s := NewSession(buf)
	edit(s, buf, "B")
	edit(s, buf, "C")

	require.True(t, s.Undo())
	assert.Equal(t, "B", buf.Text())
	require.True(t, s.Undo())
	assert.Equal(t, "A", buf.Text())
	assert.False(t, s.Undo())
	assert.Equal(t, "A", buf.Text())

	require.True(t, s.Redo())
	assert.Equal(t, "B", buf.Text())

	// a buffer change notification after redo records nothing new
	assert.False(t, s.TextChanged())

	edit(s, buf, "D")
	assert.False(t, s.Redo())
	assert.Equal(t, "D", buf.Text())
}

func TestSessionSaveAndOpenPortable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.json")
	buf := NewTextBuffer("{2:(300,250), 1:(261,500)}")
	s := NewSession(buf)
	require.NoError(t, s.Save(path))

	other := NewTextBuffer("")
	s2 := NewSession(other)
	require.NoError(t, s2.Open(path))
	assert.Equal(t, "{\n    2: (300, 250),\n    1: (261, 500)\n}", other.Text())
	assert.True(t, s2.CanUndo())
}

func TestSessionSavePortableRejectsInvalid(t *testing.T) {
	rep := &fakeReporter{}
	path := filepath.Join(t.TempDir(), "song.json")
	s := NewSession(NewTextBuffer("{1: (20, 500)}"), WithReporter(rep))

	err := s.Save(path)
	assert.True(t, notes.IsKind(err, notes.FrequencyOutOfRange))
	assert.Empty(t, rep.errs, "parse errors are user errors, not reported")
}

func TestSessionSaveTextExpandsTabs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.txt")
	s := NewSession(NewTextBuffer("{\n\t1: (261, 500)\n}"))
	require.NoError(t, s.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n    1: (261, 500)\n}", string(data))
}

func TestSessionOpenFailureLeavesBuffer(t *testing.T) {
	dir := t.TempDir()
	rep := &fakeReporter{}
	buf := NewTextBuffer("keep me")
	s := NewSession(buf, WithReporter(rep))

	err := s.Open(filepath.Join(dir, "missing.txt"))
	assert.True(t, store.IsKind(err, store.ReadFailure))
	assert.Equal(t, "keep me", buf.Text())

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"notes": {"x": [261, 500]}}`), 0o644))
	err = s.Open(bad)
	assert.True(t, store.IsKind(err, store.DecodeFailure))
	assert.Equal(t, "keep me", buf.Text())
	assert.False(t, s.CanUndo())

	rep.mu.Lock()
	defer rep.mu.Unlock()
	assert.Len(t, rep.errs, 1)
}

func TestSessionPlayOrderAndEvents(t *testing.T) {
	tones := &toneLog{}
	rep := &fakeReporter{}
	s := NewSession(NewTextBuffer("{5:(440,100), 1:(261,100), 3:(329,100)}"), WithEmitter(tones), WithReporter(rep))
	events := s.Watch()

	h, err := s.Play(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.Wait())
	assert.Equal(t, []int{261, 329, 440}, tones.played())

	var kinds []sequencer.EventKind
	for len(kinds) < 4 {
		select {
		case ev := <-events:
			assert.Equal(t, h.ID(), ev.HandleID)
			kinds = append(kinds, ev.Kind)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for events, got %v", kinds)
		}
	}
	assert.Equal(t, []sequencer.EventKind{EventNoteStarted, EventNoteStarted, EventNoteStarted, EventPlaybackEnded}, kinds)
	assert.Eventually(t, func() bool { return len(rep.outcomes()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"ended"}, rep.outcomes())
}

func TestSessionPlayParseError(t *testing.T) {
	tones := &toneLog{}
	s := NewSession(NewTextBuffer("{1: (261, 'loud')}"), WithEmitter(tones))
	h, err := s.Play(context.Background())
	assert.Nil(t, h)
	assert.True(t, notes.IsKind(err, notes.InvalidValue))
	assert.Empty(t, tones.played())
}

func TestSessionPlayDeviceFailure(t *testing.T) {
	boom := errors.New("no device")
	rep := &fakeReporter{}
	s := NewSession(NewTextBuffer(DefaultNotes), WithEmitter(&toneLog{fail: boom}), WithReporter(rep))

	h, err := s.Play(context.Background())
	require.NoError(t, err)
	err = h.Wait()
	assert.True(t, sequencer.IsPlaybackError(err))
	assert.ErrorIs(t, err, boom)
	assert.Eventually(t, func() bool { return len(rep.outcomes()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"failed"}, rep.outcomes())

	// the session is still usable
	require.NoError(t, s.Format())
}

func TestSessionPlayReplacesRunningPlayback(t *testing.T) {
	started := make(chan int, 8)
	release := make(chan struct{})
	emitter := sequencer.EmitterFunc(func(freq, _ int) error {
		started <- freq
		<-release
		return nil
	})
	buf := NewTextBuffer("{1:(261,100), 2:(293,100), 3:(329,100)}")
	s := NewSession(buf, WithEmitter(emitter))

	first, err := s.Play(context.Background())
	require.NoError(t, err)
	require.Equal(t, 261, <-started)

	buf.SetText("{1:(880,100)}")
	second, err := s.Play(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Playing())

	close(release)
	require.NoError(t, first.Wait())
	require.NoError(t, second.Wait())
	assert.True(t, first.Cancelled())
	assert.Equal(t, 1, first.Played())
	assert.Equal(t, 880, <-started)
	assert.False(t, s.Playing())
}

func TestSessionStop(t *testing.T) {
	var calls int
	var mu sync.Mutex
	emitter := sequencer.EmitterFunc(func(_, _ int) error {
		mu.Lock()
		calls++
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	s := NewSession(NewTextBuffer(DefaultNotes), WithEmitter(emitter))
	h, err := s.Play(context.Background())
	require.NoError(t, err)
	s.Stop()
	require.NoError(t, h.Wait())

	mu.Lock()
	defer mu.Unlock()
	assert.Less(t, calls, 7)
	assert.Equal(t, calls, h.Played())
}

func TestSessionExport(t *testing.T) {
	dir := t.TempDir()
	s := NewSession(NewTextBuffer("{1:(261,100), 2:(440,100)}"))

	mid := filepath.Join(dir, "tune.mid")
	require.NoError(t, s.Export(mid))
	data, err := os.ReadFile(mid)
	require.NoError(t, err)
	assert.Equal(t, "MThd", string(data[:4]))

	wav := filepath.Join(dir, "tune.wav")
	require.NoError(t, s.Export(wav))
	data, err = os.ReadFile(wav)
	require.NoError(t, err)
	// 200 ms of 44.1 kHz stereo float32
	assert.Equal(t, 44+8820*2*4, len(data))

	err = s.Export(filepath.Join(dir, "tune.txt"))
	assert.True(t, store.IsKind(err, store.WriteFailure))
}

func TestSessionExportTooLong(t *testing.T) {
	pc := notes.DefaultParserConfig()
	pc.MaxDurationMs = 0
	wav := filepath.Join(t.TempDir(), "long.wav")
	s := NewSession(NewTextBuffer("{1: (440, 9223372036854775807)}"), WithParserConfig(pc))

	err := s.Export(wav)
	require.Error(t, err)
	assert.True(t, store.IsKind(err, store.WriteFailure))
	assert.ErrorIs(t, err, ErrRenderTooLong)
	_, statErr := os.Stat(wav)
	assert.True(t, os.IsNotExist(statErr), "no partial file is written")
}

func TestSessionAutosave(t *testing.T) {
	draft := filepath.Join(t.TempDir(), "draft.txt")
	buf := NewTextBuffer("")
	s := NewSession(buf, WithAutosave(draft, 10*time.Millisecond))

	edit(s, buf, "{1: (261,")
	edit(s, buf, "{1: (261, 500)}")

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(draft)
		return err == nil && string(data) == "{1: (261, 500)}"
	}, time.Second, 5*time.Millisecond)
}

func TestSessionCloseWritesPendingDraft(t *testing.T) {
	draft := filepath.Join(t.TempDir(), "draft.txt")
	buf := NewTextBuffer("")
	s := NewSession(buf, WithAutosave(draft, time.Hour))

	edit(s, buf, "{1: (261, 500)}")
	require.NoError(t, s.Close())

	data, err := os.ReadFile(draft)
	require.NoError(t, err)
	assert.Equal(t, "{1: (261, 500)}", string(data))
}

func TestSessionWithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.HistoryCapacity = 2
	cfg.Parser.MaxFrequency = 1000
	cfg.Theme.FontSize = 16

	buf := NewTextBuffer("A")
	s := NewSession(buf, WithConfig(cfg))
	assert.Equal(t, 16, s.Theme().FontSize)

	edit(s, buf, "B")
	edit(s, buf, "C")
	require.True(t, s.Undo())
	assert.False(t, s.Undo(), "capacity 2 keeps only B and C")

	buf.SetText("{1: (2000, 10)}")
	assert.True(t, notes.IsKind(s.Format(), notes.FrequencyOutOfRange))
}
