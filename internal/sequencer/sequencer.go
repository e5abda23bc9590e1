// Package sequencer plays a note sequence as a series of blocking tones on a
// background goroutine, one playback at a time.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cbegin/beepseq-go/internal/notes"
)

// ToneEmitter produces one tone and blocks until it has finished sounding.
type ToneEmitter interface {
	EmitTone(frequencyHz, durationMs int) error
}

// EmitterFunc adapts a function to ToneEmitter.
type EmitterFunc func(frequencyHz, durationMs int) error

func (f EmitterFunc) EmitTone(frequencyHz, durationMs int) error { return f(frequencyHz, durationMs) }

// EventKind identifies playback lifecycle events.
type EventKind int

const (
	EventNoteStarted EventKind = iota
	EventPlaybackEnded
	EventPlaybackCancelled
	EventPlaybackFailed
)

func (k EventKind) String() string {
	switch k {
	case EventNoteStarted:
		return "note started"
	case EventPlaybackEnded:
		return "playback ended"
	case EventPlaybackCancelled:
		return "playback cancelled"
	case EventPlaybackFailed:
		return "playback failed"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is delivered to Options.OnEvent from the playback goroutine.
type Event struct {
	Kind     EventKind
	HandleID uuid.UUID
	Note     notes.NoteEvent // set for EventNoteStarted
	Position int             // 0-based position in melody order
	Err      error           // set for EventPlaybackFailed
}

type Options struct {
	OnEvent func(Event)
}

type PlaybackErrorKind int

const (
	DeviceFailure PlaybackErrorKind = iota + 1
)

// PlaybackError reports that the emitter failed on one note. Notes before it
// were already played; notes after it were not.
type PlaybackError struct {
	Kind PlaybackErrorKind
	Note notes.NoteEvent
	Err  error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback of note %d (%d Hz, %d ms) failed: %v", e.Note.Index, e.Note.FrequencyHz, e.Note.DurationMs, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// Sequencer owns the at-most-one active playback.
type Sequencer struct {
	mu      sync.Mutex
	emitter ToneEmitter
	onEvent func(Event)
	current *Handle
}

func New(emitter ToneEmitter) *Sequencer {
	return NewWithOptions(emitter, Options{})
}

func NewWithOptions(emitter ToneEmitter, opts Options) *Sequencer {
	return &Sequencer{emitter: emitter, onEvent: opts.OnEvent}
}

// Play starts seq on a new goroutine and returns its handle. Any playback
// already in flight is cancelled first, and the new one does not emit a tone
// until the old one has stopped. Notes are played in ascending index order.
// Cancelling ctx has the same effect as Handle.Cancel.
func (s *Sequencer) Play(ctx context.Context, seq *notes.Sequence) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		id:     uuid.New(),
		cancel: cancel,
		done:   make(chan struct{}),
		melody: seq.Melody(),
	}

	s.mu.Lock()
	prev := s.current
	s.current = h
	s.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
	go s.run(ctx, h, prev)
	return h
}

// Stop cancels the active playback, if any, and waits for it to finish the
// tone it is sounding.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	h := s.current
	s.mu.Unlock()
	if h == nil {
		return
	}
	h.Cancel()
	<-h.Done()
}

// Active returns the handle of the playback in flight, or nil.
func (s *Sequencer) Active() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	select {
	case <-s.current.done:
		return nil
	default:
		return s.current
	}
}

func (s *Sequencer) run(ctx context.Context, h *Handle, prev *Handle) {
	start := time.Now()
	if prev != nil {
		<-prev.Done()
	}
	defer func() {
		h.elapsed = time.Since(start)
		h.cancel()
		close(h.done)
		s.mu.Lock()
		if s.current == h {
			s.current = nil
		}
		s.mu.Unlock()
	}()

	for i, note := range h.melody {
		if ctx.Err() != nil {
			h.cancelled = true
			s.emit(Event{Kind: EventPlaybackCancelled, HandleID: h.id, Position: i})
			return
		}
		s.emit(Event{Kind: EventNoteStarted, HandleID: h.id, Note: note, Position: i})
		if err := s.emitter.EmitTone(note.FrequencyHz, note.DurationMs); err != nil {
			h.err = &PlaybackError{Kind: DeviceFailure, Note: note, Err: err}
			s.emit(Event{Kind: EventPlaybackFailed, HandleID: h.id, Note: note, Position: i, Err: h.err})
			return
		}
		h.played = i + 1
	}
	s.emit(Event{Kind: EventPlaybackEnded, HandleID: h.id, Position: len(h.melody)})
}

func (s *Sequencer) emit(ev Event) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}

// Handle tracks one playback.
type Handle struct {
	id     uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
	melody []notes.NoteEvent

	// written by the playback goroutine before done is closed
	err       error
	played    int
	cancelled bool
	elapsed   time.Duration
}

func (h *Handle) ID() uuid.UUID { return h.id }

// Cancel asks the playback to stop before its next note. A tone already
// sounding is not interrupted. Cancel is safe to call more than once and from
// any goroutine.
func (h *Handle) Cancel() { h.cancel() }

func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until playback stops and returns a *PlaybackError if the
// emitter failed. Completion and cancellation both return nil.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Played returns the number of notes emitted successfully. It is only
// meaningful after Done is closed.
func (h *Handle) Played() int {
	select {
	case <-h.done:
		return h.played
	default:
		return 0
	}
}

// Cancelled reports whether playback stopped because of a cancellation.
func (h *Handle) Cancelled() bool {
	select {
	case <-h.done:
		return h.cancelled
	default:
		return false
	}
}

// Elapsed is the wall time from Play to the end of playback.
func (h *Handle) Elapsed() time.Duration {
	select {
	case <-h.done:
		return h.elapsed
	default:
		return 0
	}
}

// Len is the number of notes the playback was started with.
func (h *Handle) Len() int { return len(h.melody) }

// IsPlaybackError reports whether err carries a *PlaybackError.
func IsPlaybackError(err error) bool {
	var pe *PlaybackError
	return errors.As(err, &pe)
}
