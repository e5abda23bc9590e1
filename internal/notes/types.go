package notes

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/slices"
)

// Frequency limits accepted by the single-tone primitive.
const (
	MinFrequency = 37
	MaxFrequency = 32767
)

// DefaultMaxDurationMs caps a single note at one hour.
const DefaultMaxDurationMs = 60 * 60 * 1000

// maxDurationMs is the longest duration a time.Duration can hold.
const maxDurationMs = math.MaxInt64 / int64(time.Millisecond)

type NoteEvent struct {
	Index       int
	FrequencyHz int
	DurationMs  int
}

// Duration converts DurationMs, saturating at the largest time.Duration.
func (e NoteEvent) Duration() time.Duration {
	if int64(e.DurationMs) > maxDurationMs {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(e.DurationMs) * time.Millisecond
}

// Sequence is an index-keyed collection of note events. Events keep the
// position of the first appearance of their index; a later entry with the same
// index replaces the value in place. A Sequence is never modified after the
// parser (or NewSequence) returns it.
type Sequence struct {
	events []NoteEvent
	pos    map[int]int
}

func newSequence(capacity int) *Sequence {
	return &Sequence{
		events: make([]NoteEvent, 0, capacity),
		pos:    make(map[int]int, capacity),
	}
}

func (s *Sequence) put(ev NoteEvent) {
	if i, ok := s.pos[ev.Index]; ok {
		s.events[i] = ev
		return
	}
	s.pos[ev.Index] = len(s.events)
	s.events = append(s.events, ev)
}

// NewSequence builds a sequence from already-typed events, applying the same
// range checks and last-wins policy as the parser.
func NewSequence(events ...NoteEvent) (*Sequence, error) {
	return NewSequenceWithConfig(DefaultParserConfig(), events...)
}

func NewSequenceWithConfig(cfg ParserConfig, events ...NoteEvent) (*Sequence, error) {
	seq := newSequence(len(events))
	for _, ev := range events {
		if err := cfg.checkEvent(ev, position{}, position{}); err != nil {
			return nil, err
		}
		seq.put(ev)
	}
	return seq, nil
}

func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.events)
}

// Events returns a copy of the events in insertion order.
func (s *Sequence) Events() []NoteEvent {
	if s == nil {
		return nil
	}
	out := make([]NoteEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Melody returns a copy of the events in ascending index order, the order
// in which they are played.
func (s *Sequence) Melody() []NoteEvent {
	out := s.Events()
	slices.SortFunc(out, func(a, b NoteEvent) bool { return a.Index < b.Index })
	return out
}

func (s *Sequence) Lookup(index int) (NoteEvent, bool) {
	if s == nil {
		return NoteEvent{}, false
	}
	i, ok := s.pos[index]
	if !ok {
		return NoteEvent{}, false
	}
	return s.events[i], true
}

// TotalDuration is the sum of all note durations, saturating at the largest
// time.Duration.
func (s *Sequence) TotalDuration() time.Duration {
	var total time.Duration
	if s == nil {
		return total
	}
	for _, ev := range s.events {
		d := ev.Duration()
		if total > time.Duration(math.MaxInt64)-d {
			return time.Duration(math.MaxInt64)
		}
		total += d
	}
	return total
}

func (s *Sequence) String() string {
	return fmt.Sprintf("Sequence(%d notes, %s)", s.Len(), s.TotalDuration())
}

// ParserConfig bounds what the parser accepts. A MaxDurationMs of zero leaves
// durations unbounded.
type ParserConfig struct {
	MinFrequency  int
	MaxFrequency  int
	MaxDurationMs int
	MaxDepth      int
}

func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		MinFrequency:  MinFrequency,
		MaxFrequency:  MaxFrequency,
		MaxDurationMs: DefaultMaxDurationMs,
		MaxDepth:      32,
	}
}

func (cfg ParserConfig) checkEvent(ev NoteEvent, freqAt, durAt position) error {
	if ev.DurationMs < 0 {
		return &ParseError{
			Kind:   InvalidValue,
			Line:   durAt.line,
			Column: durAt.col,
			Key:    fmt.Sprint(ev.Index),
			Value:  fmt.Sprint(ev.DurationMs),
			Msg:    fmt.Sprintf("duration %d ms for note %d must not be negative", ev.DurationMs, ev.Index),
		}
	}
	if cfg.MaxDurationMs > 0 && ev.DurationMs > cfg.MaxDurationMs {
		return &ParseError{
			Kind:   InvalidValue,
			Line:   durAt.line,
			Column: durAt.col,
			Key:    fmt.Sprint(ev.Index),
			Value:  fmt.Sprint(ev.DurationMs),
			Msg:    fmt.Sprintf("duration %d ms for note %d is above the maximum of %d ms", ev.DurationMs, ev.Index, cfg.MaxDurationMs),
		}
	}
	if ev.FrequencyHz < cfg.MinFrequency {
		return &ParseError{
			Kind:   FrequencyOutOfRange,
			Line:   freqAt.line,
			Column: freqAt.col,
			Key:    fmt.Sprint(ev.Index),
			Value:  fmt.Sprint(ev.FrequencyHz),
			Msg:    fmt.Sprintf("frequency %d Hz for note %d is below the minimum of %d Hz (range %d-%d)", ev.FrequencyHz, ev.Index, cfg.MinFrequency, cfg.MinFrequency, cfg.MaxFrequency),
		}
	}
	if ev.FrequencyHz > cfg.MaxFrequency {
		return &ParseError{
			Kind:   FrequencyOutOfRange,
			Line:   freqAt.line,
			Column: freqAt.col,
			Key:    fmt.Sprint(ev.Index),
			Value:  fmt.Sprint(ev.FrequencyHz),
			Msg:    fmt.Sprintf("frequency %d Hz for note %d is above the maximum of %d Hz (range %d-%d)", ev.FrequencyHz, ev.Index, cfg.MaxFrequency, cfg.MinFrequency, cfg.MaxFrequency),
		}
	}
	return nil
}
