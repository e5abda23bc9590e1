// Package beepseq edits, validates and plays note sequences: mappings from a
// note index to a (frequency Hz, duration ms) pair.
package beepseq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"

	"github.com/cbegin/beepseq-go/internal/audio"
	"github.com/cbegin/beepseq-go/internal/chiptune"
	"github.com/cbegin/beepseq-go/internal/config"
	"github.com/cbegin/beepseq-go/internal/history"
	"github.com/cbegin/beepseq-go/internal/notes"
	"github.com/cbegin/beepseq-go/internal/sequencer"
	"github.com/cbegin/beepseq-go/internal/store"
	"github.com/cbegin/beepseq-go/internal/telemetry"
)

// DefaultNotes is the starter sequence: a C major scale, half a second a note.
const DefaultNotes = `{
    1: (261, 500),
    2: (293, 500),
    3: (329, 500),
    4: (349, 500),
    5: (392, 500),
    6: (440, 500),
    7: (494, 500)
}`

// Buffer is the text surface a session edits.
type Buffer interface {
	Text() string
	SetText(text string)
}

// TextBuffer is an in-memory Buffer.
type TextBuffer struct {
	mu   sync.Mutex
	text string
}

func NewTextBuffer(text string) *TextBuffer { return &TextBuffer{text: text} }

func (b *TextBuffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

func (b *TextBuffer) SetText(text string) {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
}

// PlaybackEvent is delivered on the channel returned by Watch.
type PlaybackEvent struct {
	Kind     sequencer.EventKind
	HandleID uuid.UUID
	Note     notes.NoteEvent
	Position int
	Err      error
}

const (
	EventNoteStarted       = sequencer.EventNoteStarted
	EventPlaybackEnded     = sequencer.EventPlaybackEnded
	EventPlaybackCancelled = sequencer.EventPlaybackCancelled
	EventPlaybackFailed    = sequencer.EventPlaybackFailed
)

type SessionOption func(*sessionConfig)

type sessionConfig struct {
	emitter         sequencer.ToneEmitter
	historyCapacity int
	parserCfg       notes.ParserConfig
	tabWidth        int
	sampleRate      int
	toneParams      chiptune.Params
	logger          *slog.Logger
	reporter        telemetry.Reporter
	autosavePath    string
	autosaveDelay   time.Duration
	theme           config.Theme
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		emitter:         audio.Silent{},
		historyCapacity: history.DefaultCapacity,
		parserCfg:       notes.DefaultParserConfig(),
		tabWidth:        store.DefaultTabWidth,
		sampleRate:      44100,
		toneParams:      chiptune.DefaultParams(),
		reporter:        telemetry.Nop{},
		theme:           config.DefaultTheme(),
	}
}

// WithEmitter sets the device tones are played on. Without it playback keeps
// time but makes no sound.
func WithEmitter(emitter sequencer.ToneEmitter) SessionOption {
	return func(cfg *sessionConfig) {
		if emitter != nil {
			cfg.emitter = emitter
		}
	}
}

func WithHistoryCapacity(capacity int) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.historyCapacity = capacity
	}
}

func WithParserConfig(pc notes.ParserConfig) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.parserCfg = pc
	}
}

func WithLogger(logger *slog.Logger) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.logger = logger
	}
}

func WithReporter(reporter telemetry.Reporter) SessionOption {
	return func(cfg *sessionConfig) {
		if reporter != nil {
			cfg.reporter = reporter
		}
	}
}

// WithAutosave writes the buffer to path once edits have paused for delay.
func WithAutosave(path string, delay time.Duration) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.autosavePath = path
		cfg.autosaveDelay = delay
	}
}

func WithTheme(theme config.Theme) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.theme = theme
	}
}

// WithConfig applies the settings of a loaded configuration file.
func WithConfig(c config.Config) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.historyCapacity = c.HistoryCapacity
		cfg.parserCfg = notes.ParserConfig{
			MinFrequency:  c.Parser.MinFrequency,
			MaxFrequency:  c.Parser.MaxFrequency,
			MaxDurationMs: c.Parser.MaxDurationMs,
			MaxDepth:      c.Parser.MaxDepth,
		}
		cfg.tabWidth = c.TabWidth
		cfg.sampleRate = c.SampleRate
		cfg.theme = c.Theme
		if c.Autosave.Path != "" {
			cfg.autosavePath = c.Autosave.Path
			cfg.autosaveDelay = c.Autosave.Delay
		}
	}
}

// Session ties a text buffer to the parser, formatter, history and playback.
// Buffer and history are only touched from the caller's goroutine; playback
// runs in the background.
type Session struct {
	buf        Buffer
	parser     *notes.Parser
	history    *history.History
	store      *store.Store
	seq        *sequencer.Sequencer
	logger     *slog.Logger
	reporter   telemetry.Reporter
	theme      config.Theme
	sampleRate int
	toneParams chiptune.Params

	autosave     func(func())
	autosavePath string
	autosaveMu   sync.Mutex
	pendingDraft string
	draftPending bool

	eventCh   chan PlaybackEvent
	eventChMu sync.Mutex
}

// NewSession binds a session to buf and records its current text as the
// first history snapshot. A nil buf gets an empty TextBuffer.
func NewSession(buf Buffer, opts ...SessionOption) *Session {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if buf == nil {
		buf = NewTextBuffer("")
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	parser := notes.NewParser(cfg.parserCfg)
	s := &Session{
		buf:        buf,
		parser:     parser,
		history:    history.New(cfg.historyCapacity),
		store:      store.New(parser, cfg.tabWidth),
		logger:     logger,
		reporter:   cfg.reporter,
		theme:      cfg.theme,
		sampleRate: cfg.sampleRate,
		toneParams: cfg.toneParams,
	}
	s.seq = sequencer.NewWithOptions(cfg.emitter, sequencer.Options{OnEvent: s.onPlaybackEvent})
	if cfg.autosavePath != "" {
		s.autosave = debounce.New(cfg.autosaveDelay)
		s.autosavePath = cfg.autosavePath
	}
	s.history.Record(buf.Text())
	return s
}

// Compile parses text with the default parser settings.
func Compile(text string) (*notes.Sequence, error) {
	return notes.NewParser(notes.DefaultParserConfig()).Parse(text)
}

func (s *Session) Text() string { return s.buf.Text() }

// TextChanged must be called after every edit to the buffer. It records a
// history snapshot and schedules an autosave. It reports whether a new
// snapshot was taken.
func (s *Session) TextChanged() bool {
	text := s.buf.Text()
	recorded := s.history.Record(text)
	if recorded && s.autosave != nil {
		s.autosaveMu.Lock()
		s.pendingDraft = text
		s.draftPending = true
		s.autosaveMu.Unlock()
		s.autosave(s.flushDraft)
	}
	return recorded
}

// Format replaces the buffer with its canonical rendering. On a parse error
// the buffer is left as it was.
func (s *Session) Format() error {
	seq, err := s.parser.Parse(s.buf.Text())
	if err != nil {
		s.logParseError("format", err)
		return err
	}
	text := notes.Canonical(seq)
	s.buf.SetText(text)
	s.history.Record(text)
	s.logger.Debug("formatted", "notes", seq.Len())
	return nil
}

// Save writes the buffer to path. A .json path stores the portable form and
// fails with the parse error if the buffer is not a valid sequence; any
// other path stores the text as is.
func (s *Session) Save(path string) error {
	if err := s.store.Save(path, s.buf.Text()); err != nil {
		var pe *notes.ParseError
		if errors.As(err, &pe) {
			s.logParseError("save", err)
			return err
		}
		s.logger.Error("save failed", "path", path, "err", err)
		s.reporter.CaptureError(context.Background(), err, map[string]string{"op": "save"})
		return err
	}
	s.logger.Info("saved", "path", path, "format", store.FormatForPath(path))
	return nil
}

// Open loads path into the buffer. Portable files are shown in canonical
// form. Any failure leaves the buffer untouched.
func (s *Session) Open(path string) error {
	text, err := s.store.Load(path)
	if err != nil {
		s.logger.Error("open failed", "path", path, "err", err)
		if !store.IsKind(err, store.DecodeFailure) {
			s.reporter.CaptureError(context.Background(), err, map[string]string{"op": "open"})
		}
		return err
	}
	s.buf.SetText(text)
	s.history.Record(text)
	s.logger.Info("opened", "path", path, "format", store.FormatForPath(path))
	return nil
}

// Play parses the buffer and starts playing it in the background, cancelling
// any playback already running. The returned handle reports the outcome.
func (s *Session) Play(ctx context.Context) (*sequencer.Handle, error) {
	seq, err := s.parser.Parse(s.buf.Text())
	if err != nil {
		s.logParseError("play", err)
		return nil, err
	}
	h := s.seq.Play(ctx, seq)
	s.logger.Info("playback started", "id", h.ID(), "notes", h.Len(), "duration", seq.TotalDuration())
	go s.observe(ctx, h)
	return h, nil
}

func (s *Session) observe(ctx context.Context, h *sequencer.Handle) {
	err := h.Wait()
	outcome := "ended"
	switch {
	case err != nil:
		outcome = "failed"
		s.logger.Error("playback failed", "id", h.ID(), "played", h.Played(), "err", err)
		s.reporter.CaptureError(context.WithoutCancel(ctx), err, map[string]string{"op": "play", "playback": h.ID().String()})
	case h.Cancelled():
		outcome = "cancelled"
		s.logger.Info("playback cancelled", "id", h.ID(), "played", h.Played())
	default:
		s.logger.Info("playback ended", "id", h.ID(), "played", h.Played())
	}
	s.reporter.RecordPlayback(context.WithoutCancel(ctx), h.Played(), h.Elapsed(), outcome)
}

// Stop cancels the running playback and waits for its current tone to end.
func (s *Session) Stop() {
	s.seq.Stop()
}

// Playing reports whether a playback is in flight.
func (s *Session) Playing() bool {
	return s.seq.Active() != nil
}

// Undo restores the previous snapshot. It reports false and leaves the
// buffer alone when there is nothing to undo.
func (s *Session) Undo() bool {
	text, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.buf.SetText(text)
	return true
}

// Redo reapplies the most recently undone snapshot.
func (s *Session) Redo() bool {
	text, ok := s.history.Redo()
	if !ok {
		return false
	}
	s.buf.SetText(text)
	return true
}

func (s *Session) CanUndo() bool { return s.history.Len() >= 2 }
func (s *Session) CanRedo() bool { return s.history.RedoLen() > 0 }

// Export renders the buffer to a .mid or .wav file.
func (s *Session) Export(path string) error {
	seq, err := s.parser.Parse(s.buf.Text())
	if err != nil {
		s.logParseError("export", err)
		return err
	}
	switch store.FormatForPath(path) {
	case store.FormatMIDI:
		err = store.ExportMIDI(path, seq)
	case store.FormatWAV:
		var samples []float32
		samples, err = RenderSamples(seq, s.sampleRate, s.toneParams)
		if err != nil {
			err = &store.IOError{Kind: store.WriteFailure, Path: path, Err: err}
		} else {
			err = store.WriteBytes(path, EncodeWAVFloat32LE(samples, s.sampleRate, 2))
		}
	default:
		return &store.IOError{Kind: store.WriteFailure, Path: path, Err: fmt.Errorf("cannot export %s files", store.FormatForPath(path))}
	}
	if err != nil {
		s.logger.Error("export failed", "path", path, "err", err)
		s.reporter.CaptureError(context.Background(), err, map[string]string{"op": "export"})
		return err
	}
	s.logger.Info("exported", "path", path, "notes", seq.Len())
	return nil
}

// Watch returns a channel that receives playback events. The channel is
// buffered (cap 8) and events are dropped when it is full. Only the most
// recent Watch channel receives events.
func (s *Session) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	s.eventChMu.Lock()
	s.eventCh = ch
	s.eventChMu.Unlock()
	return ch
}

// Theme is the look configured for whatever renders the buffer.
func (s *Session) Theme() config.Theme { return s.theme }

// Close stops playback, writes any pending draft and flushes telemetry.
func (s *Session) Close() error {
	s.Stop()
	err := s.writeDraft()
	s.reporter.Flush(2 * time.Second)
	return err
}

func (s *Session) onPlaybackEvent(ev sequencer.Event) {
	s.sendEvent(PlaybackEvent{
		Kind:     ev.Kind,
		HandleID: ev.HandleID,
		Note:     ev.Note,
		Position: ev.Position,
		Err:      ev.Err,
	})
}

func (s *Session) sendEvent(ev PlaybackEvent) {
	s.eventChMu.Lock()
	ch := s.eventCh
	s.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Session) flushDraft() {
	if err := s.writeDraft(); err != nil {
		s.logger.Warn("autosave failed", "path", s.autosavePath, "err", err)
	}
}

// writeDraft writes the last recorded text, if not yet written, to the
// autosave path.
func (s *Session) writeDraft() error {
	s.autosaveMu.Lock()
	defer s.autosaveMu.Unlock()
	if s.autosavePath == "" || !s.draftPending {
		return nil
	}
	if err := store.WriteBytes(s.autosavePath, []byte(s.pendingDraft)); err != nil {
		return err
	}
	s.logger.Debug("draft saved", "path", s.autosavePath)
	s.draftPending = false
	return nil
}

func (s *Session) logParseError(op string, err error) {
	attrs := []any{"op", op, "err", err}
	if line, ok := notes.ErrorLine(err); ok {
		attrs = append(attrs, "line", line)
	}
	s.logger.Warn("invalid sequence", attrs...)
}
