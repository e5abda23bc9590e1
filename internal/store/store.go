// Package store reads and writes sequence documents. The file extension
// selects the encoding.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cbegin/beepseq-go/internal/notes"
)

// Format is the on-disk encoding chosen for a path.
type Format int

const (
	FormatCanonical Format = iota
	FormatPortable
	FormatMIDI
	FormatWAV
)

func (f Format) String() string {
	switch f {
	case FormatCanonical:
		return "canonical"
	case FormatPortable:
		return "portable"
	case FormatMIDI:
		return "midi"
	case FormatWAV:
		return "wav"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// FormatForPath maps .json to the portable form, .mid/.midi and .wav to the
// export formats, and everything else to canonical text.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatPortable
	case ".mid", ".midi":
		return FormatMIDI
	case ".wav":
		return FormatWAV
	default:
		return FormatCanonical
	}
}

type IOErrorKind int

const (
	ReadFailure IOErrorKind = iota + 1
	WriteFailure
	DecodeFailure
)

func (k IOErrorKind) String() string {
	switch k {
	case ReadFailure:
		return "read failure"
	case WriteFailure:
		return "write failure"
	case DecodeFailure:
		return "decode failure"
	}
	return fmt.Sprintf("IOErrorKind(%d)", int(k))
}

type IOError struct {
	Kind IOErrorKind
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsKind reports whether err is an *IOError of the given kind.
func IsKind(err error, kind IOErrorKind) bool {
	var ioe *IOError
	return errors.As(err, &ioe) && ioe.Kind == kind
}

// DefaultTabWidth is the number of spaces a tab becomes on save.
const DefaultTabWidth = 4

func ExpandTabs(text string, width int) string {
	if width <= 0 {
		width = DefaultTabWidth
	}
	return strings.ReplaceAll(text, "\t", strings.Repeat(" ", width))
}

// Store reads and writes documents with a fixed parser and tab width.
type Store struct {
	parser   *notes.Parser
	tabWidth int
}

func New(parser *notes.Parser, tabWidth int) *Store {
	if parser == nil {
		parser = notes.NewParser(notes.DefaultParserConfig())
	}
	if tabWidth <= 0 {
		tabWidth = DefaultTabWidth
	}
	return &Store{parser: parser, tabWidth: tabWidth}
}

// Load returns the text to show for path. Portable files are decoded and
// normalised to canonical text; anything else is returned as read.
func (s *Store) Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &IOError{Kind: ReadFailure, Path: path, Err: err}
	}
	text := string(data)
	switch FormatForPath(path) {
	case FormatPortable:
		seq, err := s.parser.Parse(text)
		if err != nil {
			return "", &IOError{Kind: DecodeFailure, Path: path, Err: err}
		}
		return notes.Canonical(seq), nil
	case FormatMIDI, FormatWAV:
		return "", &IOError{Kind: DecodeFailure, Path: path, Err: fmt.Errorf("%s files are export only", FormatForPath(path))}
	}
	return text, nil
}

// Save writes text to path. For .json the text is parsed first and written
// in portable form, so a *notes.ParseError comes back unwrapped and nothing
// is written. Other text files get the raw buffer with tabs expanded.
func (s *Store) Save(path, text string) error {
	var out string
	switch FormatForPath(path) {
	case FormatPortable:
		seq, err := s.parser.Parse(text)
		if err != nil {
			return err
		}
		out = notes.Portable(seq)
	case FormatMIDI, FormatWAV:
		return &IOError{Kind: WriteFailure, Path: path, Err: fmt.Errorf("%s is an export format", FormatForPath(path))}
	default:
		out = ExpandTabs(text, s.tabWidth)
	}
	return writeFile(path, []byte(out))
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &IOError{Kind: WriteFailure, Path: path, Err: err}
	}
	return nil
}
