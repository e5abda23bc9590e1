package notes

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	Malformed ErrorKind = iota + 1
	InvalidKey
	InvalidShape
	InvalidValue
	FrequencyOutOfRange
)

func (k ErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case InvalidKey:
		return "invalid key"
	case InvalidShape:
		return "invalid shape"
	case InvalidValue:
		return "invalid value"
	case FrequencyOutOfRange:
		return "frequency out of range"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ParseError reports the first problem found in sequence text. Line and
// Column are 1-based and zero when no location is known.
type ParseError struct {
	Kind   ErrorKind
	Line   int
	Column int
	Key    string // offending key as written, if any
	Value  string // offending value as written, if any
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at line %d, column %d: %s", e.Kind, e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// IsKind reports whether err is a *ParseError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == kind
}

// ErrorLine returns the source line an error points at. It is diagnostic
// metadata only; ok is false when the error carries no position.
func ErrorLine(err error) (line int, ok bool) {
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Line == 0 {
		return 0, false
	}
	return pe.Line, true
}
