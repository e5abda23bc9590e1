package notes

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokInt
	tokString
	tokLBrace
	tokRBrace
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokColon
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokInt:
		return "integer"
	case tokString:
		return "string"
	case tokLBrace:
		return "'{'"
	case tokRBrace:
		return "'}'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokComma:
		return "','"
	case tokColon:
		return "':'"
	}
	return "unknown token"
}

// position is a byte offset plus a 1-based line and rune column.
type position struct {
	offset int
	line   int
	col    int
}

type token struct {
	kind tokenKind
	text string // integer literal as written, or the decoded string
	pos  position
	end  int
}

var punctuation = map[rune]tokenKind{
	'{': tokLBrace,
	'}': tokRBrace,
	'(': tokLParen,
	')': tokRParen,
	'[': tokLBracket,
	']': tokRBracket,
	',': tokComma,
	':': tokColon,
}

type lexer struct {
	src  string
	off  int
	line int
	col  int
}

func lex(src string) ([]token, error) {
	lx := &lexer{src: src, line: 1, col: 1}
	toks := make([]token, 0, len(src)/3+1)
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func (lx *lexer) pos() position {
	return position{offset: lx.off, line: lx.line, col: lx.col}
}

func (lx *lexer) peek() (rune, int) {
	if lx.off >= len(lx.src) {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(lx.src[lx.off:])
}

func (lx *lexer) advance() rune {
	r, size := lx.peek()
	lx.off += size
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) errorf(at position, format string, args ...any) error {
	return &ParseError{
		Kind:   Malformed,
		Line:   at.line,
		Column: at.col,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func (lx *lexer) next() (token, error) {
	lx.skipSpaceAndComments()
	start := lx.pos()
	r, size := lx.peek()
	if size == 0 {
		return token{kind: tokEOF, pos: start, end: lx.off}, nil
	}
	if kind, ok := punctuation[r]; ok {
		lx.advance()
		return token{kind: kind, text: string(r), pos: start, end: lx.off}, nil
	}
	switch {
	case r == '"' || r == '\'':
		return lx.lexString(start, r)
	case r == '-' || r == '+' || isDigit(r):
		return lx.lexInt(start)
	case r == utf8.RuneError:
		return token{}, lx.errorf(start, "invalid UTF-8 in input")
	}
	word := lx.src[lx.off:]
	if i := strings.IndexFunc(word, func(c rune) bool { return !unicode.IsLetter(c) && !isDigit(c) && c != '_' }); i > 0 {
		word = word[:i]
	} else if i == 0 {
		word = string(r)
	}
	return token{}, lx.errorf(start, "unexpected %q: only integers, quoted strings, brackets, commas and colons are allowed", word)
}

func (lx *lexer) skipSpaceAndComments() {
	for {
		r, size := lx.peek()
		switch {
		case size == 0:
			return
		case unicode.IsSpace(r):
			lx.advance()
		case r == '#':
			for {
				r, size = lx.peek()
				if size == 0 || r == '\n' {
					break
				}
				lx.advance()
			}
		default:
			return
		}
	}
}

func (lx *lexer) lexInt(start position) (token, error) {
	r, _ := lx.peek()
	if r == '-' || r == '+' {
		lx.advance()
		for {
			r, _ = lx.peek()
			if r != ' ' && r != '\t' {
				break
			}
			lx.advance()
		}
	}
	digitsAt := lx.off
	for {
		r, size := lx.peek()
		if size == 0 || !isDigit(r) {
			break
		}
		lx.advance()
	}
	if lx.off == digitsAt {
		return token{}, lx.errorf(start, "sign must be followed by digits")
	}
	if r, size := lx.peek(); size > 0 && (r == '.' || r == '_' || unicode.IsLetter(r)) {
		return token{}, lx.errorf(start, "unsupported number %q: only whole integers are allowed", lx.src[start.offset:lx.off]+string(r))
	}
	text := strings.Map(func(c rune) rune {
		if c == ' ' || c == '\t' {
			return -1
		}
		return c
	}, lx.src[start.offset:lx.off])
	return token{kind: tokInt, text: text, pos: start, end: lx.off}, nil
}

func (lx *lexer) lexString(start position, quote rune) (token, error) {
	lx.advance()
	var sb strings.Builder
	for {
		r, size := lx.peek()
		if size == 0 || r == '\n' {
			return token{}, lx.errorf(start, "unterminated string")
		}
		lx.advance()
		if r == quote {
			return token{kind: tokString, text: sb.String(), pos: start, end: lx.off}, nil
		}
		if r != '\\' {
			sb.WriteRune(r)
			continue
		}
		esc, size := lx.peek()
		if size == 0 {
			return token{}, lx.errorf(start, "unterminated string")
		}
		lx.advance()
		switch esc {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case '\\', '"', '\'':
			sb.WriteRune(esc)
		default:
			sb.WriteByte('\\')
			sb.WriteRune(esc)
		}
	}
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
