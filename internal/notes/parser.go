package notes

import (
	"fmt"
	"strconv"
	"strings"
)

// portableField is the top-level field that wraps the note mapping in the
// portable (JSON) encoding.
const portableField = "notes"

type nodeKind int

const (
	nodeMap nodeKind = iota + 1
	nodeTuple
	nodeList
	nodeInt
	nodeString
)

func (k nodeKind) String() string {
	switch k {
	case nodeMap:
		return "mapping"
	case nodeTuple:
		return "tuple"
	case nodeList:
		return "list"
	case nodeInt:
		return "integer"
	case nodeString:
		return "string"
	}
	return "value"
}

type node struct {
	kind    nodeKind
	pos     position
	end     int
	text    string
	items   []*node
	entries []entry
}

type entry struct {
	key   *node
	value *node
}

type Parser struct{ cfg ParserConfig }

func NewParser(cfg ParserConfig) *Parser { return &Parser{cfg: cfg} }

// Parse turns sequence text in either the canonical or the portable encoding
// into a Sequence. It stops at the first problem and returns it as a
// *ParseError; no partial sequence is ever returned.
func (p *Parser) Parse(input string) (*Sequence, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	tp := &treeParser{toks: toks, maxDepth: p.cfg.MaxDepth}
	root, err := tp.parseDocument()
	if err != nil {
		return nil, err
	}
	entries, err := noteEntries(root, input)
	if err != nil {
		return nil, err
	}
	seq := newSequence(len(entries))
	for _, en := range entries {
		ev, err := p.parseEntry(en, input)
		if err != nil {
			return nil, err
		}
		seq.put(ev)
	}
	return seq, nil
}

// Parse uses the default configuration.
func Parse(input string) (*Sequence, error) {
	return NewParser(DefaultParserConfig()).Parse(input)
}

func noteEntries(root *node, src string) ([]entry, error) {
	if root.kind != nodeMap {
		return nil, malformedAt(root.pos, "note sequence must be a mapping of index to (frequency, duration), got %s", root.kind)
	}
	wrapper := -1
	for i, en := range root.entries {
		if en.key.kind == nodeString && strings.TrimSpace(en.key.text) == portableField && en.value.kind == nodeMap {
			wrapper = i
			break
		}
	}
	if wrapper < 0 {
		return root.entries, nil
	}
	for i, en := range root.entries {
		if i != wrapper {
			return nil, malformedAt(en.key.pos, "unexpected field %s next to %q", snippet(src, en.key), portableField)
		}
	}
	return root.entries[wrapper].value.entries, nil
}

func (p *Parser) parseEntry(en entry, src string) (NoteEvent, error) {
	keyText := snippet(src, en.key)
	index, ok := coerceInt(en.key)
	if !ok {
		return NoteEvent{}, &ParseError{
			Kind:   InvalidKey,
			Line:   en.key.pos.line,
			Column: en.key.pos.col,
			Key:    keyText,
			Msg:    fmt.Sprintf("note index %s is not an integer", keyText),
		}
	}
	val := en.value
	if (val.kind != nodeTuple && val.kind != nodeList) || len(val.items) != 2 {
		return NoteEvent{}, &ParseError{
			Kind:   InvalidShape,
			Line:   val.pos.line,
			Column: val.pos.col,
			Key:    keyText,
			Value:  snippet(src, val),
			Msg:    fmt.Sprintf("note %s must be a (frequency, duration) pair, got %s", keyText, describeShape(val)),
		}
	}
	fields := [2]int{}
	names := [2]string{"frequency", "duration"}
	for i, item := range val.items {
		v, ok := coerceInt(item)
		if !ok {
			itemText := snippet(src, item)
			return NoteEvent{}, &ParseError{
				Kind:   InvalidValue,
				Line:   item.pos.line,
				Column: item.pos.col,
				Key:    keyText,
				Value:  itemText,
				Msg:    fmt.Sprintf("%s %s of note %s is not an integer", names[i], itemText, keyText),
			}
		}
		fields[i] = v
	}
	ev := NoteEvent{Index: index, FrequencyHz: fields[0], DurationMs: fields[1]}
	if err := p.cfg.checkEvent(ev, val.items[0].pos, val.items[1].pos); err != nil {
		return NoteEvent{}, err
	}
	return ev, nil
}

func coerceInt(n *node) (int, bool) {
	switch n.kind {
	case nodeInt:
		v, err := strconv.Atoi(n.text)
		return v, err == nil
	case nodeString:
		v, err := strconv.Atoi(strings.TrimSpace(n.text))
		return v, err == nil
	}
	return 0, false
}

func describeShape(n *node) string {
	switch n.kind {
	case nodeTuple, nodeList:
		return fmt.Sprintf("a %s of %d elements", n.kind, len(n.items))
	default:
		return "a single " + n.kind.String()
	}
}

// snippet returns the source text of a node, shortened for messages.
func snippet(src string, n *node) string {
	if n.pos.offset < 0 || n.end > len(src) || n.end < n.pos.offset {
		return n.text
	}
	s := strings.Join(strings.Fields(src[n.pos.offset:n.end]), " ")
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return s
}

func malformedAt(at position, format string, args ...any) error {
	return &ParseError{
		Kind:   Malformed,
		Line:   at.line,
		Column: at.col,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// treeParser is a recursive-descent parser for the literal grammar:
//
//	value := map | tuple | list | INT | STRING
//	map   := '{' [ value ':' value { ',' value ':' value } [','] ] '}'
//	tuple := '(' [ value { ',' value } [','] ] ')'
//	list  := '[' [ value { ',' value } [','] ] ']'
//
// A parenthesised single value without a trailing comma is just that value.
type treeParser struct {
	toks     []token
	i        int
	depth    int
	maxDepth int
}

func (tp *treeParser) peek() token { return tp.toks[tp.i] }

func (tp *treeParser) take() token {
	t := tp.toks[tp.i]
	if t.kind != tokEOF {
		tp.i++
	}
	return t
}

func (tp *treeParser) expect(kind tokenKind, context string) (token, error) {
	t := tp.take()
	if t.kind != kind {
		return t, malformedAt(t.pos, "expected %s %s, found %s", kind, context, describeToken(t))
	}
	return t, nil
}

func describeToken(t token) string {
	switch t.kind {
	case tokInt:
		return "integer " + t.text
	case tokString:
		return strconv.Quote(t.text)
	}
	return t.kind.String()
}

func (tp *treeParser) parseDocument() (*node, error) {
	if tp.peek().kind == tokEOF {
		return nil, malformedAt(tp.peek().pos, "empty input")
	}
	root, err := tp.parseValue()
	if err != nil {
		return nil, err
	}
	if t := tp.peek(); t.kind != tokEOF {
		return nil, malformedAt(t.pos, "unexpected %s after the closing brace", describeToken(t))
	}
	return root, nil
}

func (tp *treeParser) parseValue() (*node, error) {
	t := tp.peek()
	switch t.kind {
	case tokInt:
		tp.take()
		return &node{kind: nodeInt, pos: t.pos, end: t.end, text: t.text}, nil
	case tokString:
		tp.take()
		return &node{kind: nodeString, pos: t.pos, end: t.end, text: t.text}, nil
	case tokLBrace, tokLParen, tokLBracket:
		tp.depth++
		defer func() { tp.depth-- }()
		if tp.maxDepth > 0 && tp.depth > tp.maxDepth {
			return nil, malformedAt(t.pos, "nesting deeper than %d levels", tp.maxDepth)
		}
		switch t.kind {
		case tokLBrace:
			return tp.parseMap()
		case tokLParen:
			return tp.parseTuple()
		default:
			return tp.parseList()
		}
	case tokEOF:
		return nil, malformedAt(t.pos, "unexpected end of input, expected a value")
	}
	return nil, malformedAt(t.pos, "unexpected %s, expected a value", describeToken(t))
}

func (tp *treeParser) parseMap() (*node, error) {
	open := tp.take()
	n := &node{kind: nodeMap, pos: open.pos}
	for {
		if t := tp.peek(); t.kind == tokRBrace {
			n.end = tp.take().end
			return n, nil
		}
		key, err := tp.parseValue()
		if err != nil {
			return nil, err
		}
		if _, err := tp.expect(tokColon, "after mapping key"); err != nil {
			return nil, err
		}
		val, err := tp.parseValue()
		if err != nil {
			return nil, err
		}
		n.entries = append(n.entries, entry{key: key, value: val})
		t := tp.take()
		switch t.kind {
		case tokComma:
		case tokRBrace:
			n.end = t.end
			return n, nil
		default:
			return nil, malformedAt(t.pos, "expected ',' or '}' in mapping opened at line %d, found %s", open.pos.line, describeToken(t))
		}
	}
}

func (tp *treeParser) parseTuple() (*node, error) {
	open := tp.take()
	items, trailingComma, end, err := tp.parseItems(open, tokRParen)
	if err != nil {
		return nil, err
	}
	if len(items) == 1 && !trailingComma {
		return items[0], nil
	}
	return &node{kind: nodeTuple, pos: open.pos, end: end, items: items}, nil
}

func (tp *treeParser) parseList() (*node, error) {
	open := tp.take()
	items, _, end, err := tp.parseItems(open, tokRBracket)
	if err != nil {
		return nil, err
	}
	return &node{kind: nodeList, pos: open.pos, end: end, items: items}, nil
}

func (tp *treeParser) parseItems(open token, closer tokenKind) ([]*node, bool, int, error) {
	var items []*node
	trailingComma := false
	for {
		if t := tp.peek(); t.kind == closer {
			return items, trailingComma, tp.take().end, nil
		}
		item, err := tp.parseValue()
		if err != nil {
			return nil, false, 0, err
		}
		items = append(items, item)
		trailingComma = false
		t := tp.take()
		switch t.kind {
		case tokComma:
			trailingComma = true
		case closer:
			return items, false, t.end, nil
		default:
			return nil, false, 0, malformedAt(t.pos, "expected ',' or %s in %s opened at line %d, found %s", closer, open.kind, open.pos.line, describeToken(t))
		}
	}
}
