package notes

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

const scale = `{
    1: (261, 500),
    2: (293, 500),
    3: (329, 500),
    4: (349, 500),
    5: (392, 500),
    6: (440, 500),
    7: (494, 500)
}`

func TestParseCanonicalScale(t *testing.T) {
	seq, err := Parse(scale)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if seq.Len() != 7 {
		t.Fatalf("expected 7 notes, got %d", seq.Len())
	}
	ev, ok := seq.Lookup(6)
	if !ok || ev.FrequencyHz != 440 || ev.DurationMs != 500 {
		t.Fatalf("expected note 6 = (440, 500), got %+v ok=%v", ev, ok)
	}
	if got := seq.TotalDuration().Milliseconds(); got != 3500 {
		t.Fatalf("expected total duration 3500ms, got %d", got)
	}
}

func TestParsePortableForm(t *testing.T) {
	seq, err := Parse(`{"notes": {"3": [329, 250], "1": [261, 125]}}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	events := seq.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(events))
	}
	if events[0] != (NoteEvent{Index: 3, FrequencyHz: 329, DurationMs: 250}) {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1] != (NoteEvent{Index: 1, FrequencyHz: 261, DurationMs: 125}) {
		t.Fatalf("unexpected second event %+v", events[1])
	}
}

func TestParseAcceptsMixedSyntax(t *testing.T) {
	seq, err := Parse("{ -2: [100, 0], '4': ('300', \" 20 \"), 7: (+500, 10,), } # trailing comment")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	want := []NoteEvent{
		{Index: -2, FrequencyHz: 100, DurationMs: 0},
		{Index: 4, FrequencyHz: 300, DurationMs: 20},
		{Index: 7, FrequencyHz: 500, DurationMs: 10},
	}
	got := seq.Events()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: want %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestParseDuplicateIndexLastWins(t *testing.T) {
	seq, err := Parse("{1: (261,500), 1: (300,500)}")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if seq.Len() != 1 {
		t.Fatalf("expected one entry, got %d", seq.Len())
	}
	ev, _ := seq.Lookup(1)
	if ev.FrequencyHz != 300 {
		t.Fatalf("expected last entry to win with 300 Hz, got %d", ev.FrequencyHz)
	}
}

func TestParseDuplicateKeepsFirstPosition(t *testing.T) {
	seq, err := Parse("{1: (261,500), 2: (293,500), 1: (300,500)}")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	events := seq.Events()
	if events[0].Index != 1 || events[0].FrequencyHz != 300 || events[1].Index != 2 {
		t.Fatalf("expected [1:300, 2:293], got %+v", events)
	}
}

func TestParseFrequencyBoundaries(t *testing.T) {
	cases := []struct {
		freq    string
		wantErr bool
	}{
		{"37", false},
		{"32767", false},
		{"36", true},
		{"32768", true},
	}
	for _, tc := range cases {
		t.Run(tc.freq, func(t *testing.T) {
			_, err := Parse("{1: (" + tc.freq + ", 100)}")
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("expected %s Hz to be accepted, got %v", tc.freq, err)
				}
				return
			}
			if !IsKind(err, FrequencyOutOfRange) {
				t.Fatalf("expected FrequencyOutOfRange for %s Hz, got %v", tc.freq, err)
			}
			if !strings.Contains(err.Error(), tc.freq) {
				t.Fatalf("message should contain the value %s: %v", tc.freq, err)
			}
			bound := "37"
			if tc.freq == "32768" {
				bound = "32767"
			}
			if !strings.Contains(err.Error(), bound) {
				t.Fatalf("message should contain the bound %s: %v", bound, err)
			}
		})
	}
}

func TestParseDurationBoundaries(t *testing.T) {
	cases := []struct {
		dur     string
		wantErr bool
	}{
		{"0", false},
		{"3600000", false},
		{"3600001", true},
		{"4294967296000", true},
		{"9223372036854775807", true},
	}
	for _, tc := range cases {
		t.Run(tc.dur, func(t *testing.T) {
			_, err := Parse("{1: (261, " + tc.dur + ")}")
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("expected %s ms to be accepted, got %v", tc.dur, err)
				}
				return
			}
			if !IsKind(err, InvalidValue) {
				t.Fatalf("expected InvalidValue for %s ms, got %v", tc.dur, err)
			}
			if !strings.Contains(err.Error(), tc.dur) || !strings.Contains(err.Error(), "3600000") {
				t.Fatalf("message should contain the value and the bound: %v", err)
			}
		})
	}
}

func TestUnboundedDurationsSaturate(t *testing.T) {
	cfg := DefaultParserConfig()
	cfg.MaxDurationMs = 0
	seq, err := NewParser(cfg).Parse("{1: (261, 9223372036854775807), 2: (261, 9223372036854775807)}")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := seq.TotalDuration(); got != time.Duration(math.MaxInt64) {
		t.Fatalf("total duration = %v, want saturation at MaxInt64", got)
	}
	ev, _ := seq.Lookup(1)
	if ev.Duration() <= 0 {
		t.Fatalf("note duration wrapped to %v", ev.Duration())
	}
}

func TestParseErrorKinds(t *testing.T) {
	cases := []struct {
		name  string
		input string
		kind  ErrorKind
	}{
		{"one element tuple", "{1: (300,)}", InvalidShape},
		{"grouped scalar", "{1: (300)}", InvalidShape},
		{"three elements", "{1: [300, 1, 2]}", InvalidShape},
		{"bare integer", "{1: 300}", InvalidShape},
		{"nested mapping value", "{1: {2: 3}}", InvalidShape},
		{"word key", `{"one": (300, 1)}`, InvalidKey},
		{"tuple key", `{(1, 2): (300, 1)}`, InvalidKey},
		{"key overflow", "{99999999999999999999999: (300, 1)}", InvalidKey},
		{"word value", `{1: ("loud", 1)}`, InvalidValue},
		{"nested value", "{1: ([300], 1)}", InvalidValue},
		{"negative duration", "{1: (300, -1)}", InvalidValue},
		{"float", "{1: (261.5, 100)}", Malformed},
		{"identifier", "{1: (A4, 100)}", Malformed},
		{"call", "{1: __import__('os')}", Malformed},
		{"set literal", "{1, 2}", Malformed},
		{"list at top", "[(261, 100)]", Malformed},
		{"empty", "   ", Malformed},
		{"unclosed", "{1: (261, 100)", Malformed},
		{"trailing garbage", "{1: (261, 100)} {}", Malformed},
		{"unterminated string", `{"1: (261, 100)}`, Malformed},
		{"portable sibling", `{"notes": {"1": [261, 100]}, "tempo": 120}`, Malformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seq, err := Parse(tc.input)
			if err == nil {
				t.Fatalf("expected %s error, got sequence %v", tc.kind, seq)
			}
			if seq != nil {
				t.Fatalf("expected no partial sequence on error")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T: %v", err, err)
			}
			if pe.Kind != tc.kind {
				t.Fatalf("expected %s, got %s (%v)", tc.kind, pe.Kind, err)
			}
		})
	}
}

func TestParseStopsAtFirstError(t *testing.T) {
	_, err := Parse("{1: (20, 100), x: 5}")
	if !IsKind(err, Malformed) {
		t.Fatalf("syntax errors are reported before entry validation, got %v", err)
	}
	_, err = Parse("{1: (20, 100), 2: (300,)}")
	if !IsKind(err, FrequencyOutOfRange) {
		t.Fatalf("expected the first offending entry to be reported, got %v", err)
	}
}

func TestParseErrorLocation(t *testing.T) {
	_, err := Parse("{\n    1: (261, 500),\n    2: (20, 500)\n}")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if pe.Line != 3 || pe.Column != 9 {
		t.Fatalf("expected line 3 column 9, got line %d column %d", pe.Line, pe.Column)
	}
	if pe.Key != "2" || pe.Value != "20" {
		t.Fatalf("expected key 2 value 20, got key %q value %q", pe.Key, pe.Value)
	}
	line, ok := ErrorLine(err)
	if !ok || line != 3 {
		t.Fatalf("ErrorLine = %d, %v; want 3, true", line, ok)
	}
}

func TestParseMalformedLocation(t *testing.T) {
	_, err := Parse("{\n  1: (261, 500)\n  2: (293, 500)\n}")
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != Malformed {
		t.Fatalf("expected Malformed, got %v", err)
	}
	if pe.Line != 3 {
		t.Fatalf("expected missing comma reported on line 3, got %d", pe.Line)
	}
}

func TestParseDepthLimit(t *testing.T) {
	p := NewParser(ParserConfig{MinFrequency: MinFrequency, MaxFrequency: MaxFrequency, MaxDepth: 4})
	_, err := p.Parse("{1: ((((1, 2))), 3)}")
	if !IsKind(err, Malformed) {
		t.Fatalf("expected Malformed for deep nesting, got %v", err)
	}
}

func TestParseDoesNotMutateInput(t *testing.T) {
	input := "{1: (261, 500)}"
	before := strings.Clone(input)
	if _, err := Parse(input); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if input != before {
		t.Fatalf("input changed")
	}
}

func TestMelodyOrder(t *testing.T) {
	seq, err := Parse("{5:(440,100), 1:(261,100), 3:(329,100)}")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got := []int{}
	for _, ev := range seq.Melody() {
		got = append(got, ev.Index)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 5 {
		t.Fatalf("expected melody order [1 3 5], got %v", got)
	}
	if first := seq.Events()[0].Index; first != 5 {
		t.Fatalf("Events should keep source order, first index = %d", first)
	}
}

func TestNewSequenceValidates(t *testing.T) {
	if _, err := NewSequence(NoteEvent{Index: 1, FrequencyHz: 10, DurationMs: 5}); !IsKind(err, FrequencyOutOfRange) {
		t.Fatalf("expected FrequencyOutOfRange, got %v", err)
	}
	seq, err := NewSequence(NoteEvent{Index: 2, FrequencyHz: 440, DurationMs: 5}, NoteEvent{Index: 2, FrequencyHz: 880, DurationMs: 5})
	if err != nil {
		t.Fatalf("new sequence: %v", err)
	}
	if ev, _ := seq.Lookup(2); seq.Len() != 1 || ev.FrequencyHz != 880 {
		t.Fatalf("expected last-wins, got %v", seq.Events())
	}
}

func BenchmarkParseCanonical(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := Parse(scale); err != nil {
			b.Fatalf("parse failed: %v", err)
		}
	}
}
