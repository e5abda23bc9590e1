package notes

import (
	"strconv"
	"strings"
)

const indent = "    "

// Canonical renders seq in the mapping-literal form, one entry per line in
// insertion order, with every column right-aligned to its widest value:
//
//	{
//	     1: ( 261, 500),
//	    10: (1046, 250)
//	}
func Canonical(seq *Sequence) string {
	events := seq.Events()
	if len(events) == 0 {
		return "{\n}"
	}
	keyW := widest(events, func(ev NoteEvent) int { return ev.Index })
	freqW := widest(events, func(ev NoteEvent) int { return ev.FrequencyHz })
	durW := widest(events, func(ev NoteEvent) int { return ev.DurationMs })

	var sb strings.Builder
	sb.WriteString("{\n")
	for i, ev := range events {
		if i > 0 {
			sb.WriteString(",\n")
		}
		sb.WriteString(indent)
		sb.WriteString(padLeft(ev.Index, keyW))
		sb.WriteString(": (")
		sb.WriteString(padLeft(ev.FrequencyHz, freqW))
		sb.WriteString(", ")
		sb.WriteString(padLeft(ev.DurationMs, durW))
		sb.WriteString(")")
	}
	sb.WriteString("\n}")
	return sb.String()
}

// Portable renders seq in the JSON object form with string keys:
//
//	{
//	    "notes": {
//	        "1": [261, 500]
//	    }
//	}
func Portable(seq *Sequence) string {
	events := seq.Events()
	var sb strings.Builder
	sb.WriteString("{\n")
	sb.WriteString(indent + strconv.Quote(portableField) + ": {")
	if len(events) == 0 {
		sb.WriteString("}\n}\n")
		return sb.String()
	}
	sb.WriteString("\n")
	for i, ev := range events {
		if i > 0 {
			sb.WriteString(",\n")
		}
		sb.WriteString(indent + indent)
		sb.WriteString(strconv.Quote(strconv.Itoa(ev.Index)))
		sb.WriteString(": [")
		sb.WriteString(strconv.Itoa(ev.FrequencyHz))
		sb.WriteString(", ")
		sb.WriteString(strconv.Itoa(ev.DurationMs))
		sb.WriteString("]")
	}
	sb.WriteString("\n" + indent + "}\n}\n")
	return sb.String()
}

func widest(events []NoteEvent, field func(NoteEvent) int) int {
	w := 0
	for _, ev := range events {
		if n := len(strconv.Itoa(field(ev))); n > w {
			w = n
		}
	}
	return w
}

func padLeft(v int, width int) string {
	s := strconv.Itoa(v)
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}
