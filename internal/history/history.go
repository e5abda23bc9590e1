// Package history keeps a bounded, linear undo/redo log of text snapshots.
package history

// DefaultCapacity is the number of snapshots kept before the oldest is dropped.
const DefaultCapacity = 100

// History is a pair of stacks: recorded snapshots (oldest first) and the
// snapshots undone since the last recording. It is not safe for concurrent
// use; callers drive it from a single goroutine.
type History struct {
	capacity  int
	snapshots []string
	redo      []string
}

func New(capacity int) *History {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	return &History{
		capacity:  capacity,
		snapshots: make([]string, 0, capacity),
	}
}

// Record appends text as the newest snapshot and clears the redo stack. It
// does nothing and returns false when text equals the newest snapshot.
func (h *History) Record(text string) bool {
	if n := len(h.snapshots); n > 0 && h.snapshots[n-1] == text {
		return false
	}
	h.push(text)
	h.redo = h.redo[:0]
	return true
}

// Undo moves the newest snapshot to the redo stack and returns the one before
// it. The first snapshot can never be undone.
func (h *History) Undo() (string, bool) {
	n := len(h.snapshots)
	if n < 2 {
		return "", false
	}
	h.redo = append(h.redo, h.snapshots[n-1])
	h.snapshots = h.snapshots[:n-1]
	return h.snapshots[n-2], true
}

// Redo pops the most recently undone snapshot and makes it the newest again.
// The remaining redo stack is kept.
func (h *History) Redo() (string, bool) {
	n := len(h.redo)
	if n == 0 {
		return "", false
	}
	text := h.redo[n-1]
	h.redo = h.redo[:n-1]
	h.push(text)
	return text, true
}

// Current returns the newest snapshot.
func (h *History) Current() (string, bool) {
	if len(h.snapshots) == 0 {
		return "", false
	}
	return h.snapshots[len(h.snapshots)-1], true
}

// Reset drops all history and starts over from text.
func (h *History) Reset(text string) {
	h.snapshots = append(h.snapshots[:0], text)
	h.redo = h.redo[:0]
}

func (h *History) Len() int      { return len(h.snapshots) }
func (h *History) RedoLen() int  { return len(h.redo) }
func (h *History) Capacity() int { return h.capacity }

func (h *History) push(text string) {
	if len(h.snapshots) == h.capacity {
		copy(h.snapshots, h.snapshots[1:])
		h.snapshots = h.snapshots[:h.capacity-1]
	}
	h.snapshots = append(h.snapshots, text)
}
