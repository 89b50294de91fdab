package pipeline

import (
	"strings"
	"time"
)

// DefaultLogCapacity is how many log entries the controller keeps.
const DefaultLogCapacity = 200

// ringLog is a bounded ring buffer of log entries. It is not safe for
// concurrent use; the controller guards it with stateMu.
type ringLog struct {
	data []LogEntry
	size int
	pos  int
	full bool
}

func newRingLog(size int) *ringLog {
	if size <= 0 {
		size = DefaultLogCapacity
	}
	return &ringLog{data: make([]LogEntry, size), size: size}
}

func (r *ringLog) add(e LogEntry) {
	r.data[r.pos] = e
	r.pos++
	if r.pos >= r.size {
		r.pos = 0
		r.full = true
	}
}

func (r *ringLog) len() int {
	if r.full {
		return r.size
	}
	return r.pos
}

// entries returns the retained entries oldest first.
func (r *ringLog) entries() []LogEntry {
	out := make([]LogEntry, 0, r.len())
	if r.full {
		out = append(out, r.data[r.pos:]...)
	}
	return append(out, r.data[:r.pos]...)
}

func (r *ringLog) reset() {
	clear(r.data)
	r.pos = 0
	r.full = false
}

// text joins the messages with newlines.
func (r *ringLog) text() string {
	var b strings.Builder
	for i, e := range r.entries() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.Message)
	}
	return b.String()
}

func newEntry(now time.Time, msg string) LogEntry {
	return LogEntry{Time: now, Message: msg}
}
