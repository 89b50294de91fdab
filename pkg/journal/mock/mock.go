// Package mock provides an in-memory [journal.Writer] and [journal.Reader]
// for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/relayvox/pkg/journal"
)

// Recorder keeps every recorded entry in memory. The zero value is ready.
type Recorder struct {
	mu      sync.Mutex
	entries []journal.Entry

	// RecordErr is returned by [Recorder.Record] when non-nil; the entry is
	// not kept.
	RecordErr error
}

var (
	_ journal.Writer = (*Recorder)(nil)
	_ journal.Reader = (*Recorder)(nil)
)

// Record implements [journal.Writer].
func (r *Recorder) Record(_ context.Context, e journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.RecordErr != nil {
		return r.RecordErr
	}
	r.entries = append(r.entries, e)
	return nil
}

// Recent implements [journal.Reader].
func (r *Recorder) Recent(_ context.Context, runID string, limit int) ([]journal.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []journal.Entry
	for _, e := range r.entries {
		if runID == "" || e.RunID == runID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return append([]journal.Entry{}, out...), nil
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []journal.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]journal.Entry{}, r.entries...)
}
