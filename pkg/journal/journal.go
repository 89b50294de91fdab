// Package journal records translated utterances.
//
// Only text is stored: the recognised source text, its translation and a few
// descriptors of the run that produced them. Audio never leaves the process.
// The controller treats a failing [Writer] as a warning and keeps going.
package journal

import (
	"context"
	"time"
)

// Entry is one translated utterance.
type Entry struct {
	// RunID identifies the pipeline run (a UUID assigned at Start).
	RunID string

	// Seq numbers the utterances of a run starting at 1.
	Seq int

	// SourceLocale is the recognition locale, e.g. "en-US".
	SourceLocale string

	// TargetCode is the translator language code, e.g. "fr".
	TargetCode string

	// Voice is the synthesis voice short name.
	Voice string

	Transcription string
	Translation   string

	// SegmentDuration is the length of the speech segment that was recognised.
	SegmentDuration time.Duration

	CreatedAt time.Time
}

// Writer persists entries. Implementations must be safe for concurrent use.
type Writer interface {
	Record(ctx context.Context, e Entry) error
}

// Reader returns the most recent entries of a run, oldest first. An empty
// runID means all runs.
type Reader interface {
	Recent(ctx context.Context, runID string, limit int) ([]Entry, error)
}

// Discard is a Writer that drops every entry.
var Discard Writer = discard{}

type discard struct{}

func (discard) Record(context.Context, Entry) error { return nil }
