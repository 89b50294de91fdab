// Package translate defines the Provider interface for text translation
// backends.
//
// Languages are identified by translator codes ("en", "fr", "zh-Hans"). An
// empty From asks the backend to auto-detect the source language.
//
// Implementations must be safe for concurrent use.
package translate

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when Translate is called with blank input.
var ErrEmptyText = errors.New("translate: text must not be empty")

// Options selects the language pair of a request.
type Options struct {
	// From is the source language code. Empty means auto-detect.
	From string

	// To is the target language code. Required.
	To string
}

// Validate reports whether the options are usable.
func (o Options) Validate() error {
	if o.To == "" {
		return errors.New("translate: target language must not be empty")
	}
	return nil
}

// Provider translates a piece of text.
type Provider interface {
	// Translate returns text rendered in opts.To. An empty result with a nil
	// error means the backend had nothing to say.
	Translate(ctx context.Context, text string, opts Options) (string, error)
}
