// Package audio defines the capture and playback abstractions used by relayvox
// together with the PCM helpers shared by device adapters.
//
// Capture is modelled as an [Input] (a long-lived device such as a microphone,
// a WAV file or a voice channel) that opens one [Source] per pipeline run.
// Playback mirrors this with [Output] and [Sink].
//
// Samples inside the pipeline are mono float32 in [-1, 1]. Playback sinks take
// little-endian 16-bit PCM because that is what synthesis providers emit.
//
// Device adapters live in sub-packages (audio/mic, audio/speaker,
// audio/wavfile, audio/wavdir, audio/discord).
package audio

import (
	"context"
	"errors"
)

// ErrClosed is returned by [Source.NextFrame] and [Sink.Write] after Close.
var ErrClosed = errors.New("audio: stream closed")

// Source is a continuous stream of mono float32 frames.
//
// NextFrame blocks until samples are available, the source is closed or ctx
// is done. A closed source returns [ErrClosed]; a finite source (a file)
// returns io.EOF once exhausted. Frames have no fixed length; consumers
// re-chunk them as needed.
//
// Close is idempotent, safe to call from any goroutine and unblocks a pending
// NextFrame.
type Source interface {
	NextFrame(ctx context.Context) ([]float32, error)
	Close() error
}

// Sink plays little-endian 16-bit PCM.
//
// Write queues pcm (in format f) for playback and may return before it is
// audible. Drain blocks until everything queued has been played. Flush drops
// queued audio immediately and wakes a pending Drain.
type Sink interface {
	Write(ctx context.Context, pcm []byte, f Format) error
	Drain(ctx context.Context) error
	Flush()
	Close() error
}

// Input is a capture device that can open a fresh [Source] per run.
type Input interface {
	Open(ctx context.Context) (Source, error)
}

// Output is a playback device that can open a fresh [Sink] per run.
type Output interface {
	Open(ctx context.Context) (Sink, error)
}

// InputFunc adapts a function to [Input].
type InputFunc func(ctx context.Context) (Source, error)

// Open implements [Input].
func (f InputFunc) Open(ctx context.Context) (Source, error) { return f(ctx) }

// OutputFunc adapts a function to [Output].
type OutputFunc func(ctx context.Context) (Sink, error)

// Open implements [Output].
func (f OutputFunc) Open(ctx context.Context) (Sink, error) { return f(ctx) }
