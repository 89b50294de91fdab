package audio

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO of sample chunks that implements [Source].
//
// Producers (device callbacks) call Push and never block; the consumer calls
// NextFrame. Nothing is ever dropped: a slow consumer only grows the queue.
// Queue is safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	chunks [][]float32
	notify chan struct{}
	closed bool

	// OnClose, if set, runs once when the queue is closed.
	OnClose func()
}

var _ Source = (*Queue)(nil)

// NewQueue returns an empty open queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends a chunk. Pushing to a closed queue is a no-op.
func (q *Queue) Push(samples []float32) {
	if len(samples) == 0 {
		return
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.chunks = append(q.chunks, samples)
	select {
	case q.notify <- struct{}{}:
	default:
	}
	q.mu.Unlock()
}

// Len returns the number of queued chunks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// NextFrame implements [Source]. Chunks still queued when the queue is closed
// are discarded.
func (q *Queue) NextFrame(ctx context.Context) ([]float32, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}
		if len(q.chunks) > 0 {
			c := q.chunks[0]
			q.chunks[0] = nil
			q.chunks = q.chunks[1:]
			q.mu.Unlock()
			return c, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close implements [Source].
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.chunks = nil
	close(q.notify)
	onClose := q.OnClose
	q.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return nil
}
