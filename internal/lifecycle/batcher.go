package lifecycle

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultBatchSize caps concurrent connect attempts system-wide; the
	// underlying transports each spawn heavyweight resources, so bulk
	// bring-up must not hit them in one burst.
	DefaultBatchSize = 3

	// DefaultBatchDelay is the pause between drained batches.
	DefaultBatchDelay = 5 * time.Second
)

// BringUpRequest is one queued session-connect unit of work. Done resolves
// with the connect error once the attempt settles, or nil if the request
// was removed before being drained.
type BringUpRequest struct {
	SessionID       string
	ReceiveMessages bool
	Done            chan error

	removed bool
}

// connectFunc performs one connect attempt; supplied by the manager.
type connectFunc func(ctx context.Context, sessionID string, receiveMessages bool) error

// Batcher drains bring-up requests in fixed-size batches with an
// inter-batch delay. A single consumer loop owns the queue; triggering a
// drain while one is running is a no-op.
type Batcher struct {
	mu       sync.Mutex
	queue    []*BringUpRequest
	draining bool

	batchSize int
	delay     time.Duration
	connect   connectFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBatcher(connect connectFunc, batchSize int, delay time.Duration) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if delay < 0 {
		delay = DefaultBatchDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Batcher{
		batchSize: batchSize,
		delay:     delay,
		connect:   connect,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Enqueue appends a request to the tail and triggers a drain. The returned
// channel receives exactly one value when the request settles.
func (b *Batcher) Enqueue(sessionID string, receiveMessages bool) <-chan error {
	req := &BringUpRequest{
		SessionID:       sessionID,
		ReceiveMessages: receiveMessages,
		Done:            make(chan error, 1),
	}

	b.mu.Lock()
	b.queue = append(b.queue, req)
	start := !b.draining
	if start {
		b.draining = true
	}
	b.mu.Unlock()

	if start {
		b.wg.Add(1)
		go b.drain()
	}
	return req.Done
}

// Remove discards a not-yet-drained request for the session, e.g. when the
// client that asked for it went away. Entries already handed to a batch are
// unaffected.
func (b *Batcher) Remove(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, req := range b.queue {
		if req.SessionID == sessionID && !req.removed {
			req.removed = true
			req.Done <- nil
			return true
		}
	}
	return false
}

// Pending returns the number of undrained requests.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, req := range b.queue {
		if !req.removed {
			n++
		}
	}
	return n
}

func (b *Batcher) drain() {
	defer b.wg.Done()
	for {
		batch := b.takeBatch()
		if len(batch) == 0 {
			return
		}

		var wg sync.WaitGroup
		for _, req := range batch {
			wg.Add(1)
			go func(req *BringUpRequest) {
				defer wg.Done()
				req.Done <- b.connect(b.ctx, req.SessionID, req.ReceiveMessages)
			}(req)
		}
		wg.Wait()

		b.mu.Lock()
		more := len(b.queue) > 0
		if !more {
			b.draining = false
		}
		b.mu.Unlock()
		if !more {
			return
		}

		select {
		case <-time.After(b.delay):
		case <-b.ctx.Done():
			b.failRemaining()
			return
		}
	}
}

// takeBatch pops up to batchSize live entries off the head, dropping
// removed ones without counting them against the batch.
func (b *Batcher) takeBatch() []*BringUpRequest {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := make([]*BringUpRequest, 0, b.batchSize)
	i := 0
	for ; i < len(b.queue) && len(batch) < b.batchSize; i++ {
		if b.queue[i].removed {
			continue
		}
		batch = append(batch, b.queue[i])
	}
	b.queue = b.queue[i:]

	if len(batch) == 0 && len(b.queue) == 0 {
		b.draining = false
	}
	return batch
}

func (b *Batcher) failRemaining() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, req := range b.queue {
		if !req.removed {
			req.removed = true
			req.Done <- b.ctx.Err()
		}
	}
	b.queue = nil
	b.draining = false
}

// Close stops the consumer loop and fails everything still queued.
func (b *Batcher) Close() {
	b.cancel()
	b.mu.Lock()
	queued := b.queue
	b.queue = nil
	b.draining = false
	b.mu.Unlock()
	for _, req := range queued {
		if !req.removed {
			req.Done <- context.Canceled
		}
	}
	b.wg.Wait()
}
