package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBatcherDrainsInBatches(t *testing.T) {
	const delay = 100 * time.Millisecond

	var mu sync.Mutex
	var starts []time.Time
	var inFlight, maxInFlight atomic.Int32

	connect := func(ctx context.Context, id string, receive bool) error {
		cur := inFlight.Add(1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}

	b := NewBatcher(connect, 3, delay)
	defer b.Close()

	var dones []<-chan error
	for i := 0; i < 7; i++ {
		dones = append(dones, b.Enqueue(fmt.Sprintf("t%d", i), false))
	}

	for i, done := range dones {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("request %d failed: %v", i, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("request %d never settled", i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	// Group the attempts by start time: members of one batch begin
	// together, the next batch begins only after the inter-batch delay.
	var sizes []int
	var gaps []time.Duration
	for i, ts := range starts {
		if i == 0 || ts.Sub(starts[i-1]) > delay/2 {
			sizes = append(sizes, 1)
			if i > 0 {
				gaps = append(gaps, ts.Sub(starts[i-1]))
			}
			continue
		}
		sizes[len(sizes)-1]++
	}
	if len(sizes) != 3 || sizes[0] != 3 || sizes[1] != 3 || sizes[2] != 1 {
		t.Fatalf("batch sizes = %v, want [3 3 1]", sizes)
	}
	for i, gap := range gaps {
		if gap < delay {
			t.Fatalf("batch %d started %v after the previous one, want >= %v", i+1, gap, delay)
		}
	}
	if got := maxInFlight.Load(); got > 3 {
		t.Fatalf("concurrency ceiling exceeded: %d", got)
	}
}

func TestBatcherRemoveSkipsEntry(t *testing.T) {
	var connected atomic.Int32
	blocker := make(chan struct{})

	connect := func(ctx context.Context, id string, receive bool) error {
		connected.Add(1)
		<-blocker
		return nil
	}

	// Batch size 1 so the first entry occupies the drainer while we
	// remove a queued one.
	b := NewBatcher(connect, 1, time.Millisecond)
	defer b.Close()

	first := b.Enqueue("busy", false)
	removedDone := b.Enqueue("victim", false)

	// Wait for the drainer to pick up the first entry.
	deadline := time.Now().Add(time.Second)
	for connected.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first connect never started")
		}
		time.Sleep(time.Millisecond)
	}

	if !b.Remove("victim") {
		t.Fatal("Remove should find the queued entry")
	}
	if err := <-removedDone; err != nil {
		t.Fatalf("removed entry should settle with nil, got %v", err)
	}

	close(blocker)
	<-first

	// Give the drainer a moment, then confirm only the first connected.
	time.Sleep(20 * time.Millisecond)
	if got := connected.Load(); got != 1 {
		t.Fatalf("removed entry was still connected: %d attempts", got)
	}
}

func TestBatcherCloseFailsQueued(t *testing.T) {
	blocker := make(chan struct{})
	connect := func(ctx context.Context, id string, receive bool) error {
		<-blocker
		return ctx.Err()
	}

	b := NewBatcher(connect, 1, time.Millisecond)
	b.Enqueue("busy", false)
	queued := b.Enqueue("stuck", false)

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(blocker)
	}()
	b.Close()

	select {
	case err := <-queued:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("queued entry settled with %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued entry never settled after Close")
	}
}

func TestBatcherReentrantTrigger(t *testing.T) {
	var connects atomic.Int32
	connect := func(ctx context.Context, id string, receive bool) error {
		connects.Add(1)
		return nil
	}

	b := NewBatcher(connect, 3, time.Millisecond)
	defer b.Close()

	d1 := b.Enqueue("t1", false)
	d2 := b.Enqueue("t1", false) // same id queued twice is two requests

	<-d1
	<-d2
	if got := connects.Load(); got != 2 {
		t.Fatalf("expected 2 connect attempts, got %d", got)
	}
}
