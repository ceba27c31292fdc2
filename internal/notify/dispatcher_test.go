package notify

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu    sync.Mutex
	notes []string
	block chan struct{}
}

func (s *recordingSink) Emit(_ context.Context, note string) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.notes = append(s.notes, note)
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notes...)
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher[string](Config{Enabled: false}, &recordingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), "ignored")
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDeliversInOrderAndDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher[string](Config{Enabled: true, BufferSize: 16}, sink)

	want := []string{"a", "b", "c", "d"}
	for _, e := range want {
		d.Emit(context.Background(), e)
	}
	d.Close()

	got := sink.snapshot()
	if len(got) != len(want) {
		t.Fatalf("expected %d notes, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("note %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	d.Emit(context.Background(), "after-close")
	if len(sink.snapshot()) != len(want) {
		t.Fatal("notes emitted after Close must be ignored")
	}
}

func TestDispatcherDropIfFullCountsDrops(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	d := NewDispatcher[string](Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// The first note is picked up by the worker and blocks in the sink,
	// the second fills the buffer, the rest are dropped.
	d.Emit(context.Background(), "first")
	deadline := time.Now().Add(time.Second)
	for len(d.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), "second")
	d.Emit(context.Background(), "third")
	d.Emit(context.Background(), "fourth")

	if got := d.Dropped(); got != 2 {
		t.Fatalf("expected 2 drops, got %d", got)
	}

	close(sink.block)
	d.Close()
	if got := len(sink.snapshot()); got != 2 {
		t.Fatalf("expected 2 delivered notes, got %d", got)
	}
}

func TestDispatcherBlockingEmitHonorsContext(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	d := NewDispatcher[string](Config{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.block)
		d.Close()
	}()

	d.Emit(context.Background(), "first")
	deadline := time.Now().Add(time.Second)
	for len(d.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), "second")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	d.Emit(ctx, "third")
	if time.Since(start) > time.Second {
		t.Fatal("blocking emit ignored context cancellation")
	}
	if d.Dropped() != 1 {
		t.Fatalf("expected cancelled emit to count as dropped, got %d", d.Dropped())
	}
}
