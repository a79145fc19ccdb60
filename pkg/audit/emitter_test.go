package audit

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// recordingSink captures delivered events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
	fail   error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) delivered() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestEmitterDeliversAndDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	em := NewEmitter(EmitterConfig{QueueSize: 16, Workers: 2}, []Sink{sink}, log.New(io.Discard))

	for i := 0; i < 5; i++ {
		em.Emit(Event{ID: string(rune('a' + i))})
	}
	em.Close(context.Background())

	got := sink.delivered()
	if len(got) != 5 {
		t.Fatalf("expected 5 delivered events, got %d", len(got))
	}
	if !sink.closed {
		t.Fatal("sink must be closed on emitter close")
	}
	if em.Dropped() != 0 {
		t.Fatalf("no drops expected, got %d", em.Dropped())
	}
}

func TestEmitterDropsWhenQueueFull(t *testing.T) {
	// A sink that never returns keeps the single worker busy so the queue
	// fills up.
	block := make(chan struct{})
	slow := &blockingSink{release: block}
	em := NewEmitter(EmitterConfig{QueueSize: 1, Workers: 1, ShutdownTimeout: 50 * time.Millisecond},
		[]Sink{slow}, log.New(io.Discard))

	// 11 emits against a queue of 1 and one stalled worker: at most two can
	// be in flight, the rest must drop.
	for i := 0; i < 11; i++ {
		em.Emit(Event{ID: "overflow"})
	}
	if em.Dropped() < 9 {
		t.Fatalf("expected at least 9 drops, got %d", em.Dropped())
	}

	close(block)
	em.Close(context.Background())
}

func TestEmitterRejectsAfterClose(t *testing.T) {
	sink := &recordingSink{}
	em := NewEmitter(EmitterConfig{QueueSize: 4, Workers: 1}, []Sink{sink}, log.New(io.Discard))
	em.Close(context.Background())

	em.Emit(Event{ID: "late"})
	if em.Dropped() != 1 {
		t.Fatalf("emit after close must count as dropped, got %d", em.Dropped())
	}
}

func TestEmitterSurvivesFailingSink(t *testing.T) {
	failing := &recordingSink{fail: errors.New("disk full")}
	healthy := &recordingSink{}
	em := NewEmitter(EmitterConfig{QueueSize: 4, Workers: 1},
		[]Sink{failing, healthy}, log.New(io.Discard))

	em.Emit(Event{ID: "ev-1"})
	em.Close(context.Background())

	if len(healthy.delivered()) != 1 {
		t.Fatal("a failing sink must not prevent delivery to the others")
	}
}

func TestEmitRacingCloseDoesNotPanic(t *testing.T) {
	for i := 0; i < 200; i++ {
		sink := &recordingSink{}
		em := NewEmitter(EmitterConfig{QueueSize: 4, Workers: 1}, []Sink{sink}, log.New(io.Discard))

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < 20; n++ {
					em.Emit(Event{ID: "race"})
				}
			}()
		}
		em.Close(context.Background())
		wg.Wait()

		// Every emit either delivered or counted as dropped, never lost to
		// a panic on the closed queue.
		if int(em.Dropped())+len(sink.delivered()) != 8*20 {
			t.Fatalf("events unaccounted for: dropped=%d delivered=%d",
				em.Dropped(), len(sink.delivered()))
		}
	}
}

func TestNilEmitterIsNoop(t *testing.T) {
	var em *Emitter
	em.Emit(Event{ID: "ignored"})
	em.Close(context.Background())
}

// blockingSink stalls every delivery until release is closed.
type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Deliver(context.Context, Event) error {
	<-s.release
	return nil
}

func (s *blockingSink) Close(context.Context) error { return nil }
