package audit

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Sink consumes audit events (file, webhook, object store, database).
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
	Close(ctx context.Context) error
}

// Emitter buffers events and delivers them to every sink from a fixed pool
// of workers. Enqueueing never blocks; when the queue is full the event is
// dropped and counted.
type Emitter struct {
	queue           chan Event
	sinks           []Sink
	logger          *log.Logger
	shutdownTimeout time.Duration

	mu      sync.Mutex
	closed  bool
	dropped uint64
	wg      sync.WaitGroup
}

// EmitterConfig controls queue and worker sizing.
type EmitterConfig struct {
	QueueSize       int
	Workers         int
	ShutdownTimeout time.Duration
}

// NewEmitter starts background workers delivering to the given sinks.
func NewEmitter(cfg EmitterConfig, sinks []Sink, logger *log.Logger) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}

	em := &Emitter{
		queue:           make(chan Event, cfg.QueueSize),
		sinks:           sinks,
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	for i := 0; i < cfg.Workers; i++ {
		em.wg.Add(1)
		go em.worker()
	}
	return em
}

// Emit enqueues the event without blocking the request path. The send stays
// under the mutex so it can never race Close's close(e.queue); the default
// arm keeps it non-blocking.
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		e.dropped++
		return
	}

	select {
	case e.queue <- ev:
	default:
		e.dropped++
		e.logger.Warn("audit queue full, event dropped", "event_id", ev.ID)
	}
}

// Dropped returns how many events could not be enqueued.
func (e *Emitter) Dropped() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Close stops accepting events and waits briefly for the queue to drain,
// then closes every sink.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, e.shutdownTimeout)
	defer cancel()
	select {
	case <-done:
	case <-waitCtx.Done():
		e.logger.Warn("audit emitter shutdown timed out")
	}

	for _, s := range e.sinks {
		if err := s.Close(ctx); err != nil {
			e.logger.Warn("audit sink close failed", "sink", s.Name(), "err", err)
		}
	}
}

func (e *Emitter) worker() {
	defer e.wg.Done()
	for ev := range e.queue {
		for _, s := range e.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.Deliver(ctx, ev); err != nil {
				e.logger.Warn("audit delivery failed",
					"sink", s.Name(), "event_id", ev.ID, "err", err)
			}
			cancel()
		}
	}
}
