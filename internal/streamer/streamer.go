// Package streamer pulls fused samples from a single upstream source
// and fans them out to a dynamic set of consumers, each with its own
// bounded queue and goroutine, enforcing lossy per-consumer
// backpressure so a stalled consumer can never block the producer or
// any other consumer.
//
// Each consumer's bounded queue is a buffered channel, and the "put
// with timeout" policy is a select against time.After rather than a
// plain channel send — a plain unbuffered send would block the
// producer on the first stalled consumer, which defeats the whole
// point of a lossy fan-out.
package streamer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sixaxis-fusion/imud/internal/sample"
)

// Consumer receives fused samples handed to it by the streamer. Handle
// must never block unboundedly — handlers are not preempted, and one
// that blocks forever will leak its worker goroutine.
type Consumer interface {
	Handle(sample.Fused)
}

// Source is the upstream the streamer pulls from — satisfied by
// *fusionstage.Stage, or directly by a source.Source-shaped adapter in
// tests.
type Source interface {
	Next(ctx context.Context) (sample.Fused, error)
}

const (
	defaultQueueSize       = 1000
	defaultConsumerTimeout = 10 * time.Millisecond
)

type consumerEntry struct {
	queue chan (*sample.Fused)
	done  chan struct{}
}

// Streamer owns one producer goroutine and one goroutine per
// registered consumer.
type Streamer struct {
	queueSize       int
	consumerTimeout time.Duration

	mu        sync.Mutex
	consumers map[uint64]*consumerEntry
	nextID    uint64
	stopped   bool

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Streamer at construction.
type Option func(*Streamer)

// WithQueueSize overrides the default per-consumer bounded queue
// depth (1000).
func WithQueueSize(n int) Option {
	return func(s *Streamer) { s.queueSize = n }
}

// WithConsumerTimeout overrides the default per-item put timeout
// (10ms) a stalled consumer gets before its sample is dropped.
func WithConsumerTimeout(d time.Duration) Option {
	return func(s *Streamer) { s.consumerTimeout = d }
}

// New starts a Streamer pulling from src. The producer goroutine
// starts immediately; it runs until src.Next returns an error (upstream
// termination) or RequestStop is called.
func New(src Source, opts ...Option) *Streamer {
	s := &Streamer{
		queueSize:       defaultQueueSize,
		consumerTimeout: defaultConsumerTimeout,
		consumers:       make(map[uint64]*consumerEntry),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.run(ctx, src)
	return s
}

// AddConsumer registers a new consumer and returns its id. ok is false
// if the streamer has already stopped, in which case id is zero and
// the consumer was not registered.
func (s *Streamer) AddConsumer(c Consumer) (id uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0, false
	}

	s.nextID++
	id = s.nextID
	entry := &consumerEntry{
		queue: make(chan *sample.Fused, s.queueSize),
		done:  make(chan struct{}),
	}
	s.consumers[id] = entry

	go s.consumerRun(entry, c)
	return id, true
}

// RemoveConsumer deregisters a consumer, draining any queued items,
// posting a terminal marker to wake its worker, and blocking until the
// worker has exited. Removal is idempotent — removing an id that is
// not (or no longer) registered is a no-op.
//
// Callers on the consumer's own Handle path (e.g. the TCP/WS fan-outs
// deregistering themselves after a send error) must use
// RemoveConsumerAsync instead: joining here from inside Handle would
// deadlock waiting for the very goroutine making the call.
func (s *Streamer) RemoveConsumer(id uint64) {
	s.mu.Lock()
	entry, ok := s.consumers[id]
	if ok {
		delete(s.consumers, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	drainAndClose(entry)
	<-entry.done
}

// RequestStop raises the terminal flag; the producer finishes its
// current iteration (its in-flight Next call) and then exits.
func (s *Streamer) RequestStop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
}

// WaitForEnd blocks until the producer and all consumer workers have
// exited. After it returns, no streamer-owned goroutine is live.
func (s *Streamer) WaitForEnd() {
	<-s.done
	s.mu.Lock()
	entries := make([]*consumerEntry, 0, len(s.consumers))
	for _, e := range s.consumers {
		entries = append(entries, e)
	}
	s.mu.Unlock()
	for _, e := range entries {
		<-e.done
	}
}

func (s *Streamer) run(ctx context.Context, src Source) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.finish()
			return
		default:
		}

		item, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("streamer: upstream error, stopping: %v", err)
			}
			s.finish()
			return
		}

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			s.finish()
			return
		}
		entries := make([]*consumerEntry, 0, len(s.consumers))
		for _, e := range s.consumers {
			entries = append(entries, e)
		}
		s.mu.Unlock()

		for _, e := range entries {
			offer(e.queue, &item, s.consumerTimeout)
		}
	}
}

// finish posts a terminal marker to every remaining consumer queue.
// It does not join them — WaitForEnd is the join barrier, called by
// whoever owns the Streamer.
func (s *Streamer) finish() {
	s.mu.Lock()
	s.stopped = true
	entries := make([]*consumerEntry, 0, len(s.consumers))
	for _, e := range s.consumers {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	for _, e := range entries {
		select {
		case e.queue <- nil:
		default:
			// Queue full of un-drained samples; a nil marker will
			// still arrive once the consumer drains far enough, since
			// the queue is never resized and the producer has
			// stopped sending anything new.
			go func(q chan *sample.Fused) { q <- nil }(e.queue)
		}
	}
}

func (s *Streamer) consumerRun(entry *consumerEntry, c Consumer) {
	defer close(entry.done)
	for item := range entry.queue {
		if item == nil {
			return
		}
		c.Handle(*item)
	}
}

func offer(q chan *sample.Fused, item *sample.Fused, timeout time.Duration) {
	select {
	case q <- item:
	case <-time.After(timeout):
		// Lossy backpressure: the item is dropped for this consumer
		// only; the producer and every other consumer are unaffected.
	}
}

func drainAndClose(entry *consumerEntry) {
	for {
		select {
		case <-entry.queue:
		default:
			select {
			case entry.queue <- nil:
			default:
				go func() { entry.queue <- nil }()
			}
			return
		}
	}
}

// RemoveConsumerAsync is the worker-initiated removal path: a consumer
// whose Handle detects a fatal local error (e.g. a closed socket) calls
// this instead of RemoveConsumer to deregister itself without joining
// its own goroutine, which would deadlock.
func (s *Streamer) RemoveConsumerAsync(id uint64) {
	s.mu.Lock()
	entry, ok := s.consumers[id]
	if ok {
		delete(s.consumers, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	go drainAndClose(entry)
}
