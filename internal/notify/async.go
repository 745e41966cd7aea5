package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultQueueSize       = 64
	defaultDeliveryTimeout = time.Minute
)

// ErrClosed is returned by Notify after Close.
var ErrClosed = errors.New("notifier closed")

// Async hands events to a background worker so callers never wait on the
// webhook. The queue is bounded; events that do not fit are dropped and logged.
type Async struct {
	next    Notifier
	queue   chan Event
	timeout time.Duration

	base   context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts the worker. timeout bounds each delivery including retries.
func NewAsync(next Notifier, queueSize int, timeout time.Duration) *Async {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	base, cancel := context.WithCancel(context.Background())
	a := &Async{
		next:    next,
		queue:   make(chan Event, queueSize),
		timeout: timeout,
		base:    base,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Notify enqueues the event and returns immediately. The caller's context is
// not used for delivery, so a finished request does not cancel its event.
func (a *Async) Notify(_ context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	select {
	case a.queue <- event:
		return nil
	default:
		log.Warn().Str("event", event.Type).Int64("store_id", event.StoreID).Msg("notification queue full, event dropped")
		return nil
	}
}

func (a *Async) run() {
	defer close(a.done)
	for event := range a.queue {
		ctx, cancel := context.WithTimeout(a.base, a.timeout)
		if err := a.next.Notify(ctx, event); err != nil {
			log.Error().Err(err).Str("event", event.Type).Int64("store_id", event.StoreID).Msg("notification not delivered")
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
// When ctx ends first, in-flight deliveries are cancelled.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		a.cancel()
		<-a.done
		return ctx.Err()
	}
}
