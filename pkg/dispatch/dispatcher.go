// Package dispatch delivers committed pipeline events to side-effect
// collaborators asynchronously relative to the engine's return.
package dispatch

import (
	"context"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/trellis/pkg/metrics"
	"github.com/Ramsey-B/trellis/pkg/tracing"
)

// Subscriber receives committed events. A delivery failure belongs to the
// subscriber alone: it is logged, counted, and never rolls back the in-memory
// move or blocks other subscribers.
type Subscriber interface {
	Name() string
	Handle(ctx context.Context, event Event) error
}

// Dispatcher fans committed events out to subscribers from a single delivery
// goroutine. Draining one FIFO queue preserves commit order globally, which
// covers the per-deal ordering guarantee.
type Dispatcher struct {
	queue       chan Event
	subscribers []Subscriber
	logger      ectologger.Logger
	wg          sync.WaitGroup
	cancel      context.CancelFunc
	mu          sync.Mutex
	started     bool
}

// NewDispatcher creates a dispatcher with the given queue capacity.
func NewDispatcher(queueSize int, logger ectologger.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Dispatcher{
		queue:  make(chan Event, queueSize),
		logger: logger,
	}
}

// Subscribe registers a subscriber. Must be called before Start.
func (d *Dispatcher) Subscribe(sub Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, sub)
}

// GetName implements the startup dependency contract.
func (d *Dispatcher) GetName() string {
	return "dispatcher"
}

// DependsOn implements the startup dependency contract.
func (d *Dispatcher) DependsOn() []string {
	return []string{"database"}
}

// Start begins the delivery loop.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel
	d.started = true

	d.wg.Add(1)
	go d.deliverLoop(ctx)

	d.logger.WithContext(ctx).WithFields(map[string]any{
		"subscribers": len(d.subscribers),
		"queue_size":  cap(d.queue),
	}).Info("Side-effect dispatcher started")
	return nil
}

// Stop drains queued events, then stops the delivery loop.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.started = false
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	if d.cancel != nil {
		d.cancel()
	}
	return nil
}

// Enqueue hands a committed event to the delivery loop. The caller of a move
// never waits on subscriber latency; it only blocks if the queue is full.
// Events offered after Stop are dropped rather than sent on the closed queue.
func (d *Dispatcher) Enqueue(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		d.logger.WithFields(map[string]any{
			"event_kind": string(event.Kind),
			"deal_id":    event.DealID,
			"tenant_id":  event.TenantID,
		}).Warn("Event dropped, dispatcher is stopped")
		return
	}
	d.queue <- event
	metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
}

func (d *Dispatcher) deliverLoop(ctx context.Context) {
	defer d.wg.Done()

	for event := range d.queue {
		metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
		d.deliver(ctx, event)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	ctx, span := tracing.StartSpan(ctx, "dispatch.Dispatcher.deliver")
	defer span.End()

	for _, sub := range d.subscribers {
		if err := sub.Handle(ctx, event); err != nil {
			metrics.DispatchDeliveriesTotal.WithLabelValues(sub.Name(), "error").Inc()
			d.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"subscriber": sub.Name(),
				"event_kind": string(event.Kind),
				"deal_id":    event.DealID,
				"tenant_id":  event.TenantID,
			}).Error("Side-effect delivery failed")
			continue
		}
		metrics.DispatchDeliveriesTotal.WithLabelValues(sub.Name(), "ok").Inc()
	}
}
