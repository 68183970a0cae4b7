package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const deliveryTimeout = 30 * time.Second

// Dispatcher queues events and delivers them on a background worker.
// Delivery failures are logged and never reach the publisher.
type Dispatcher struct {
	notifier Notifier
	log      *logrus.Logger

	queue chan Event
	stop  chan struct{}
	wg    sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewDispatcher(notifier Notifier, log *logrus.Logger, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		notifier: notifier,
		log:      log,
		queue:    make(chan Event, buffer),
		stop:     make(chan struct{}),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	if d == nil {
		return
	}
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.run(ctx)
	})
}

// Stop delivers the events already queued and waits for the worker to exit.
func (d *Dispatcher) Stop() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		close(d.stop)
		d.wg.Wait()
	})
}

// Publish enqueues an event. When the queue is full the event is dropped and logged.
func (d *Dispatcher) Publish(ev Event) {
	if d == nil {
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.log.WithFields(logrus.Fields{"event": ev.Type, "plan_id": ev.PlanID}).
			Warn("Notification queue full, event dropped")
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			d.drain(ctx)
			return
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	if err := d.notifier.Notify(ctx, ev); err != nil {
		d.log.WithFields(logrus.Fields{
			"event":   ev.Type,
			"plan_id": ev.PlanID,
		}).Errorf("Failed to deliver notification: %v", err)
	}
}
