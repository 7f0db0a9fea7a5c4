// Package notify decouples sync control flow from side-effect delivery.
// Engines enqueue notifications and hold no reference to their completion;
// delivery failures surface only in this package's logs.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Notification kinds produced by the delta sync engine.
const (
	KindNewListing  = "new_listing"
	KindPriceChange = "price_change"
	KindPriceDrop   = "price_drop"
)

// Price-change direction tags.
const (
	DirectionIncreased = "increased"
	DirectionDecreased = "decreased"
)

type Notification struct {
	Kind        string
	RecipientID uint64
	ListingID   uint64
	Direction   string
}

// Sender delivers one notification. Recipient preference gating lives
// behind this interface.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

type Dispatcher struct {
	sender Sender
	logger *zap.Logger
	queue  chan Notification

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(sender Sender, logger *zap.Logger, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	d := &Dispatcher{
		sender: sender,
		logger: logger,
		queue:  make(chan Notification, queueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue never blocks: a full or closed queue drops the notification with
// a warning rather than stalling a sync run.
func (d *Dispatcher) Enqueue(n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		if d.logger != nil {
			d.logger.Warn("dispatcher closed, dropping notification", zap.String("kind", n.Kind))
		}
		return
	}
	select {
	case d.queue <- n:
	default:
		if d.logger != nil {
			d.logger.Warn("notification queue full, dropping",
				zap.String("kind", n.Kind),
				zap.Uint64("recipient_id", n.RecipientID),
				zap.Uint64("listing_id", n.ListingID))
		}
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		if d.sender == nil {
			continue
		}
		if err := d.sender.Send(context.Background(), n); err != nil && d.logger != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("kind", n.Kind),
				zap.Uint64("recipient_id", n.RecipientID),
				zap.Uint64("listing_id", n.ListingID),
				zap.Error(err))
		}
	}
}

// Close stops accepting work and waits for queued notifications to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}
