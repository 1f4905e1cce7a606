// Package current distributes the "current event" pointer to subscribers.
// Changes are pushed: in process through the Tracker, across processes through
// a Redis channel, and to browsers over a websocket.
package current

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"olimpia/internal/domain"
)

const subscriberBuffer = 4

// Bus carries changes to other processes.
type Bus interface {
	Publish(ctx context.Context, origin string, ev domain.CurrentEvent) error
}

// Tracker holds the latest current event and fans changes out to
// subscribers. A slow subscriber loses intermediate values, never the latest.
type Tracker struct {
	mu     sync.Mutex
	id     string
	subs   map[int]chan domain.CurrentEvent
	nextID int
	last   *domain.CurrentEvent
	bus    Bus
	logger *slog.Logger
}

func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{id: uuid.NewString(), subs: map[int]chan domain.CurrentEvent{}, logger: logger}
}

// ID identifies this process on the bus.
func (t *Tracker) ID() string { return t.id }

func (t *Tracker) SetBus(b Bus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bus = b
}

// Subscribe returns a channel of changes, primed with the latest value when
// one is known, and a cancel func that closes it.
func (t *Tracker) Subscribe() (<-chan domain.CurrentEvent, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan domain.CurrentEvent, subscriberBuffer)
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	if t.last != nil {
		ch <- *t.last
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if _, ok := t.subs[id]; ok {
				delete(t.subs, id)
				close(ch)
			}
		})
	}
}

// Publish records a change made by this process and forwards it to the bus.
func (t *Tracker) Publish(ctx context.Context, ev domain.CurrentEvent) {
	t.Notify(ev)
	t.mu.Lock()
	bus := t.bus
	t.mu.Unlock()
	if bus == nil {
		return
	}
	if err := bus.Publish(ctx, t.id, ev); err != nil {
		t.logger.Warn("current event broadcast failed", "event_id", ev.EventID, "error", err)
	}
}

// Notify delivers a change to local subscribers only.
func (t *Tracker) Notify(ev domain.CurrentEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = &ev
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Current returns the latest known value.
func (t *Tracker) Current() (domain.CurrentEvent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return domain.CurrentEvent{}, false
	}
	return *t.last, true
}

// Subscribers counts the open subscriptions.
func (t *Tracker) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
