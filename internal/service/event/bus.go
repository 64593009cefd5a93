package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

// Bus is an in-process registry of subscribers keyed by event type.
// Delivery is synchronous and in registration order.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Type][]Subscriber
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewBus(log *logger.Logger, m *metrics.Metrics) *Bus {
	return &Bus{
		subs:    make(map[Type][]Subscriber),
		logger:  log,
		metrics: m,
		now:     time.Now,
	}
}

// Subscribe registers s under t. Registering the same handle twice is a
// no-op; the return value reports whether s was added.
func (b *Bus) Subscribe(t Type, s Subscriber) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.subs[t] {
		if existing.ID() == s.ID() {
			return false
		}
	}
	b.subs[t] = append(b.subs[t], s)
	return true
}

// Unsubscribe removes s from t if present.
func (b *Bus) Unsubscribe(t Type, s Subscriber) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[t]
	for i, existing := range subs {
		if existing.ID() == s.ID() {
			b.subs[t] = append(subs[:i:i], subs[i+1:]...)
			if len(b.subs[t]) == 0 {
				delete(b.subs, t)
			}
			return true
		}
	}
	return false
}

// Attach subscribes handles for the duration of one operation. The returned
// func removes exactly the handles this call added.
func (b *Bus) Attach(t Type, subs ...Subscriber) (detach func()) {
	var added []Subscriber
	for _, s := range subs {
		if b.Subscribe(t, s) {
			added = append(added, s)
		}
	}
	return func() {
		for _, s := range added {
			b.Unsubscribe(t, s)
		}
	}
}

// Subscribers returns the IDs currently registered for t, in order.
func (b *Bus) Subscribers(t Type) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.subs[t]))
	for _, s := range b.subs[t] {
		ids = append(ids, s.ID())
	}
	return ids
}

// Publish delivers evt to every subscriber registered for evt.Type at the
// time of the call. Subscriber errors and panics are logged and never stop
// delivery to the rest. It returns how many subscribers succeeded.
func (b *Bus) Publish(ctx context.Context, evt Event) int {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = b.now()
	}

	b.mu.RLock()
	snapshot := make([]Subscriber, len(b.subs[evt.Type]))
	copy(snapshot, b.subs[evt.Type])
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues(string(evt.Type)).Inc()
	}

	delivered := 0
	for _, s := range snapshot {
		if err := b.dispatch(ctx, s, evt); err != nil {
			if b.metrics != nil {
				b.metrics.SubscriberFailures.WithLabelValues(string(evt.Type)).Inc()
			}
			b.logger.Error(err, "event subscriber failed",
				"event_type", string(evt.Type),
				"subscriber", s.ID(),
				"appointment_id", evt.AppointmentID.String(),
			)
			continue
		}
		delivered++
	}
	return delivered
}

func (b *Bus) dispatch(ctx context.Context, s Subscriber, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panicked: %v", r)
		}
	}()
	return s.Notify(ctx, evt)
}
