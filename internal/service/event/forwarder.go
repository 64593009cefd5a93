package event

import (
	"context"

	"github.com/jwalitptl/hospital-api/pkg/messaging"
)

// BrokerForwarder republishes bus events onto a broker topic so other
// processes can observe them.
type BrokerForwarder struct {
	broker messaging.Broker
	topic  string
}

func NewBrokerForwarder(broker messaging.Broker, topic string) *BrokerForwarder {
	return &BrokerForwarder{broker: broker, topic: topic}
}

func (f *BrokerForwarder) ID() string {
	return "broker:" + f.topic
}

func (f *BrokerForwarder) Notify(ctx context.Context, evt Event) error {
	return f.broker.Publish(ctx, f.topic, messaging.Message{
		Type:    string(evt.Type),
		Payload: evt,
	})
}

// SubscribeAll registers the forwarder for every event type.
func (f *BrokerForwarder) SubscribeAll(bus *Bus) {
	for _, t := range AllTypes {
		bus.Subscribe(t, f)
	}
}
