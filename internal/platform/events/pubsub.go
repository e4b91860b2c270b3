package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/hanko-field/order-admin/internal/services"
)

// PubSubPublisher publishes order lifecycle events to a Pub/Sub topic. Messages use the order
// id as ordering key so a subscriber with ordering enabled sees one order's events in sequence.
type PubSubPublisher struct {
	topic *pubsub.Topic
}

// NewPubSubPublisher constructs a Pub/Sub backed publisher.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub publisher: topic is required")
	}
	topic.EnableMessageOrdering = true
	return &PubSubPublisher{topic: topic}, nil
}

// PublishOrderEvent implements services.OrderEventPublisher and waits for the server ack.
func (p *PubSubPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := map[string]string{
		"eventType": event.Type,
		"orderId":   event.OrderID,
	}
	injectTrace(ctx, attrs)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: event.OrderID,
	})
	if _, err := result.Get(ctx); err != nil {
		p.topic.ResumePublish(event.OrderID)
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return nil
}
