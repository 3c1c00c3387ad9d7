package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"event": eventJSON,
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// StreamPublisher is the part of Publisher used by Forward.
type StreamPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// Forward republishes the named bus notifications onto a Redis stream, using
// the bus event name as the stream event type. The returned subscriptions
// stop the forwarding when revoked.
func Forward(bus *Bus, publisher StreamPublisher, stream string, names ...string) []Subscription {
	subs := make([]Subscription, 0, len(names))
	for _, name := range names {
		name := name
		subs = append(subs, bus.On(name, func(ctx context.Context, payload any) (any, error) {
			if err := publisher.Publish(ctx, stream, name, payload); err != nil {
				log.Printf("Failed to forward %s to %s: %v", name, stream, err)
				return nil, err
			}
			return nil, nil
		}))
	}
	return subs
}
