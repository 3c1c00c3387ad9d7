package events

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrNoSubscriber is returned by TriggerFirst when nothing listens on a name.
var ErrNoSubscriber = errors.New("no subscriber for event")

// BusHandler receives the payload of a triggered event. The returned value is
// only observed by TriggerFirst.
type BusHandler func(ctx context.Context, payload any) (any, error)

// Subscription identifies a registered handler so it can be revoked.
type Subscription struct {
	Name string
	id   uint64
}

type subscriber struct {
	id      uint64
	handler BusHandler
}

// Bus is an in-process publish/subscribe bus keyed by event name.
// Handlers for a name run in registration order, outside the bus lock.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscriber
	nextID uint64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscriber)}
}

// On registers handler for name.
func (b *Bus) On(name string, handler BusHandler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[name] = append(b.subs[name], subscriber{id: b.nextID, handler: handler})
	return Subscription{Name: name, id: b.nextID}
}

// Off revokes a subscription. Unknown subscriptions are ignored.
func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.Name]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.Name] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.Name]) == 0 {
		delete(b.subs, sub.Name)
	}
}

// Trigger invokes every handler registered for name. Handler errors are
// logged and do not stop delivery.
func (b *Bus) Trigger(ctx context.Context, name string, payload any) {
	for _, s := range b.snapshot(name) {
		if _, err := s.handler(ctx, payload); err != nil {
			log.Printf("Bus: handler for %s failed: %v", name, err)
		}
	}
}

// TriggerFirst invokes only the first handler registered for name and
// returns its result.
func (b *Bus) TriggerFirst(ctx context.Context, name string, payload any) (any, error) {
	list := b.snapshot(name)
	if len(list) == 0 {
		return nil, ErrNoSubscriber
	}
	return list[0].handler(ctx, payload)
}

// Count returns the number of handlers registered for name.
func (b *Bus) Count(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

func (b *Bus) snapshot(name string) []subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	list := b.subs[name]
	out := make([]subscriber, len(list))
	copy(out, list)
	return out
}
