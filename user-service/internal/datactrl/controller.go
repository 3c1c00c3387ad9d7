// Package datactrl keeps short-lived copies of shared application data, such
// as the current user, in Redis on behalf of bus clients.
package datactrl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/events"
	sharedredis "github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/redis"
)

const keyPrefix = "datactrl:"

var ErrNotCached = errors.New("key is not cached")

type Controller struct {
	cache *sharedredis.ViewCache[json.RawMessage]
	bus   *events.Bus
	subs  []events.Subscription
}

func New(client *goredis.Client) *Controller {
	return &Controller{cache: sharedredis.NewViewCache[json.RawMessage](client, keyPrefix, 0)}
}

// Register answers datactrl:add, datactrl:remove and datactrl:get on bus.
func (c *Controller) Register(bus *events.Bus) {
	c.bus = bus
	c.subs = append(c.subs,
		bus.On(events.DataCtrlAdd, c.onAdd),
		bus.On(events.DataCtrlRemove, c.onRemove),
		bus.On(events.DataCtrlGet, c.onGet),
	)
}

func (c *Controller) Close() {
	for _, sub := range c.subs {
		c.bus.Off(sub)
	}
	c.subs = nil
}

// Add stores the JSON form of entry.Value under entry.Key for entry.TTL.
// A zero TTL keeps the value until removed.
func (c *Controller) Add(ctx context.Context, entry events.CacheEntry) error {
	if entry.Key == "" {
		return fmt.Errorf("datactrl: empty key")
	}
	data, err := json.Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("datactrl: failed to encode %s: %w", entry.Key, err)
	}
	raw := json.RawMessage(data)
	c.cache.SetWithTTL(ctx, entry.Key, &raw, entry.TTL)
	return nil
}

func (c *Controller) Remove(ctx context.Context, key string) {
	c.cache.Delete(ctx, key)
}

// Get returns the stored JSON for key.
func (c *Controller) Get(ctx context.Context, key string) (json.RawMessage, error) {
	raw, ok := c.cache.Get(ctx, key)
	if !ok {
		return nil, ErrNotCached
	}
	return *raw, nil
}

func (c *Controller) onAdd(ctx context.Context, payload any) (any, error) {
	switch v := payload.(type) {
	case events.CacheEntry:
		return nil, c.Add(ctx, v)
	case *events.CacheEntry:
		if v != nil {
			return nil, c.Add(ctx, *v)
		}
	}
	return nil, fmt.Errorf("datactrl: unexpected add payload %T", payload)
}

func (c *Controller) onRemove(ctx context.Context, payload any) (any, error) {
	key, ok := payload.(string)
	if !ok {
		return nil, fmt.Errorf("datactrl: unexpected remove payload %T", payload)
	}
	c.Remove(ctx, key)
	return nil, nil
}

func (c *Controller) onGet(ctx context.Context, payload any) (any, error) {
	key, ok := payload.(string)
	if !ok {
		return nil, fmt.Errorf("datactrl: unexpected get payload %T", payload)
	}
	return c.Get(ctx, key)
}
