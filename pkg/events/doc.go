/*
Package events provides an in-memory broker for Kodal's advisory events.

The events package implements a lightweight pub/sub bus that decouples the
core components from audit logging and monitoring. Components publish
fire-and-forget notifications (a key is about to expire, an identifier was
rate limited, the upstream circuit breaker flipped) and the gateway
subscribes once at startup to turn them into audit log records.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                           │
	│  Publishers                                               │
	│    pkg/keyring    → key.expiring / key.expired            │
	│    pkg/ratelimit  → ratelimit.violation                   │
	│    pkg/upstream   → upstream.breaker.opened / .closed     │
	│    pkg/gateway    → cache.cleared (operator actions)      │
	│         │                                                 │
	│         ▼                                                 │
	│    Event Channel (buffer: 100)                            │
	│         │                                                 │
	│    Broadcast Loop (Start/Stop)                            │
	│         │                                                 │
	│         ▼                                                 │
	│    Subscriber Channels (buffer: 50 each,                  │
	│                         full buffers skip)                │
	│         │                                                 │
	│         ▼                                                 │
	│    Gateway audit logger                                   │
	└───────────────────────────────────────────────────────────┘

# Event Types

	key.expiring              Metadata: provider, days_left
	key.expired               Metadata: provider
	ratelimit.violation       Metadata: identifier, tier, limit
	upstream.breaker.opened   Metadata: name, failures
	upstream.breaker.closed   Metadata: name
	cache.cleared             Metadata: type (empty for full clear)

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for ev := range sub {
			logger.Info().
				Str("event", string(ev.Type)).
				Fields(map[string]any{"meta": ev.Metadata}).
				Msg(ev.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventKeyExpiring,
		Message: "API key expires in 5 days",
		Metadata: map[string]string{"provider": "address", "days_left": "5"},
	})

Publish fills ID (uuid) and Timestamp when unset, never blocks, and is a
no-op on a nil broker so every component can treat the broker as optional.

# Design Notes

Delivery is best effort: a slow subscriber's full buffer skips events
rather than blocking publishers. The bus carries advisory signals only —
nothing in the request path depends on an event arriving.
*/
package events
