// Package directory tracks which actors are currently reachable and carries
// notices to them. The service core only sees the two small interfaces here;
// deployments wire the Redis implementation (dedicated) or the in-process one
// (standalone, tests).
package directory

import (
	"context"
	"time"
)

// Notice is a parameterized notification event. The core never renders chat
// text; the bridge (or any other consumer) formats these for display.
type Notice struct {
	Kind   string    `json:"kind"`
	Ticket string    `json:"ticket"`
	Actor  string    `json:"actor"`
	Status string    `json:"status,omitempty"`
	SentAt time.Time `json:"sent_at"`
}

// Directory answers presence and operator questions about actor identities.
// Lookups are answered fresh on every call; connection state changes as
// players join and leave.
type Directory interface {
	Join(ctx context.Context, name string) error
	Leave(ctx context.Context, name string) error
	IsConnected(ctx context.Context, name string) (bool, error)
	Connected(ctx context.Context) ([]string, error)
	IsOperator(ctx context.Context, name string) (bool, error)
}

// Sink delivers a notice to a single recipient. Delivery is best-effort: an
// unreachable recipient is skipped without error, and callers are expected to
// swallow per-recipient failures rather than retry or queue.
type Sink interface {
	Deliver(ctx context.Context, recipient string, notice Notice) error
}

// BufferedSink is a Sink that retains undelivered notices for polling
// consumers. The standalone deployment drains it over the notices endpoint.
type BufferedSink interface {
	Sink
	Drain(ctx context.Context, recipient string) ([]Notice, error)
}
