package publisher

import (
	"sync"
	"time"
)

// Event is emitted once per validated datagram.
type Event struct {
	Key       string
	Value     string
	Timestamp *time.Time
}

// Handler receives events for the keys it subscribed to.
// Returned errors are logged and never stop delivery to other handlers.
type Handler func(Event) error

// SubscriptionID identifies a registration for Unsubscribe.
type SubscriptionID string

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Publisher fans decoded datapoints out to subscribers. It is local to one
// decoder; there is no process wide bus.
type Publisher struct {
	mu       sync.RWMutex
	byKey    map[string][]subscription
	wildcard []subscription

	energy *Accumulator

	availabilityMu   sync.Mutex
	available        bool
	availabilitySubs []func(bool)
}

// Accumulator holds the last total energy counter value seen.
// Only the owning Publisher writes to it.
type Accumulator struct {
	key string

	mu    sync.RWMutex
	value int64
	valid bool
	subs  []func(int64)
}
