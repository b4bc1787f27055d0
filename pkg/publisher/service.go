// Package publisher delivers decoded datapoints to subscribers keyed by
// datapoint name and maintains the total energy counter.
package publisher

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventName returns the event channel name collaborators know a key by.
func EventName(key string) string {
	return "teleinfo_" + key + "_read_event"
}

// New creates a publisher whose accumulator tracks totalEnergyKey.
func New(totalEnergyKey string) *Publisher {
	return &Publisher{
		byKey:  make(map[string][]subscription),
		energy: &Accumulator{key: totalEnergyKey},
	}
}

// Subscribe registers h for events of key. Handlers are called in
// registration order.
func (p *Publisher) Subscribe(key string, h Handler) SubscriptionID {
	id := SubscriptionID(uuid.NewString())
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byKey[key] = append(p.byKey[key], subscription{id: id, handler: h})
	return id
}

// SubscribeAll registers h for every event. Wildcard handlers run after the
// handlers registered for the specific key.
func (p *Publisher) SubscribeAll(h Handler) SubscriptionID {
	id := SubscriptionID(uuid.NewString())
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wildcard = append(p.wildcard, subscription{id: id, handler: h})
	return id
}

// Unsubscribe removes a registration. It reports whether id was known.
func (p *Publisher) Unsubscribe(id SubscriptionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, subs := range p.byKey {
		if i := indexOf(subs, id); i >= 0 {
			p.byKey[key] = append(subs[:i:i], subs[i+1:]...)
			if len(p.byKey[key]) == 0 {
				delete(p.byKey, key)
			}
			return true
		}
	}
	if i := indexOf(p.wildcard, id); i >= 0 {
		p.wildcard = append(p.wildcard[:i:i], p.wildcard[i+1:]...)
		return true
	}
	return false
}

// Subscribers returns the number of handlers that would receive an event for key.
func (p *Publisher) Subscribers(key string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byKey[key]) + len(p.wildcard)
}

// Energy returns the total energy accumulator.
func (p *Publisher) Energy() *Accumulator {
	return p.energy
}

// Publish delivers ev to every current subscriber, then updates the total
// energy accumulator when ev carries its key. A non numeric total energy value
// leaves the accumulator untouched; the event itself is still delivered.
// The returned error joins every handler and coercion failure.
func (p *Publisher) Publish(ev Event) error {
	p.mu.RLock()
	targets := make([]subscription, 0, len(p.byKey[ev.Key])+len(p.wildcard))
	targets = append(targets, p.byKey[ev.Key]...)
	targets = append(targets, p.wildcard...)
	p.mu.RUnlock()

	var errs []error
	for _, sub := range targets {
		if err := deliver(sub, ev); err != nil {
			log.WithFields(log.Fields{
				"event":        EventName(ev.Key),
				"subscription": sub.id,
			}).Warnf("Subscriber failed: %v", err)
			errs = append(errs, err)
		}
	}

	if ev.Key == p.energy.key {
		if err := p.energy.update(ev.Value); err != nil {
			log.WithField("key", ev.Key).Errorf("Skipping total energy update: %v", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func deliver(sub subscription, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panicked: %v", r)
		}
	}()
	return sub.handler(ev)
}

// OnAvailability registers f to be told when the datapoint source goes up or down.
func (p *Publisher) OnAvailability(f func(bool)) {
	p.availabilityMu.Lock()
	defer p.availabilityMu.Unlock()
	p.availabilitySubs = append(p.availabilitySubs, f)
}

// SetAvailable records whether the last read cycle succeeded. Listeners are
// only notified on change.
func (p *Publisher) SetAvailable(available bool) {
	p.availabilityMu.Lock()
	if p.available == available {
		p.availabilityMu.Unlock()
		return
	}
	p.available = available
	subs := append([]func(bool){}, p.availabilitySubs...)
	p.availabilityMu.Unlock()

	for _, f := range subs {
		notify("availability", func() { f(available) })
	}
}

// Available reports the state last passed to SetAvailable.
func (p *Publisher) Available() bool {
	p.availabilityMu.Lock()
	defer p.availabilityMu.Unlock()
	return p.available
}

func indexOf(subs []subscription, id SubscriptionID) int {
	for i, s := range subs {
		if s.id == id {
			return i
		}
	}
	return -1
}
