// Package sensor keeps the last known value of selected datapoints, coerced
// according to a per sensor strategy.
package sensor

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/NotCoffee418/teleinfo/pkg/publisher"
	"github.com/NotCoffee418/teleinfo/pkg/ticutils"
)

// ParseStrategy maps a configuration string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw", "string":
		return Raw, nil
	case "integer", "int":
		return Integer, nil
	case "enum":
		return Enum, nil
	}
	return Raw, fmt.Errorf("unknown sensor strategy %q", s)
}

// Handle coerces ev and stores it. A value the strategy rejects marks the
// sensor unavailable and is returned as an error.
func (s *Sensor) Handle(ev publisher.Event) error {
	next := State{
		Raw:       ev.Value,
		Timestamp: ev.Timestamp,
		Available: true,
		UpdatedAt: time.Now(),
	}

	var err error
	switch s.Strategy {
	case Integer:
		next.Int, err = ticutils.ParseIntValue(ev.Value)
	case Enum:
		value := strings.TrimSpace(ev.Value)
		next.Raw = value
		if len(s.Options) > 0 && !slices.Contains(s.Options, value) {
			err = fmt.Errorf("%s: %q is not one of %v", s.Key, value, s.Options)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state.Available = false
		return err
	}
	s.state = next
	return nil
}

// SetAvailable is wired to the publisher availability. Going available again
// only takes effect once a value has been seen.
func (s *Sensor) SetAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if available && s.state.UpdatedAt.IsZero() {
		return
	}
	s.state.Available = available
}

// State returns a copy of the current state.
func (s *Sensor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Attach subscribes the sensor to its key and to availability changes.
func (s *Sensor) Attach(pub *publisher.Publisher) publisher.SubscriptionID {
	pub.OnAvailability(s.SetAvailable)
	return pub.Subscribe(s.Key, s.Handle)
}

// NewSet builds a Set. Later sensors with an already used key replace earlier ones.
func NewSet(sensors ...*Sensor) *Set {
	set := &Set{sensors: make(map[string]*Sensor)}
	for _, s := range sensors {
		if _, ok := set.sensors[s.Key]; !ok {
			set.order = append(set.order, s.Key)
		}
		set.sensors[s.Key] = s
	}
	return set
}

// Get returns the sensor for key.
func (set *Set) Get(key string) (*Sensor, bool) {
	s, ok := set.sensors[key]
	return s, ok
}

// All returns the sensors in the order they were added.
func (set *Set) All() []*Sensor {
	out := make([]*Sensor, 0, len(set.order))
	for _, key := range set.order {
		out = append(out, set.sensors[key])
	}
	return out
}

// Attach subscribes every sensor of the set.
func (set *Set) Attach(pub *publisher.Publisher) {
	for _, s := range set.All() {
		s.Attach(pub)
	}
}

// Snapshot returns the current state of every sensor by key.
func (set *Set) Snapshot() map[string]State {
	out := make(map[string]State, len(set.order))
	for _, s := range set.All() {
		out[s.Key] = s.State()
	}
	return out
}
