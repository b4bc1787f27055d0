package publisher

import (
	"github.com/NotCoffee418/teleinfo/pkg/ticutils"
	log "github.com/sirupsen/logrus"
)

// Key returns the datagram key the accumulator follows.
func (a *Accumulator) Key() string {
	return a.key
}

// Value returns the last counter value and whether one was ever recorded.
func (a *Accumulator) Value() (int64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value, a.valid
}

// Subscribe registers f to receive every new counter value.
func (a *Accumulator) Subscribe(f func(int64)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs = append(a.subs, f)
}

func (a *Accumulator) update(raw string) error {
	value, err := ticutils.ParseIntValue(raw)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.value = value
	a.valid = true
	subs := append([]func(int64){}, a.subs...)
	a.mu.Unlock()

	for _, f := range subs {
		notify("total energy", func() { f(value) })
	}
	return nil
}

// Runs a listener, logging a panic instead of letting it unwind into Publish.
func notify(listener string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("listener", listener).Errorf("Listener panicked: %v", r)
		}
	}()
	f()
}
