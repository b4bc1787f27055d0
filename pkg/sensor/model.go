package sensor

import (
	"sync"
	"time"
)

// Strategy selects how a sensor coerces the raw datagram value.
type Strategy int

const (
	Raw Strategy = iota
	Integer
	Enum
)

func (s Strategy) String() string {
	switch s {
	case Raw:
		return "raw"
	case Integer:
		return "integer"
	case Enum:
		return "enum"
	}
	return "unknown"
}

// State is the last value a sensor accepted.
type State struct {
	Raw       string     `json:"raw"`
	Int       int64      `json:"int,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Available bool       `json:"available"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Sensor tracks the last known value of one datapoint key.
type Sensor struct {
	Key      string
	Name     string
	Unit     string
	Strategy Strategy
	// Options restricts Enum values when not empty.
	Options []string

	mu    sync.RWMutex
	state State
}

// Set holds sensors by key.
type Set struct {
	order   []string
	sensors map[string]*Sensor
}
