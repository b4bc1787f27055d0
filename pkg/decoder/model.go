package decoder

import (
	"errors"
	"sync"
	"time"

	"github.com/NotCoffee418/teleinfo/pkg/port_reader"
	"github.com/NotCoffee418/teleinfo/pkg/publisher"
	"github.com/NotCoffee418/teleinfo/pkg/tic"
)

var (
	ErrCycleInProgress = errors.New("read cycle already in progress")
	ErrInvalidInterval = errors.New("unsupported poll interval")
)

// PollIntervals lists the cadences a decoder may be scheduled at.
var PollIntervals = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
	120 * time.Second,
	300 * time.Second,
}

// Options configures a Decoder.
type Options struct {
	Device string
	Serial port_reader.SerialOptions
	Parser tic.Parser

	// Open defaults to port_reader.OpenSerial.
	Open port_reader.Opener
}

// CycleStats counts what happened to the lines of one frame.
type CycleStats struct {
	Lines           int
	Published       int
	Malformed       int
	ChecksumErrors  int
	TimestampErrors int
}

// Decoder turns frames read from one meter into published events.
type Decoder struct {
	device string
	serial port_reader.SerialOptions
	parser tic.Parser
	open   port_reader.Opener
	pub    *publisher.Publisher

	cycleMu sync.Mutex
}
