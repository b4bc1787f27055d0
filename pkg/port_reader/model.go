package port_reader

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrConnection   = errors.New("failed to open serial port")
	ErrReadTimeout  = errors.New("timed out waiting for a line")
	ErrDisconnected = errors.New("serial port disconnected")
	ErrFrameTooLong = errors.New("frame end marker not found")
)

// Parity of the serial link.
type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

// Meter modes and the baud rate each one uses.
const (
	ModeHistorical = "historical"
	ModeStandard   = "standard"

	HistoricalBaudRate = 1200
	StandardBaudRate   = 9600
)

// DefaultReadTimeout bounds the wait for a single line.
const DefaultReadTimeout = 30 * time.Second

// SerialOptions describes how the meter link is opened.
type SerialOptions struct {
	BaudRate          uint
	DataBits          uint
	StopBits          uint
	Parity            Parity
	RTSCTSFlowControl bool
	ReadTimeout       time.Duration
}

// LineSource yields newline terminated lines from a meter connection.
type LineSource interface {
	// ReadLine blocks until a full line is available, the read timeout
	// elapses, the connection drops or ctx is done.
	ReadLine(ctx context.Context) (string, error)
	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Opener opens a fresh LineSource for path.
type Opener func(path string, opts SerialOptions) (LineSource, error)

type streamLineSource struct {
	stream  interface{ Close() error }
	timeout time.Duration

	lines chan string
	errc  chan error
	done  chan struct{}

	closeOnce sync.Once
	closeErr  error
}
