package port_reader

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCloser struct {
	io.Reader
	mu     sync.Mutex
	closed int
}

func (c *countingCloser) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func TestOptionsForMode(t *testing.T) {
	opts, err := OptionsForMode(ModeHistorical)
	require.NoError(t, err)
	assert.Equal(t, uint(1200), opts.BaudRate)
	assert.Equal(t, uint(7), opts.DataBits)
	assert.Equal(t, uint(1), opts.StopBits)
	assert.Equal(t, EvenParity, opts.Parity)
	assert.True(t, opts.RTSCTSFlowControl)
	assert.Equal(t, DefaultReadTimeout, opts.ReadTimeout)

	opts, err = OptionsForMode(ModeStandard)
	require.NoError(t, err)
	assert.Equal(t, uint(9600), opts.BaudRate)

	_, err = OptionsForMode("turbo")
	assert.Error(t, err)
}

func TestOpenSerial_MissingDevice(t *testing.T) {
	opts, err := OptionsForMode(ModeStandard)
	require.NoError(t, err)

	_, err = OpenSerial("/dev/does-not-exist-teleinfo", opts)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestLineSource_ReadsLines(t *testing.T) {
	src := NewLineSource(io.NopCloser(strings.NewReader("a\r\nb\n")), time.Second)
	defer src.Close()

	line, err := src.ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a\r\n", line)

	line, err = src.ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b\n", line)

	_, err = src.ReadLine(context.Background())
	assert.ErrorIs(t, err, ErrDisconnected)

	// The failure sticks.
	_, err = src.ReadLine(context.Background())
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestLineSource_Timeout(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	src := NewLineSource(r, 20*time.Millisecond)
	defer src.Close()

	_, err := src.ReadLine(context.Background())
	assert.ErrorIs(t, err, ErrReadTimeout)
}

func TestLineSource_ContextCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	src := NewLineSource(r, time.Minute)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := src.ReadLine(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLineSource_CloseIsIdempotent(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	stream := &countingCloser{Reader: r}

	src := NewLineSource(stream, time.Minute)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	stream.mu.Lock()
	assert.Equal(t, 1, stream.closed)
	stream.mu.Unlock()

	_, err := src.ReadLine(context.Background())
	assert.ErrorIs(t, err, ErrDisconnected)
}
