package decoder

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/NotCoffee418/teleinfo/pkg/port_reader"
	"github.com/NotCoffee418/teleinfo/pkg/publisher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource replays lines, then fails with err (io.EOF when nil).
type fakeSource struct {
	mu     sync.Mutex
	lines  []string
	err    error
	block  bool
	closes int

	// reading is closed once ReadLine starts blocking.
	reading  chan struct{}
	readOnce sync.Once
}

func (f *fakeSource) ReadLine(ctx context.Context) (string, error) {
	f.mu.Lock()
	if len(f.lines) > 0 {
		line := f.lines[0]
		f.lines = f.lines[1:]
		f.mu.Unlock()
		return line, nil
	}
	block, err := f.block, f.err
	f.mu.Unlock()

	if block {
		f.readOnce.Do(func() { close(f.reading) })
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err == nil {
		err = io.EOF
	}
	return "", err
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeSource) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func openerFor(src *fakeSource) port_reader.Opener {
	return func(string, port_reader.SerialOptions) (port_reader.LineSource, error) {
		return src, nil
	}
}

func newTestDecoder(src *fakeSource) (*Decoder, *publisher.Publisher, *[]publisher.Event) {
	pub := publisher.New("EAST")
	var events []publisher.Event
	pub.SubscribeAll(func(ev publisher.Event) error {
		events = append(events, ev)
		return nil
	})
	d := New(Options{Device: "/dev/fake", Open: openerFor(src)}, pub)
	return d, pub, &events
}

func TestReadCycle_PublishesEveryValidDatagramInOrder(t *testing.T) {
	src := &fakeSource{lines: []string{
		"noise\r\n",
		"\x02\n",
		"ADCO\t012345678901\t7\r\n",
		"EAST\t000123456\t$\r\n",
		"SMAXSN\tE230401063012\t07456\t6\r\n",
		"DATE\tE230401120000\t\t+\r\n",
		"\x03\n",
	}}
	d, pub, events := newTestDecoder(src)

	stats, err := d.ReadCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, CycleStats{Lines: 4, Published: 4}, stats)
	require.Len(t, *events, 4)

	got := *events
	assert.Equal(t, "ADCO", got[0].Key)
	assert.Equal(t, "012345678901", got[0].Value)
	assert.Nil(t, got[0].Timestamp)
	assert.Equal(t, "EAST", got[1].Key)
	assert.Equal(t, "SMAXSN", got[2].Key)
	assert.Equal(t, "07456", got[2].Value)
	require.NotNil(t, got[2].Timestamp)
	assert.Equal(t, 30, got[2].Timestamp.Minute())
	assert.Equal(t, "DATE", got[3].Key)
	assert.Equal(t, "", got[3].Value)

	energy, ok := pub.Energy().Value()
	assert.True(t, ok)
	assert.Equal(t, int64(123456), energy)

	assert.Equal(t, 1, src.closeCount())
}

func TestReadCycle_DropsBadLinesAndContinues(t *testing.T) {
	src := &fakeSource{lines: []string{
		"\x02\n",
		"A\tB\tC\tD\tE\r\n",           // five fields
		"ADCO\t012345678901\tJ\r\n",   // bad checksum
		"SMAXSN\tE2304\t07456\t)\r\n", // bad horodate, good checksum
		"IRMS1\t004\t2\r\n",
		"\x03\n",
	}}
	d, _, events := newTestDecoder(src)

	stats, err := d.ReadCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Lines)
	assert.Equal(t, 1, stats.Malformed)
	assert.Equal(t, 1, stats.ChecksumErrors)
	assert.Equal(t, 1, stats.TimestampErrors)
	assert.Equal(t, 2, stats.Published)

	require.Len(t, *events, 2)
	assert.Equal(t, "SMAXSN", (*events)[0].Key)
	assert.Nil(t, (*events)[0].Timestamp)
	assert.Equal(t, "IRMS1", (*events)[1].Key)
	assert.Equal(t, 1, src.closeCount())
}

func TestReadCycle_NonNumericTotalEnergy(t *testing.T) {
	src := &fakeSource{lines: []string{
		"\x02\n",
		"EAST\t0001234A6\t0\r\n",
		"\x03\n",
	}}
	d, pub, events := newTestDecoder(src)

	_, err := d.ReadCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, *events, 1)
	assert.Equal(t, "0001234A6", (*events)[0].Value)
	_, ok := pub.Energy().Value()
	assert.False(t, ok)
}

func TestReadCycle_ClosesOnDisconnect(t *testing.T) {
	src := &fakeSource{
		lines: []string{"\x02\n", "IRMS1\t004\t2\r\n"},
		err:   port_reader.ErrDisconnected,
	}
	d, _, events := newTestDecoder(src)

	_, err := d.ReadCycle(context.Background())
	assert.ErrorIs(t, err, port_reader.ErrDisconnected)
	assert.Len(t, *events, 1)
	assert.Equal(t, 1, src.closeCount())
}

func TestReadCycle_OpenFailure(t *testing.T) {
	pub := publisher.New("EAST")
	d := New(Options{Device: "/dev/none", Open: func(string, port_reader.SerialOptions) (port_reader.LineSource, error) {
		return nil, port_reader.ErrConnection
	}}, pub)

	_, err := d.ReadCycle(context.Background())
	assert.ErrorIs(t, err, port_reader.ErrConnection)
}

func TestReadCycle_RefusesOverlap(t *testing.T) {
	src := &fakeSource{block: true, reading: make(chan struct{})}
	d, _, _ := newTestDecoder(src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := d.ReadCycle(ctx)
		done <- err
	}()

	select {
	case <-src.reading:
	case <-time.After(time.Second):
		t.Fatal("cycle never started reading")
	}

	_, err := d.ReadCycle(context.Background())
	assert.True(t, errors.Is(err, ErrCycleInProgress))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 1, src.closeCount())
}
