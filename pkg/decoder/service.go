// Package decoder drives read cycles against a meter: open the link, read one
// frame, decode and publish its datagrams, close the link.
package decoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/NotCoffee418/teleinfo/pkg/port_reader"
	"github.com/NotCoffee418/teleinfo/pkg/publisher"
	"github.com/NotCoffee418/teleinfo/pkg/tic"
	log "github.com/sirupsen/logrus"
)

// New creates a decoder publishing to pub.
func New(opts Options, pub *publisher.Publisher) *Decoder {
	open := opts.Open
	if open == nil {
		open = port_reader.OpenSerial
	}
	return &Decoder{
		device: opts.Device,
		serial: opts.Serial,
		parser: opts.Parser,
		open:   open,
		pub:    pub,
	}
}

// ReadCycle reads and publishes a single frame. The link is opened for this
// cycle only and is closed before ReadCycle returns, whatever the outcome.
// Line level problems are counted in the stats and never abort the frame;
// connection problems do and are returned.
func (d *Decoder) ReadCycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats

	if !d.cycleMu.TryLock() {
		return stats, ErrCycleInProgress
	}
	defer d.cycleMu.Unlock()

	src, err := d.open(d.device, d.serial)
	if err != nil {
		return stats, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.WithField("device", d.device).Warnf("Error closing TIC port: %v", err)
		}
	}()

	err = port_reader.ReadFrame(ctx, src, func(line string) {
		d.handleLine(line, &stats)
	})
	if err != nil {
		return stats, fmt.Errorf("reading frame from %s: %w", d.device, err)
	}
	return stats, nil
}

func (d *Decoder) handleLine(line string, stats *CycleStats) {
	stats.Lines++

	dg, err := d.parser.Parse(line)
	var timestampErr error
	if err != nil {
		if !errors.Is(err, tic.ErrTimestampFormat) {
			stats.Malformed++
			log.WithField("line", line).Warnf("Dropping datagram: %v", err)
			return
		}
		timestampErr = err
	}

	if err := tic.Verify(line, dg); err != nil {
		stats.ChecksumErrors++
		var mismatch *tic.ChecksumError
		if errors.As(err, &mismatch) {
			log.WithFields(log.Fields{
				"line":     line,
				"observed": string(mismatch.Observed),
				"expected": string(mismatch.ExpectedB) + "|" + string(mismatch.ExpectedA),
			}).Warn("Invalid checksum, skipping datagram")
		} else {
			log.WithField("line", line).Warnf("Invalid checksum, skipping datagram: %v", err)
		}
		return
	}

	if timestampErr != nil {
		stats.TimestampErrors++
		log.WithField("key", dg.Key).Warnf("Publishing without timestamp: %v", timestampErr)
	}

	log.WithFields(log.Fields{"key": dg.Key, "value": dg.Value}).Debug("Got datagram")
	stats.Published++
	// Subscriber failures are logged by the publisher.
	_ = d.pub.Publish(publisher.Event{
		Key:       dg.Key,
		Value:     dg.Value,
		Timestamp: dg.Timestamp,
	})
}
