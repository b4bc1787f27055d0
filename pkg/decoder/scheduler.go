package decoder

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// ValidPollInterval reports whether d is one of PollIntervals.
func ValidPollInterval(d time.Duration) bool {
	for _, allowed := range PollIntervals {
		if d == allowed {
			return true
		}
	}
	return false
}

// Run reads a frame now and then once per interval until ctx is done.
//
// Cycles run one after the other on the calling goroutine, so ticks that
// fire while a cycle is still reading are dropped rather than queued. A
// failed cycle marks the publisher unavailable and polling carries on with
// the next tick.
func (d *Decoder) Run(ctx context.Context, interval time.Duration) error {
	if !ValidPollInterval(interval) {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	return d.run(ctx, interval)
}

func (d *Decoder) run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		d.poll(ctx)

		select {
		case <-ctx.Done():
			log.WithField("device", d.device).Info("Stopping TIC polling")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Decoder) poll(ctx context.Context) {
	stats, err := d.ReadCycle(ctx)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return
		}
		if errors.Is(err, ErrCycleInProgress) {
			// Another caller holds the link; its outcome sets availability.
			log.WithField("device", d.device).Debug("Skipping tick, cycle already running")
			return
		}
		log.WithField("device", d.device).Errorf("Read cycle failed, retrying next tick: %v", err)
		d.pub.SetAvailable(false)
		return
	}

	log.WithFields(log.Fields{
		"device":    d.device,
		"lines":     stats.Lines,
		"published": stats.Published,
		"malformed": stats.Malformed,
		"checksum":  stats.ChecksumErrors,
	}).Debug("Frame decoded")
	d.pub.SetAvailable(true)
}
