package port_reader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
)

// OptionsForMode returns the link settings for a meter mode: 7 data bits,
// even parity, 1 stop bit and RTS/CTS flow control, at 1200 baud in
// historical mode and 9600 baud in standard mode.
func OptionsForMode(mode string) (SerialOptions, error) {
	opts := SerialOptions{
		DataBits:          7,
		StopBits:          1,
		Parity:            EvenParity,
		RTSCTSFlowControl: true,
		ReadTimeout:       DefaultReadTimeout,
	}

	switch mode {
	case ModeHistorical:
		opts.BaudRate = HistoricalBaudRate
	case ModeStandard:
		opts.BaudRate = StandardBaudRate
	default:
		return opts, fmt.Errorf("unknown meter mode %q: expected %q or %q", mode, ModeHistorical, ModeStandard)
	}
	return opts, nil
}

// OpenSerial opens the meter serial port and wraps it in a LineSource.
func OpenSerial(path string, opts SerialOptions) (LineSource, error) {
	parity := serial.PARITY_NONE
	switch opts.Parity {
	case EvenParity:
		parity = serial.PARITY_EVEN
	case OddParity:
		parity = serial.PARITY_ODD
	}

	options := serial.OpenOptions{
		PortName:          path,
		BaudRate:          opts.BaudRate,
		DataBits:          opts.DataBits,
		StopBits:          opts.StopBits,
		ParityMode:        parity,
		RTSCTSFlowControl: opts.RTSCTSFlowControl,
		MinimumReadSize:   1,
	}

	port, err := serial.Open(options)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrConnection, path, err)
	}

	log.WithFields(log.Fields{
		"device": path,
		"baud":   opts.BaudRate,
	}).Debug("Connected to TIC port")
	return NewLineSource(port, opts.ReadTimeout), nil
}

// NewLineSource reads lines from stream in the background until it is closed
// or fails. A timeout of zero uses DefaultReadTimeout.
func NewLineSource(stream io.ReadCloser, timeout time.Duration) LineSource {
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	s := &streamLineSource{
		stream:  stream,
		timeout: timeout,
		lines:   make(chan string),
		errc:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go s.pump(bufio.NewReader(stream))
	return s
}

func (s *streamLineSource) pump(reader *bufio.Reader) {
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if line != "" {
				// Partial line before EOF belongs to no frame.
				log.WithField("line", line).Debug("Dropping unterminated line")
			}
			s.errc <- err
			return
		}

		select {
		case s.lines <- line:
		case <-s.done:
			return
		}
	}
}

func (s *streamLineSource) ReadLine(ctx context.Context) (string, error) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case line := <-s.lines:
		return line, nil
	case err := <-s.errc:
		// Keep reporting the failure to later calls.
		s.errc <- err
		select {
		case <-s.done:
			return "", fmt.Errorf("%w: port closed", ErrDisconnected)
		default:
		}
		return "", fmt.Errorf("%w: %v", ErrDisconnected, err)
	case <-timer.C:
		return "", fmt.Errorf("%w after %s", ErrReadTimeout, s.timeout)
	case <-s.done:
		return "", fmt.Errorf("%w: port closed", ErrDisconnected)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *streamLineSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.stream.Close()
	})
	return s.closeErr
}
