// Package tic decodes single Téléinformation datagrams: tokenizing a line into
// key, value, optional horodate and checksum, and verifying the checksum.
package tic

import (
	"errors"
	"fmt"
	"time"
)

// Frame delimiters sent by the meter.
const (
	FrameStart byte = 0x02 // STX
	FrameEnd   byte = 0x03 // ETX
)

// Field separators. Standard mode meters use a tab; some historical mode
// meters use a space.
const (
	SeparatorTab   byte = '\t'
	SeparatorSpace byte = ' '
)

var (
	ErrMalformedLine    = errors.New("malformed datagram")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrTimestampFormat  = errors.New("invalid horodate")
)

// Datagram is one decoded line of a frame.
type Datagram struct {
	Key   string
	Value string

	// Horodate is the raw timestamp token, empty for 3 field datagrams.
	Horodate  string
	Timestamp *time.Time

	Checksum byte

	// Raw is the line with its trailing CR/LF stripped.
	Raw string
}

// HasTimestamp reports whether the datagram carried a parsable horodate.
func (d Datagram) HasTimestamp() bool {
	return d.Timestamp != nil
}

// MalformedLineError keeps the offending line for diagnostics.
type MalformedLineError struct {
	Line   string
	Fields int
	Reason string
}

func (e *MalformedLineError) Error() string {
	if e.Fields > 0 {
		return fmt.Sprintf("malformed datagram %q: %s (%d fields)", e.Line, e.Reason, e.Fields)
	}
	return fmt.Sprintf("malformed datagram %q: %s", e.Line, e.Reason)
}

func (e *MalformedLineError) Unwrap() error { return ErrMalformedLine }

// ChecksumError reports the observed checksum next to both candidate values.
type ChecksumError struct {
	Line      string
	Observed  byte
	ExpectedA byte
	ExpectedB byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch on %q: got %q, expected %q or %q",
		e.Line, e.Observed, e.ExpectedB, e.ExpectedA)
}

func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }
