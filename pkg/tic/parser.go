package tic

import (
	"strings"
	"time"
)

// Parser tokenizes datagram lines.
// The zero value splits on tabs and interprets horodates in time.Local.
type Parser struct {
	Separator byte
	Location  *time.Location
}

func (p Parser) separator() byte {
	if p.Separator == 0 {
		return SeparatorTab
	}
	return p.Separator
}

// Parse splits line into a Datagram.
//
// Accepted shapes are [key, value, checksum] and [key, horodate, value, checksum].
// Anything else yields a *MalformedLineError. When the horodate of a 4 field
// datagram cannot be parsed, the datagram is still returned, with a nil
// Timestamp, together with an error wrapping ErrTimestampFormat.
func (p Parser) Parse(line string) (Datagram, error) {
	raw := trimEOL(line)
	sep := p.separator()

	// The checksum is always the last byte. It may legitimately be a space,
	// so it is cut off before splitting rather than split out.
	n := len(raw)
	if n < 3 {
		return Datagram{}, &MalformedLineError{Line: raw, Reason: "too short"}
	}
	if raw[n-2] != sep {
		return Datagram{}, &MalformedLineError{Line: raw, Reason: "checksum not preceded by separator"}
	}

	fields := strings.Split(raw[:n-2], string(sep))
	dg := Datagram{Checksum: raw[n-1], Raw: raw}

	switch len(fields) + 1 {
	case 3:
		dg.Key = fields[0]
		dg.Value = fields[1]
	case 4:
		dg.Key = fields[0]
		dg.Horodate = fields[1]
		dg.Value = fields[2]
	default:
		return Datagram{}, &MalformedLineError{Line: raw, Fields: len(fields) + 1, Reason: "unexpected field count"}
	}

	if dg.Key == "" {
		return Datagram{}, &MalformedLineError{Line: raw, Reason: "empty key"}
	}

	if dg.Horodate != "" {
		ts, err := ParseHorodate(dg.Horodate, p.Location)
		if err != nil {
			return dg, err
		}
		dg.Timestamp = &ts
	}

	return dg, nil
}

func trimEOL(line string) string {
	return strings.TrimRight(line, "\r\n")
}
