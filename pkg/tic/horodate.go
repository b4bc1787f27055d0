package tic

import (
	"fmt"
	"time"
)

// HorodateLayout is the layout of the 12 digits following the season flag:
// year, month, day, hour, minute, second.
const HorodateLayout = "060102150405"

// LegacyHorodateLayout is the layout some older decoders used: ten digits read
// as year, month, day, hour and then seconds where the minutes are. It drops
// the minutes and is kept only to document the difference; nothing decodes
// with it.
const LegacyHorodateLayout = "0601021505"

var (
	summerTime = time.FixedZone("CEST", 2*60*60)
	winterTime = time.FixedZone("CET", 1*60*60)
)

// ParseHorodate parses a raw horodate token such as "E230401120000".
// The season flag selects the UTC offset: E/e summer (+02:00), H/h winter
// (+01:00). Any other flag falls back to loc, or time.Local when loc is nil.
func ParseHorodate(raw string, loc *time.Location) (time.Time, error) {
	if len(raw) < 1+len(HorodateLayout) {
		return time.Time{}, fmt.Errorf("%w %q: expected season flag and %d digits", ErrTimestampFormat, raw, len(HorodateLayout))
	}

	switch raw[0] {
	case 'E', 'e':
		loc = summerTime
	case 'H', 'h':
		loc = winterTime
	default:
		if loc == nil {
			loc = time.Local
		}
	}

	ts, err := time.ParseInLocation(HorodateLayout, raw[1:1+len(HorodateLayout)], loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrTimestampFormat, raw, err)
	}
	return ts, nil
}
