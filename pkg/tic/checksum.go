package tic

// Checksum computes the ASCII armored 6 bit sum of span.
func Checksum(span string) byte {
	var sum uint
	for i := 0; i < len(span); i++ {
		sum += uint(span[i])
	}
	return byte(sum&0x3F) + 0x20
}

// Verify recomputes the checksum of line and compares it with the one carried
// by dg. The summed span either includes the separator preceding the checksum
// (newer firmware) or stops before it (older firmware); either is accepted.
func Verify(line string, dg Datagram) error {
	line = trimEOL(line)
	n := len(line)
	if n < 2 {
		return &MalformedLineError{Line: line, Reason: "too short to carry a checksum"}
	}

	observed := line[n-1]
	if observed != dg.Checksum {
		// Datagram was not produced from this line.
		return &ChecksumError{Line: line, Observed: dg.Checksum, ExpectedA: Checksum(line[:n-2]), ExpectedB: Checksum(line[:n-1])}
	}

	expectedB := Checksum(line[:n-1])
	if observed == expectedB {
		return nil
	}
	expectedA := Checksum(line[:n-2])
	if observed == expectedA {
		return nil
	}

	return &ChecksumError{
		Line:      line,
		Observed:  observed,
		ExpectedA: expectedA,
		ExpectedB: expectedB,
	}
}

// Validate is the boolean form of Verify.
func Validate(line string, dg Datagram) bool {
	return Verify(line, dg) == nil
}
