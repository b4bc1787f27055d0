package tic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	assert.Equal(t, byte('7'), Checksum("ADCO\t012345678901\t"))
	assert.Equal(t, byte('.'), Checksum("ADCO\t012345678901"))
	assert.Equal(t, byte(0x20), Checksum(""))
}

func TestChecksum_Range(t *testing.T) {
	for i := 0; i < 256; i++ {
		c := Checksum(string([]byte{byte(i), 'A'}))
		assert.GreaterOrEqual(t, c, byte(0x20))
		assert.LessOrEqual(t, c, byte(0x5F))
	}
}

func TestValidate_Variants(t *testing.T) {
	lines := map[string]string{
		"variant B":          "ADCO\t012345678901\t7",
		"variant A":          "ADCO\t012345678901\t.",
		"horodate variant B": "SMAXSN\tE230401063012\t07456\t6",
		"horodate variant A": "SMAXSN\tE230401063012\t07456\t-",
		"empty value":        "DATE\tE230401120000\t\t+",
		"trailing CRLF":      "IRMS1\t004\t2\r\n",
	}

	for name, line := range lines {
		t.Run(name, func(t *testing.T) {
			dg, err := Parser{}.Parse(line)
			require.NoError(t, err)
			assert.NoError(t, Verify(line, dg))
			assert.True(t, Validate(line, dg))
		})
	}
}

func TestValidate_Idempotent(t *testing.T) {
	line := "EAST\t000123456\t$"
	dg, err := Parser{}.Parse(line)
	require.NoError(t, err)

	first := Validate(line, dg)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Validate(line, dg))
	}

	bad := "EAST\t000123456\t%"
	dg, err = Parser{}.Parse(bad)
	require.NoError(t, err)
	first = Validate(bad, dg)
	assert.False(t, first)
	assert.Equal(t, first, Validate(bad, dg))
}

func TestValidate_RejectsEveryOtherChecksum(t *testing.T) {
	body := "ADCO\t012345678901\t"
	accepted := map[byte]bool{'7': true, '.': true}

	for c := byte(0x20); c <= 0x7E; c++ {
		line := body + string(c)
		dg, err := Parser{}.Parse(line)
		require.NoError(t, err)

		assert.Equal(t, accepted[c], Validate(line, dg), "checksum %q", c)
	}
}

func TestVerify_ReportsExpectedValues(t *testing.T) {
	line := "ADCO\t012345678901\tJ"
	dg, err := Parser{}.Parse(line)
	require.NoError(t, err)

	err = Verify(line, dg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))

	var mismatch *ChecksumError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, byte('J'), mismatch.Observed)
	assert.Equal(t, byte('7'), mismatch.ExpectedB)
	assert.Equal(t, byte('.'), mismatch.ExpectedA)
}

func TestVerify_ShortLine(t *testing.T) {
	assert.ErrorIs(t, Verify("X", Datagram{Checksum: 'X'}), ErrMalformedLine)
}
