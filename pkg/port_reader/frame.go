package port_reader

import (
	"context"
	"strings"

	"github.com/NotCoffee418/teleinfo/pkg/tic"
)

// MaxFrameLines caps the lines read between the start and end markers.
const MaxFrameLines = 512

// ReadFrame reads one frame from src, handing every enclosed line to handle.
//
// Lines are discarded until one contains the start marker; whatever follows
// the marker on that line is handed over when not empty. Lines are then handed
// over until one contains the end marker. That last line is not handed over
// as is: only the text before the marker is, and only when not empty. The
// caller owns src and must close it.
func ReadFrame(ctx context.Context, src LineSource, handle func(line string)) error {
	for {
		line, err := src.ReadLine(ctx)
		if err != nil {
			return err
		}
		if i := strings.IndexByte(line, tic.FrameStart); i >= 0 {
			rest := line[i+1:]
			if j := strings.IndexByte(rest, tic.FrameEnd); j >= 0 {
				// Start and end on the same line.
				forward(rest[:j], handle)
				return nil
			}
			forward(rest, handle)
			break
		}
	}

	for n := 0; n < MaxFrameLines; n++ {
		line, err := src.ReadLine(ctx)
		if err != nil {
			return err
		}
		if j := strings.IndexByte(line, tic.FrameEnd); j >= 0 {
			forward(line[:j], handle)
			return nil
		}
		forward(line, handle)
	}
	return ErrFrameTooLong
}

func forward(line string, handle func(string)) {
	line = strings.Trim(line, "\r\n")
	if line == "" {
		return
	}
	handle(line)
}
