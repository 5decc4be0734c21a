// ABOUTME: Incremental splitter for blank-line delimited event-stream frames
// ABOUTME: Retains the unterminated tail between feeds and extracts data: payloads

package sse

import (
	"bytes"
	"strings"
)

const (
	// FrameDelimiter separates two frames in the stream.
	FrameDelimiter = "\n\n"
	// DataPrefix marks a payload line inside a frame.
	DataPrefix = "data: "
)

var frameDelimiter = []byte(FrameDelimiter)

// Decoder splits decoded stream text into frame payloads.
// A Decoder belongs to exactly one stream and is not safe for concurrent use.
type Decoder struct {
	buf []byte
	// scanned is how much of buf is known to hold no delimiter, so a long
	// frame arriving in small pieces is searched once rather than per feed.
	scanned int
}

// Feed appends text to the buffer and returns the payload of every frame
// completed by it, in order. Frames without data lines produce nothing.
func (d *Decoder) Feed(text string) []string {
	if text == "" {
		return nil
	}
	d.buf = append(d.buf, text...)

	var payloads []string
	start := 0
	for {
		// Back up one byte in case a delimiter straddles the previous feed.
		from := max(start, d.scanned-len(frameDelimiter)+1)
		idx := bytes.Index(d.buf[from:], frameDelimiter)
		if idx < 0 {
			d.scanned = len(d.buf)
			break
		}
		end := from + idx
		frame := string(d.buf[start:end])
		start = end + len(frameDelimiter)
		d.scanned = start

		if payload, ok := framePayload(frame); ok {
			payloads = append(payloads, payload)
		}
	}

	if start > 0 {
		n := copy(d.buf, d.buf[start:])
		d.buf = d.buf[:n]
		d.scanned -= start
	}
	return payloads
}

// Pending returns the incomplete frame text retained since the last delimiter.
func (d *Decoder) Pending() string {
	return string(d.buf)
}

// Reset discards any retained text.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.scanned = 0
}

// framePayload concatenates the data lines of a frame with their prefix
// stripped. It reports false when the frame has no data line.
func framePayload(frame string) (string, bool) {
	var (
		b     strings.Builder
		found bool
	)
	for line := range strings.SplitSeq(frame, "\n") {
		if !strings.HasPrefix(line, DataPrefix) {
			continue
		}
		found = true
		b.WriteString(line[len(DataPrefix):])
	}
	return b.String(), found
}
