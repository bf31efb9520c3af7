package protocol

import (
	"bytes"

	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/logger"
)

// Decoder reassembles events from an unbounded sequence of raw byte
// chunks of arbitrary size and boundary: a record may span chunks, a
// chunk may hold several records or a fragment of one. Decoding is
// invariant under how the byte stream is partitioned.
type Decoder struct {
	buf []byte
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk and returns every event completed by it, in wire
// order. Zero-length chunks are valid and yield nothing. A record that
// fails to parse is logged and skipped; it never aborts the stream.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.buf = append(d.buf, chunk...)

	segments := bytes.Split(d.buf, []byte{'\n'})
	// The last segment is unterminated (possibly empty); keep it buffered.
	d.buf = segments[len(segments)-1]

	var events []Event
	for _, segment := range segments[:len(segments)-1] {
		if len(bytes.TrimSpace(segment)) == 0 {
			continue
		}
		ev, err := DecodeEvent(segment)
		if err != nil {
			logger.Logger.Warn("skipping malformed stream record", "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events
}

// Close ends the stream. A non-empty buffered remainder was never
// terminated by a separator, so it is not a complete record and is
// discarded. Returns the number of bytes dropped.
func (d *Decoder) Close() int {
	dropped := len(bytes.TrimSpace(d.buf))
	if dropped > 0 {
		logger.Logger.Warn("discarding incomplete trailing record", "bytes", dropped)
	}
	d.buf = nil
	return dropped
}
