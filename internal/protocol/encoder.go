package protocol

import (
	"bufio"
	"fmt"
	"io"
)

// Encoder writes events as newline-delimited JSON records, flushing after
// each one so consumers observe events as they occur.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder creates an encoder on w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode frames one event as a self-contained record.
func (e *Encoder) Encode(ev Event) error {
	payload, err := MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := e.w.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return e.w.Flush()
}
