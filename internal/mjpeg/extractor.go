// Package mjpeg demultiplexes an MJPEG byte stream into discrete JPEG frames.
package mjpeg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// JPEG start-of-image / end-of-image markers.
var (
	soiMarker = []byte{0xff, 0xd8}
	eoiMarker = []byte{0xff, 0xd9}
)

// ErrSourceLost marks a terminal transport failure on the underlying stream.
// The extractor never retries; reconnecting is the supervisor's job.
var ErrSourceLost = errors.New("video source lost")

const readChunkSize = 4096

// Extractor turns an append-only byte stream into a lazy, unbounded sequence
// of complete JPEG payloads. A partial frame at a read boundary is retained
// until more input arrives; no byte is processed twice.
type Extractor struct {
	r     io.Reader
	buf   []byte
	chunk []byte
	err   error
}

func NewExtractor(r io.Reader) *Extractor {
	return &Extractor{r: r, chunk: make([]byte, readChunkSize)}
}

// Next blocks until one complete frame payload (SOI through EOI inclusive) is
// available and returns it. Once the underlying reader fails, any frames
// already buffered are still yielded, then every call returns an error
// wrapping ErrSourceLost.
func (e *Extractor) Next() ([]byte, error) {
	for {
		if frame, ok := e.scan(); ok {
			return frame, nil
		}
		if e.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceLost, e.err)
		}
		n, err := e.r.Read(e.chunk)
		if n > 0 {
			e.buf = append(e.buf, e.chunk[:n]...)
		}
		if err != nil {
			e.err = err
		}
	}
}

// scan slices the first complete frame out of the buffer. Bytes before the
// start marker are garbage and are dropped; everything after the end marker
// becomes the new buffer head.
func (e *Extractor) scan() ([]byte, bool) {
	start := bytes.Index(e.buf, soiMarker)
	if start < 0 {
		// Keep the trailing byte: it may be the first half of a marker
		// split across a read boundary.
		if len(e.buf) > 1 {
			e.buf = e.buf[len(e.buf)-1:]
		}
		return nil, false
	}
	rel := bytes.Index(e.buf[start+len(soiMarker):], eoiMarker)
	if rel < 0 {
		e.buf = e.buf[start:]
		return nil, false
	}
	end := start + len(soiMarker) + rel + len(eoiMarker)

	frame := make([]byte, end-start)
	copy(frame, e.buf[start:end])
	e.buf = e.buf[end:]
	return frame, true
}
