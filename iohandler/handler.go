// Package iohandler provides the byte sources read by demuxers: buffered files,
// in-memory buffers and network streams that fill in the background.
package iohandler

import (
	"errors"
	"io"
	"time"
)

// UnknownSize is returned by Size when the total size of a source is not known.
const UnknownSize = -1

var (
	// ErrTimeout is returned by reads on a Streamer when data does not arrive
	// in time.
	ErrTimeout = errors.New("iohandler: timed out waiting for data")
	// ErrClosed is returned by operations on a closed handler.
	ErrClosed = errors.New("iohandler: handler closed")
)

// A Handler is a seekable byte source.
type Handler interface {
	io.ReadSeekCloser
	// Tell returns the current read offset.
	Tell() int64
	// EOF reports whether the read offset is at the end of the source.
	EOF() bool
	// Size returns the total size in bytes, or UnknownSize.
	Size() int64
}

// A Streamer is a Handler whose data arrives over time. Reads block until
// data is available; the methods below let callers wait with a deadline or
// hint at upcoming reads instead.
type Streamer interface {
	Handler
	// IsDataAvailable reports whether the n bytes at off are buffered.
	IsDataAvailable(off, n int64) bool
	// WaitForData blocks until the n bytes at off are buffered, the source
	// ends or the timeout expires. It reports false on timeout.
	WaitForData(off, n int64, timeout time.Duration) bool
	// RequestByteRange hints that the n bytes at off will be read soon. It
	// never blocks.
	RequestByteRange(off, n int64)
}

// ReadFullAt reads len(p) bytes at offset off of h. At the end of the source
// it returns the bytes read with io.ErrUnexpectedEOF, or io.EOF if none were.
// Streamers are given timeout to deliver the range.
func ReadFullAt(h Handler, p []byte, off int64, timeout time.Duration) (int, error) {
	if s, ok := h.(Streamer); ok {
		if !s.WaitForData(off, int64(len(p)), timeout) {
			return 0, ErrTimeout
		}
	}
	if h.Tell() != off {
		if _, err := h.Seek(off, io.SeekStart); err != nil {
			return 0, err
		}
	}
	return io.ReadFull(h, p)
}
