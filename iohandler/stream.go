package iohandler

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// pumpChunkSize is the size of each read from a stream source.
const pumpChunkSize = 32 * 1024

// Stream is a Streamer fed by a background goroutine that copies a source,
// such as an HTTP response body, into memory. Reads block until the requested
// bytes arrive; seeks are free within the bytes received.
type Stream struct {
	src     io.Reader
	timeout time.Duration
	cancel  context.CancelFunc
	g       *errgroup.Group

	mu   sync.Mutex
	buf  []byte
	pos  int64
	size int64
	// Set when the source is exhausted.
	done bool
	// Source error other than io.EOF.
	err error
	// Closed and replaced whenever buf grows or the pump stops.
	notify chan struct{}
	// Highest offset requested through RequestByteRange.
	requested int64
	closed    bool
}

// NewStream starts copying src into memory. size is the expected total size,
// or UnknownSize. Reads wait at most timeout for data; a zero timeout waits
// until the source ends. Cancelling ctx stops the copy.
func NewStream(ctx context.Context, src io.Reader, size int64, timeout time.Duration) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	s := &Stream{
		src:     src,
		timeout: timeout,
		cancel:  cancel,
		g:       g,
		size:    size,
		notify:  make(chan struct{}),
	}
	g.Go(func() error { return s.pump(ctx) })
	return s
}

// pump copies the source into buf until it ends, fails or ctx is cancelled.
func (s *Stream) pump(ctx context.Context) error {
	chunk := make([]byte, pumpChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			s.finish(err)
			return nil
		}
		n, err := s.src.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf = append(s.buf, chunk[:n]...)
			s.broadcastLocked()
			s.mu.Unlock()
		}
		if err == io.EOF {
			s.finish(nil)
			return nil
		}
		if err != nil {
			s.finish(err)
			return errors.Wrap(err, "iohandler: stream source")
		}
	}
}

// finish marks the source as exhausted and wakes all waiters.
func (s *Stream) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.err = err
	if err == nil {
		s.size = int64(len(s.buf))
	}
	s.broadcastLocked()
}

func (s *Stream) broadcastLocked() {
	close(s.notify)
	s.notify = make(chan struct{})
}

// availableLocked reports whether the n bytes at off are buffered or will
// never be.
func (s *Stream) availableLocked(off, n int64) bool {
	return off+n <= int64(len(s.buf)) || s.done || s.closed
}

// IsDataAvailable reports whether the n bytes at off are buffered.
func (s *Stream) IsDataAvailable(off, n int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return off+n <= int64(len(s.buf))
}

// WaitForData blocks until the n bytes at off are buffered or the source has
// ended. It reports false if timeout expires first; a non-positive timeout
// waits indefinitely.
func (s *Stream) WaitForData(off, n int64, timeout time.Duration) bool {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	for {
		s.mu.Lock()
		if s.availableLocked(off, n) {
			s.mu.Unlock()
			return true
		}
		notify := s.notify
		s.mu.Unlock()
		select {
		case <-notify:
		case <-expired:
			return false
		}
	}
}

// RequestByteRange records a read-ahead hint. The whole source is already
// being copied, so the hint only raises Requested.
func (s *Stream) RequestByteRange(off, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if off+n > s.requested {
		s.requested = off + n
	}
}

// Requested returns the end of the furthest range hinted at.
func (s *Stream) Requested() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}

// Buffered returns the number of bytes received so far.
func (s *Stream) Buffered() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.buf))
}

// Read reads up to len(p) bytes, waiting for at least one to arrive.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	pos := s.pos
	s.mu.Unlock()
	if !s.WaitForData(pos, 1, s.timeout) {
		return 0, ErrTimeout
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.pos >= int64(len(s.buf)) {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.EOF
	}
	n := copy(p, s.buf[s.pos:])
	s.pos += int64(n)
	return n, nil
}

// Seek sets the read offset. Seeking relative to the end requires a known
// size.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	abs := offset
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		abs += s.pos
	case io.SeekEnd:
		if s.size < 0 {
			return 0, errors.New("iohandler.Stream.Seek: size unknown")
		}
		abs += s.size
	default:
		return 0, errors.Errorf("iohandler.Stream.Seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("iohandler.Stream.Seek: negative position")
	}
	s.pos = abs
	return abs, nil
}

// Tell returns the read offset.
func (s *Stream) Tell() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// EOF reports whether the source has ended and every byte has been read.
func (s *Stream) EOF() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done && s.pos >= int64(len(s.buf))
}

// Size returns the expected size of the source, or its actual size once it
// has ended.
func (s *Stream) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Close stops the copy, closes the source if it is an io.Closer and waits for
// the pump to exit. Blocked readers are released.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.broadcastLocked()
	s.mu.Unlock()

	s.cancel()
	c, ok := s.src.(io.Closer)
	if !ok {
		// The pump exits after its pending read returns.
		return nil
	}
	err := c.Close()
	// The pump fails once its source is closed; that is expected here.
	_ = s.g.Wait()
	s.mu.Lock()
	s.buf = nil
	s.mu.Unlock()
	return err
}
