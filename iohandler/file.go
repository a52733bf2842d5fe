package iohandler

import (
	"errors"
	"io"
	"os"
)

const (
	defaultBufSize = 64 * 1024
)

// File implements buffering for an io.ReadSeeker object, such as an open
// file. File is based on bufio.Reader with Seek functionality added
// and unneeded functionality removed.
type File struct {
	buf  []byte
	pos  int64         // absolute start position of buf
	rd   io.ReadSeeker // read-seeker provided by the client
	r, w int           // buf read and write positions within buf
	err  error
	// Set when the underlying reader reported io.EOF; cleared by seeks.
	eof    bool
	size   int64
	closed bool
}

const minReadBufferSize = 16

// NewFileSize returns a new File whose buffer has at least the specified size.
// If the argument io.ReadSeeker is already a File with large enough size, it
// returns the underlying File.
func NewFileSize(rd io.ReadSeeker, size int) *File {
	// Is it already a File?
	b, ok := rd.(*File)
	if ok && len(b.buf) >= size {
		return b
	}
	if size < minReadBufferSize {
		size = minReadBufferSize
	}
	f := new(File)
	f.reset(make([]byte, size), rd)
	return f
}

// NewFile returns a new File whose buffer has the default size.
func NewFile(rd io.ReadSeeker) *File {
	return NewFileSize(rd, defaultBufSize)
}

// OpenFile opens the named file for buffered reading.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewFile(f), nil
}

var errNegativeRead = errors.New("iohandler: reader returned negative count from Read")

func (b *File) reset(buf []byte, r io.ReadSeeker) {
	*b = File{
		buf:  buf,
		rd:   r,
		size: sizeOf(r),
	}
}

// sizeOf returns the size of r when it can be learnt without moving the
// read offset.
func sizeOf(r io.ReadSeeker) int64 {
	switch r := r.(type) {
	case interface{ Stat() (os.FileInfo, error) }:
		fi, err := r.Stat()
		if err != nil || !fi.Mode().IsRegular() {
			return UnknownSize
		}
		return fi.Size()
	case interface{ Size() int64 }:
		return r.Size()
	}
	return UnknownSize
}

func (b *File) readErr() error {
	err := b.err
	b.err = nil
	if err == io.EOF {
		b.eof = true
	}
	return err
}

// Read reads data into p.
// It returns the number of bytes read into p.
// The bytes are taken from at most one Read on the underlying Reader,
// hence n may be less than len(p).
// To read exactly len(p) bytes, use io.ReadFull(b, p).
// If the underlying Reader can return a non-zero count with io.EOF,
// then this Read method can do so as well; see the [io.Reader] docs.
func (b *File) Read(p []byte) (n int, err error) {
	if b.closed {
		return 0, ErrClosed
	}
	n = len(p)
	if n == 0 {
		if b.buffered() > 0 {
			return 0, nil
		}
		return 0, b.readErr()
	}
	if b.r == b.w {
		if b.err != nil {
			return 0, b.readErr()
		}
		if len(p) >= len(b.buf) {
			// Large read, empty buffer.
			// Read directly into p to avoid copy.
			n, b.err = b.rd.Read(p)
			if n < 0 {
				panic(errNegativeRead)
			}
			b.pos += int64(b.w) + int64(n)
			b.r, b.w = 0, 0
			return n, b.readErr()
		}
		// One read.
		b.pos += int64(b.r)
		b.r = 0
		b.w = 0
		n, b.err = b.rd.Read(b.buf)
		if n < 0 {
			panic(errNegativeRead)
		}
		if n == 0 {
			return 0, b.readErr()
		}
		b.w += n
	}

	// copy as much as we can
	// Note: if the slice panics here, it is probably because
	// the underlying reader returned a bad count. See issue 49795.
	n = copy(p, b.buf[b.r:b.w])
	b.r += n
	return n, nil
}

// buffered returns the number of bytes that can be read from the current buffer.
func (b *File) buffered() int { return b.w - b.r }

// Seek implements io.Seeker. Seeks within the buffered data do not reach the
// underlying reader.
func (b *File) Seek(offset int64, whence int) (int64, error) {
	if b.closed {
		return 0, ErrClosed
	}
	// Demuxers make heavy use of seeking with offset 0 to obtain the current
	// position; let's optimize for it.
	if offset == 0 && whence == io.SeekCurrent {
		return b.position(), nil
	}
	b.eof = false
	// When seeking from the end, the absolute position isn't known by File
	// so the current buffer cannot be used. Seeking cannot be avoided.
	if whence == io.SeekEnd {
		return b.seek(offset, whence)
	}
	// Calculate the absolute offset.
	abs := offset
	if whence == io.SeekCurrent {
		abs += b.position()
	}
	// Check if the offset is within buf.
	if abs >= b.pos && abs < b.pos+int64(b.w) {
		b.r = int(abs - b.pos)
		return abs, nil
	}

	return b.seek(abs, io.SeekStart)
}

func (b *File) seek(offset int64, whence int) (int64, error) {
	b.r = 0
	b.w = 0
	b.err = nil
	var err error
	b.pos, err = b.rd.Seek(offset, whence)
	return b.pos, err
}

// position returns the absolute read offset.
func (b *File) position() int64 {
	return b.pos + int64(b.r)
}

// Tell returns the absolute read offset.
func (b *File) Tell() int64 {
	return b.position()
}

// EOF reports whether the read offset has reached the end of the file.
func (b *File) EOF() bool {
	if b.size >= 0 {
		return b.position() >= b.size
	}
	return b.eof && b.buffered() == 0
}

// Size returns the size of the file, or UnknownSize.
func (b *File) Size() int64 {
	return b.size
}

// Close closes the underlying reader if it is an io.Closer.
func (b *File) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.buf = nil
	b.r, b.w = 0, 0
	if c, ok := b.rd.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
