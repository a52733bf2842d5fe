// Package bits implements a big-endian bit reader over an in-memory buffer,
// and helpers for the integer encodings used by FLAC.
package bits

import (
	"errors"
	"fmt"
	"io"
)

// ErrPadding is returned by AlignToByte in strict mode when the bits skipped to
// reach the byte boundary are not all zero.
var ErrPadding = errors.New("bits: nonzero padding before byte boundary")

// refillThreshold is the cache fill level at or below which another whole
// byte fits into the 64-bit cache.
const refillThreshold = 56

// A Reader reads bits MSB-first from a byte buffer. The buffer may be extended
// with Feed while reading; reads never advance past the bytes fed so far.
type Reader struct {
	// Bytes fed so far.
	buf []byte
	// Index in buf of the next byte to load into the cache.
	pos int
	// Cached bits, right aligned; only the n least significant bits are valid.
	cache uint64
	n     uint
	// Number of bits consumed since the last reset.
	consumed uint64
	// Reject nonzero alignment padding.
	strict bool
}

// NewReader returns a new bit reader over p. The reader does not copy p.
func NewReader(p []byte) *Reader {
	return &Reader{buf: p}
}

// Reset discards all state and starts reading from p.
func (br *Reader) Reset(p []byte) {
	strict := br.strict
	*br = Reader{buf: p, strict: strict}
}

// SetStrict toggles strict padding checks in AlignToByte.
func (br *Reader) SetStrict(strict bool) {
	br.strict = strict
}

// Feed appends p to the data available to the reader.
func (br *Reader) Feed(p []byte) {
	br.buf = append(br.buf, p...)
}

// Len returns the number of unread bits, cached or not.
func (br *Reader) Len() uint64 {
	return uint64(br.n) + 8*uint64(len(br.buf)-br.pos)
}

// EnsureBits reports whether at least n bits are available, loading whole
// bytes into the cache as needed. For n <= 57 a true result guarantees the bits
// are cached.
func (br *Reader) EnsureBits(n uint) bool {
	for br.n < n && br.n <= refillThreshold && br.pos < len(br.buf) {
		br.cache = br.cache<<8 | uint64(br.buf[br.pos])
		br.pos++
		br.n += 8
	}
	if br.n >= n {
		return true
	}
	return br.Len() >= uint64(n)
}

// read reads n <= 32 bits.
func (br *Reader) read(n uint) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	if !br.EnsureBits(n) {
		return 0, io.ErrUnexpectedEOF
	}
	br.n -= n
	x := br.cache >> br.n
	if n < 64 {
		x &= 1<<n - 1
	}
	br.cache &= 1<<br.n - 1
	br.consumed += uint64(n)
	return x, nil
}

// Read reads and returns the next n bits as an unsigned integer, most
// significant bit first. n must not exceed 64; reading 0 bits returns 0.
func (br *Reader) Read(n uint) (x uint64, err error) {
	if n > 64 {
		return 0, fmt.Errorf("bits.Reader.Read: invalid bit count %d", n)
	}
	if !br.EnsureBits(n) {
		return 0, io.ErrUnexpectedEOF
	}
	for n > 32 {
		hi, err := br.read(n - 32)
		if err != nil {
			return 0, err
		}
		x = hi
		n = 32
	}
	lo, err := br.read(n)
	if err != nil {
		return 0, err
	}
	return x<<n | lo, nil
}

// ReadSigned reads the next n bits as a two's complement signed integer.
func (br *Reader) ReadSigned(n uint) (int64, error) {
	x, err := br.Read(n)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return IntN(x, n), nil
}

// ReadBit reads a single bit.
func (br *Reader) ReadBit() (bool, error) {
	x, err := br.read(1)
	return x == 1, err
}

// AlignToByte discards the bits up to the next byte boundary and returns them.
// Nonzero padding is tolerated unless the reader is strict.
func (br *Reader) AlignToByte() (padding uint64, err error) {
	rem := uint(br.consumed % 8)
	if rem == 0 {
		return 0, nil
	}
	padding, err = br.read(8 - rem)
	if err != nil {
		return 0, err
	}
	if padding != 0 && br.strict {
		return padding, ErrPadding
	}
	return padding, nil
}

// SkipBits discards the next n bits.
func (br *Reader) SkipBits(n uint64) error {
	if br.Len() < n {
		return io.ErrUnexpectedEOF
	}
	// Drain the cache first, then jump whole bytes in the buffer.
	if n <= uint64(br.n) {
		_, err := br.read(uint(n))
		return err
	}
	n -= uint64(br.n)
	br.consumed += uint64(br.n)
	br.cache, br.n = 0, 0
	br.pos += int(n / 8)
	br.consumed += n / 8 * 8
	_, err := br.read(uint(n % 8))
	return err
}

// SkipBytes discards the next n bytes. The reader must be byte aligned.
func (br *Reader) SkipBytes(n int) error {
	return br.SkipBits(8 * uint64(n))
}

// ReadBytes reads the next n bytes into a new slice.
func (br *Reader) ReadBytes(n int) ([]byte, error) {
	if br.Len() < 8*uint64(n) {
		return nil, io.ErrUnexpectedEOF
	}
	p := make([]byte, n)
	if err := br.ReadFull(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadFull fills p with the next len(p) bytes.
func (br *Reader) ReadFull(p []byte) error {
	if br.Len() < 8*uint64(len(p)) {
		return io.ErrUnexpectedEOF
	}
	i := 0
	for ; i < len(p) && br.n > 0; i++ {
		x, err := br.read(8)
		if err != nil {
			return err
		}
		p[i] = byte(x)
	}
	// The cache is empty; copy the rest straight from the buffer.
	if i < len(p) {
		m := copy(p[i:], br.buf[br.pos:])
		br.pos += m
		br.consumed += 8 * uint64(m)
	}
	return nil
}

// BitPos returns the number of bits consumed since the last reset.
func (br *Reader) BitPos() uint64 {
	return br.consumed
}

// BytePos returns the number of whole bytes consumed since the last reset.
func (br *Reader) BytePos() uint64 {
	return br.consumed / 8
}

// ResetPosition rewinds the reader to the start of the buffer.
func (br *Reader) ResetPosition() {
	br.pos = 0
	br.cache, br.n = 0, 0
	br.consumed = 0
}
