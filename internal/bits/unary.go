package bits

import (
	"errors"
	"io"
)

// MaxUnary is the largest unary value ReadUnary accepts. Longer runs of zero
// bits only occur in corrupt or hostile input.
const MaxUnary = 1000000

// ErrUnaryOverflow is returned by ReadUnary when the run of zero bits exceeds
// MaxUnary.
var ErrUnaryOverflow = errors.New("bits: unary value exceeds limit")

// ReadUnary decodes and returns an unary coded integer, whose value is
// represented by the number of leading zeros before a one.
//
// Examples of unary coded binary on the left and decoded decimal on the right:
//
//	1       => 0
//	01      => 1
//	001     => 2
//	0001    => 3
//	00001   => 4
//	000001  => 5
//	0000001 => 6
func (br *Reader) ReadUnary() (x uint64, err error) {
	for {
		if !br.EnsureBits(1) {
			return 0, io.ErrUnexpectedEOF
		}
		// Count whole zero bytes of the cache at once.
		if br.n >= 8 && (br.cache>>(br.n-8))&0xFF == 0 {
			br.n -= 8
			br.cache &= 1<<br.n - 1
			br.consumed += 8
			x += 8
		} else {
			bit, err := br.read(1)
			if err != nil {
				return 0, err
			}
			if bit == 1 {
				return x, nil
			}
			x++
		}
		if x > MaxUnary {
			return 0, ErrUnaryOverflow
		}
	}
}
