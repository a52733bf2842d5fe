package flacgen

import (
	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/errutil"
)

const (
	tx = 0x80 // 1000 0000
	t2 = 0xC0 // 1100 0000
	t3 = 0xE0 // 1110 0000
	t4 = 0xF0 // 1111 0000
	t5 = 0xF8 // 1111 1000
	t6 = 0xFC // 1111 1100
	t7 = 0xFE // 1111 1110

	maskx = 0x3F // 0011 1111
	mask2 = 0x1F // 0001 1111
	mask3 = 0x0F // 0000 1111
	mask4 = 0x07 // 0000 0111
	mask5 = 0x03 // 0000 0011
	mask6 = 0x01 // 0000 0001

	rune1Max = 1<<7 - 1
	rune2Max = 1<<11 - 1
	rune3Max = 1<<16 - 1
	rune4Max = 1<<21 - 1
	rune5Max = 1<<26 - 1
	rune6Max = 1<<31 - 1
	rune7Max = 1<<36 - 1
)

// WriteUTF8 writes x as a "UTF-8" coded number.
func WriteUTF8(bw *bitio.Writer, x uint64) error {
	if x <= rune1Max {
		return bw.WriteBits(x, 8)
	}
	// Number of continuation bytes and the leading byte.
	var (
		l  int
		c0 uint64
	)
	switch {
	case x <= rune2Max:
		l, c0 = 1, t2|x>>6&mask2
	case x <= rune3Max:
		l, c0 = 2, t3|x>>(6*2)&mask3
	case x <= rune4Max:
		l, c0 = 3, t4|x>>(6*3)&mask4
	case x <= rune5Max:
		l, c0 = 4, t5|x>>(6*4)&mask5
	case x <= rune6Max:
		l, c0 = 5, t6|x>>(6*5)&mask6
	case x <= rune7Max:
		l, c0 = 6, t7
	default:
		return errutil.Newf("unable to encode %d as a 36-bit coded number", x)
	}
	if err := bw.WriteBits(c0, 8); err != nil {
		return errutil.Err(err)
	}
	for i := l - 1; i >= 0; i-- {
		c := tx | x>>uint(6*i)&maskx
		if err := bw.WriteBits(c, 8); err != nil {
			return errutil.Err(err)
		}
	}
	return nil
}
