package bits

import (
	"errors"
)

// ErrUTF8 is returned by ReadUTF8 for an invalid leading or continuation byte.
var ErrUTF8 = errors.New("bits: invalid UTF-8 coded number")

// ReadUTF8 decodes a "UTF-8" coded number of 1 to 7 bytes, as used for frame
// and sample numbers in frame headers. The encoding extends UTF-8 to carry up
// to 36 bits:
//
//	0xxxxxxx                                                        7 bits
//	110xxxxx 10xxxxxx                                              11 bits
//	1110xxxx 10xxxxxx 10xxxxxx                                     16 bits
//	11110xxx 10xxxxxx 10xxxxxx 10xxxxxx                            21 bits
//	111110xx 10xxxxxx 10xxxxxx 10xxxxxx 10xxxxxx                   26 bits
//	1111110x 10xxxxxx 10xxxxxx 10xxxxxx 10xxxxxx 10xxxxxx          31 bits
//	11111110 10xxxxxx 10xxxxxx 10xxxxxx 10xxxxxx 10xxxxxx 10xxxxxx 36 bits
//
// ref: https://www.rfc-editor.org/rfc/rfc9639.html#name-coded-number
func (br *Reader) ReadUTF8() (x uint64, err error) {
	c0, err := br.Read(8)
	if err != nil {
		return 0, err
	}
	// Number of continuation bytes and value bits of the leading byte.
	var n int
	switch {
	case c0&0x80 == 0x00:
		return c0, nil
	case c0&0xE0 == 0xC0:
		n, x = 1, c0&0x1F
	case c0&0xF0 == 0xE0:
		n, x = 2, c0&0x0F
	case c0&0xF8 == 0xF0:
		n, x = 3, c0&0x07
	case c0&0xFC == 0xF8:
		n, x = 4, c0&0x03
	case c0&0xFE == 0xFC:
		n, x = 5, c0&0x01
	case c0 == 0xFE:
		n, x = 6, 0
	default:
		return 0, ErrUTF8
	}
	for i := 0; i < n; i++ {
		c, err := br.Read(8)
		if err != nil {
			return 0, err
		}
		if c&0xC0 != 0x80 {
			return 0, ErrUTF8
		}
		x = x<<6 | c&0x3F
	}
	return x, nil
}
