package meta

import (
	"errors"
)

// ErrInvalidPadding is returned by VerifyPadding for padding with nonzero
// content.
var ErrInvalidPadding = errors.New("meta.VerifyPadding: invalid padding")

// VerifyPadding verifies the body of a Padding metadata block. It should only
// contain zero-padding.
//
// ref: https://www.rfc-editor.org/rfc/rfc9639.html#name-padding
func VerifyPadding(body []byte) error {
	if !isAllZero(body) {
		return ErrInvalidPadding
	}
	return nil
}

// isAllZero returns true if the value of each byte in the provided slice is 0,
// and false otherwise.
func isAllZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
