package media

import (
	"errors"
	"fmt"
)

// ErrNotSupported is returned when no registered demuxer or codec handles a
// format.
var ErrNotSupported = errors.New("media: format not supported")

// Category classifies demuxer errors.
type Category uint8

// Error categories.
const (
	// CategoryNone is the category of no error.
	CategoryNone Category = iota
	// CategoryIO covers failures of the underlying byte source.
	CategoryIO
	// CategoryFormat covers malformed containers, including declared lengths
	// beyond the resource limits.
	CategoryFormat
	// CategoryTruncated covers input that ended early.
	CategoryTruncated
	// CategorySeek covers seeks that could not be confirmed.
	CategorySeek
	// CategoryState covers calls made in the wrong state, such as before a
	// successful parse or after Close.
	CategoryState
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryIO:
		return "io"
	case CategoryFormat:
		return "format"
	case CategoryTruncated:
		return "truncated"
	case CategorySeek:
		return "seek"
	case CategoryState:
		return "state"
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// Error is a categorized error recorded by a demuxer.
type Error struct {
	Category Category
	Message  string
	// Underlying error, if any.
	Err error
}

// NewError returns an Error of category c wrapping err.
func NewError(c Category, err error) *Error {
	return &Error{Category: c, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v error: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CategoryOf returns the category of the first *Error in the chain of err, or
// CategoryNone.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryNone
}
