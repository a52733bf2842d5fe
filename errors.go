package flac

import (
	"errors"

	"github.com/segin/psymp3-sub012/media"
)

// Errors reported by the demuxer. They are recorded as the Err of a
// *media.Error and may be matched with errors.Is.
var (
	// ErrNotParsed is returned by operations that need a parsed container.
	ErrNotParsed = errors.New("flac: container not parsed")
	// ErrClosed is returned by operations on a closed demuxer.
	ErrClosed = errors.New("flac: demuxer closed")
	// ErrNoMarker is returned when the stream does not start with "fLaC".
	ErrNoMarker = errors.New("flac: missing stream marker")
	// ErrNoStreamInfo is returned when the first metadata block is not a
	// STREAMINFO block.
	ErrNoStreamInfo = errors.New("flac: first metadata block is not STREAMINFO")
	// ErrBlockBounds is returned when a metadata block reaches past the end of
	// the stream.
	ErrBlockBounds = errors.New("flac: metadata block exceeds stream")
	// ErrSeek is returned when no frame could be confirmed for a seek target.
	ErrSeek = errors.New("flac: seek failed")
	// ErrSeekRange is returned for seek targets at or past the end of the
	// stream.
	ErrSeekRange = errors.New("flac: seek target past end of stream")
	// ErrLostSync is returned when no frame header is found where one is
	// expected.
	ErrLostSync = errors.New("flac: lost frame sync")
)

// fail records err in category c as the last error and returns it.
func (d *Demuxer) fail(c media.Category, err error) error {
	e := media.NewError(c, err)
	d.lastErr.Store(e)
	d.log.Debug("demuxer error", "category", c.String(), "error", err.Error())
	return e
}

// HasError reports whether an error has been recorded.
func (d *Demuxer) HasError() bool {
	return d.lastErr.Load() != nil
}

// LastError returns the last recorded error, or nil.
func (d *Demuxer) LastError() *media.Error {
	return d.lastErr.Load()
}

// ClearError forgets the last recorded error.
func (d *Demuxer) ClearError() {
	d.lastErr.Store(nil)
}
