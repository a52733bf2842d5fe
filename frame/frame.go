// Package frame locates and validates FLAC audio frames within raw stream
// data.
//
// A frame carries no length field; its end is the start of the next frame, or
// the end of the stream. Frames are therefore found by scanning for a sync
// code and confirming the candidate with a full header parse and its CRC-8.
package frame

import (
	"errors"

	"github.com/mewkiz/pkg/hashutil/crc16"
)

// ErrNotFound is returned by Find when no frame header is found.
var ErrNotFound = errors.New("frame: no frame header found")

// A Frame is the location of an audio frame within a stream.
//
// ref: https://www.rfc-editor.org/rfc/rfc9639.html#name-frame-structure
type Frame struct {
	// Audio frame header.
	Header
	// Offset in bytes of the frame header from the start of the stream.
	Offset int64
	// Size of the frame in bytes, footer included.
	Size int
	// Number of the first sample in the frame.
	SampleNum uint64
}

// End returns the offset of the first byte after the frame.
func (f *Frame) End() int64 {
	return f.Offset + int64(f.Size)
}

// Contains reports whether sample falls within the frame.
func (f *Frame) Contains(sample uint64) bool {
	return sample >= f.SampleNum && sample < f.SampleNum+uint64(f.BlockSize)
}

// A Match is a confirmed frame header found by Find.
type Match struct {
	// Offset of the header within the scanned data.
	Offset int
	Header Header
}

// Find scans p from offset from for the first valid frame header accepted by
// accept; a nil accept accepts any valid header. Candidates that carry a sync
// code but fail validation or acceptance are counted in rejected.
//
// When the data ends in the middle of a candidate header, Find returns
// ErrTruncated with m.Offset set to the candidate, so the caller can retry with
// more data. Otherwise ErrNotFound is returned if nothing is found.
func Find(p []byte, from int, accept func(hdr *Header) bool) (m Match, rejected int, err error) {
	if from < 0 {
		from = 0
	}
	for i := from; i+1 < len(p); i++ {
		if !IsSync(p, i) {
			continue
		}
		hdr, err := ParseHeader(p[i:])
		switch {
		case errors.Is(err, ErrTruncated):
			// Cut off by the end of the data; only a complete parse could
			// reject it.
			return Match{Offset: i}, rejected, ErrTruncated
		case err != nil:
			rejected++
			continue
		}
		if accept != nil && !accept(&hdr) {
			rejected++
			continue
		}
		return Match{Offset: i, Header: hdr}, rejected, nil
	}
	return Match{}, rejected, ErrNotFound
}

// FooterSize is the size in bytes of the frame footer.
const FooterSize = 2

// VerifyFooter reports whether the trailing CRC-16 of a complete frame matches
// the checksum of the bytes before it.
func VerifyFooter(frame []byte) bool {
	if len(frame) < MinHeaderSize+FooterSize {
		return false
	}
	n := len(frame) - FooterSize
	want := uint16(frame[n])<<8 | uint16(frame[n+1])
	return crc16.ChecksumIBM(frame[:n]) == want
}
