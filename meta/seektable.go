package meta

import (
	"sort"

	pkgerrors "github.com/pkg/errors"

	"github.com/segin/psymp3-sub012/internal/bits"
)

// SeekPointSize is the size in bytes of a seek point.
const SeekPointSize = 18

// PlaceholderPoint is the sample number of a placeholder seek point.
const PlaceholderPoint = 0xFFFFFFFFFFFFFFFF

// SeekTable contains one or more pre-calculated audio frame seek points.
//
// ref: https://www.rfc-editor.org/rfc/rfc9639.html#name-seektable
type SeekTable struct {
	// One or more seek points.
	Points []SeekPoint
}

// ParseSeekTable parses the body of a SEEKTABLE metadata block.
//
// Seek table format (pseudo code):
//
//	type METADATA_BLOCK_SEEKTABLE struct {
//	   points [length/18]point
//	}
//
//	type point struct {
//	   sample_num   uint64
//	   offset       uint64
//	   sample_count uint16
//	}
func ParseSeekTable(body []byte) (*SeekTable, error) {
	if len(body)%SeekPointSize != 0 {
		return nil, pkgerrors.Errorf("meta.ParseSeekTable: length %d is not a multiple of %d", len(body), SeekPointSize)
	}
	br := bits.NewReader(body)
	table := &SeekTable{Points: make([]SeekPoint, len(body)/SeekPointSize)}
	for i := range table.Points {
		point := &table.Points[i]
		// The body length was checked above; reads can't fail.
		point.SampleNum, _ = br.Read(64)
		point.Offset, _ = br.Read(64)
		n, _ := br.Read(16)
		point.NSamples = uint16(n)
	}
	return table, nil
}

// A SeekPoint specifies the byte offset and initial sample number of a given
// target frame.
//
// ref: https://www.rfc-editor.org/rfc/rfc9639.html#name-seek-point
type SeekPoint struct {
	// Sample number of the first sample in the target frame, or
	// 0xFFFFFFFFFFFFFFFF for a placeholder point.
	SampleNum uint64
	// Offset in bytes from the first byte of the first frame header to the first
	// byte of the target frame's header.
	Offset uint64
	// Number of samples in the target frame.
	NSamples uint16
}

// IsPlaceholder reports whether the point is a placeholder.
func (p SeekPoint) IsPlaceholder() bool {
	return p.SampleNum == PlaceholderPoint
}

// SeekPoints returns the points usable for seeking: placeholders removed,
// sorted by sample number, with duplicate sample numbers collapsed to the first
// point seen. The table itself is left untouched.
func (table *SeekTable) SeekPoints() []SeekPoint {
	points := make([]SeekPoint, 0, len(table.Points))
	for _, p := range table.Points {
		if !p.IsPlaceholder() {
			points = append(points, p)
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].SampleNum < points[j].SampleNum
	})
	out := points[:0]
	for i, p := range points {
		if i > 0 && p.SampleNum == out[len(out)-1].SampleNum {
			continue
		}
		out = append(out, p)
	}
	return out
}
