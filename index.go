package flac

import (
	"sort"
)

// An anchor is a confirmed frame start.
type anchor struct {
	sample uint64
	offset int64
}

// frameIndex is a bounded, sorted set of anchors recorded while reading and
// seeking.
type frameIndex struct {
	anchors []anchor
	max     int
}

// add records a. When the index is full every other anchor is dropped, which
// keeps the coverage of the stream even.
func (idx *frameIndex) add(a anchor) {
	i := sort.Search(len(idx.anchors), func(i int) bool { return idx.anchors[i].sample >= a.sample })
	if i < len(idx.anchors) && idx.anchors[i].sample == a.sample {
		return
	}
	idx.anchors = append(idx.anchors, anchor{})
	copy(idx.anchors[i+1:], idx.anchors[i:])
	idx.anchors[i] = a
	if idx.max > 0 && len(idx.anchors) > idx.max {
		kept := idx.anchors[:0]
		for j, x := range idx.anchors {
			if j%2 == 0 {
				kept = append(kept, x)
			}
		}
		idx.anchors = kept
	}
}

// around returns the closest anchors at or below and above sample.
func (idx *frameIndex) around(sample uint64) (lo, hi anchor, okLo, okHi bool) {
	i := sort.Search(len(idx.anchors), func(i int) bool { return idx.anchors[i].sample > sample })
	if i > 0 {
		lo, okLo = idx.anchors[i-1], true
	}
	if i < len(idx.anchors) {
		hi, okHi = idx.anchors[i], true
	}
	return lo, hi, okLo, okHi
}

func (idx *frameIndex) len() int {
	return len(idx.anchors)
}
