package flac

import (
	"sync/atomic"
)

// Stats are counters describing the work done by a Demuxer.
type Stats struct {
	// Frames returned by ReadChunk.
	FramesRead uint64
	// Entries in the frame index.
	FramesIndexed uint64
	// Frames whose CRC-16 footer did not match.
	CRCErrors uint64
	// Sync codes whose header failed validation.
	SyncFalsePositives uint64
	// Times a read found a frame away from the expected offset.
	Resyncs uint64
	// Bytes read from the source.
	BytesRead uint64
	// Bytes held in read buffers.
	MemoryUsage uint64
	// IndexComplete is set once a read from the first frame reached the end of
	// the stream without seeking.
	IndexComplete bool
	// CRCCheckEnabled reports whether CRC-16 verification is active.
	CRCCheckEnabled bool
}

// counters are the live, atomically updated statistics.
type counters struct {
	framesRead      atomic.Uint64
	framesIndexed   atomic.Uint64
	crcErrors       atomic.Uint64
	falsePositives  atomic.Uint64
	resyncs         atomic.Uint64
	bytesRead       atomic.Uint64
	memoryUsage     atomic.Uint64
	indexComplete   atomic.Bool
	crcCheckEnabled atomic.Bool
}

// Stats returns a snapshot of the demuxer statistics. It may be called from
// any goroutine.
func (d *Demuxer) Stats() Stats {
	c := &d.counters
	return Stats{
		FramesRead:         c.framesRead.Load(),
		FramesIndexed:      c.framesIndexed.Load(),
		CRCErrors:          c.crcErrors.Load(),
		SyncFalsePositives: c.falsePositives.Load(),
		Resyncs:            c.resyncs.Load(),
		BytesRead:          c.bytesRead.Load(),
		MemoryUsage:        c.memoryUsage.Load(),
		IndexComplete:      c.indexComplete.Load(),
		CRCCheckEnabled:    c.crcCheckEnabled.Load(),
	}
}
