package flac

import (
	"errors"
	"io"

	pkgerrors "github.com/pkg/errors"

	"github.com/segin/psymp3-sub012/frame"
	"github.com/segin/psymp3-sub012/iohandler"
	"github.com/segin/psymp3-sub012/media"
)

// ReadChunk returns the next complete frame, header and footer included. At
// the end of the stream it returns io.EOF.
//
// Chunks are delimited by confirmed frame headers and are not decoded. When
// the bytes at the current position are not a frame, the demuxer scans ahead
// for the next valid header and counts a resync.
func (d *Demuxer) ReadChunk() (media.Chunk, error) {
	if d.closed.Load() {
		return media.Chunk{}, d.fail(media.CategoryState, ErrClosed)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.parsed {
		return media.Chunk{}, d.fail(media.CategoryState, ErrNotParsed)
	}
	d.posMu.Lock()
	defer d.posMu.Unlock()
	return d.readChunkLocked()
}

func (d *Demuxer) readChunkLocked() (media.Chunk, error) {
	if d.eof {
		return media.Chunk{}, io.EOF
	}
	if err := d.establishLocked(); err != nil {
		return media.Chunk{}, d.frameErrorLocked(err)
	}
	hdr, off, err := d.locateLocked(d.offset)
	if err != nil {
		return media.Chunk{}, d.frameErrorLocked(err)
	}
	if off != d.offset {
		d.counters.resyncs.Add(1)
		d.log.Warning("resynchronized", "expected", d.offset, "found", off, "skipped", off-d.offset)
	}
	f, _, err := d.delimitLocked(off, hdr)
	if err != nil {
		return media.Chunk{}, d.frameErrorLocked(err)
	}
	p, _, err := d.fillLocked(off, f.Size)
	if err != nil {
		return media.Chunk{}, d.frameErrorLocked(err)
	}
	data := make([]byte, f.Size)
	copy(data, p)

	d.verifyLocked(data, &f)
	d.recordLocked(&f)
	d.offset = f.End()
	d.sample.Store(f.SampleNum + uint64(f.BlockSize))
	if d.atEndLocked(f.End()) {
		d.endLocked()
	}
	d.counters.framesRead.Add(1)
	return media.Chunk{
		StreamID:         StreamID,
		Data:             data,
		TimestampSamples: f.SampleNum,
		FileOffset:       f.Offset,
	}, nil
}

// verifyLocked checks the CRC-16 footer of a frame if verification is
// enabled. A mismatch is counted and logged; the frame is kept.
func (d *Demuxer) verifyLocked(data []byte, f *frame.Frame) {
	if !d.counters.crcCheckEnabled.Load() || frame.VerifyFooter(data) {
		return
	}
	n := d.counters.crcErrors.Add(1)
	d.log.Warning("frame CRC-16 mismatch", "offset", f.Offset, "sample", f.SampleNum)
	if n >= uint64(d.conf.CRCErrorThreshold) {
		d.counters.crcCheckEnabled.Store(false)
		d.log.Warning("too many CRC-16 mismatches, disabling verification", "errors", n)
	}
}

// endLocked marks the end of the stream.
func (d *Demuxer) endLocked() {
	d.eof = true
	if d.sequential {
		d.counters.indexComplete.Store(true)
	}
}

// frameErrorLocked maps an error met while extracting a frame to the value
// returned by ReadChunk.
func (d *Demuxer) frameErrorLocked(err error) error {
	switch {
	case errors.Is(err, errEndOfStream):
		d.endLocked()
		return io.EOF
	case errors.Is(err, ErrLostSync):
		// Nothing past this point can be read.
		d.eof = true
		return d.fail(media.CategoryFormat, err)
	case errors.Is(err, iohandler.ErrTimeout):
		return d.fail(media.CategoryIO, pkgerrors.Wrapf(err, "waiting for frame at offset %d", d.offset))
	}
	return d.fail(media.CategoryIO, pkgerrors.Wrapf(err, "reading frame at offset %d", d.offset))
}

// EOF reports whether ReadChunk has reached the end of the stream.
func (d *Demuxer) EOF() bool {
	if d.closed.Load() {
		return true
	}
	d.posMu.Lock()
	defer d.posMu.Unlock()
	return d.eof
}
