package flac

import (
	"errors"
	"io"

	pkgerrors "github.com/pkg/errors"

	"github.com/segin/psymp3-sub012/frame"
	"github.com/segin/psymp3-sub012/meta"
)

// errEndOfStream is returned by locateLocked when the source ends before
// another frame header.
var errEndOfStream = errors.New("flac: end of stream")

// minFrameBound is the smallest read used to delimit a frame.
const minFrameBound = 256

// fillLocked returns up to n bytes of the source at off. Bytes read ahead by
// earlier calls are reused, so sequential frames cost about one read each.
// atEOF reports that the returned bytes run to the end of the source.
func (d *Demuxer) fillLocked(off int64, n int) (p []byte, atEOF bool, err error) {
	end := d.bufOff + int64(len(d.buf))
	switch {
	case off < d.bufOff || off > end:
		d.buf = d.buf[:0]
		d.bufOff = off
		d.bufEOF = false
	case off > d.bufOff:
		d.buf = d.buf[:copy(d.buf, d.buf[off-d.bufOff:])]
		d.bufOff = off
	}
	if len(d.buf) < n && !d.bufEOF {
		have := len(d.buf)
		if cap(d.buf) < n {
			buf := make([]byte, have, n)
			copy(buf, d.buf)
			d.buf = buf
			d.counters.memoryUsage.Store(uint64(cap(d.buf)))
		}
		m, err := d.readAt(d.buf[have:n], off+int64(have))
		d.buf = d.buf[:have+m]
		switch {
		case err == io.EOF || err == io.ErrUnexpectedEOF:
			d.bufEOF = true
		case err != nil:
			return nil, false, err
		}
	}
	if len(d.buf) > n {
		return d.buf[:n], false, nil
	}
	return d.buf, d.bufEOF, nil
}

// atEndLocked reports whether off is the end of the source, as far as the
// read-ahead buffer knows.
func (d *Demuxer) atEndLocked(off int64) bool {
	return d.bufEOF && off >= d.bufOff+int64(len(d.buf))
}

// acceptLocked reports whether a frame header agrees with STREAMINFO and with
// the blocking strategy of the stream.
func (d *Demuxer) acceptLocked(hdr *frame.Header) bool {
	info := d.info
	switch {
	case d.strategyKnown && hdr.HasVariableBlockSize != d.variable:
		return false
	case hdr.SampleRate != 0 && hdr.SampleRate != info.SampleRate:
		return false
	case hdr.BitsPerSample != 0 && hdr.BitsPerSample != info.BitsPerSample:
		return false
	case hdr.ChannelOrder.Count() != int(info.NChannels):
		return false
	case info.BlockSizeMax >= meta.MinBlockSize && hdr.BlockSize > uint32(info.BlockSizeMax):
		return false
	}
	return true
}

// sampleNumLocked returns the number of the first sample of the frame.
func (d *Demuxer) sampleNumLocked(hdr *frame.Header) uint64 {
	return hdr.SampleNumber(d.fixedBlockSize)
}

// frameBoundLocked returns the number of bytes read to delimit a frame: the
// largest frame the stream may hold plus room for the following header.
func (d *Demuxer) frameBoundLocked() int {
	info := d.info
	var n int
	if info.FrameSizeMax > 0 {
		n = int(info.FrameSizeMax)
	} else {
		// Verbatim coding is the worst case; side channels carry an extra
		// bit per sample.
		bs := int(info.BlockSizeMax)
		if bs < meta.MinBlockSize {
			bs = 1 << 16
		}
		bytesPerSample := (int(info.BitsPerSample) + 1 + 7) / 8
		n = bs*int(info.NChannels)*bytesPerSample + 2*int(info.NChannels) + frame.MaxHeaderSize + frame.FooterSize
	}
	n += frame.MaxHeaderSize
	if n < minFrameBound {
		n = minFrameBound
	}
	if n > d.conf.MaxFrameSize {
		n = d.conf.MaxFrameSize
	}
	return n
}

// syncWindowLocked returns the number of bytes scanned around a seek estimate.
func (d *Demuxer) syncWindowLocked() int {
	if n := d.frameBoundLocked(); n > d.conf.SyncWindow {
		return n
	}
	return d.conf.SyncWindow
}

// establishLocked learns the blocking strategy from the first frame.
func (d *Demuxer) establishLocked() error {
	if d.strategyKnown {
		return nil
	}
	hdr, off, err := d.locateLocked(d.dataStart)
	if err != nil {
		return err
	}
	d.strategyKnown = true
	d.firstFrame = off
	d.variable = hdr.HasVariableBlockSize
	d.fixedBlockSize = hdr.BlockSize
	if d.info.IsFixedBlockSize() {
		d.fixedBlockSize = uint32(d.info.BlockSizeMax)
	}
	if off != d.dataStart {
		d.log.Warning("first frame is not at the end of the metadata", "dataStart", d.dataStart, "offset", off)
	}
	d.log.Debug("blocking strategy", "variable", d.variable, "blockSize", d.fixedBlockSize)
	return nil
}

// locateLocked returns the first frame header at or after off, scanning at
// most Config.ResyncWindow bytes.
func (d *Demuxer) locateLocked(off int64) (frame.Header, int64, error) {
	n := d.syncWindowLocked() + frame.MaxHeaderSize
	start := off
	for start-off <= int64(d.conf.ResyncWindow) {
		p, atEOF, err := d.fillLocked(start, n)
		if err != nil {
			return frame.Header{}, 0, err
		}
		m, rejected, err := frame.Find(p, 0, d.acceptLocked)
		d.counters.falsePositives.Add(uint64(rejected))
		switch {
		case err == nil:
			return m.Header, start + int64(m.Offset), nil
		case atEOF:
			return frame.Header{}, 0, errEndOfStream
		case errors.Is(err, frame.ErrTruncated) && m.Offset > 0:
			start += int64(m.Offset)
		default:
			start += int64(len(p) - 1)
		}
	}
	return frame.Header{}, 0, pkgerrors.Wrapf(ErrLostSync, "no frame header within %d bytes of offset %d", d.conf.ResyncWindow, off)
}

// headerAtLocked parses the frame header at off. ok is false if no acceptable
// header starts there.
func (d *Demuxer) headerAtLocked(off int64) (hdr frame.Header, ok bool, err error) {
	p, _, err := d.fillLocked(off, frame.MaxHeaderSize)
	if err != nil {
		return frame.Header{}, false, err
	}
	hdr, err = frame.ParseHeader(p)
	if err != nil || !d.acceptLocked(&hdr) {
		return frame.Header{}, false, nil
	}
	return hdr, true, nil
}

// delimitLocked finds the end of the frame whose header hdr starts at off.
// The end is the start of the next frame, preferably one whose number
// continues this frame. confirmed is false when the end was taken from a
// frame that does not continue this one.
//
// The read grows past the frame bound only while the data holds no acceptable
// header at all, so a damaged successor costs one extra frame, not a read up
// to Config.MaxFrameSize.
func (d *Demuxer) delimitLocked(off int64, hdr frame.Header) (f frame.Frame, confirmed bool, err error) {
	f = frame.Frame{Header: hdr, Offset: off, SampleNum: d.sampleNumLocked(&hdr)}
	next := hdr.Num + 1
	if hdr.HasVariableBlockSize {
		next = hdr.Num + uint64(hdr.BlockSize)
	}
	continues := func(h *frame.Header) bool {
		return h.Num == next && d.acceptLocked(h)
	}
	bound := d.frameBoundLocked()
	for {
		p, atEOF, err := d.fillLocked(off, bound)
		if err != nil {
			return f, false, err
		}
		m, rejected, err := frame.Find(p, hdr.Size, continues)
		if err == nil {
			d.counters.falsePositives.Add(uint64(rejected))
			f.Size = m.Offset
			return f, true, nil
		}
		// No successor; take the first acceptable header in the data.
		m, _, err = frame.Find(p, hdr.Size, d.acceptLocked)
		if err == nil {
			d.log.Warning("frame sequence discontinuity", "offset", off, "next", off+int64(m.Offset), "num", hdr.Num)
			f.Size = m.Offset
			return f, false, nil
		}
		switch {
		case atEOF:
			f.Size = len(p)
			return f, true, nil
		case bound < d.conf.MaxFrameSize:
			bound *= 2
			if bound > d.conf.MaxFrameSize {
				bound = d.conf.MaxFrameSize
			}
			continue
		}
		return f, false, pkgerrors.Wrapf(ErrLostSync, "frame at offset %d exceeds %d bytes", off, d.conf.MaxFrameSize)
	}
}

// syncLocked returns the first confirmed frame starting in [off, limit),
// scanning at most window bytes. A negative limit means no limit.
func (d *Demuxer) syncLocked(off, limit int64, window int) (frame.Frame, bool, error) {
	end := off + int64(window)
	if limit >= 0 && end > limit {
		end = limit
	}
	for off < end {
		p, _, err := d.fillLocked(off, int(end-off)+frame.MaxHeaderSize)
		if err != nil {
			return frame.Frame{}, false, err
		}
		m, rejected, err := frame.Find(p, 0, d.acceptLocked)
		d.counters.falsePositives.Add(uint64(rejected))
		if err != nil || off+int64(m.Offset) >= end {
			return frame.Frame{}, false, nil
		}
		start := off + int64(m.Offset)
		f, confirmed, err := d.delimitLocked(start, m.Header)
		if err != nil {
			return frame.Frame{}, false, err
		}
		if confirmed {
			return f, true, nil
		}
		// Valid header without a successor: a coincidental match.
		d.counters.falsePositives.Add(1)
		off = start + 1
	}
	return frame.Frame{}, false, nil
}

// recordLocked adds a confirmed frame to the index.
func (d *Demuxer) recordLocked(f *frame.Frame) {
	d.index.add(anchor{sample: f.SampleNum, offset: f.Offset})
	d.counters.framesIndexed.Store(uint64(d.index.len()))
}
