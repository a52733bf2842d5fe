package flac

import (
	"sort"

	pkgerrors "github.com/pkg/errors"

	"github.com/segin/psymp3-sub012/frame"
	"github.com/segin/psymp3-sub012/iohandler"
	"github.com/segin/psymp3-sub012/media"
)

// defaultSeekBlockSize is the block size assumed when STREAMINFO gives none.
const defaultSeekBlockSize = 4096

// SeekTo positions the demuxer on the frame containing the sample at ms
// milliseconds. On failure the position is left unchanged.
func (d *Demuxer) SeekTo(ms uint64) error {
	if d.closed.Load() {
		return d.fail(media.CategoryState, ErrClosed)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.parsed {
		return d.fail(media.CategoryState, ErrNotParsed)
	}
	return d.seekLocked(d.info.MsToSamples(ms))
}

// SeekToSample positions the demuxer on the frame containing sample. On
// failure the position is left unchanged.
func (d *Demuxer) SeekToSample(sample uint64) error {
	if d.closed.Load() {
		return d.fail(media.CategoryState, ErrClosed)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.parsed {
		return d.fail(media.CategoryState, ErrNotParsed)
	}
	return d.seekLocked(sample)
}

func (d *Demuxer) seekLocked(target uint64) error {
	d.posMu.Lock()
	defer d.posMu.Unlock()
	if target == 0 {
		d.offset = d.dataStart
		d.sample.Store(0)
		d.eof = false
		d.sequential = true
		return nil
	}
	if n := d.info.NSamples; n > 0 && target >= n {
		return d.fail(media.CategorySeek, pkgerrors.Wrapf(ErrSeekRange, "sample %d of %d", target, n))
	}
	if err := d.establishLocked(); err != nil {
		return d.fail(media.CategorySeek, pkgerrors.Wrapf(ErrSeek, "sample %d: %v", target, err))
	}
	f, err := d.findLocked(target)
	if err != nil {
		return d.fail(media.CategorySeek, err)
	}
	d.log.Debug("seek", "target", target, "sample", f.SampleNum, "offset", f.Offset)
	d.offset = f.Offset
	d.sample.Store(f.SampleNum)
	d.eof = false
	d.sequential = false
	return nil
}

// findLocked returns the frame containing target. Only the read-ahead buffer
// and the frame index are modified.
func (d *Demuxer) findLocked(target uint64) (frame.Frame, error) {
	lo, hi, okHi := d.seekTableBoundsLocked(target)
	ilo, ihi, okILo, okIHi := d.index.around(target)
	if okILo && ilo.sample > lo.sample {
		lo = ilo
	}
	if okIHi && (!okHi || ihi.sample < hi.sample) {
		hi, okHi = ihi, true
	}
	if !okHi && d.info.NSamples > 0 && d.size > lo.offset {
		hi, okHi = anchor{sample: d.info.NSamples, offset: d.size}, true
	}
	if okHi {
		lo = d.bisectLocked(lo, hi, target)
	}
	return d.walkLocked(lo, target)
}

// seekTableBoundsLocked returns the last seek point at or below target that
// matches a frame, falling back to the first frame, and the first seek point
// above target. Points that do not match a frame are skipped.
func (d *Demuxer) seekTableBoundsLocked(target uint64) (lo, hi anchor, okHi bool) {
	lo = anchor{sample: 0, offset: d.firstFrame}
	pts := d.seekPoints
	i := sort.Search(len(pts), func(i int) bool { return pts[i].SampleNum > target })
	for j := i - 1; j >= 0; j-- {
		a := anchor{sample: pts[j].SampleNum, offset: d.dataStart + int64(pts[j].Offset)}
		if d.confirmLocked(a) {
			lo = a
			break
		}
		d.log.Warning("seek point does not match a frame", "sample", a.sample, "offset", a.offset)
	}
	if i < len(pts) {
		hi, okHi = anchor{sample: pts[i].SampleNum, offset: d.dataStart + int64(pts[i].Offset)}, true
	}
	return lo, hi, okHi
}

// confirmLocked reports whether a frame starting at sample a.sample has its
// header at a.offset.
func (d *Demuxer) confirmLocked(a anchor) bool {
	hdr, ok, err := d.headerAtLocked(a.offset)
	if err != nil || !ok {
		return false
	}
	return d.sampleNumLocked(&hdr) == a.sample
}

// bisectLocked narrows [lo, hi) around target by alternating interpolation
// and midpoint guesses. Every guess is confirmed with a frame parse before it
// becomes a bound. It returns the closest confirmed frame at or below target.
func (d *Demuxer) bisectLocked(lo, hi anchor, target uint64) anchor {
	window := d.syncWindowLocked()
	bs := uint64(d.info.BlockSizeMax)
	if bs == 0 {
		bs = defaultSeekBlockSize
	}
	for i := 0; i < d.conf.MaxSeekIterations; i++ {
		if target-lo.sample <= 2*bs || hi.offset <= lo.offset+1 || hi.sample <= lo.sample {
			break
		}
		span := hi.offset - lo.offset
		var est int64
		if i%2 == 0 {
			ratio := float64(target-lo.sample) / float64(hi.sample-lo.sample)
			est = lo.offset + int64(ratio*float64(span))
		} else {
			est = lo.offset + span/2
		}
		if est <= lo.offset {
			est = lo.offset + 1
		}
		f, found, err := d.syncLocked(est, hi.offset, window)
		if err != nil {
			d.log.Debug("seek guess failed", "offset", est, "error", err.Error())
			break
		}
		if !found {
			// No frame starts in [est, hi): frames at or past est start at
			// hi.offset or later.
			hi.offset = est
			continue
		}
		d.recordLocked(&f)
		a := anchor{sample: f.SampleNum, offset: f.Offset}
		switch {
		case f.Contains(target):
			return a
		case f.SampleNum > target:
			hi = a
		case f.SampleNum > lo.sample:
			lo = a
		default:
			// A frame number out of order; stop bisecting.
			d.log.Warning("seek guess went backwards", "offset", f.Offset, "sample", f.SampleNum, "lo", lo.sample)
			return lo
		}
	}
	return lo
}

// walkLocked reads frames forward from the confirmed frame start lo until one
// contains target.
func (d *Demuxer) walkLocked(lo anchor, target uint64) (frame.Frame, error) {
	off := lo.offset
	for {
		hdr, ok, err := d.headerAtLocked(off)
		if err != nil {
			return frame.Frame{}, pkgerrors.Wrapf(err, "seeking to sample %d", target)
		}
		if !ok {
			return frame.Frame{}, pkgerrors.Wrapf(ErrSeek, "no frame at offset %d for sample %d", off, target)
		}
		f, _, err := d.delimitLocked(off, hdr)
		if err != nil {
			return frame.Frame{}, pkgerrors.Wrapf(err, "seeking to sample %d", target)
		}
		d.recordLocked(&f)
		switch {
		case f.Contains(target):
			return f, nil
		case f.SampleNum > target:
			return frame.Frame{}, pkgerrors.Wrapf(ErrSeek, "frame at offset %d starts at sample %d, past %d", f.Offset, f.SampleNum, target)
		case d.atEndLocked(f.End()):
			return frame.Frame{}, pkgerrors.Wrapf(ErrSeek, "sample %d past the last frame", target)
		}
		off = f.End()
	}
}

// Prefetch asks a streaming source to start fetching the data around ms. It
// does nothing for other sources.
func (d *Demuxer) Prefetch(ms uint64) {
	s, ok := d.h.(iohandler.Streamer)
	if !ok || d.closed.Load() {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.parsed {
		return
	}
	target := d.info.MsToSamples(ms)
	off := d.estimateOffsetLocked(target)
	s.RequestByteRange(off, int64(d.frameBoundLocked()))
}

// estimateOffsetLocked guesses the offset of target from the seek table or
// the average bitrate, without reading.
func (d *Demuxer) estimateOffsetLocked(target uint64) int64 {
	pts := d.seekPoints
	i := sort.Search(len(pts), func(i int) bool { return pts[i].SampleNum > target })
	if i > 0 {
		return d.dataStart + int64(pts[i-1].Offset)
	}
	if d.size > d.dataStart && d.info.NSamples > 0 {
		ratio := float64(target) / float64(d.info.NSamples)
		return d.dataStart + int64(ratio*float64(d.size-d.dataStart))
	}
	return d.dataStart
}
