package flac

import (
	"math"
	"math/bits"

	"github.com/segin/psymp3-sub012/media"
	"github.com/segin/psymp3-sub012/meta"
)

// Streams describes the single audio stream of the container. It returns nil
// before a successful ParseContainer.
func (d *Demuxer) Streams() []media.StreamInfo {
	if d.closed.Load() {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.parsed {
		return nil
	}
	return []media.StreamInfo{d.streamInfoLocked()}
}

func (d *Demuxer) streamInfoLocked() media.StreamInfo {
	si := media.StreamInfo{
		StreamID:        StreamID,
		CodecType:       "audio",
		CodecName:       Name,
		SampleRate:      d.info.SampleRate,
		Channels:        d.info.NChannels,
		BitsPerSample:   d.info.BitsPerSample,
		Bitrate:         d.bitrateLocked(),
		CodecData:       append([]byte(nil), d.rawInfo...),
		DurationSamples: d.info.NSamples,
		DurationMs:      d.info.DurationMs(),
	}
	if d.comment != nil {
		si.Artist, _ = d.comment.Get("ARTIST")
		si.Title, _ = d.comment.Get("TITLE")
		si.Album, _ = d.comment.Get("ALBUM")
	}
	return si
}

// bitrateLocked estimates the average bitrate from the size of the audio data,
// or returns 0 if the size or duration is unknown. Estimates past
// math.MaxUint32 saturate.
func (d *Demuxer) bitrateLocked() uint32 {
	if d.size < 0 || d.info.NSamples == 0 || d.size <= d.dataStart {
		return 0
	}
	hi, lo := bits.Mul64(uint64(d.size-d.dataStart)*8, uint64(d.info.SampleRate))
	if hi >= d.info.NSamples {
		return math.MaxUint32
	}
	rate, _ := bits.Div64(hi, lo, d.info.NSamples)
	if rate > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(rate)
}

// StreamInfo returns a copy of the STREAMINFO block, or nil before a successful
// parse.
func (d *Demuxer) StreamInfo() *meta.StreamInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.parsed {
		return nil
	}
	info := *d.info
	return &info
}

// SeekTable returns the seek table as stored, placeholders included, or nil.
func (d *Demuxer) SeekTable() *meta.SeekTable {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.seekTable == nil {
		return nil
	}
	return &meta.SeekTable{Points: append([]meta.SeekPoint(nil), d.seekTable.Points...)}
}

// VorbisComment returns the Vorbis comment block, or nil.
func (d *Demuxer) VorbisComment() *meta.VorbisComment {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.comment == nil {
		return nil
	}
	vc := *d.comment
	vc.Entries = append([]meta.VorbisEntry(nil), d.comment.Entries...)
	return &vc
}

// Pictures returns the embedded pictures. Picture data is shared with the
// demuxer and must not be modified.
func (d *Demuxer) Pictures() []meta.Picture {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pics := make([]meta.Picture, len(d.pictures))
	for i, p := range d.pictures {
		pics[i] = *p
	}
	return pics
}

// CueSheet returns the cue sheet, or nil.
func (d *Demuxer) CueSheet() *meta.CueSheet {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.cueSheet == nil {
		return nil
	}
	cs := *d.cueSheet
	return &cs
}

// Applications returns the application blocks.
func (d *Demuxer) Applications() []meta.Application {
	d.mu.RLock()
	defer d.mu.RUnlock()
	apps := make([]meta.Application, len(d.apps))
	for i, app := range d.apps {
		apps[i] = *app
	}
	return apps
}

// Blocks returns the headers and offsets of all metadata blocks, in stream
// order.
func (d *Demuxer) Blocks() []meta.Block {
	d.mu.RLock()
	defer d.mu.RUnlock()
	blocks := make([]meta.Block, len(d.blocks))
	for i, b := range d.blocks {
		blocks[i] = meta.Block{Header: b.Header, Offset: b.Offset}
	}
	return blocks
}

// DataStart returns the offset of the first audio frame.
func (d *Demuxer) DataStart() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dataStart
}

// Duration returns the stream duration in milliseconds, or 0 if unknown.
func (d *Demuxer) Duration() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.parsed {
		return 0
	}
	return d.info.DurationMs()
}

// Position returns the position of the next sample to be read, in
// milliseconds.
func (d *Demuxer) Position() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.parsed {
		return 0
	}
	return d.info.SamplesToMs(d.sample.Load())
}

// Sample returns the number of the next sample to be read.
func (d *Demuxer) Sample() uint64 {
	return d.sample.Load()
}
