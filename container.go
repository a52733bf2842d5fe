package flac

import (
	"bytes"
	"io"

	pkgerrors "github.com/pkg/errors"

	"github.com/segin/psymp3-sub012/iohandler"
	"github.com/segin/psymp3-sub012/media"
	"github.com/segin/psymp3-sub012/meta"
)

// ID3v2 tag header size, and the footer flag that adds a footer of the same
// size.
const (
	id3v2HeaderSize = 10
	id3v2FooterFlag = 0x10
)

// id3v2Size returns the total size of the ID3v2 tag at the start of p.
//
//	"ID3" major minor flags size(4 x 7 bits, synchsafe)
func id3v2Size(p []byte) (int, bool) {
	if len(p) < id3v2HeaderSize || !bytes.HasPrefix(p, []byte("ID3")) {
		return 0, false
	}
	var size int
	for _, b := range p[6:10] {
		if b&0x80 != 0 {
			return 0, false
		}
		size = size<<7 | int(b)
	}
	size += id3v2HeaderSize
	if p[5]&id3v2FooterFlag != 0 {
		size += id3v2HeaderSize
	}
	return size, true
}

// ParseContainer reads the stream marker and all metadata blocks. It is
// idempotent: once it succeeded further calls return nil, and once it failed
// they return the same error.
func (d *Demuxer) ParseContainer() error {
	if d.closed.Load() {
		return d.fail(media.CategoryState, ErrClosed)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.parsed {
		return nil
	}
	if d.parseErr != nil {
		return d.parseErr
	}
	if err := d.parseContainerLocked(); err != nil {
		d.resetMetadataLocked()
		d.parseErr = err
		return err
	}
	d.posMu.Lock()
	d.offset = d.dataStart
	d.eof = false
	d.sequential = true
	d.posMu.Unlock()
	d.sample.Store(0)
	d.parsed = true
	d.log.Debug("parsed container", "sampleRate", d.info.SampleRate, "channels", d.info.NChannels, "bitsPerSample", d.info.BitsPerSample, "samples", d.info.NSamples, "dataStart", d.dataStart)
	return nil
}

// resetMetadataLocked drops everything a failed parse may have stored.
func (d *Demuxer) resetMetadataLocked() {
	d.info = nil
	d.rawInfo = nil
	d.blocks = nil
	d.seekTable = nil
	d.seekPoints = nil
	d.comment = nil
	d.pictures = nil
	d.cueSheet = nil
	d.apps = nil
	d.dataStart = 0
}

// readAt reads len(p) bytes at off directly from the source.
func (d *Demuxer) readAt(p []byte, off int64) (int, error) {
	n, err := iohandler.ReadFullAt(d.h, p, off, d.conf.WaitTimeout)
	d.counters.bytesRead.Add(uint64(n))
	return n, err
}

// readExact reads len(p) bytes at off; a short read is a truncated container.
func (d *Demuxer) readExact(p []byte, off int64, what string) error {
	_, err := d.readAt(p, off)
	switch {
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		return d.fail(media.CategoryFormat, pkgerrors.Wrapf(ErrBlockBounds, "%s at offset %d truncated", what, off))
	case err != nil:
		return d.fail(media.CategoryIO, pkgerrors.Wrapf(err, "reading %s at offset %d", what, off))
	}
	return nil
}

func (d *Demuxer) parseContainerLocked() error {
	d.size = d.h.Size()
	var off int64

	if d.conf.SkipID3v2 {
		var tag [id3v2HeaderSize]byte
		if n, _ := d.readAt(tag[:], 0); n == len(tag) {
			if size, ok := id3v2Size(tag[:]); ok {
				d.log.Debug("skipping ID3v2 tag", "size", size)
				off = int64(size)
			}
		}
	}

	// Stream marker.
	var marker [4]byte
	if n, err := d.readAt(marker[:], off); err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return d.fail(media.CategoryIO, pkgerrors.Wrap(err, "reading stream marker"))
	} else if n < len(marker) || !bytes.Equal(marker[:], Signature) {
		return d.fail(media.CategoryFormat, pkgerrors.Wrapf(ErrNoMarker, "got %q", marker[:n]))
	}
	off += int64(len(marker))

	// Metadata blocks.
	for first := true; ; first = false {
		var p [meta.HeaderSize]byte
		if err := d.readExact(p[:], off, "metadata block header"); err != nil {
			return err
		}
		hdr, err := meta.ParseHeader(p[:])
		if err != nil {
			return d.fail(media.CategoryFormat, pkgerrors.Wrapf(err, "metadata block at offset %d", off))
		}
		if first && hdr.Type != meta.TypeStreamInfo {
			return d.fail(media.CategoryFormat, pkgerrors.Wrapf(ErrNoStreamInfo, "got %v", hdr.Type))
		}
		if !first && hdr.Type == meta.TypeStreamInfo {
			return d.fail(media.CategoryFormat, pkgerrors.Errorf("flac: duplicate STREAMINFO block at offset %d", off))
		}
		blockOff := off
		off += meta.HeaderSize
		if d.size >= 0 && off+hdr.Length > d.size {
			return d.fail(media.CategoryFormat, pkgerrors.Wrapf(ErrBlockBounds, "%v block at offset %d declares %d bytes, %d remain", hdr.Type, blockOff, hdr.Length, d.size-off))
		}
		if err := d.parseBlockLocked(hdr, blockOff); err != nil {
			return err
		}
		off += hdr.Length
		if hdr.IsLast {
			break
		}
	}
	d.dataStart = off
	if d.info == nil {
		return d.fail(media.CategoryFormat, ErrNoStreamInfo)
	}
	return nil
}

// parseBlockLocked reads and stores the body of the metadata block whose
// header at off is hdr.
func (d *Demuxer) parseBlockLocked(hdr meta.Header, off int64) error {
	block := &meta.Block{Header: hdr, Offset: off}
	d.blocks = append(d.blocks, block)
	skip := hdr.Type.IsReserved() || (hdr.Type == meta.TypePadding && !d.conf.Limits.StrictPadding)
	if skip {
		d.log.Debug("skipping metadata block", "type", hdr.Type.String(), "length", hdr.Length)
		return nil
	}
	body := make([]byte, hdr.Length)
	if err := d.readExact(body, off+meta.HeaderSize, hdr.Type.String()+" block"); err != nil {
		return err
	}
	v, err := meta.ParseBody(hdr, body, *d.conf.Limits)
	if err != nil {
		// Limit violations are malformed containers too.
		return d.fail(media.CategoryFormat, pkgerrors.Wrapf(err, "%v block at offset %d", hdr.Type, off))
	}
	block.Body = v
	switch b := v.(type) {
	case *meta.StreamInfo:
		d.info = b
		d.rawInfo = body
	case *meta.SeekTable:
		d.seekTable = b
		d.seekPoints = b.SeekPoints()
		if dropped := len(b.Points) - len(d.seekPoints); dropped > 0 {
			d.log.Debug("seek table cleaned", "points", len(b.Points), "dropped", dropped)
		}
	case *meta.VorbisComment:
		d.comment = b
	case *meta.Picture:
		d.pictures = append(d.pictures, b)
	case *meta.CueSheet:
		d.cueSheet = b
	case *meta.Application:
		d.apps = append(d.apps, b)
	}
	return nil
}
