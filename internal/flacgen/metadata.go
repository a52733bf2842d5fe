package flacgen

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/errutil"

	"github.com/segin/psymp3-sub012/meta"
)

// Signature is the FLAC stream marker.
var Signature = []byte("fLaC")

// WriteMetadata writes the stream marker, the STREAMINFO block of info and the
// given metadata blocks to w. The is-last flag and the length of each block
// header are computed from the block bodies; a block with a nil body is written
// as padding of its declared length.
func WriteMetadata(w io.Writer, info *meta.StreamInfo, blocks ...*meta.Block) error {
	// The bit writer pads and flushes on Close; keep it off w so that w stays
	// usable.
	buf := new(bytes.Buffer)
	enc := &encoder{bw: bitio.NewWriter(buf)}
	if _, err := enc.bw.Write(Signature); err != nil {
		return errutil.Err(err)
	}
	infoHdr := meta.Header{
		IsLast: len(blocks) == 0,
		Type:   meta.TypeStreamInfo,
	}
	if err := enc.writeStreamInfo(infoHdr, info); err != nil {
		return errutil.Err(err)
	}
	for i, block := range blocks {
		var err error
		hdr := block.Header
		hdr.IsLast = i == len(blocks)-1
		switch body := block.Body.(type) {
		case *meta.Application:
			hdr.Type = meta.TypeApplication
			err = enc.writeApplication(hdr, body)
		case *meta.SeekTable:
			hdr.Type = meta.TypeSeekTable
			err = enc.writeSeekTable(hdr, body)
		case *meta.VorbisComment:
			hdr.Type = meta.TypeVorbisComment
			err = enc.writeVorbisComment(hdr, body)
		case *meta.Picture:
			hdr.Type = meta.TypePicture
			err = enc.writePicture(hdr, body)
		case *meta.CueSheet:
			hdr.Type = meta.TypeCueSheet
			err = enc.writeCueSheet(hdr, body)
		case []byte:
			// Raw body, written under the block's own type.
			hdr.Length = int64(len(body))
			if err = enc.writeBlockHeader(hdr); err == nil {
				_, err = enc.bw.Write(body)
			}
		default:
			hdr.Type = meta.TypePadding
			err = enc.writePadding(hdr)
		}
		if err != nil {
			return errutil.Err(err)
		}
	}
	if err := enc.bw.Close(); err != nil {
		return errutil.Err(err)
	}
	if _, err := io.Copy(w, buf); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// An encoder writes metadata blocks.
type encoder struct {
	// Bit writer to the output stream.
	bw *bitio.Writer
}

// writeBlockHeader writes the header of a metadata block.
func (enc *encoder) writeBlockHeader(hdr meta.Header) error {
	// 1 bit: IsLast.
	if err := enc.bw.WriteBool(hdr.IsLast); err != nil {
		return errutil.Err(err)
	}
	// 7 bits: Type.
	if err := enc.bw.WriteBits(uint64(hdr.Type), 7); err != nil {
		return errutil.Err(err)
	}
	// 24 bits: Length.
	if hdr.Length > meta.MaxBlockLength {
		return errutil.Newf("block body of %d bytes exceeds %d", hdr.Length, meta.MaxBlockLength)
	}
	if err := enc.bw.WriteBits(uint64(hdr.Length), 24); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// writeFields writes each value in the given number of bits.
func (enc *encoder) writeFields(fields ...field) error {
	for _, f := range fields {
		if err := enc.bw.WriteBits(f.x&(1<<f.n-1), f.n); err != nil {
			return errutil.Err(err)
		}
	}
	return nil
}

// A field is an unsigned value and its width in bits, at most 63.
type field struct {
	x uint64
	n uint8
}

// writeStreamInfo writes a StreamInfo metadata block.
func (enc *encoder) writeStreamInfo(hdr meta.Header, si *meta.StreamInfo) error {
	hdr.Length = meta.StreamInfoSize
	if err := enc.writeBlockHeader(hdr); err != nil {
		return errutil.Err(err)
	}
	err := enc.writeFields(
		field{uint64(si.BlockSizeMin), 16},
		field{uint64(si.BlockSizeMax), 16},
		field{uint64(si.FrameSizeMin), 24},
		field{uint64(si.FrameSizeMax), 24},
		field{uint64(si.SampleRate), 20},
		// Channel count and sample size are stored minus one.
		field{uint64(si.NChannels - 1), 3},
		field{uint64(si.BitsPerSample - 1), 5},
		field{si.NSamples, 36},
	)
	if err != nil {
		return errutil.Err(err)
	}
	if _, err := enc.bw.Write(si.MD5sum[:]); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// writePadding writes a Padding metadata block.
func (enc *encoder) writePadding(hdr meta.Header) error {
	if err := enc.writeBlockHeader(hdr); err != nil {
		return errutil.Err(err)
	}
	if _, err := enc.bw.Write(make([]byte, hdr.Length)); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// writeApplication writes an Application metadata block.
func (enc *encoder) writeApplication(hdr meta.Header, app *meta.Application) error {
	if len(app.ID) != 4 {
		return errutil.Newf("invalid application ID %q", app.ID)
	}
	hdr.Length = int64(4 + len(app.Data))
	if err := enc.writeBlockHeader(hdr); err != nil {
		return errutil.Err(err)
	}
	if _, err := enc.bw.Write([]byte(app.ID)); err != nil {
		return errutil.Err(err)
	}
	if _, err := enc.bw.Write(app.Data); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// writeSeekTable writes a SeekTable metadata block.
func (enc *encoder) writeSeekTable(hdr meta.Header, table *meta.SeekTable) error {
	hdr.Length = int64(meta.SeekPointSize * len(table.Points))
	if err := enc.writeBlockHeader(hdr); err != nil {
		return errutil.Err(err)
	}
	for _, point := range table.Points {
		if err := binary.Write(enc.bw, binary.BigEndian, point); err != nil {
			return errutil.Err(err)
		}
	}
	return nil
}

// writeVorbisComment writes a VorbisComment metadata block.
func (enc *encoder) writeVorbisComment(hdr meta.Header, comment *meta.VorbisComment) error {
	hdr.Length = int64(4 + len(comment.Vendor) + 4)
	for _, e := range comment.Entries {
		hdr.Length += int64(4 + len(e.Name) + 1 + len(e.Value))
	}
	if err := enc.writeBlockHeader(hdr); err != nil {
		return errutil.Err(err)
	}
	// Lengths are little-endian.
	if err := binary.Write(enc.bw, binary.LittleEndian, uint32(len(comment.Vendor))); err != nil {
		return errutil.Err(err)
	}
	if _, err := enc.bw.Write([]byte(comment.Vendor)); err != nil {
		return errutil.Err(err)
	}
	if err := binary.Write(enc.bw, binary.LittleEndian, uint32(len(comment.Entries))); err != nil {
		return errutil.Err(err)
	}
	for _, e := range comment.Entries {
		vector := []byte(e.Name + "=" + e.Value)
		if err := binary.Write(enc.bw, binary.LittleEndian, uint32(len(vector))); err != nil {
			return errutil.Err(err)
		}
		if _, err := enc.bw.Write(vector); err != nil {
			return errutil.Err(err)
		}
	}
	return nil
}

// writePicture writes a Picture metadata block.
func (enc *encoder) writePicture(hdr meta.Header, pic *meta.Picture) error {
	hdr.Length = int64(4 + 4 + len(pic.MIME) + 4 + len(pic.Desc) + 4*4 + 4 + len(pic.Data))
	if err := enc.writeBlockHeader(hdr); err != nil {
		return errutil.Err(err)
	}
	writeString := func(s []byte) error {
		if err := enc.bw.WriteBits(uint64(len(s)), 32); err != nil {
			return err
		}
		_, err := enc.bw.Write(s)
		return err
	}
	if err := enc.bw.WriteBits(uint64(pic.Type), 32); err != nil {
		return errutil.Err(err)
	}
	if err := writeString([]byte(pic.MIME)); err != nil {
		return errutil.Err(err)
	}
	if err := writeString([]byte(pic.Desc)); err != nil {
		return errutil.Err(err)
	}
	for _, x := range []uint32{pic.Width, pic.Height, pic.ColorDepth, pic.ColorCount} {
		if err := enc.bw.WriteBits(uint64(x), 32); err != nil {
			return errutil.Err(err)
		}
	}
	if err := writeString(pic.Data); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// writeCueSheet writes a CueSheet metadata block.
func (enc *encoder) writeCueSheet(hdr meta.Header, cs *meta.CueSheet) error {
	hdr.Length = 128 + 8 + 1 + 258 + 1
	for _, track := range cs.Tracks {
		hdr.Length += 8 + 1 + 12 + 1 + 13 + 1 + int64(12*len(track.Indicies))
	}
	if err := enc.writeBlockHeader(hdr); err != nil {
		return errutil.Err(err)
	}
	mcn := make([]byte, 128)
	copy(mcn, cs.MCN)
	if _, err := enc.bw.Write(mcn); err != nil {
		return errutil.Err(err)
	}
	if err := enc.bw.WriteBits(cs.NLeadInSamples, 64); err != nil {
		return errutil.Err(err)
	}
	if err := enc.bw.WriteBool(cs.IsCompactDisc); err != nil {
		return errutil.Err(err)
	}
	// 7 bits and 258 bytes: reserved.
	if err := enc.bw.WriteBits(0, 7); err != nil {
		return errutil.Err(err)
	}
	if _, err := enc.bw.Write(make([]byte, 258)); err != nil {
		return errutil.Err(err)
	}
	if err := enc.bw.WriteBits(uint64(len(cs.Tracks)), 8); err != nil {
		return errutil.Err(err)
	}
	for _, track := range cs.Tracks {
		if err := enc.bw.WriteBits(track.Offset, 64); err != nil {
			return errutil.Err(err)
		}
		if err := enc.bw.WriteBits(uint64(track.Num), 8); err != nil {
			return errutil.Err(err)
		}
		isrc := make([]byte, 12)
		copy(isrc, track.ISRC)
		if _, err := enc.bw.Write(isrc); err != nil {
			return errutil.Err(err)
		}
		// Track type: 0 for audio.
		if err := enc.bw.WriteBool(!track.IsAudio); err != nil {
			return errutil.Err(err)
		}
		if err := enc.bw.WriteBool(track.HasPreEmphasis); err != nil {
			return errutil.Err(err)
		}
		// 6 bits and 13 bytes: reserved.
		if err := enc.bw.WriteBits(0, 6); err != nil {
			return errutil.Err(err)
		}
		if _, err := enc.bw.Write(make([]byte, 13)); err != nil {
			return errutil.Err(err)
		}
		if err := enc.bw.WriteBits(uint64(len(track.Indicies)), 8); err != nil {
			return errutil.Err(err)
		}
		for _, index := range track.Indicies {
			if err := enc.bw.WriteBits(index.Offset, 64); err != nil {
				return errutil.Err(err)
			}
			if err := enc.bw.WriteBits(uint64(index.Num), 8); err != nil {
				return errutil.Err(err)
			}
			// 3 bytes: reserved.
			if err := enc.bw.WriteBits(0, 24); err != nil {
				return errutil.Err(err)
			}
		}
	}
	return nil
}
