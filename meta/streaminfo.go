package meta

import (
	"math"
	mathbits "math/bits"

	pkgerrors "github.com/pkg/errors"

	"github.com/segin/psymp3-sub012/internal/bits"
)

// StreamInfoSize is the size in bytes of a STREAMINFO block body.
const StreamInfoSize = 34

// MinBlockSize is the smallest block size allowed in STREAMINFO.
const MinBlockSize = 16

// StreamInfo contains the basic properties of a FLAC audio stream, such as its
// sample rate and channel count. It must be present as the first metadata block
// of a FLAC stream.
//
// ref: https://www.rfc-editor.org/rfc/rfc9639.html#name-streaminfo
type StreamInfo struct {
	// Minimum block size (in samples) used in the stream; between 16 and 65535
	// samples.
	BlockSizeMin uint16
	// Maximum block size (in samples) used in the stream; between 16 and 65535
	// samples.
	BlockSizeMax uint16
	// Minimum frame size in bytes; a 0 value implies unknown.
	FrameSizeMin uint32
	// Maximum frame size in bytes; a 0 value implies unknown.
	FrameSizeMax uint32
	// Sample rate in Hz; between 1 and 655350 Hz.
	SampleRate uint32
	// Number of channels; between 1 and 8 channels.
	NChannels uint8
	// Sample size in bits-per-sample; between 4 and 32 bits.
	BitsPerSample uint8
	// Total number of inter-channel samples in the stream. One second of 44.1
	// KHz audio will have 44100 samples regardless of the number of channels. A
	// 0 value implies unknown.
	NSamples uint64
	// MD5 checksum of the unencoded audio data.
	MD5sum [16]uint8
}

// ParseStreamInfo parses the body of a STREAMINFO metadata block.
//
// Stream info format (pseudo code):
//
//	type METADATA_BLOCK_STREAMINFO struct {
//	   block_size_min  uint16
//	   block_size_max  uint16
//	   frame_size_min  uint24
//	   frame_size_max  uint24
//	   sample_rate     uint20
//	   channel_count   uint3 // (number of channels)-1.
//	   bits_per_sample uint5 // (bits-per-sample)-1.
//	   sample_count    uint36
//	   md5sum          [16]byte
//	}
func ParseStreamInfo(body []byte) (*StreamInfo, error) {
	if len(body) != StreamInfoSize {
		return nil, pkgerrors.Wrapf(ErrInvalidStreamInfo, "meta.ParseStreamInfo: body is %d bytes, expected %d", len(body), StreamInfoSize)
	}
	br := bits.NewReader(body)
	// Every field read below is in range of the 34 byte body.
	read := func(n uint) uint64 {
		x, _ := br.Read(n)
		return x
	}
	si := &StreamInfo{
		BlockSizeMin:  uint16(read(16)),
		BlockSizeMax:  uint16(read(16)),
		FrameSizeMin:  uint32(read(24)),
		FrameSizeMax:  uint32(read(24)),
		SampleRate:    uint32(read(20)),
		NChannels:     uint8(read(3)) + 1,
		BitsPerSample: uint8(read(5)) + 1,
		NSamples:      read(36),
	}
	if err := br.ReadFull(si.MD5sum[:]); err != nil {
		return nil, unexpected(err)
	}
	if err := si.Validate(); err != nil {
		return nil, err
	}
	return si, nil
}

// Validate checks the stream parameters for values no valid stream can have.
func (si *StreamInfo) Validate() error {
	switch {
	case si.SampleRate == 0:
		return pkgerrors.Wrap(ErrInvalidStreamInfo, "sample rate is 0")
	case si.NChannels == 0:
		return pkgerrors.Wrap(ErrInvalidStreamInfo, "channel count is 0")
	case si.BlockSizeMin < MinBlockSize:
		return pkgerrors.Wrapf(ErrInvalidStreamInfo, "minimum block size %d below %d", si.BlockSizeMin, MinBlockSize)
	case si.BlockSizeMin > si.BlockSizeMax:
		return pkgerrors.Wrapf(ErrInvalidStreamInfo, "minimum block size %d above maximum %d", si.BlockSizeMin, si.BlockSizeMax)
	}
	return nil
}

// SamplesToMs converts a sample count to milliseconds, rounding down.
func (si *StreamInfo) SamplesToMs(n uint64) uint64 {
	if si.SampleRate == 0 {
		return 0
	}
	return mulDiv(n, 1000, uint64(si.SampleRate))
}

// MsToSamples converts milliseconds to a sample count, rounding down. Results
// that do not fit in 64 bits saturate at math.MaxUint64.
func (si *StreamInfo) MsToSamples(ms uint64) uint64 {
	return mulDiv(ms, uint64(si.SampleRate), 1000)
}

// mulDiv returns x*y/z computed with a 128-bit product, saturating at
// math.MaxUint64. z must not be 0.
func mulDiv(x, y, z uint64) uint64 {
	hi, lo := mathbits.Mul64(x, y)
	if hi >= z {
		return math.MaxUint64
	}
	q, _ := mathbits.Div64(hi, lo, z)
	return q
}

// DurationMs returns the stream duration in milliseconds, or 0 if the total
// sample count is unknown.
func (si *StreamInfo) DurationMs() uint64 {
	return si.SamplesToMs(si.NSamples)
}

// IsFixedBlockSize reports whether all frames but the last share one block
// size.
func (si *StreamInfo) IsFixedBlockSize() bool {
	return si.BlockSizeMin == si.BlockSizeMax
}
