package frame

import (
	"errors"
	"io"

	"github.com/mewkiz/pkg/hashutil/crc8"
	pkgerrors "github.com/pkg/errors"

	"github.com/segin/psymp3-sub012/internal/bits"
)

// Errors returned by ParseHeader.
var (
	// ErrNoSync is returned when the data does not start with a frame sync
	// code.
	ErrNoSync = errors.New("frame: no sync code")
	// ErrReserved is returned for reserved or forbidden header bit patterns.
	ErrReserved = errors.New("frame: reserved bit pattern in header")
	// ErrTruncated is returned when the data ends before the header does.
	ErrTruncated = errors.New("frame: header truncated")
	// ErrCRC is returned when the header CRC-8 does not match.
	ErrCRC = errors.New("frame: header CRC-8 mismatch")
)

// Sync code for frame headers. Bit representation: 11111111111110.
const SyncCode = 0x3FFE

// MinHeaderSize and MaxHeaderSize bound the size in bytes of a frame header,
// including its CRC-8.
const (
	MinHeaderSize = 6
	MaxHeaderSize = 16
)

// A Header contains the basic properties of an audio frame, such as its sample
// rate and channel count. To facilitate random access decoding each frame
// header starts with a sync-code. This allows the decoder to synchronize and
// locate the start of a frame header.
//
// ref: https://www.rfc-editor.org/rfc/rfc9639.html#name-frame-header
type Header struct {
	// Blocking strategy:
	//    false: fixed-blocksize stream; Num is the frame number.
	//    true:  variable-blocksize stream; Num is the sample number.
	HasVariableBlockSize bool
	// Block size in inter-channel samples, i.e. the number of samples in each
	// subframe; between 1 and 65536.
	BlockSize uint32
	// Sample rate in Hz; 0 if it is to be taken from STREAMINFO.
	SampleRate uint32
	// Channel order specifies the order in which channels are stored in the
	// frame.
	ChannelOrder ChannelOrder
	// Sample size in bits-per-sample; 0 if it is to be taken from STREAMINFO.
	BitsPerSample uint8
	// Frame number or sample number of the first sample in the frame.
	Num uint64
	// CRC-8 of the header.
	CRC8 uint8
	// Size of the header in bytes, including the CRC-8.
	Size int
}

// SampleNumber returns the number of the first sample in the frame. For fixed
// blocksize streams the frame number is scaled by blockSize, the block size
// shared by every frame but the last.
func (hdr *Header) SampleNumber(blockSize uint32) uint64 {
	if hdr.HasVariableBlockSize {
		return hdr.Num
	}
	return hdr.Num * uint64(blockSize)
}

// IsSync reports whether a frame sync code starts at p[i]. The sync code is
// followed by a reserved bit that is not part of the test.
func IsSync(p []byte, i int) bool {
	return i+1 < len(p) && p[i] == 0xFF && p[i+1]&0xFC == 0xF8
}

// ParseHeader parses the frame header at the start of p and verifies its
// CRC-8. Values taken from STREAMINFO are left as 0. Reserved codes, including
// a set bit right after the sync code, fail with ErrReserved.
//
// Frame header format (pseudo code):
//
//	type FRAME_HEADER struct {
//	   sync_code               uint14
//	   _                       uint1
//	   has_variable_block_size bool
//	   block_size_spec         uint4
//	   sample_rate_spec        uint4
//	   channel_assignment      uint4
//	   sample_size_spec        uint3
//	   _                       uint1
//	   if has_variable_block_size {
//	      // "UTF-8" coded int, from 1 to 7 bytes.
//	      sample_num           uint36
//	   } else {
//	      // "UTF-8" coded int, from 1 to 6 bytes.
//	      frame_num            uint31
//	   }
//	   switch block_size_spec {
//	   case 0110:
//	      block_size           uint8  // block_size-1
//	   case 0111:
//	      block_size           uint16 // block_size-1
//	   }
//	   switch sample_rate_spec {
//	   case 1100:
//	      sample_rate          uint8  // sample rate in kHz.
//	   case 1101:
//	      sample_rate          uint16 // sample rate in Hz.
//	   case 1110:
//	      sample_rate          uint16 // sample rate in daHz (tens of Hz).
//	   }
//	   crc8                    uint8
//	}
func ParseHeader(p []byte) (hdr Header, err error) {
	if len(p) < 2 {
		return Header{}, ErrTruncated
	}
	if !IsSync(p, 0) {
		return Header{}, ErrNoSync
	}
	br := bits.NewReader(p)
	defer func() {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncated
		}
	}()
	// Sync code and reserved bit (checked by IsSync and below). A set reserved
	// bit rejects the header; the trailing one in the sample size byte does
	// not.
	x, err := br.Read(32)
	if err != nil {
		return Header{}, err
	}
	if x&0x00020000 != 0 {
		return Header{}, pkgerrors.Wrap(ErrReserved, "frame.ParseHeader: reserved bit after sync code")
	}
	hdr.HasVariableBlockSize = x&0x00010000 != 0
	blockSizeSpec := x >> 12 & 0xF
	sampleRateSpec := x >> 8 & 0xF
	channels := x >> 4 & 0xF
	sampleSizeSpec := x >> 1 & 0x7

	// The trailing reserved bit is ignored.

	// Channel assignment.
	//    0000-0111: (number of independent channels)-1.
	//    1000: left/side stereo:  left, side (difference)
	//    1001: side/right stereo: side (difference), right
	//    1010: mid/side stereo:   mid (average), side (difference)
	//    1011-1111: reserved
	if channels > uint64(ChannelMidSide) {
		return Header{}, pkgerrors.Wrapf(ErrReserved, "frame.ParseHeader: channel assignment %04b", channels)
	}
	hdr.ChannelOrder = ChannelOrder(channels)

	// Sample size.
	//    000: get from STREAMINFO metadata block.
	//    001: 8 bits per sample.
	//    010: 12 bits per sample.
	//    011: reserved.
	//    100: 16 bits per sample.
	//    101: 20 bits per sample.
	//    110: 24 bits per sample.
	//    111: 32 bits per sample.
	switch sampleSizeSpec {
	case 3:
		return Header{}, pkgerrors.Wrap(ErrReserved, "frame.ParseHeader: sample size 011")
	default:
		hdr.BitsPerSample = sampleSizes[sampleSizeSpec]
	}

	// Sample rate 1111 is invalid, to prevent sync-fooling strings of 1s.
	if sampleRateSpec == 0xF {
		return Header{}, pkgerrors.Wrap(ErrReserved, "frame.ParseHeader: sample rate 1111")
	}
	if blockSizeSpec == 0 {
		return Header{}, pkgerrors.Wrap(ErrReserved, "frame.ParseHeader: block size 0000")
	}

	// "UTF-8" coded sample number or frame number.
	hdr.Num, err = br.ReadUTF8()
	if err != nil {
		if errors.Is(err, bits.ErrUTF8) {
			return Header{}, pkgerrors.Wrap(ErrReserved, "frame.ParseHeader: invalid coded number")
		}
		return Header{}, err
	}
	if !hdr.HasVariableBlockSize && hdr.Num >= 1<<31 {
		return Header{}, pkgerrors.Wrapf(ErrReserved, "frame.ParseHeader: frame number %d exceeds 31 bits", hdr.Num)
	}

	// Block size.
	//    0000: reserved.
	//    0001: 192 samples.
	//    0010-0101: 576 * (2^(n-2)) samples, i.e. 576/1152/2304/4608.
	//    0110: get 8 bit (blocksize-1) from end of header.
	//    0111: get 16 bit (blocksize-1) from end of header.
	//    1000-1111: 256 * (2^(n-8)) samples, i.e. 256/512/1024/2048/4096/8192/
	//               16384/32768.
	switch {
	case blockSizeSpec == 1:
		hdr.BlockSize = 192
	case blockSizeSpec >= 2 && blockSizeSpec <= 5:
		hdr.BlockSize = 576 << (blockSizeSpec - 2)
	case blockSizeSpec == 6:
		x, err := br.Read(8)
		if err != nil {
			return Header{}, err
		}
		hdr.BlockSize = uint32(x) + 1
	case blockSizeSpec == 7:
		x, err := br.Read(16)
		if err != nil {
			return Header{}, err
		}
		hdr.BlockSize = uint32(x) + 1
	default:
		hdr.BlockSize = 256 << (blockSizeSpec - 8)
	}

	// Sample rate.
	//    0000: get from STREAMINFO metadata block.
	//    0001-1011: common sample rates, see sampleRates.
	//    1100: get 8 bit sample rate (in kHz) from end of header.
	//    1101: get 16 bit sample rate (in Hz) from end of header.
	//    1110: get 16 bit sample rate (in tens of Hz) from end of header.
	switch sampleRateSpec {
	case 12:
		x, err := br.Read(8)
		if err != nil {
			return Header{}, err
		}
		hdr.SampleRate = uint32(x) * 1000
	case 13:
		x, err := br.Read(16)
		if err != nil {
			return Header{}, err
		}
		hdr.SampleRate = uint32(x)
	case 14:
		x, err := br.Read(16)
		if err != nil {
			return Header{}, err
		}
		hdr.SampleRate = uint32(x) * 10
	default:
		hdr.SampleRate = sampleRates[sampleRateSpec]
	}

	// CRC-8 of everything before it.
	n := int(br.BytePos())
	crc, err := br.Read(8)
	if err != nil {
		return Header{}, err
	}
	hdr.CRC8 = uint8(crc)
	hdr.Size = n + 1
	if got := crc8.ChecksumATM(p[:n]); got != hdr.CRC8 {
		return Header{}, pkgerrors.Wrapf(ErrCRC, "frame.ParseHeader: expected 0x%02X, got 0x%02X", hdr.CRC8, got)
	}
	return hdr, nil
}

// sampleSizes maps sample size codes to bits-per-sample; 0 for STREAMINFO and
// reserved codes.
var sampleSizes = [8]uint8{0, 8, 12, 0, 16, 20, 24, 32}

// sampleRates maps sample rate codes 0000-1011 to Hz; 0 for STREAMINFO.
var sampleRates = [16]uint32{
	0, 88200, 176400, 192000, 8000, 16000, 22050, 24000, 32000, 44100, 48000, 96000,
}

// ChannelOrder specifies the order in which channels are stored.
type ChannelOrder uint8

// Channel assignment. The following abbreviations are used:
//
//	L:   left
//	R:   right
//	C:   center
//	Lfe: low-frequency effects
//	Ls:  left surround
//	Rs:  right surround
//
// The first 6 channel constants follow the SMPTE/ITU-R channel order:
//
//	L R C Lfe Ls Rs
const (
	ChannelMono       ChannelOrder = iota // 1 channel:  mono.
	ChannelLR                             // 2 channels: left, right
	ChannelLRC                            // 3 channels: left, right, center
	ChannelLRLsRs                         // 4 channels: left, right, left surround, right surround
	ChannelLRCLsRs                        // 5 channels: left, right, center, left surround, right surround
	ChannelLRCLfeLsRs                     // 6 channels: left, right, center, low-frequency effects, left surround, right surround
	Channel7                              // 7 channels: not defined
	Channel8                              // 8 channels: not defined
	ChannelLSide                          // left/side stereo:  left, side (difference)
	ChannelSideR                          // side/right stereo: side (difference), right
	ChannelMidSide                        // mid/side stereo:   mid (average), side (difference)
)

// Count returns the number of channels used by the channel order.
func (order ChannelOrder) Count() int {
	if order >= ChannelLSide {
		return 2
	}
	return int(order) + 1
}

// IsStereoDecorrelated reports whether the channels are stored as a
// left/side, side/right or mid/side pair.
func (order ChannelOrder) IsStereoDecorrelated() bool {
	return order >= ChannelLSide && order <= ChannelMidSide
}
