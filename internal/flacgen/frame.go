package flacgen

import (
	"bytes"

	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/errutil"
	"github.com/mewkiz/pkg/hashutil/crc16"
	"github.com/mewkiz/pkg/hashutil/crc8"

	"github.com/segin/psymp3-sub012/frame"
)

// EncodeFrame returns a complete audio frame: the header described by hdr, one
// subframe per channel holding the given samples, and the CRC-16 footer. The
// block size of hdr is taken from the sample count. Subframes holding a single
// repeated value are stored as constant subframes, all others verbatim. bps is
// the sample size used when hdr.BitsPerSample is 0.
func EncodeFrame(hdr *frame.Header, subframes [][]int32, bps uint8) ([]byte, error) {
	if len(subframes) != hdr.ChannelOrder.Count() {
		return nil, errutil.Newf("channel count mismatch; %v requires %d subframes, got %d", hdr.ChannelOrder, hdr.ChannelOrder.Count(), len(subframes))
	}
	if len(subframes[0]) == 0 {
		return nil, errutil.Newf("empty block")
	}
	hdr.BlockSize = uint32(len(subframes[0]))
	if hdr.BitsPerSample != 0 {
		bps = hdr.BitsPerSample
	}

	buf := new(bytes.Buffer)
	if err := encodeFrameHeader(buf, hdr); err != nil {
		return nil, errutil.Err(err)
	}
	bw := bitio.NewWriter(buf)
	for ch, samples := range subframes {
		if uint32(len(samples)) != hdr.BlockSize {
			return nil, errutil.Newf("subframe %d holds %d samples, expected %d", ch, len(samples), hdr.BlockSize)
		}
		if err := encodeSubframe(bw, samples, bps+sideBits(hdr.ChannelOrder, ch)); err != nil {
			return nil, errutil.Err(err)
		}
	}
	// Zero-pad to a byte boundary.
	if err := bw.Close(); err != nil {
		return nil, errutil.Err(err)
	}
	crc := crc16.ChecksumIBM(buf.Bytes())
	buf.WriteByte(byte(crc >> 8))
	buf.WriteByte(byte(crc))
	return buf.Bytes(), nil
}

// sideBits returns 1 for the side channel of a decorrelated stereo pair, which
// needs one extra bit per sample.
func sideBits(order frame.ChannelOrder, ch int) uint8 {
	switch {
	case order == frame.ChannelLSide && ch == 1,
		order == frame.ChannelSideR && ch == 0,
		order == frame.ChannelMidSide && ch == 1:
		return 1
	}
	return 0
}

// encodeFrameHeader writes the frame header of hdr to buf, followed by its
// CRC-8, and records the header size in hdr.
func encodeFrameHeader(buf *bytes.Buffer, hdr *frame.Header) error {
	start := buf.Len()
	bw := bitio.NewWriter(buf)

	//  Sync code: 11111111111110
	if err := bw.WriteBits(frame.SyncCode, 14); err != nil {
		return errutil.Err(err)
	}
	// Reserved: 0
	if err := bw.WriteBits(0x0, 1); err != nil {
		return errutil.Err(err)
	}
	// Blocking strategy:
	//    0 : fixed-blocksize stream; frame header encodes the frame number
	//    1 : variable-blocksize stream; frame header encodes the sample number
	if err := bw.WriteBool(hdr.HasVariableBlockSize); err != nil {
		return errutil.Err(err)
	}

	// Block size in inter-channel samples:
	//    0001 : 192 samples
	//    0010-0101 : 576 * (2^(n-2)) samples, i.e. 576/1152/2304/4608
	//    0110 : get 8 bit (blocksize-1) from end of header
	//    0111 : get 16 bit (blocksize-1) from end of header
	//    1000-1111 : 256 * (2^(n-8)) samples, i.e. 256/512/1024/2048/4096/8192/16384/32768
	var (
		bits uint64
		// number of bits used to store block size after the frame header.
		nblockSizeSuffixBits uint8
	)
	switch hdr.BlockSize {
	case 192:
		bits = 0x1
	case 576, 1152, 2304, 4608:
		bits = 0x2 + uint64(log2(hdr.BlockSize/576))
	case 256, 512, 1024, 2048, 4096, 8192, 16384, 32768:
		bits = 0x8 + uint64(log2(hdr.BlockSize/256))
	default:
		switch {
		case hdr.BlockSize <= 256:
			bits = 0x6
			nblockSizeSuffixBits = 8
		case hdr.BlockSize <= 65536:
			bits = 0x7
			nblockSizeSuffixBits = 16
		default:
			return errutil.Newf("unable to encode block size %d", hdr.BlockSize)
		}
	}
	if err := bw.WriteBits(bits, 4); err != nil {
		return errutil.Err(err)
	}

	// Sample rate:
	//    0000 : get from STREAMINFO metadata block
	//    0001-1011 : 88.2, 176.4, 192, 8, 16, 22.05, 24, 32, 44.1, 48, 96 kHz
	//    1100 : get 8 bit sample rate (in kHz) from end of header
	//    1101 : get 16 bit sample rate (in Hz) from end of header
	//    1110 : get 16 bit sample rate (in tens of Hz) from end of header
	var (
		sampleRateSuffixBits  uint64
		nsampleRateSuffixBits uint8
	)
	if code, ok := sampleRateCodes[hdr.SampleRate]; ok {
		bits = code
	} else {
		switch {
		case hdr.SampleRate <= 255000 && hdr.SampleRate%1000 == 0:
			bits = 0xC
			sampleRateSuffixBits = uint64(hdr.SampleRate / 1000)
			nsampleRateSuffixBits = 8
		case hdr.SampleRate <= 65535:
			bits = 0xD
			sampleRateSuffixBits = uint64(hdr.SampleRate)
			nsampleRateSuffixBits = 16
		case hdr.SampleRate <= 655350 && hdr.SampleRate%10 == 0:
			bits = 0xE
			sampleRateSuffixBits = uint64(hdr.SampleRate / 10)
			nsampleRateSuffixBits = 16
		default:
			return errutil.Newf("unable to encode sample rate %v", hdr.SampleRate)
		}
	}
	if err := bw.WriteBits(bits, 4); err != nil {
		return errutil.Err(err)
	}

	// Channel assignment.
	if hdr.ChannelOrder > frame.ChannelMidSide {
		return errutil.Newf("unable to encode channel assignment %d", hdr.ChannelOrder)
	}
	if err := bw.WriteBits(uint64(hdr.ChannelOrder), 4); err != nil {
		return errutil.Err(err)
	}

	// Sample size in bits:
	//    000 : get from STREAMINFO metadata block
	//    001 : 8 bits per sample
	//    010 : 12 bits per sample
	//    100 : 16 bits per sample
	//    101 : 20 bits per sample
	//    110 : 24 bits per sample
	//    111 : 32 bits per sample
	code, ok := sampleSizeCodes[hdr.BitsPerSample]
	if !ok {
		return errutil.Newf("unable to encode sample size %v", hdr.BitsPerSample)
	}
	if err := bw.WriteBits(code, 3); err != nil {
		return errutil.Err(err)
	}
	// Reserved: 0
	if err := bw.WriteBits(0x0, 1); err != nil {
		return errutil.Err(err)
	}

	//    if (variable blocksize)
	//       <8-56>:"UTF-8" coded sample number (decoded number is 36 bits)
	//    else
	//       <8-48>:"UTF-8" coded frame number (decoded number is 31 bits)
	if err := WriteUTF8(bw, hdr.Num); err != nil {
		return errutil.Err(err)
	}
	if nblockSizeSuffixBits > 0 {
		if err := bw.WriteBits(uint64(hdr.BlockSize-1), nblockSizeSuffixBits); err != nil {
			return errutil.Err(err)
		}
	}
	if nsampleRateSuffixBits > 0 {
		if err := bw.WriteBits(sampleRateSuffixBits, nsampleRateSuffixBits); err != nil {
			return errutil.Err(err)
		}
	}
	if err := bw.Close(); err != nil {
		return errutil.Err(err)
	}

	// CRC-8 (polynomial = x^8 + x^2 + x^1 + x^0, initialized with 0) of
	// everything before the crc, including the sync code.
	h := crc8.NewATM()
	h.Write(buf.Bytes()[start:])
	hdr.CRC8 = h.Sum8()
	buf.WriteByte(hdr.CRC8)
	hdr.Size = buf.Len() - start
	return nil
}

// sampleRateCodes maps common sample rates to their 4-bit codes.
var sampleRateCodes = map[uint32]uint64{
	0:      0x0,
	88200:  0x1,
	176400: 0x2,
	192000: 0x3,
	8000:   0x4,
	16000:  0x5,
	22050:  0x6,
	24000:  0x7,
	32000:  0x8,
	44100:  0x9,
	48000:  0xA,
	96000:  0xB,
}

// sampleSizeCodes maps sample sizes to their 3-bit codes.
var sampleSizeCodes = map[uint8]uint64{
	0:  0x0,
	8:  0x1,
	12: 0x2,
	16: 0x4,
	20: 0x5,
	24: 0x6,
	32: 0x7,
}

// log2 returns the base 2 logarithm of the power of two x.
func log2(x uint32) int {
	n := 0
	for ; x > 1; x >>= 1 {
		n++
	}
	return n
}

// encodeSubframe writes a subframe holding samples of bps bits each.
func encodeSubframe(bw *bitio.Writer, samples []int32, bps uint8) error {
	constant := true
	for _, s := range samples[1:] {
		if s != samples[0] {
			constant = false
			break
		}
	}
	// Zero bit padding, to prevent sync-fooling string of 1s.
	if err := bw.WriteBits(0x0, 1); err != nil {
		return errutil.Err(err)
	}
	// Subframe type:
	//     000000 : SUBFRAME_CONSTANT
	//     000001 : SUBFRAME_VERBATIM
	typ := uint64(0x01)
	if constant {
		typ = 0x00
	}
	if err := bw.WriteBits(typ, 6); err != nil {
		return errutil.Err(err)
	}
	// Wasted bits-per-sample flag.
	if err := bw.WriteBits(0x0, 1); err != nil {
		return errutil.Err(err)
	}
	if constant {
		samples = samples[:1]
	}
	mask := uint64(1)<<bps - 1
	for _, s := range samples {
		if err := bw.WriteBits(uint64(int64(s))&mask, bps); err != nil {
			return errutil.Err(err)
		}
	}
	return nil
}
