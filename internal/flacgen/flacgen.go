// Package flacgen writes synthetic FLAC streams with known frame layout, for
// testing demuxers and decoders.
package flacgen

import (
	"bytes"
	"crypto/md5"
	"io"

	"github.com/mewkiz/pkg/errutil"

	"github.com/segin/psymp3-sub012/frame"
	"github.com/segin/psymp3-sub012/meta"
)

// Options describes a synthetic stream.
type Options struct {
	SampleRate    uint32
	NChannels     uint8
	BitsPerSample uint8
	// Total number of inter-channel samples.
	NSamples uint64
	// Samples per frame; the last frame may be shorter.
	BlockSize uint16
	// Emit variable-blocksize headers carrying sample numbers. Block sizes
	// then alternate between BlockSize and BlockSize/2.
	Variable bool
	// Samples between seek points; 0 omits the seek table.
	SeekInterval uint64
	// Number of placeholder seek points appended to the table.
	Placeholders int
	// Optional Vorbis comment block.
	VorbisComment *meta.VorbisComment
	// Extra metadata blocks, written after the others.
	Blocks []*meta.Block
	// Leave the STREAMINFO frame size bounds and total sample count unset.
	OmitFrameSize bool
	OmitTotal     bool
	// Signal returns the sample of channel ch at sample number n; a default
	// ramp is used when nil.
	Signal func(ch int, n uint64) int32
}

// A Stream is a generated FLAC stream.
type Stream struct {
	// Encoded stream.
	Data []byte
	// Offset of the first audio frame.
	DataStart int64
	// Frames in stream order, with absolute offsets.
	Frames []frame.Frame
	// STREAMINFO as written.
	Info meta.StreamInfo
	// Decoded samples per channel.
	Samples [][]int32
}

// Generate encodes a stream according to opts.
func Generate(opts Options) (*Stream, error) {
	if opts.NChannels < 1 || opts.NChannels > 8 {
		return nil, errutil.Newf("invalid channel count %d", opts.NChannels)
	}
	if opts.BlockSize < meta.MinBlockSize {
		return nil, errutil.Newf("invalid block size %d", opts.BlockSize)
	}
	if opts.BitsPerSample < 4 || opts.BitsPerSample > 32 {
		return nil, errutil.Newf("invalid sample size %d", opts.BitsPerSample)
	}
	signal := opts.Signal
	if signal == nil {
		signal = Ramp(opts.BitsPerSample)
	}

	s := &Stream{Samples: make([][]int32, opts.NChannels)}
	var (
		audio          bytes.Buffer
		minSize        uint32
		maxSize        uint32
		minBS, maxBS   uint16
		md5sum         = md5.New()
		sampleNum      uint64
		frameNum       uint64
		seekPoints     []meta.SeekPoint
		nextSeekSample uint64
	)
	for sampleNum < opts.NSamples {
		bs := uint64(opts.BlockSize)
		if opts.Variable && frameNum%2 == 1 {
			bs = uint64(opts.BlockSize / 2)
		}
		if rem := opts.NSamples - sampleNum; bs > rem {
			bs = rem
		}
		subframes := make([][]int32, opts.NChannels)
		for ch := range subframes {
			subframes[ch] = make([]int32, bs)
			for i := range subframes[ch] {
				subframes[ch][i] = signal(ch, sampleNum+uint64(i))
			}
			s.Samples[ch] = append(s.Samples[ch], subframes[ch]...)
		}
		hdr := &frame.Header{
			HasVariableBlockSize: opts.Variable,
			SampleRate:           opts.SampleRate,
			ChannelOrder:         frame.ChannelOrder(opts.NChannels - 1),
			BitsPerSample:        opts.BitsPerSample,
			Num:                  frameNum,
		}
		if opts.Variable {
			hdr.Num = sampleNum
		}
		if _, ok := sampleSizeCodes[opts.BitsPerSample]; !ok {
			hdr.BitsPerSample = 0
		}
		if _, ok := sampleRateCodes[opts.SampleRate]; !ok && !encodableRate(opts.SampleRate) {
			hdr.SampleRate = 0
		}
		p, err := EncodeFrame(hdr, subframes, opts.BitsPerSample)
		if err != nil {
			return nil, errutil.Err(err)
		}
		if opts.SeekInterval > 0 && sampleNum >= nextSeekSample {
			seekPoints = append(seekPoints, meta.SeekPoint{
				SampleNum: sampleNum,
				Offset:    uint64(audio.Len()),
				NSamples:  uint16(bs),
			})
			nextSeekSample = sampleNum + opts.SeekInterval
		}
		s.Frames = append(s.Frames, frame.Frame{
			Header:    *hdr,
			Offset:    int64(audio.Len()),
			Size:      len(p),
			SampleNum: sampleNum,
		})
		audio.Write(p)
		writeMD5(md5sum, subframes, opts.BitsPerSample)

		size := uint32(len(p))
		if minSize == 0 || size < minSize {
			minSize = size
		}
		if size > maxSize {
			maxSize = size
		}
		// The last frame does not bound the block size.
		if sampleNum+bs < opts.NSamples || frameNum == 0 {
			if minBS == 0 || uint16(bs) < minBS {
				minBS = uint16(bs)
			}
			if uint16(bs) > maxBS {
				maxBS = uint16(bs)
			}
		}
		sampleNum += bs
		frameNum++
	}
	if minBS == 0 {
		minBS, maxBS = opts.BlockSize, opts.BlockSize
	}
	if minBS < meta.MinBlockSize {
		minBS = meta.MinBlockSize
	}

	s.Info = meta.StreamInfo{
		BlockSizeMin:  minBS,
		BlockSizeMax:  maxBS,
		SampleRate:    opts.SampleRate,
		NChannels:     opts.NChannels,
		BitsPerSample: opts.BitsPerSample,
		NSamples:      opts.NSamples,
	}
	if !opts.Variable {
		s.Info.BlockSizeMin = opts.BlockSize
		s.Info.BlockSizeMax = opts.BlockSize
	}
	if !opts.OmitFrameSize {
		s.Info.FrameSizeMin = minSize
		s.Info.FrameSizeMax = maxSize
	}
	if opts.OmitTotal {
		s.Info.NSamples = 0
	}
	copy(s.Info.MD5sum[:], md5sum.Sum(nil))

	var blocks []*meta.Block
	if opts.SeekInterval > 0 || opts.Placeholders > 0 {
		for i := 0; i < opts.Placeholders; i++ {
			seekPoints = append(seekPoints, meta.SeekPoint{SampleNum: meta.PlaceholderPoint})
		}
		blocks = append(blocks, &meta.Block{Body: &meta.SeekTable{Points: seekPoints}})
	}
	if opts.VorbisComment != nil {
		blocks = append(blocks, &meta.Block{Body: opts.VorbisComment})
	}
	blocks = append(blocks, opts.Blocks...)

	var out bytes.Buffer
	if err := WriteMetadata(&out, &s.Info, blocks...); err != nil {
		return nil, errutil.Err(err)
	}
	s.DataStart = int64(out.Len())
	for i := range s.Frames {
		s.Frames[i].Offset += s.DataStart
	}
	out.Write(audio.Bytes())
	s.Data = out.Bytes()
	return s, nil
}

// encodableRate reports whether rate fits one of the header suffix encodings.
func encodableRate(rate uint32) bool {
	switch {
	case rate <= 255000 && rate%1000 == 0:
		return true
	case rate <= 65535:
		return true
	case rate <= 655350 && rate%10 == 0:
		return true
	}
	return false
}

// Ramp returns a signal that sweeps each channel through a sawtooth within the
// range of bps-bit samples, with a per-channel phase.
func Ramp(bps uint8) func(ch int, n uint64) int32 {
	width := uint64(1) << (bps - 1)
	if bps > 16 {
		width = 1 << 15
	}
	return func(ch int, n uint64) int32 {
		v := (n*7 + uint64(ch)*1013) % (2 * width)
		return int32(int64(v) - int64(width))
	}
}

// writeMD5 feeds the interleaved little-endian samples to h, as the STREAMINFO
// signature is computed.
func writeMD5(h io.Writer, subframes [][]int32, bps uint8) {
	nbytes := (int(bps) + 7) / 8
	buf := make([]byte, 0, len(subframes)*len(subframes[0])*nbytes)
	for i := range subframes[0] {
		for ch := range subframes {
			s := subframes[ch][i]
			for b := 0; b < nbytes; b++ {
				buf = append(buf, byte(s>>(8*b)))
			}
		}
	}
	h.Write(buf)
}
