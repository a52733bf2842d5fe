package codec

import (
	"bytes"

	"github.com/go-audio/audio"
	mframe "github.com/mewkiz/flac/frame"
	"github.com/mewkiz/pkg/hashutil/crc16"
	"github.com/mewkiz/pkg/hashutil/crc8"
	pkgerrors "github.com/pkg/errors"

	"github.com/segin/psymp3-sub012/frame"
	"github.com/segin/psymp3-sub012/media"
	"github.com/segin/psymp3-sub012/meta"
)

// FLAC decodes FLAC frames, one chunk per frame.
type FLAC struct {
	sampleRate    uint32
	nchannels     int
	bitsPerSample uint8
	ready         bool
}

// NewFLAC returns an uninitialized FLAC decoder.
func NewFLAC() *FLAC {
	return &FLAC{}
}

// Init takes the stream parameters from info, preferring the STREAMINFO block
// carried as codec data.
func (c *FLAC) Init(info media.StreamInfo) error {
	c.sampleRate = info.SampleRate
	c.nchannels = int(info.Channels)
	c.bitsPerSample = info.BitsPerSample
	if len(info.CodecData) == meta.StreamInfoSize {
		si, err := meta.ParseStreamInfo(info.CodecData)
		if err != nil {
			return pkgerrors.Wrap(err, "codec.FLAC.Init")
		}
		c.sampleRate = si.SampleRate
		c.nchannels = int(si.NChannels)
		c.bitsPerSample = si.BitsPerSample
	}
	switch {
	case c.nchannels < 1 || c.nchannels > 8:
		return pkgerrors.Errorf("codec.FLAC.Init: invalid channel count %d", c.nchannels)
	case c.bitsPerSample < 4 || c.bitsPerSample > 32:
		return pkgerrors.Errorf("codec.FLAC.Init: invalid sample size %d", c.bitsPerSample)
	}
	c.ready = true
	return nil
}

// Decode decodes a complete frame into interleaved samples.
func (c *FLAC) Decode(chunk media.Chunk) (*audio.IntBuffer, error) {
	if !c.ready {
		return nil, ErrNotInitialized
	}
	if chunk.IsEmpty() {
		return nil, ErrEmptyChunk
	}
	data, err := c.withSampleSize(chunk.Data)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "codec.FLAC.Decode: frame at sample %d", chunk.TimestampSamples)
	}
	f, err := mframe.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "codec.FLAC.Decode: frame at sample %d", chunk.TimestampSamples)
	}
	nch := len(f.Subframes)
	if nch != c.nchannels {
		return nil, pkgerrors.Errorf("codec.FLAC.Decode: frame at sample %d has %d channels, stream has %d", chunk.TimestampSamples, nch, c.nchannels)
	}
	n := int(f.BlockSize)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: nch,
			SampleRate:  int(c.sampleRate),
		},
		Data:           make([]int, n*nch),
		SourceBitDepth: int(c.bitsPerSample),
	}
	for ch, sub := range f.Subframes {
		for i, s := range sub.Samples[:n] {
			buf.Data[i*nch+ch] = int(s)
		}
	}
	return buf, nil
}

// Reset implements media.Codec. Frames decode independently, so there is no
// state to drop.
func (c *FLAC) Reset() {}

// sampleSizeCodes maps sample sizes to frame header codes.
var sampleSizeCodes = map[uint8]byte{8: 1, 12: 2, 16: 4, 20: 5, 24: 6, 32: 7}

// withSampleSize returns the frame with its sample size written into the
// header when the header defers it to STREAMINFO. Both checksums are updated.
// Other frames are returned as is.
func (c *FLAC) withSampleSize(p []byte) ([]byte, error) {
	hdr, err := frame.ParseHeader(p)
	if err != nil {
		return nil, err
	}
	if hdr.BitsPerSample != 0 {
		return p, nil
	}
	code, ok := sampleSizeCodes[c.bitsPerSample]
	if !ok || len(p) < hdr.Size+frame.FooterSize {
		return p, nil
	}
	q := append([]byte(nil), p...)
	q[3] = q[3]&^0x0E | code<<1
	q[hdr.Size-1] = crc8.ChecksumATM(q[:hdr.Size-1])
	end := len(q) - frame.FooterSize
	crc := crc16.ChecksumIBM(q[:end])
	q[end] = byte(crc >> 8)
	q[end+1] = byte(crc)
	return q, nil
}
