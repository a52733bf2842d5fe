package codec

import (
	"sync"

	"github.com/go-audio/audio"
	pkgerrors "github.com/pkg/errors"

	"github.com/segin/psymp3-sub012/media"
)

// Law selects a G.711 companding law.
type Law uint8

// G.711 companding laws.
const (
	MuLaw Law = iota
	ALaw
)

func (l Law) String() string {
	if l == ALaw {
		return NameALaw
	}
	return NameMuLaw
}

// Decode tables, built on first use.
var (
	muLawOnce  sync.Once
	muLawTable [256]int16
	aLawOnce   sync.Once
	aLawTable  [256]int16
)

// table returns the decode table of the law.
func (l Law) table() *[256]int16 {
	if l == ALaw {
		aLawOnce.Do(func() {
			for i := range aLawTable {
				aLawTable[i] = decodeALaw(byte(i))
			}
		})
		return &aLawTable
	}
	muLawOnce.Do(func() {
		for i := range muLawTable {
			muLawTable[i] = decodeMuLaw(byte(i))
		}
	})
	return &muLawTable
}

// decodeMuLaw expands a μ-law byte to a 16-bit linear sample.
func decodeMuLaw(u byte) int16 {
	const bias = 0x84
	u = ^u
	t := (int(u&0x0F)<<3 + bias) << (u >> 4 & 0x07)
	if u&0x80 != 0 {
		return int16(bias - t)
	}
	return int16(t - bias)
}

// decodeALaw expands an A-law byte to a 16-bit linear sample.
func decodeALaw(a byte) int16 {
	a ^= 0x55
	t := int(a&0x0F) << 4
	switch seg := a >> 4 & 0x07; seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t = (t + 0x108) << (seg - 1)
	}
	if a&0x80 != 0 {
		return int16(t)
	}
	return int16(-t)
}

// G711 decodes interleaved 8-bit G.711 samples to 16-bit PCM.
type G711 struct {
	law        Law
	nchannels  int
	sampleRate int
	ready      bool
}

// NewG711 returns an uninitialized decoder for law.
func NewG711(law Law) *G711 {
	return &G711{law: law}
}

// Init records the stream layout. The sample rate defaults to 8 kHz.
func (c *G711) Init(info media.StreamInfo) error {
	if info.Channels == 0 {
		return pkgerrors.Errorf("codec.G711.Init: %v stream without channels", c.law)
	}
	c.nchannels = int(info.Channels)
	c.sampleRate = int(info.SampleRate)
	if c.sampleRate == 0 {
		c.sampleRate = 8000
	}
	c.ready = true
	return nil
}

// Decode expands every byte of the chunk to one sample.
func (c *G711) Decode(chunk media.Chunk) (*audio.IntBuffer, error) {
	if !c.ready {
		return nil, ErrNotInitialized
	}
	if chunk.IsEmpty() {
		return nil, ErrEmptyChunk
	}
	if len(chunk.Data)%c.nchannels != 0 {
		return nil, pkgerrors.Errorf("codec.G711.Decode: %d bytes do not fill %d channels", len(chunk.Data), c.nchannels)
	}
	tab := c.law.table()
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: c.nchannels,
			SampleRate:  c.sampleRate,
		},
		Data:           make([]int, len(chunk.Data)),
		SourceBitDepth: 16,
	}
	for i, b := range chunk.Data {
		buf.Data[i] = int(tab[b])
	}
	return buf, nil
}

// Reset implements media.Codec; G.711 is stateless.
func (c *G711) Reset() {}
