// Package media defines the contract between demuxers, codecs and the player:
// demuxed chunks, stream descriptions, categorized errors and a registry of
// demuxer and codec factories.
package media

import (
	"github.com/go-audio/audio"
)

// A Chunk is one encoded unit of a stream, as emitted by a demuxer.
type Chunk struct {
	// Stream the chunk belongs to.
	StreamID int
	// Encoded payload.
	Data []byte
	// Sample number of the first sample in the chunk.
	TimestampSamples uint64
	// Offset of the chunk within the container.
	FileOffset int64
}

// IsEmpty reports whether the chunk carries no data. Demuxers return an empty
// chunk at the end of the stream.
func (c Chunk) IsEmpty() bool {
	return len(c.Data) == 0
}

// StreamInfo describes a stream of a container.
type StreamInfo struct {
	StreamID int
	// Kind of stream, such as "audio".
	CodecType string
	// Codec used to encode the stream, such as "flac".
	CodecName     string
	SampleRate    uint32
	Channels      uint8
	BitsPerSample uint8
	// Average bitrate in bits per second; 0 if unknown.
	Bitrate uint32
	// Codec specific setup data.
	CodecData []byte
	// Duration; 0 if unknown.
	DurationSamples uint64
	DurationMs      uint64

	Artist string
	Title  string
	Album  string
}

// A Demuxer splits a container into chunks.
type Demuxer interface {
	// ParseContainer reads the container headers. It must succeed before any
	// other method is used.
	ParseContainer() error
	Streams() []StreamInfo
	// ReadChunk returns the next chunk, or an empty chunk and io.EOF at the
	// end of the stream.
	ReadChunk() (Chunk, error)
	// SeekTo moves to the chunk holding the given time in milliseconds.
	SeekTo(ms uint64) error
	// Position and Duration are in milliseconds.
	Position() uint64
	Duration() uint64
	EOF() bool
	HasError() bool
	LastError() *Error
	Close() error
}

// A Codec decodes the chunks of one stream into PCM.
type Codec interface {
	// Init prepares the codec for the given stream.
	Init(info StreamInfo) error
	// Decode decodes one chunk.
	Decode(c Chunk) (*audio.IntBuffer, error)
	// Reset drops decoder state, as needed after a seek.
	Reset()
}
