// Package flac implements a FLAC demuxer. [1]
//
// The basic structure of a FLAC bitstream is:
//   - The four byte string signature "fLaC".
//   - The StreamInfo metadata block.
//   - Zero or more other metadata blocks.
//   - One or more audio frames.
//
// The demuxer parses the metadata blocks and splits the audio data into
// frames without decoding them. Frames carry no length field; each frame ends
// where the next confirmed frame header starts. Seeking uses the seek table
// when present and otherwise bisects the audio data, confirming every landing
// point with a full frame header parse.
//
// [1]: https://www.rfc-editor.org/rfc/rfc9639.html
package flac

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/ausocean/utils/logging"

	"github.com/segin/psymp3-sub012/iohandler"
	"github.com/segin/psymp3-sub012/media"
	"github.com/segin/psymp3-sub012/meta"
)

// Name is the name the demuxer and its codec are registered under.
const Name = "flac"

// StreamID is the id of the single stream of a FLAC container.
const StreamID = 1

// Signature marks the start of a FLAC stream.
var Signature = []byte("fLaC")

// A Demuxer splits a FLAC stream into frames.
//
// A Demuxer may be shared between a goroutine reading chunks and goroutines
// seeking or querying its state. Structural state (metadata, seek table, the
// parsed flag) is guarded by mu; streaming state (offsets, buffers, the frame
// index) by posMu. When both are needed mu is locked first. Exported methods
// take the locks and call ...Locked methods, which never lock.
type Demuxer struct {
	conf Config
	log  logging.Logger
	h    iohandler.Handler

	// Structural state.
	mu       sync.RWMutex
	parsed   bool
	parseErr error
	info     *meta.StreamInfo
	// Raw STREAMINFO body.
	rawInfo    []byte
	blocks     []*meta.Block
	seekTable  *meta.SeekTable
	seekPoints []meta.SeekPoint
	comment    *meta.VorbisComment
	pictures   []*meta.Picture
	cueSheet   *meta.CueSheet
	apps       []*meta.Application
	// Offset of the first audio frame.
	dataStart int64
	// Size of the source, or iohandler.UnknownSize.
	size int64

	// Streaming state.
	posMu sync.Mutex
	// Offset of the next frame to read.
	offset int64
	eof    bool
	// Read-ahead bytes starting at bufOff; bufEOF is set when they reach the
	// end of the source.
	buf    []byte
	bufOff int64
	bufEOF bool
	index  frameIndex
	// Blocking strategy of the stream, known once a frame has been seen.
	strategyKnown bool
	variable      bool
	// Block size used to convert frame numbers of fixed-blocksize streams.
	fixedBlockSize uint32
	// Offset of the first frame, once the strategy is known.
	firstFrame int64
	// Reading sequentially from the first frame since the last seek.
	sequential bool

	// Next sample to be returned.
	sample   atomic.Uint64
	closed   atomic.Bool
	lastErr  atomic.Pointer[media.Error]
	counters counters
}

// New returns a demuxer reading h. A nil conf selects the defaults.
// ParseContainer must be called before any other method.
func New(h iohandler.Handler, conf *Config) *Demuxer {
	c := conf.withDefaults()
	d := &Demuxer{
		conf: c,
		log:  c.Logger,
		h:    h,
		size: iohandler.UnknownSize,
	}
	d.index.max = c.MaxIndexEntries
	d.counters.crcCheckEnabled.Store(c.VerifyFrameCRC)
	return d
}

// Open opens the named file and parses its container.
func Open(path string, conf *Config) (*Demuxer, error) {
	f, err := iohandler.OpenFile(path)
	if err != nil {
		return nil, err
	}
	d := New(f, conf)
	if err := d.ParseContainer(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Probe reports whether header starts a FLAC stream, possibly behind an ID3v2
// tag.
func Probe(header []byte) bool {
	if n, ok := id3v2Size(header); ok {
		if n >= len(header) {
			// The tag outgrows the probe; let the parse decide.
			return true
		}
		header = header[n:]
	}
	return bytes.HasPrefix(header, Signature)
}

// Register adds the FLAC demuxer to reg. Demuxers it creates use conf.
func Register(reg *media.Registry, conf *Config) error {
	c := conf.withDefaults()
	c.SkipID3v2 = true
	return reg.RegisterDemuxer(Name, Probe, func(h iohandler.Handler) media.Demuxer {
		return New(h, &c)
	})
}

// Close releases the buffers of the demuxer and closes its source. Calls made
// concurrently with or after Close fail with ErrClosed.
func (d *Demuxer) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.posMu.Lock()
	defer d.posMu.Unlock()
	d.buf = nil
	d.index.anchors = nil
	d.counters.memoryUsage.Store(0)
	return d.h.Close()
}

var _ media.Demuxer = (*Demuxer)(nil)
