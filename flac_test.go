package flac_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/google/go-cmp/cmp"

	flac "github.com/segin/psymp3-sub012"
	"github.com/segin/psymp3-sub012/frame"
	"github.com/segin/psymp3-sub012/internal/flacgen"
	"github.com/segin/psymp3-sub012/iohandler"
	"github.com/segin/psymp3-sub012/media"
	"github.com/segin/psymp3-sub012/meta"
)

// baseOptions describes a small CD quality stream.
func baseOptions() flacgen.Options {
	return flacgen.Options{
		SampleRate:    44100,
		NChannels:     2,
		BitsPerSample: 16,
		NSamples:      50000,
		BlockSize:     1024,
	}
}

func generate(t *testing.T, opts flacgen.Options) *flacgen.Stream {
	t.Helper()
	s, err := flacgen.Generate(opts)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return s
}

func newDemuxer(t *testing.T, p []byte, conf *flac.Config) *flac.Demuxer {
	t.Helper()
	if conf == nil {
		conf = &flac.Config{}
	}
	conf.Logger = (*logging.TestLogger)(t)
	d := flac.New(iohandler.NewMemory(p), conf)
	t.Cleanup(func() { d.Close() })
	return d
}

func openDemuxer(t *testing.T, p []byte, conf *flac.Config) *flac.Demuxer {
	t.Helper()
	d := newDemuxer(t, p, conf)
	if err := d.ParseContainer(); err != nil {
		t.Fatalf("ParseContainer: %v", err)
	}
	return d
}

// readAll reads chunks until io.EOF.
func readAll(t *testing.T, d *flac.Demuxer) []media.Chunk {
	t.Helper()
	var chunks []media.Chunk
	for {
		c, err := d.ReadChunk()
		if err == io.EOF {
			return chunks
		}
		if err != nil {
			t.Fatalf("ReadChunk after %d chunks: %v", len(chunks), err)
		}
		chunks = append(chunks, c)
	}
}

// metadataOnly returns a stream holding info and no audio frames.
func metadataOnly(t *testing.T, info *meta.StreamInfo, blocks ...*meta.Block) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := flacgen.WriteMetadata(&buf, info, blocks...); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParseContainer(t *testing.T) {
	opts := baseOptions()
	opts.SeekInterval = 8192
	opts.VorbisComment = &meta.VorbisComment{
		Vendor: "psymp3",
		Entries: []meta.VorbisEntry{
			{Name: "artist", Value: "Some Artist"},
			{Name: "TITLE", Value: "Some Title"},
		},
	}
	s := generate(t, opts)
	d := openDemuxer(t, s.Data, nil)

	if diff := cmp.Diff(&s.Info, d.StreamInfo()); diff != "" {
		t.Errorf("StreamInfo mismatch (-want +got):\n%s", diff)
	}
	if got := d.DataStart(); got != s.DataStart {
		t.Errorf("DataStart: expected %d, got %d", s.DataStart, got)
	}
	streams := d.Streams()
	if len(streams) != 1 {
		t.Fatalf("expected 1 stream, got %d", len(streams))
	}
	si := streams[0]
	want := media.StreamInfo{
		StreamID:        flac.StreamID,
		CodecType:       "audio",
		CodecName:       flac.Name,
		SampleRate:      44100,
		Channels:        2,
		BitsPerSample:   16,
		DurationSamples: 50000,
		DurationMs:      1133,
		Artist:          "Some Artist",
		Title:           "Some Title",
	}
	if diff := cmp.Diff(want, si, cmp.FilterPath(func(p cmp.Path) bool {
		name := p.Last().String()
		return name == ".CodecData" || name == ".Bitrate"
	}, cmp.Ignore())); diff != "" {
		t.Errorf("stream info mismatch (-want +got):\n%s", diff)
	}
	if len(si.CodecData) != meta.StreamInfoSize {
		t.Errorf("expected %d bytes of codec data, got %d", meta.StreamInfoSize, len(si.CodecData))
	}
	if si.Bitrate == 0 {
		t.Error("expected a bitrate estimate")
	}
	if got := d.Duration(); got != 1133 {
		t.Errorf("Duration: expected 1133, got %d", got)
	}
	if got := len(d.SeekTable().Points); got != 7 {
		t.Errorf("expected 7 seek points, got %d", got)
	}
	// Idempotent.
	if err := d.ParseContainer(); err != nil {
		t.Errorf("second ParseContainer: %v", err)
	}
}

func TestParseContainerZeroFrames(t *testing.T) {
	info := &meta.StreamInfo{
		BlockSizeMin:  4096,
		BlockSizeMax:  4096,
		SampleRate:    44100,
		NChannels:     2,
		BitsPerSample: 16,
		NSamples:      1000000,
	}
	d := openDemuxer(t, metadataOnly(t, info), nil)
	if got := d.Duration(); got != 22675 {
		t.Errorf("Duration: expected 22675, got %d", got)
	}
	if got := d.Streams()[0].SampleRate; got != 44100 {
		t.Errorf("SampleRate: expected 44100, got %d", got)
	}
	if _, err := d.ReadChunk(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
	if !d.EOF() {
		t.Error("expected EOF")
	}
}

func TestParseContainerInvalid(t *testing.T) {
	valid := metadataOnly(t, &meta.StreamInfo{
		BlockSizeMin:  1024,
		BlockSizeMax:  1024,
		SampleRate:    44100,
		NChannels:     2,
		BitsPerSample: 16,
	})

	// notLast clears the is-last flag of the STREAMINFO block and appends p.
	notLast := func(p ...byte) []byte {
		q := append([]byte(nil), valid...)
		q[4] &^= 0x80
		return append(q, p...)
	}
	golden := []struct {
		name string
		data []byte
		want error
		cat  media.Category
	}{
		{name: "ogg", data: []byte("OggS\x00\x02\x00\x00"), want: flac.ErrNoMarker, cat: media.CategoryFormat},
		{name: "short", data: []byte("fL"), want: flac.ErrNoMarker, cat: media.CategoryFormat},
		{name: "no streaminfo", data: []byte("fLaC\x81\x00\x00\x00"), want: flac.ErrNoStreamInfo, cat: media.CategoryFormat},
		{name: "forbidden type", data: notLast(0x7F, 0x00, 0x00, 0x00), want: meta.ErrInvalidType, cat: media.CategoryFormat},
		{name: "block past end", data: notLast(0x81, 0x00, 0x03, 0xE8, 0x00, 0x00), want: flac.ErrBlockBounds, cat: media.CategoryFormat},
		{name: "missing block header", data: notLast(0x81, 0x00), want: flac.ErrBlockBounds, cat: media.CategoryFormat},
	}
	for _, g := range golden {
		t.Run(g.name, func(t *testing.T) {
			d := newDemuxer(t, g.data, nil)
			err := d.ParseContainer()
			if !errors.Is(err, g.want) {
				t.Fatalf("expected %v, got %v", g.want, err)
			}
			if got := media.CategoryOf(err); got != g.cat {
				t.Errorf("category: expected %v, got %v", g.cat, got)
			}
			if !d.HasError() || d.LastError().Category != g.cat {
				t.Errorf("last error not recorded: %v", d.LastError())
			}
			// Failures stick.
			if again := d.ParseContainer(); again != err {
				t.Errorf("second ParseContainer: expected %v, got %v", err, again)
			}
			if d.Streams() != nil {
				t.Error("expected no streams after a failed parse")
			}
		})
	}
}

func TestParseContainerLimits(t *testing.T) {
	opts := baseOptions()
	opts.NSamples = 4096
	opts.VorbisComment = &meta.VorbisComment{
		Vendor:  "psymp3",
		Entries: []meta.VorbisEntry{{Name: "A", Value: "1"}, {Name: "B", Value: "2"}},
	}
	s := generate(t, opts)

	lim := meta.DefaultLimits
	lim.MaxComments = 1
	d := newDemuxer(t, s.Data, &flac.Config{Limits: &lim})
	err := d.ParseContainer()
	if !errors.Is(err, meta.ErrLimit) {
		t.Fatalf("expected ErrLimit, got %v", err)
	}
	if got := media.CategoryOf(err); got != media.CategoryFormat {
		t.Errorf("expected format error, got %v", got)
	}
}

func TestID3v2(t *testing.T) {
	opts := baseOptions()
	opts.NSamples = 5000
	s := generate(t, opts)
	tag := []byte{'I', 'D', '3', 3, 0, 0, 0, 0, 0, 10}
	tag = append(tag, make([]byte, 10)...)
	data := append(tag, s.Data...)

	if !flac.Probe(data) {
		t.Error("expected the ID3v2 tag to be skipped")
	}
	d := openDemuxer(t, data, &flac.Config{SkipID3v2: true})
	if got, want := d.DataStart(), s.DataStart+int64(len(tag)); got != want {
		t.Errorf("DataStart: expected %d, got %d", want, got)
	}
	chunks := readAll(t, d)
	if len(chunks) != len(s.Frames) {
		t.Fatalf("expected %d chunks, got %d", len(s.Frames), len(chunks))
	}
	if got, want := chunks[0].FileOffset, s.Frames[0].Offset+int64(len(tag)); got != want {
		t.Errorf("first chunk offset: expected %d, got %d", want, got)
	}

	d = newDemuxer(t, data, nil)
	if err := d.ParseContainer(); !errors.Is(err, flac.ErrNoMarker) {
		t.Errorf("expected ErrNoMarker without SkipID3v2, got %v", err)
	}
}

func TestReadChunk(t *testing.T) {
	golden := []struct {
		name string
		opts func(*flacgen.Options)
	}{
		{name: "fixed", opts: func(o *flacgen.Options) {}},
		{name: "variable", opts: func(o *flacgen.Options) { o.Variable = true }},
		{name: "no frame size", opts: func(o *flacgen.Options) { o.OmitFrameSize = true }},
		{name: "mono 8 bit", opts: func(o *flacgen.Options) { o.NChannels, o.BitsPerSample = 1, 8 }},
		{name: "24 bit 96 kHz", opts: func(o *flacgen.Options) { o.SampleRate, o.BitsPerSample = 96000, 24 }},
		{name: "odd rate", opts: func(o *flacgen.Options) { o.SampleRate = 11025 }},
		{name: "constant", opts: func(o *flacgen.Options) {
			o.Signal = func(ch int, n uint64) int32 { return 0 }
		}},
	}
	for _, g := range golden {
		t.Run(g.name, func(t *testing.T) {
			opts := baseOptions()
			g.opts(&opts)
			s := generate(t, opts)
			d := openDemuxer(t, s.Data, &flac.Config{VerifyFrameCRC: true})

			chunks := readAll(t, d)
			if len(chunks) != len(s.Frames) {
				t.Fatalf("expected %d chunks, got %d", len(s.Frames), len(chunks))
			}
			for i, c := range chunks {
				f := s.Frames[i]
				if c.StreamID != flac.StreamID || c.FileOffset != f.Offset || c.TimestampSamples != f.SampleNum {
					t.Errorf("chunk %d: got stream %d offset %d sample %d, expected offset %d sample %d",
						i, c.StreamID, c.FileOffset, c.TimestampSamples, f.Offset, f.SampleNum)
				}
				if !bytes.Equal(c.Data, s.Data[f.Offset:f.End()]) {
					t.Errorf("chunk %d: data mismatch (%d bytes, expected %d)", i, len(c.Data), f.Size)
				}
			}
			if !d.EOF() {
				t.Error("expected EOF")
			}
			if _, err := d.ReadChunk(); err != io.EOF {
				t.Errorf("expected io.EOF, got %v", err)
			}
			if got := d.Sample(); got != opts.NSamples {
				t.Errorf("Sample: expected %d, got %d", opts.NSamples, got)
			}
			st := d.Stats()
			if st.FramesRead != uint64(len(s.Frames)) || !st.IndexComplete || st.CRCErrors != 0 || st.Resyncs != 0 {
				t.Errorf("unexpected stats %+v", st)
			}
		})
	}
}

func TestReadChunkJunk(t *testing.T) {
	s := generate(t, baseOptions())
	junk := []byte{0x00, 0xFF, 0xF8, 0xFF, 0xFF, 0x00, 0x00, 0x00}

	// Junk between the third and fourth frame ends up in the third chunk.
	at := s.Frames[3].Offset
	data := append(append(append([]byte(nil), s.Data[:at]...), junk...), s.Data[at:]...)
	d := openDemuxer(t, data, nil)
	chunks := readAll(t, d)
	if len(chunks) != len(s.Frames) {
		t.Fatalf("expected %d chunks, got %d", len(s.Frames), len(chunks))
	}
	if got, want := len(chunks[2].Data), s.Frames[2].Size+len(junk); got != want {
		t.Errorf("chunk 2: expected %d bytes, got %d", want, got)
	}
	for i := 3; i < len(chunks); i++ {
		if got, want := chunks[i].FileOffset, s.Frames[i].Offset+int64(len(junk)); got != want {
			t.Errorf("chunk %d: expected offset %d, got %d", i, want, got)
		}
	}
	if d.Stats().SyncFalsePositives == 0 {
		t.Error("expected the junk sync code to be counted")
	}

	// Junk in front of the first frame is skipped with a resync.
	data = append(append(append([]byte(nil), s.Data[:s.DataStart]...), junk...), s.Data[s.DataStart:]...)
	d = openDemuxer(t, data, nil)
	chunks = readAll(t, d)
	if len(chunks) != len(s.Frames) {
		t.Fatalf("expected %d chunks, got %d", len(s.Frames), len(chunks))
	}
	if got, want := chunks[0].FileOffset, s.Frames[0].Offset+int64(len(junk)); got != want {
		t.Errorf("first chunk: expected offset %d, got %d", want, got)
	}
	if got := d.Stats().Resyncs; got != 1 {
		t.Errorf("expected 1 resync, got %d", got)
	}
}

// withFakeHeaders inserts in front of each listed frame a copy of its header
// with a corrupted CRC-8. It returns the new stream and the new frame offsets.
func withFakeHeaders(s *flacgen.Stream, frames ...int) ([]byte, []int64) {
	fake := make(map[int]bool)
	for _, i := range frames {
		fake[i] = true
	}
	data := append([]byte(nil), s.Data[:s.DataStart]...)
	offsets := make([]int64, len(s.Frames))
	for i, f := range s.Frames {
		if fake[i] {
			hdr := append([]byte(nil), s.Data[f.Offset:f.Offset+int64(f.Header.Size)]...)
			hdr[len(hdr)-1] ^= 0xFF
			data = append(data, hdr...)
		}
		offsets[i] = int64(len(data))
		data = append(data, s.Data[f.Offset:f.End()]...)
	}
	return data, offsets
}

func TestReadChunkFakeHeader(t *testing.T) {
	s := generate(t, baseOptions())
	data, offsets := withFakeHeaders(s, 3)
	d := openDemuxer(t, data, nil)
	chunks := readAll(t, d)
	if len(chunks) != len(s.Frames) {
		t.Fatalf("expected %d chunks, got %d", len(s.Frames), len(chunks))
	}
	for i, c := range chunks {
		if c.FileOffset != offsets[i] || c.TimestampSamples != s.Frames[i].SampleNum {
			t.Errorf("chunk %d: expected offset %d sample %d, got offset %d sample %d",
				i, offsets[i], s.Frames[i].SampleNum, c.FileOffset, c.TimestampSamples)
		}
	}
	// The fake header travels with the frame before it.
	if got, want := len(chunks[2].Data), s.Frames[2].Size+s.Frames[3].Header.Size; got != want {
		t.Errorf("chunk 2: expected %d bytes, got %d", want, got)
	}
	st := d.Stats()
	if st.SyncFalsePositives == 0 {
		t.Error("expected the header with a bad CRC-8 to be counted")
	}
	if st.Resyncs != 0 {
		t.Errorf("expected no resyncs, got %d", st.Resyncs)
	}
}

func TestSeekFakeHeaders(t *testing.T) {
	opts := baseOptions()
	s := generate(t, opts)
	var fakes []int
	for i := 1; i < len(s.Frames); i++ {
		fakes = append(fakes, i)
	}
	data, offsets := withFakeHeaders(s, fakes...)
	d := openDemuxer(t, data, nil)
	for _, target := range []uint64{1, 1024, 5000, 25000, 33333, 49999} {
		if err := d.SeekToSample(target); err != nil {
			t.Fatalf("seek to sample %d: %v", target, err)
		}
		c, err := d.ReadChunk()
		if err != nil {
			t.Fatalf("read after seek to sample %d: %v", target, err)
		}
		i := int(target / uint64(opts.BlockSize))
		if c.FileOffset != offsets[i] || c.TimestampSamples != s.Frames[i].SampleNum {
			t.Errorf("seek to sample %d: read frame at offset %d sample %d, expected offset %d sample %d",
				target, c.FileOffset, c.TimestampSamples, offsets[i], s.Frames[i].SampleNum)
		}
	}
}

func TestReadChunkDamagedHeader(t *testing.T) {
	s := generate(t, baseOptions())
	data := append([]byte(nil), s.Data...)
	f := s.Frames[10]
	data[f.Offset+int64(f.Header.Size)-1] ^= 0xFF

	d := openDemuxer(t, data, nil)
	chunks := readAll(t, d)
	if len(chunks) != len(s.Frames)-1 {
		t.Fatalf("expected %d chunks, got %d", len(s.Frames)-1, len(chunks))
	}
	// Frame 10 cannot be told apart from the data of frame 9.
	if got, want := len(chunks[9].Data), s.Frames[9].Size+s.Frames[10].Size; got != want {
		t.Errorf("chunk 9: expected %d bytes, got %d", want, got)
	}
	if got, want := chunks[10].FileOffset, s.Frames[11].Offset; got != want {
		t.Errorf("chunk 10: expected offset %d, got %d", want, got)
	}
	// The damaged header widens one read; it must not pull in the rest of
	// the stream.
	bound := 2 * (uint64(s.Info.FrameSizeMax) + frame.MaxHeaderSize)
	if st := d.Stats(); st.MemoryUsage > bound {
		t.Errorf("expected at most %d buffered bytes, got %d", bound, st.MemoryUsage)
	}
}

func TestBitrateSaturates(t *testing.T) {
	s := generate(t, baseOptions())
	p := append([]byte(nil), s.Data...)
	// Total samples: low nibble of STREAMINFO byte 13 and bytes 14 to 17.
	body := p[4+meta.HeaderSize:]
	body[13] &= 0xF0
	copy(body[14:18], []byte{0, 0, 0, 1})
	d := openDemuxer(t, p, nil)
	if got := d.Streams()[0].Bitrate; got != math.MaxUint32 {
		t.Errorf("bitrate mismatch; expected %d, got %d", uint32(math.MaxUint32), got)
	}
}

func TestReadChunkCRC(t *testing.T) {
	s := generate(t, baseOptions())
	data := append([]byte(nil), s.Data...)
	for _, f := range s.Frames[:5] {
		data[f.End()-1] ^= 0x01
	}
	d := openDemuxer(t, data, &flac.Config{VerifyFrameCRC: true, CRCErrorThreshold: 3})
	chunks := readAll(t, d)
	if len(chunks) != len(s.Frames) {
		t.Fatalf("frames with bad footers must still be returned; got %d of %d", len(chunks), len(s.Frames))
	}
	st := d.Stats()
	if st.CRCErrors != 3 {
		t.Errorf("expected 3 CRC errors before verification stops, got %d", st.CRCErrors)
	}
	if st.CRCCheckEnabled {
		t.Error("expected CRC verification to be disabled")
	}
}

func TestSeek(t *testing.T) {
	golden := []struct {
		name string
		opts func(*flacgen.Options)
	}{
		{name: "seek table", opts: func(o *flacgen.Options) { o.SeekInterval = 10000 }},
		{name: "bisection", opts: func(o *flacgen.Options) {}},
		{name: "placeholders only", opts: func(o *flacgen.Options) { o.Placeholders = 4 }},
		{name: "variable", opts: func(o *flacgen.Options) { o.Variable = true }},
		{name: "variable seek table", opts: func(o *flacgen.Options) { o.Variable, o.SeekInterval = true, 5000 }},
		{name: "unknown total", opts: func(o *flacgen.Options) { o.OmitTotal = true }},
		{name: "no frame size", opts: func(o *flacgen.Options) { o.OmitFrameSize = true }},
		{name: "bogus seek point", opts: func(o *flacgen.Options) {
			o.Blocks = []*meta.Block{{Body: &meta.SeekTable{Points: []meta.SeekPoint{
				{SampleNum: 0, Offset: 0, NSamples: 1024},
				{SampleNum: 10240, Offset: 7, NSamples: 1024},
			}}}}
		}},
	}
	targets := []uint64{1, 1023, 1024, 1025, 9999, 10240, 25000, 33333, 49151, 49999, 2048}
	for _, g := range golden {
		t.Run(g.name, func(t *testing.T) {
			opts := baseOptions()
			g.opts(&opts)
			s := generate(t, opts)
			d := openDemuxer(t, s.Data, nil)
			for _, target := range targets {
				want := frameAt(s, target)
				if err := d.SeekToSample(target); err != nil {
					t.Fatalf("seek to sample %d: %v", target, err)
				}
				if got := d.Sample(); got != want.SampleNum {
					t.Errorf("seek to sample %d: positioned at sample %d, expected %d", target, got, want.SampleNum)
				}
				c, err := d.ReadChunk()
				if err != nil {
					t.Fatalf("read after seek to sample %d: %v", target, err)
				}
				if c.FileOffset != want.Offset || c.TimestampSamples != want.SampleNum {
					t.Errorf("seek to sample %d: read frame at offset %d sample %d, expected offset %d sample %d",
						target, c.FileOffset, c.TimestampSamples, want.Offset, want.SampleNum)
				}
			}
			if st := d.Stats(); st.IndexComplete {
				t.Error("index must not be complete after seeking")
			}
		})
	}
}

// frameAt returns the generated frame containing sample.
func frameAt(s *flacgen.Stream, sample uint64) frame.Frame {
	for _, f := range s.Frames {
		if f.Contains(sample) {
			return f
		}
	}
	panic("sample out of range")
}

func TestSeekTo(t *testing.T) {
	opts := baseOptions()
	opts.SeekInterval = 4096
	s := generate(t, opts)
	d := openDemuxer(t, s.Data, nil)

	// 500 ms is sample 22050.
	if err := d.SeekTo(500); err != nil {
		t.Fatal(err)
	}
	want := frameAt(s, 22050)
	if got := d.Sample(); got != want.SampleNum {
		t.Errorf("expected sample %d, got %d", want.SampleNum, got)
	}
	if got, want := d.Position(), s.Info.SamplesToMs(want.SampleNum); got != want {
		t.Errorf("Position: expected %d, got %d", want, got)
	}

	// Seeking is deterministic regardless of the current position.
	c1, err := d.ReadChunk()
	if err != nil {
		t.Fatal(err)
	}
	readAll(t, d)
	if err := d.SeekTo(500); err != nil {
		t.Fatal(err)
	}
	c2, err := d.ReadChunk()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(c1, c2); diff != "" {
		t.Errorf("repeated seek mismatch (-first +second):\n%s", diff)
	}

	// Seeking to zero rewinds.
	if err := d.SeekTo(0); err != nil {
		t.Fatal(err)
	}
	chunks := readAll(t, d)
	if len(chunks) != len(s.Frames) {
		t.Errorf("expected %d chunks after rewinding, got %d", len(s.Frames), len(chunks))
	}
	if !d.Stats().IndexComplete {
		t.Error("expected the index to be complete after a full read from the start")
	}
}

func TestSeekFailure(t *testing.T) {
	opts := baseOptions()
	s := generate(t, opts)
	d := openDemuxer(t, s.Data, nil)
	for i := 0; i < 2; i++ {
		if _, err := d.ReadChunk(); err != nil {
			t.Fatal(err)
		}
	}
	pos := d.Sample()

	err := d.SeekToSample(opts.NSamples)
	if !errors.Is(err, flac.ErrSeekRange) {
		t.Fatalf("expected ErrSeekRange, got %v", err)
	}
	if got := d.LastError(); got == nil || got.Category != media.CategorySeek {
		t.Errorf("expected a seek error to be recorded, got %v", got)
	}
	if got := d.Sample(); got != pos {
		t.Errorf("failed seek moved position from %d to %d", pos, got)
	}
	// Millisecond targets whose sample number exceeds 64 bits when computed
	// naively must not wrap around to the start of the stream.
	for _, ms := range []uint64{418293516410648, math.MaxUint64} {
		if err := d.SeekTo(ms); !errors.Is(err, flac.ErrSeekRange) {
			t.Errorf("seek to %d ms: expected ErrSeekRange, got %v", ms, err)
		}
		if got := d.Sample(); got != pos {
			t.Errorf("seek to %d ms moved position from %d to %d", ms, pos, got)
		}
	}
	c, err := d.ReadChunk()
	if err != nil {
		t.Fatal(err)
	}
	if c.FileOffset != s.Frames[2].Offset {
		t.Errorf("expected to continue at frame 2 (offset %d), got offset %d", s.Frames[2].Offset, c.FileOffset)
	}

	// Without a total sample count the failure shows up as a missing frame.
	opts.OmitTotal = true
	s = generate(t, opts)
	d = openDemuxer(t, s.Data, nil)
	if err := d.SeekToSample(1 << 40); !errors.Is(err, flac.ErrSeek) {
		t.Fatalf("expected ErrSeek, got %v", err)
	}
	if got := d.Sample(); got != 0 {
		t.Errorf("failed seek moved position to %d", got)
	}
	if c, err := d.ReadChunk(); err != nil || c.FileOffset != s.Frames[0].Offset {
		t.Errorf("expected first frame after failed seek, got offset %d, err %v", c.FileOffset, err)
	}
}

func TestNotParsed(t *testing.T) {
	s := generate(t, baseOptions())
	d := newDemuxer(t, s.Data, nil)
	if _, err := d.ReadChunk(); !errors.Is(err, flac.ErrNotParsed) {
		t.Errorf("ReadChunk: expected ErrNotParsed, got %v", err)
	}
	if err := d.SeekTo(10); !errors.Is(err, flac.ErrNotParsed) {
		t.Errorf("SeekTo: expected ErrNotParsed, got %v", err)
	}
	if got := media.CategoryOf(d.LastError()); got != media.CategoryState {
		t.Errorf("expected state error, got %v", got)
	}
	d.ClearError()
	if d.HasError() {
		t.Error("expected no error after ClearError")
	}
	if d.Streams() != nil || d.StreamInfo() != nil || d.Duration() != 0 {
		t.Error("expected no stream description before parsing")
	}
}

func TestClose(t *testing.T) {
	s := generate(t, baseOptions())
	d := openDemuxer(t, s.Data, nil)
	if _, err := d.ReadChunk(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := d.ReadChunk(); !errors.Is(err, flac.ErrClosed) {
		t.Errorf("ReadChunk: expected ErrClosed, got %v", err)
	}
	if err := d.SeekTo(0); !errors.Is(err, flac.ErrClosed) {
		t.Errorf("SeekTo: expected ErrClosed, got %v", err)
	}
	if !d.EOF() {
		t.Error("a closed demuxer is at EOF")
	}
	if got := d.Stats().MemoryUsage; got != 0 {
		t.Errorf("expected buffers released, got %d bytes", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	opts := baseOptions()
	opts.SeekInterval = 8192
	s := generate(t, opts)
	d := openDemuxer(t, s.Data, nil)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for {
			_, err := d.ReadChunk()
			if err == io.EOF {
				return
			}
			if err != nil {
				t.Errorf("ReadChunk: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := uint64(0); i < 20; i++ {
			if err := d.SeekToSample(i * 2000); err != nil {
				t.Errorf("SeekToSample(%d): %v", i*2000, err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			d.Position()
			d.Stats()
			d.Streams()
			d.EOF()
		}
	}()
	wg.Wait()
}

func TestStreamSource(t *testing.T) {
	opts := baseOptions()
	opts.SeekInterval = 8192
	s := generate(t, opts)
	h := iohandler.NewStream(context.Background(), bytes.NewReader(s.Data), int64(len(s.Data)), time.Second)
	d := flac.New(h, &flac.Config{Logger: (*logging.TestLogger)(t)})
	defer d.Close()
	if err := d.ParseContainer(); err != nil {
		t.Fatal(err)
	}
	d.Prefetch(700)
	if err := d.SeekTo(700); err != nil {
		t.Fatal(err)
	}
	chunks := readAll(t, d)
	want := frameAt(s, s.Info.MsToSamples(700))
	if len(chunks) == 0 || chunks[0].FileOffset != want.Offset {
		t.Fatalf("expected to read from offset %d", want.Offset)
	}
	if got := chunks[len(chunks)-1].FileOffset; got != s.Frames[len(s.Frames)-1].Offset {
		t.Errorf("expected last chunk at offset %d, got %d", s.Frames[len(s.Frames)-1].Offset, got)
	}
}

func TestRegister(t *testing.T) {
	s := generate(t, baseOptions())
	reg := media.NewRegistry()
	if err := flac.Register(reg, &flac.Config{Logger: (*logging.TestLogger)(t)}); err != nil {
		t.Fatal(err)
	}
	dmx, err := reg.Open(iohandler.NewMemory(s.Data))
	if err != nil {
		t.Fatal(err)
	}
	defer dmx.Close()
	if err := dmx.ParseContainer(); err != nil {
		t.Fatal(err)
	}
	if got := dmx.Streams()[0].CodecName; got != flac.Name {
		t.Errorf("expected codec %q, got %q", flac.Name, got)
	}
	if _, err := reg.Open(iohandler.NewMemory([]byte("RIFF\x00\x00\x00\x00WAVE"))); !errors.Is(err, media.ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
}
