package meta

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseHeader(t *testing.T) {
	golden := []struct {
		data    []byte
		want    Header
		wantErr error
	}{
		{data: []byte{0x80, 0x00, 0x00, 0x22}, want: Header{IsLast: true, Type: TypeStreamInfo, Length: 34}},
		{data: []byte{0x03, 0x00, 0x00, 0x36}, want: Header{Type: TypeSeekTable, Length: 54}},
		{data: []byte{0x06, 0xFF, 0xFF, 0xFF}, want: Header{Type: TypePicture, Length: MaxBlockLength}},
		{data: []byte{0x09, 0x00, 0x00, 0x01}, want: Header{Type: 9, Length: 1}},
		{data: []byte{0x7F, 0x00, 0x00, 0x00}, wantErr: ErrInvalidType},
		{data: []byte{0xFF, 0x00, 0x00, 0x00}, wantErr: ErrInvalidType},
		{data: []byte{0x00, 0x00}, wantErr: ErrTruncated},
	}
	for i, g := range golden {
		got, err := ParseHeader(g.data)
		if g.wantErr != nil {
			if !errors.Is(err, g.wantErr) {
				t.Errorf("i=%d: error mismatch; expected %v, got %v", i, g.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("i=%d: unable to parse header; %v", i, err)
			continue
		}
		if diff := cmp.Diff(g.want, got); diff != "" {
			t.Errorf("i=%d: header mismatch (-want +got):\n%s", i, diff)
		}
	}
	if !Type(9).IsReserved() || !Type(126).IsReserved() || TypePicture.IsReserved() || TypeInvalid.IsReserved() {
		t.Error("reserved type classification mismatch")
	}
}

// streamInfoBody returns a STREAMINFO body for a 44.1 kHz stereo 16-bit stream
// with the given total sample count.
func streamInfoBody(nsamples uint64) []byte {
	body := []byte{
		0x10, 0x00, // min block size 4096
		0x10, 0x00, // max block size 4096
		0x00, 0x00, 0x0E, // min frame size 14
		0x00, 0x40, 0x00, // max frame size 16384
		0x0A, 0xC4, 0x42, 0xF0, // 44100 Hz, 2 channels, 16 bits, sample count bits 35-32
		0x00, 0x00, 0x00, 0x00, // sample count bits 31-0
	}
	body[13] |= byte(nsamples >> 32 & 0x0F)
	binary.BigEndian.PutUint32(body[14:], uint32(nsamples))
	md5 := make([]byte, 16)
	for i := range md5 {
		md5[i] = byte(i)
	}
	return append(body, md5...)
}

func TestParseStreamInfo(t *testing.T) {
	got, err := ParseStreamInfo(streamInfoBody(1000000))
	if err != nil {
		t.Fatalf("unable to parse stream info; %v", err)
	}
	want := &StreamInfo{
		BlockSizeMin:  4096,
		BlockSizeMax:  4096,
		FrameSizeMin:  14,
		FrameSizeMax:  16384,
		SampleRate:    44100,
		NChannels:     2,
		BitsPerSample: 16,
		NSamples:      1000000,
		MD5sum:        [16]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stream info mismatch (-want +got):\n%s", diff)
	}
	if got.DurationMs() != 22675 {
		t.Errorf("duration mismatch; expected 22675 ms, got %d ms", got.DurationMs())
	}
	if got.MsToSamples(1000) != 44100 || got.SamplesToMs(44100) != 1000 {
		t.Error("sample/ms conversion mismatch")
	}
	// Products past 64 bits do not wrap around.
	if n := got.MsToSamples(418293516410648); n != 18446744073709576 {
		t.Errorf("MsToSamples with a 65-bit product; expected 18446744073709576, got %d", n)
	}
	if n := got.MsToSamples(math.MaxUint64); n != math.MaxUint64 {
		t.Errorf("MsToSamples overflow; expected saturation, got %d", n)
	}

	// 36-bit sample counts use the upper nibble of byte 13.
	got, err = ParseStreamInfo(streamInfoBody(0xABCDEF012))
	if err != nil {
		t.Fatalf("unable to parse stream info; %v", err)
	}
	if got.NSamples != 0xABCDEF012 {
		t.Errorf("sample count mismatch; expected 0xABCDEF012, got 0x%X", got.NSamples)
	}
}

func TestParseStreamInfoInvalid(t *testing.T) {
	golden := []struct {
		name   string
		modify func(body []byte) []byte
	}{
		{name: "short", modify: func(body []byte) []byte { return body[:33] }},
		{name: "long", modify: func(body []byte) []byte { return append(body, 0) }},
		{name: "zero sample rate", modify: func(body []byte) []byte {
			body[10], body[11], body[12] = 0, 0, body[12]&0x0F
			return body
		}},
		{name: "min block size below 16", modify: func(body []byte) []byte {
			body[0], body[1] = 0, 15
			return body
		}},
		{name: "min above max block size", modify: func(body []byte) []byte {
			body[2], body[3] = 0x08, 0x00
			return body
		}},
	}
	for _, g := range golden {
		body := g.modify(streamInfoBody(100))
		if _, err := ParseStreamInfo(body); !errors.Is(err, ErrInvalidStreamInfo) {
			t.Errorf("%s: expected ErrInvalidStreamInfo, got %v", g.name, err)
		}
	}
}

func seekPointBytes(p SeekPoint) []byte {
	buf := binary.BigEndian.AppendUint64(nil, p.SampleNum)
	buf = binary.BigEndian.AppendUint64(buf, p.Offset)
	return binary.BigEndian.AppendUint16(buf, p.NSamples)
}

func TestParseSeekTable(t *testing.T) {
	points := []SeekPoint{
		{SampleNum: 8192, Offset: 2000, NSamples: 4096},
		{SampleNum: PlaceholderPoint},
		{SampleNum: 0, Offset: 0, NSamples: 4096},
		{SampleNum: 8192, Offset: 2100, NSamples: 4096},
		{SampleNum: 4096, Offset: 1000, NSamples: 4096},
	}
	var body []byte
	for _, p := range points {
		body = append(body, seekPointBytes(p)...)
	}
	table, err := ParseSeekTable(body)
	if err != nil {
		t.Fatalf("unable to parse seek table; %v", err)
	}
	if diff := cmp.Diff(points, table.Points); diff != "" {
		t.Errorf("seek points mismatch (-want +got):\n%s", diff)
	}
	want := []SeekPoint{
		{SampleNum: 0, Offset: 0, NSamples: 4096},
		{SampleNum: 4096, Offset: 1000, NSamples: 4096},
		{SampleNum: 8192, Offset: 2000, NSamples: 4096},
	}
	if diff := cmp.Diff(want, table.SeekPoints()); diff != "" {
		t.Errorf("usable seek points mismatch (-want +got):\n%s", diff)
	}
	if len(table.Points) != len(points) {
		t.Error("SeekPoints modified the table")
	}

	if _, err := ParseSeekTable(body[:17]); err == nil {
		t.Error("expected error for partial seek point")
	}
	placeholders := (&SeekTable{Points: []SeekPoint{{SampleNum: PlaceholderPoint}}}).SeekPoints()
	if len(placeholders) != 0 {
		t.Errorf("expected no usable points, got %d", len(placeholders))
	}
}

func appendLE(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func TestParseVorbisComment(t *testing.T) {
	body := appendLE(nil, "reference libFLAC 1.4.3 20230623")
	body = binary.LittleEndian.AppendUint32(body, 4)
	body = appendLE(body, "ARTIST=Iwan Gabovitch")
	body = appendLE(body, "title=Waving a bamboo staff")
	body = appendLE(body, "no separator")
	body = appendLE(body, "EMPTY=")
	got, err := ParseVorbisComment(body, DefaultLimits)
	if err != nil {
		t.Fatalf("unable to parse vorbis comment; %v", err)
	}
	want := &VorbisComment{
		Vendor: "reference libFLAC 1.4.3 20230623",
		Entries: []VorbisEntry{
			{Name: "ARTIST", Value: "Iwan Gabovitch"},
			{Name: "title", Value: "Waving a bamboo staff"},
			{Name: "EMPTY", Value: ""},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("vorbis comment mismatch (-want +got):\n%s", diff)
	}
	if v, ok := got.Get("TITLE"); !ok || v != "Waving a bamboo staff" {
		t.Errorf("Get(TITLE) = %q, %v", v, ok)
	}
	if _, ok := got.Get("ALBUM"); ok {
		t.Error("Get(ALBUM) found a value")
	}
}

func TestParseVorbisCommentLimits(t *testing.T) {
	lim := DefaultLimits
	lim.MaxComments = 2
	lim.MaxCommentLength = 8

	golden := []struct {
		name string
		body []byte
		want error
	}{
		{
			name: "vendor length past block",
			body: binary.LittleEndian.AppendUint32(nil, 1000),
			want: ErrTruncated,
		},
		{
			name: "vendor length above ceiling",
			body: binary.LittleEndian.AppendUint32(nil, 0xFFFFFFF0),
			want: ErrLimit,
		},
		{
			name: "comment count above ceiling",
			body: binary.LittleEndian.AppendUint32(appendLE(nil, "v"), 3),
			want: ErrLimit,
		},
		{
			name: "comment count past block",
			body: binary.LittleEndian.AppendUint32(appendLE(nil, "v"), 2),
			want: ErrTruncated,
		},
		{
			name: "comment above ceiling",
			body: appendLE(binary.LittleEndian.AppendUint32(appendLE(nil, "v"), 1), "A=123456789"),
			want: ErrLimit,
		},
		{
			name: "missing comment count",
			body: appendLE(nil, "v"),
			want: ErrTruncated,
		},
	}
	for _, g := range golden {
		if _, err := ParseVorbisComment(g.body, lim); !errors.Is(err, g.want) {
			t.Errorf("%s: error mismatch; expected %v, got %v", g.name, g.want, err)
		}
	}
}

func appendBE(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func pictureBody(mime, desc string, data []byte) []byte {
	body := binary.BigEndian.AppendUint32(nil, 3)
	body = appendBE(body, mime)
	body = appendBE(body, desc)
	for _, x := range []uint32{600, 400, 24, 0} {
		body = binary.BigEndian.AppendUint32(body, x)
	}
	return appendBE(body, string(data))
}

func TestParsePicture(t *testing.T) {
	data := []byte("\x89PNG\r\n\x1a\n")
	got, err := ParsePicture(pictureBody("image/png", "front cover", data), DefaultLimits)
	if err != nil {
		t.Fatalf("unable to parse picture; %v", err)
	}
	want := &Picture{
		Type:       3,
		MIME:       "image/png",
		Desc:       "front cover",
		Width:      600,
		Height:     400,
		ColorDepth: 24,
		Data:       data,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("picture mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePictureLimits(t *testing.T) {
	body := pictureBody("image/png", "", []byte{1, 2, 3})
	// Overwrite data_length with a length far beyond the ceiling.
	binary.BigEndian.PutUint32(body[len(body)-7:], 0xFFFFFFF0)
	if _, err := ParsePicture(body, DefaultLimits); !errors.Is(err, ErrLimit) {
		t.Errorf("expected ErrLimit for oversized data, got %v", err)
	}

	body = pictureBody("image/png", "", []byte{1, 2, 3})
	binary.BigEndian.PutUint32(body[len(body)-7:], 4)
	if _, err := ParsePicture(body, DefaultLimits); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated for data past the block, got %v", err)
	}

	lim := DefaultLimits
	lim.MaxMIMELength = 4
	if _, err := ParsePicture(pictureBody("image/jpeg", "", nil), lim); !errors.Is(err, ErrLimit) {
		t.Errorf("expected ErrLimit for MIME type, got %v", err)
	}
	lim = DefaultLimits
	lim.MaxDescLength = 2
	if _, err := ParsePicture(pictureBody("image/png", "cover", nil), lim); !errors.Is(err, ErrLimit) {
		t.Errorf("expected ErrLimit for description, got %v", err)
	}
	if _, err := ParsePicture([]byte{0, 0, 0, 3, 0, 0}, DefaultLimits); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestParseBody(t *testing.T) {
	body, err := ParseBody(Header{Type: TypeApplication, Length: 6}, []byte("riffab"), DefaultLimits)
	if err != nil {
		t.Fatalf("unable to parse application; %v", err)
	}
	app := body.(*Application)
	if app.ID != "riff" || string(app.Data) != "ab" || !app.ID.IsRegistered() {
		t.Errorf("application mismatch; got %q %q", app.ID, app.Data)
	}
	if ID("zzzz").IsRegistered() {
		t.Error("unexpected registered ID")
	}

	if _, err := ParseBody(Header{Type: TypeStreamInfo, Length: 34}, make([]byte, 30), DefaultLimits); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated for short body, got %v", err)
	}
	if _, err := ParseBody(Header{Type: 42, Length: 1}, []byte{0}, DefaultLimits); !errors.Is(err, ErrReservedType) {
		t.Errorf("expected ErrReservedType, got %v", err)
	}

	pad := []byte{0, 0, 1}
	if _, err := ParseBody(Header{Type: TypePadding, Length: 3}, pad, DefaultLimits); err != nil {
		t.Errorf("lenient padding failed; %v", err)
	}
	strict := DefaultLimits
	strict.StrictPadding = true
	if _, err := ParseBody(Header{Type: TypePadding, Length: 3}, pad, strict); !errors.Is(err, ErrInvalidPadding) {
		t.Errorf("expected ErrInvalidPadding, got %v", err)
	}
}

func cueTrack(offset uint64, num uint8, indicies ...CueSheetTrackIndex) []byte {
	buf := binary.BigEndian.AppendUint64(nil, offset)
	buf = append(buf, num)
	buf = append(buf, make([]byte, 12)...) // ISRC
	buf = append(buf, make([]byte, 14)...) // flags and reserved
	buf = append(buf, byte(len(indicies)))
	for _, index := range indicies {
		buf = binary.BigEndian.AppendUint64(buf, index.Offset)
		buf = append(buf, index.Num, 0, 0, 0)
	}
	return buf
}

func TestParseCueSheet(t *testing.T) {
	mcn := make([]byte, 128)
	copy(mcn, "1234567890123")
	body := append(mcn, binary.BigEndian.AppendUint64(nil, 88200)...)
	body = append(body, 0x80)
	body = append(body, make([]byte, 258)...)
	body = append(body, 3)
	body = append(body, cueTrack(0, 1, CueSheetTrackIndex{Num: 1}, CueSheetTrackIndex{Offset: 588, Num: 2})...)
	body = append(body, cueTrack(2940, 2, CueSheetTrackIndex{Num: 1})...)
	body = append(body, cueTrack(5880, 170)...)

	got, err := ParseCueSheet(body)
	if err != nil {
		t.Fatalf("unable to parse cue sheet; %v", err)
	}
	want := &CueSheet{
		MCN:            "1234567890123",
		NLeadInSamples: 88200,
		IsCompactDisc:  true,
		Tracks: []CueSheetTrack{
			{Offset: 0, Num: 1, IsAudio: true, Indicies: []CueSheetTrackIndex{{Num: 1}, {Offset: 588, Num: 2}}},
			{Offset: 2940, Num: 2, IsAudio: true, Indicies: []CueSheetTrackIndex{{Num: 1}}},
			{Offset: 5880, Num: 170, IsAudio: true},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cue sheet mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseCueSheet(body[:200]); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
	bad := append([]byte(nil), body...)
	bad[137] = 1 // reserved byte
	if _, err := ParseCueSheet(bad); !errors.Is(err, errReservedNotZero) {
		t.Errorf("expected reserved bits error, got %v", err)
	}
}
