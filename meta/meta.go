// Package meta contains functions for parsing FLAC metadata.
//
// Metadata block bodies are parsed from in-memory byte slices. Every length
// field inside a body is checked against the bytes remaining in the body and
// against the configured Limits before it is used, so a corrupt or hostile
// length never drives an allocation.
package meta

import (
	"errors"
	"io"

	pkgerrors "github.com/pkg/errors"

	"github.com/segin/psymp3-sub012/internal/bits"
)

// Errors returned when parsing metadata blocks.
var (
	// ErrInvalidType is returned for block type 127, which is forbidden to avoid
	// confusion with a frame sync code.
	ErrInvalidType = errors.New("meta: invalid block type")
	// ErrReservedType is returned by ParseBody for block types 7-126.
	ErrReservedType = errors.New("meta: reserved block type")
	// ErrTruncated is returned when a field reaches past the end of its block.
	ErrTruncated = errors.New("meta: block body truncated")
	// ErrLimit is returned when a declared field length exceeds its ceiling.
	ErrLimit = errors.New("meta: field length exceeds limit")
	// ErrInvalidStreamInfo is returned for a STREAMINFO block describing an
	// impossible stream.
	ErrInvalidStreamInfo = errors.New("meta: invalid stream info")
)

// Type is used to identify the metadata block type.
type Type uint8

// Metadata block types.
const (
	TypeStreamInfo    Type = 0
	TypePadding       Type = 1
	TypeApplication   Type = 2
	TypeSeekTable     Type = 3
	TypeVorbisComment Type = 4
	TypeCueSheet      Type = 5
	TypePicture       Type = 6
	// TypeInvalid is forbidden.
	TypeInvalid Type = 127
)

// typeName is a map from Type to name.
var typeName = map[Type]string{
	TypeStreamInfo:    "stream info",
	TypePadding:       "padding",
	TypeApplication:   "application",
	TypeSeekTable:     "seek table",
	TypeVorbisComment: "vorbis comment",
	TypeCueSheet:      "cue sheet",
	TypePicture:       "picture",
}

func (t Type) String() string {
	if s, ok := typeName[t]; ok {
		return s
	}
	if t == TypeInvalid {
		return "invalid"
	}
	return "reserved"
}

// IsReserved reports whether t is one of the reserved block types 7-126.
func (t Type) IsReserved() bool {
	return t >= 7 && t < TypeInvalid
}

// HeaderSize is the size in bytes of a metadata block header.
const HeaderSize = 4

// MaxBlockLength is the largest body length a block header can declare.
const MaxBlockLength = 1<<24 - 1

// A Header contains type and length information about a metadata block.
type Header struct {
	// IsLast is true if this block is the last metadata block before the audio
	// frames, and false otherwise.
	IsLast bool
	// Block type.
	Type Type
	// Length in bytes of the metadata body.
	Length int64
}

// ParseHeader parses a metadata block header from the first HeaderSize bytes
// of p. Reserved block types are returned as is, for the caller to skip.
//
// Block header format (pseudo code):
//
//	type METADATA_BLOCK_HEADER struct {
//	   is_last    bool
//	   block_type uint7
//	   length     uint24
//	}
//
// ref: https://www.rfc-editor.org/rfc/rfc9639.html#name-metadata-block-header
func ParseHeader(p []byte) (hdr Header, err error) {
	br := bits.NewReader(p)
	x, err := br.Read(32)
	if err != nil {
		return Header{}, unexpected(err)
	}
	hdr = Header{
		IsLast: x&0x80000000 != 0,
		Type:   Type(x >> 24 & 0x7F),
		Length: int64(x & 0xFFFFFF),
	}
	if hdr.Type == TypeInvalid {
		return hdr, pkgerrors.Wrap(ErrInvalidType, "meta.ParseHeader")
	}
	return hdr, nil
}

// A Block is a metadata block, consisting of a block header and a block body.
type Block struct {
	// Metadata block header.
	Header
	// Offset in bytes of the block header from the start of the stream.
	Offset int64
	// Metadata block body: *StreamInfo, *Application, *SeekTable, etc. Nil for
	// padding and reserved blocks.
	Body interface{}
}

// Limits bounds the lengths declared inside metadata block bodies.
type Limits struct {
	// Maximum length of the Vorbis comment vendor string.
	MaxVendorLength uint32
	// Maximum number of Vorbis comment fields.
	MaxComments uint32
	// Maximum length of a single Vorbis comment field.
	MaxCommentLength uint32
	// Maximum length of a picture MIME type.
	MaxMIMELength uint32
	// Maximum length of a picture description.
	MaxDescLength uint32
	// Maximum length of picture data.
	MaxPictureLength uint32
	// Reject padding blocks with nonzero content.
	StrictPadding bool
}

// DefaultLimits are the limits used when none are configured.
var DefaultLimits = Limits{
	MaxVendorLength:  64 * 1024,
	MaxComments:      64 * 1024,
	MaxCommentLength: 1 << 20,
	MaxMIMELength:    256,
	MaxDescLength:    64 * 1024,
	MaxPictureLength: 16 << 20,
}

// ParseBody parses the body of a metadata block described by hdr. The length
// of body must match hdr.Length.
func ParseBody(hdr Header, body []byte, lim Limits) (interface{}, error) {
	if int64(len(body)) != hdr.Length {
		return nil, pkgerrors.Wrapf(ErrTruncated, "meta.ParseBody: %v block body is %d bytes, header declares %d", hdr.Type, len(body), hdr.Length)
	}
	switch hdr.Type {
	case TypeStreamInfo:
		return ParseStreamInfo(body)
	case TypePadding:
		if lim.StrictPadding {
			return nil, VerifyPadding(body)
		}
		return nil, nil
	case TypeApplication:
		return ParseApplication(body)
	case TypeSeekTable:
		return ParseSeekTable(body)
	case TypeVorbisComment:
		return ParseVorbisComment(body, lim)
	case TypeCueSheet:
		return ParseCueSheet(body)
	case TypePicture:
		return ParsePicture(body, lim)
	case TypeInvalid:
		return nil, pkgerrors.Wrap(ErrInvalidType, "meta.ParseBody")
	}
	return nil, pkgerrors.Wrapf(ErrReservedType, "meta.ParseBody: type %d", uint8(hdr.Type))
}

// unexpected maps a short read from the bit reader to ErrTruncated.
func unexpected(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return ErrTruncated
	}
	return err
}

// readLength reads a length field of n bits and checks it against the
// remaining bytes of the body and the given ceiling.
func readLength(br *bits.Reader, n uint, max uint32, field string) (int, error) {
	x, err := br.Read(n)
	if err != nil {
		return 0, unexpected(err)
	}
	return checkLength(br, x, max, field)
}

// readLengthLE reads a little-endian 32-bit length field, as used by Vorbis
// comments, and checks it like readLength.
func readLengthLE(br *bits.Reader, max uint32, field string) (int, error) {
	x, err := readUint32LE(br)
	if err != nil {
		return 0, err
	}
	return checkLength(br, uint64(x), max, field)
}

func checkLength(br *bits.Reader, x uint64, max uint32, field string) (int, error) {
	if x > uint64(max) {
		return 0, pkgerrors.Wrapf(ErrLimit, "%s length %d exceeds %d", field, x, max)
	}
	if x*8 > br.Len() {
		return 0, pkgerrors.Wrapf(ErrTruncated, "%s length %d exceeds remaining %d bytes", field, x, br.Len()/8)
	}
	return int(x), nil
}

func readUint32LE(br *bits.Reader) (uint32, error) {
	var p [4]byte
	if err := br.ReadFull(p[:]); err != nil {
		return 0, unexpected(err)
	}
	return uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24, nil
}
