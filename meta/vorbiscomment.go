package meta

import (
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/segin/psymp3-sub012/internal/bits"
)

// A VorbisComment metadata block is for storing a list of human-readable
// name/value pairs. Values are encoded using UTF-8. It is an implementation of
// the Vorbis comment specification (without the framing bit). This is the only
// officially supported tagging mechanism in FLAC. There may be only one
// VORBIS_COMMENT block in a stream. In some external documentation, Vorbis
// comments are called FLAC tags to lessen confusion.
type VorbisComment struct {
	Vendor  string
	Entries []VorbisEntry
}

// A VorbisEntry is a name/value pair.
type VorbisEntry struct {
	Name  string
	Value string
}

// ParseVorbisComment parses the body of a VORBIS_COMMENT metadata block. The
// vendor length, field count and field lengths are bounded by lim. Fields
// without a '=' separator are dropped.
//
// Vorbis comment format (pseudo code):
//
//	type METADATA_BLOCK_VORBIS_COMMENT struct {
//	   vendor_length uint32 // little-endian
//	   vendor_string [vendor_length]byte
//	   comment_count uint32 // little-endian
//	   comments      [comment_count]comment
//	}
//
//	type comment struct {
//	   vector_length uint32 // little-endian
//	   // vector_string is a name/value pair. Example: "NAME=value".
//	   vector_string [length]byte
//	}
func ParseVorbisComment(body []byte, lim Limits) (*VorbisComment, error) {
	br := bits.NewReader(body)

	// Vendor.
	n, err := readLengthLE(br, lim.MaxVendorLength, "vendor")
	if err != nil {
		return nil, pkgerrors.WithMessage(err, "meta.ParseVorbisComment")
	}
	vendor, _ := br.ReadBytes(n)
	vc := &VorbisComment{Vendor: string(vendor)}

	// Comment count. Each comment takes at least 4 bytes.
	count, err := readUint32LE(br)
	if err != nil {
		return nil, pkgerrors.WithMessage(err, "meta.ParseVorbisComment: comment count")
	}
	if count > lim.MaxComments {
		return nil, pkgerrors.Wrapf(ErrLimit, "meta.ParseVorbisComment: %d comments exceeds %d", count, lim.MaxComments)
	}
	if uint64(count)*32 > br.Len() {
		return nil, pkgerrors.Wrapf(ErrTruncated, "meta.ParseVorbisComment: %d comments in %d bytes", count, br.Len()/8)
	}

	// Comments.
	vc.Entries = make([]VorbisEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		n, err := readLengthLE(br, lim.MaxCommentLength, "comment")
		if err != nil {
			return nil, pkgerrors.WithMessagef(err, "meta.ParseVorbisComment: comment %d", i)
		}
		buf, _ := br.ReadBytes(n)
		vector := string(buf)
		pos := strings.IndexByte(vector, '=')
		if pos == -1 {
			continue
		}
		vc.Entries = append(vc.Entries, VorbisEntry{
			Name:  vector[:pos],
			Value: vector[pos+1:],
		})
	}
	return vc, nil
}

// Get returns the value of the first entry named name, compared without regard
// to case, and whether one was found.
func (vc *VorbisComment) Get(name string) (string, bool) {
	for _, e := range vc.Entries {
		if strings.EqualFold(e.Name, name) {
			return e.Value, true
		}
	}
	return "", false
}
