package meta

import (
	"bytes"
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/segin/psymp3-sub012/internal/bits"
)

// errReservedNotZero is returned when reserved cue sheet bits are set.
var errReservedNotZero = errors.New("meta.ParseCueSheet: all reserved bits must be 0")

// A CueSheet metadata block stores track and index points, compatible with Red
// Book CD digital audio discs, as well as the media catalog number and track
// ISRCs.
type CueSheet struct {
	// Media catalog number, in ASCII printable characters 0x20-0x7e. For CD-DA,
	// this is a thirteen digit number.
	MCN string
	// The number of lead-in samples; only meaningful for CD-DA cue sheets.
	NLeadInSamples uint64
	// true if the CUESHEET corresponds to a Compact Disc, else false.
	IsCompactDisc bool
	// One or more tracks. The last track is the lead-out track; its number is
	// 170 for CD-DA and 255 otherwise.
	Tracks []CueSheetTrack
}

// A CueSheetTrack contains information about a track within a CueSheet.
type CueSheetTrack struct {
	// Track offset in samples, relative to the beginning of the FLAC audio
	// stream. For CD-DA, the offset is evenly divisible by 588 samples.
	Offset uint64
	// Track number; 0 is not allowed.
	Num uint8
	// Track ISRC; empty if absent.
	ISRC string
	// The track type: true for audio, false for non-audio.
	IsAudio bool
	// The pre-emphasis flag.
	HasPreEmphasis bool
	// For all tracks except the lead-out track, one or more track index points.
	Indicies []CueSheetTrackIndex
}

// A CueSheetTrackIndex contains information about an index point in a track.
type CueSheetTrackIndex struct {
	// Offset in samples, relative to the track offset, of the index point.
	Offset uint64
	// The index point number.
	Num uint8
}

// ParseCueSheet parses the body of a CUESHEET metadata block.
//
// Cue sheet format (pseudo code):
//
//	type METADATA_BLOCK_CUESHEET struct {
//	   mcn                  [128]byte
//	   lead_in_sample_count uint64
//	   is_compact_disc      bool
//	   _                    uint7
//	   _                    [258]byte
//	   track_count          uint8
//	   tracks               [track_count]track
//	}
//
//	type track struct {
//	   offset            uint64
//	   track_num         uint8
//	   isrc              [12]byte
//	   is_audio          bool // 0: audio, 1: non-audio.
//	   has_pre_emphasis  bool
//	   _                 uint6
//	   _                 [13]byte
//	   track_index_count uint8
//	   track_indexes     [track_index_count]track_index
//	}
//
//	type track_index {
//	   offset          uint64
//	   index_point_num uint8
//	   _               [3]byte
//	}
//
// ref: https://www.rfc-editor.org/rfc/rfc9639.html#name-cuesheet
func ParseCueSheet(body []byte) (cs *CueSheet, err error) {
	defer func() {
		if err != nil {
			err = pkgerrors.WithMessage(unexpected(err), "meta.ParseCueSheet")
		}
	}()
	br := bits.NewReader(body)
	cs = new(CueSheet)

	// Media catalog number.
	buf, err := br.ReadBytes(128)
	if err != nil {
		return nil, err
	}
	cs.MCN = stringFromSZ(buf)
	for _, r := range cs.MCN {
		if r < 0x20 || r > 0x7E {
			return nil, pkgerrors.Errorf("invalid character 0x%02X in media catalog number", r)
		}
	}
	if cs.NLeadInSamples, err = br.Read(64); err != nil {
		return nil, err
	}
	if cs.IsCompactDisc, err = br.ReadBit(); err != nil {
		return nil, err
	}
	if err := skipReserved(br, 7+258*8); err != nil {
		return nil, err
	}
	if !cs.IsCompactDisc && cs.NLeadInSamples != 0 {
		return nil, pkgerrors.Errorf("invalid lead-in sample count for non CD-DA; expected 0, got %d", cs.NLeadInSamples)
	}

	// Tracks.
	ntracks, err := br.Read(8)
	if err != nil {
		return nil, err
	}
	if ntracks < 1 {
		return nil, errors.New("at least one track (the lead-out track) is required")
	}
	if ntracks > 100 && cs.IsCompactDisc {
		return nil, pkgerrors.Errorf("too many tracks for CD-DA cue sheet; expected <= 100, got %d", ntracks)
	}
	cs.Tracks = make([]CueSheetTrack, ntracks)
	for i := range cs.Tracks {
		track := &cs.Tracks[i]
		leadOut := i == len(cs.Tracks)-1
		if err := parseTrack(br, track, cs.IsCompactDisc, leadOut); err != nil {
			return nil, pkgerrors.WithMessagef(err, "track %d", i)
		}
	}
	return cs, nil
}

// parseTrack parses a single cue sheet track and its index points.
func parseTrack(br *bits.Reader, track *CueSheetTrack, isCD, leadOut bool) (err error) {
	if track.Offset, err = br.Read(64); err != nil {
		return err
	}
	if isCD && track.Offset%588 != 0 {
		return pkgerrors.Errorf("invalid track offset (%d) for CD-DA; must be evenly divisible by 588", track.Offset)
	}
	num, err := br.Read(8)
	if err != nil {
		return err
	}
	track.Num = uint8(num)
	switch {
	case track.Num == 0:
		return errors.New("track number 0 not allowed")
	case isCD && leadOut && track.Num != 170:
		return pkgerrors.Errorf("invalid lead-out track number for CD-DA; expected 170, got %d", track.Num)
	case isCD && !leadOut && track.Num > 99:
		return pkgerrors.Errorf("invalid track number for CD-DA; expected <= 99, got %d", track.Num)
	case !isCD && leadOut && track.Num != 255:
		return pkgerrors.Errorf("invalid lead-out track number for non CD-DA; expected 255, got %d", track.Num)
	}
	isrc, err := br.ReadBytes(12)
	if err != nil {
		return err
	}
	track.ISRC = stringFromSZ(isrc)
	nonAudio, err := br.ReadBit()
	if err != nil {
		return err
	}
	track.IsAudio = !nonAudio
	if track.HasPreEmphasis, err = br.ReadBit(); err != nil {
		return err
	}
	if err := skipReserved(br, 6+13*8); err != nil {
		return err
	}

	nindicies, err := br.Read(8)
	if err != nil {
		return err
	}
	switch {
	case leadOut && nindicies != 0:
		return pkgerrors.Errorf("invalid number of track points for the lead-out track; expected 0, got %d", nindicies)
	case !leadOut && nindicies < 1:
		return pkgerrors.Errorf("invalid number of track points; expected >= 1, got %d", nindicies)
	case isCD && nindicies > 100:
		return pkgerrors.Errorf("invalid number of track points for CD-DA; expected <= 100, got %d", nindicies)
	}
	if nindicies == 0 {
		return nil
	}
	track.Indicies = make([]CueSheetTrackIndex, nindicies)
	for i := range track.Indicies {
		index := &track.Indicies[i]
		if index.Offset, err = br.Read(64); err != nil {
			return err
		}
		num, err := br.Read(8)
		if err != nil {
			return err
		}
		index.Num = uint8(num)
		if err := skipReserved(br, 3*8); err != nil {
			return err
		}
	}
	return nil
}

// skipReserved skips n reserved bits, which must all be zero.
func skipReserved(br *bits.Reader, n uint) error {
	for n > 0 {
		m := n
		if m > 32 {
			m = 32
		}
		x, err := br.Read(m)
		if err != nil {
			return err
		}
		if x != 0 {
			return errReservedNotZero
		}
		n -= m
	}
	return nil
}

// stringFromSZ converts the provided byte slice to a string after terminating
// it at the first occurrence of a NULL character.
func stringFromSZ(buf []byte) string {
	if pos := bytes.IndexByte(buf, 0); pos != -1 {
		buf = buf[:pos]
	}
	return string(buf)
}
