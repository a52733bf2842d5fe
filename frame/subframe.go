package frame

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/segin/psymp3-sub012/internal/bits"
)

// Pred specifies the prediction method used to encode a subframe.
type Pred uint8

// Prediction methods.
const (
	// PredConstant specifies that the subframe contains a constant sound. The
	// audio samples are encoded using run-length encoding.
	PredConstant Pred = iota
	// PredVerbatim specifies that the subframe contains unencoded audio
	// samples. Random sound is often stored verbatim, since no prediction
	// method can compress it sufficiently.
	PredVerbatim
	// PredFixed specifies that the subframe contains linear prediction coded
	// audio samples. The coefficients of the prediction polynomial are selected
	// from a fixed set, and can represent 0th through fourth-order polynomials.
	PredFixed
	// PredFIR specifies that the subframe contains linear prediction coded audio
	// samples. The coefficients of the prediction polynomial are stored in the
	// subframe, and can represent 1st through 32nd-order polynomials.
	PredFIR
)

func (pred Pred) String() string {
	switch pred {
	case PredConstant:
		return "constant"
	case PredVerbatim:
		return "verbatim"
	case PredFixed:
		return "fixed"
	case PredFIR:
		return "FIR"
	}
	return fmt.Sprintf("Pred(%d)", uint8(pred))
}

// A SubHeader is the header of the first subframe of a frame. The demuxer
// never decodes audio; the header is enough to describe how a frame was coded.
type SubHeader struct {
	// Specifies the prediction method used to encode the audio sample of the
	// subframe.
	Pred Pred
	// Prediction order used by fixed and FIR linear prediction decoding.
	Order int
	// Wasted bits-per-sample.
	Wasted uint
}

// ParseSubHeader parses the header of the first subframe of the frame in p,
// whose frame header is hdr.
//
// Subframe header format (pseudo code):
//
//	type SUBFRAME_HEADER struct {
//	   _                uint1 // zero-padding, to prevent sync-fooling string of 1s.
//	   type             uint6
//	   has_wasted_bits  bool
//	   if has_wasted_bits {
//	      wasted_bits   unary // k-1
//	   }
//	}
//
// ref: https://www.rfc-editor.org/rfc/rfc9639.html#name-subframe-header
func ParseSubHeader(p []byte, hdr *Header) (*SubHeader, error) {
	if len(p) < hdr.Size+1 {
		return nil, ErrTruncated
	}
	br := bits.NewReader(p[hdr.Size:])
	x, _ := br.Read(8)
	if x&0x80 != 0 {
		return nil, pkgerrors.Wrap(ErrReserved, "frame.ParseSubHeader: non-zero padding bit")
	}
	// Subframe type:
	//    000000: constant
	//    000001: verbatim
	//    00001x: reserved
	//    0001xx: reserved
	//    001xxx: if xxx <= 4: fixed with order xxx, else reserved
	//    01xxxx: reserved
	//    1xxxxx: FIR with order xxxxx+1
	sub := new(SubHeader)
	typ := x >> 1 & 0x3F
	switch {
	case typ == 0:
		sub.Pred = PredConstant
	case typ == 1:
		sub.Pred = PredVerbatim
	case typ&0x38 == 0x08 && typ&0x07 <= 4:
		sub.Pred = PredFixed
		sub.Order = int(typ & 0x07)
	case typ&0x20 != 0:
		sub.Pred = PredFIR
		sub.Order = int(typ&0x1F) + 1
	default:
		return nil, pkgerrors.Wrapf(ErrReserved, "frame.ParseSubHeader: reserved subframe type %06b", typ)
	}
	if x&0x01 != 0 {
		k, err := br.ReadUnary()
		if err != nil {
			return nil, pkgerrors.Wrap(err, "frame.ParseSubHeader: wasted bits")
		}
		sub.Wasted = uint(k) + 1
	}
	return sub, nil
}
