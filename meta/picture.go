package meta

import (
	pkgerrors "github.com/pkg/errors"

	"github.com/segin/psymp3-sub012/internal/bits"
)

// A Picture metadata block is for storing pictures associated with the file,
// most commonly cover art from CDs. There may be more than one PICTURE block in
// a file.
type Picture struct {
	// The picture type according to the ID3v2 APIC frame:
	//    0 - Other
	//    1 - 32x32 pixels 'file icon' (PNG only)
	//    2 - Other file icon
	//    3 - Cover (front)
	//    4 - Cover (back)
	//    5 - Leaflet page
	//    6 - Media (e.g. label side of CD)
	//    7 - Lead artist/lead performer/soloist
	//    8 - Artist/performer
	//    9 - Conductor
	//    10 - Band/Orchestra
	//    11 - Composer
	//    12 - Lyricist/text writer
	//    13 - Recording Location
	//    14 - During recording
	//    15 - During performance
	//    16 - Movie/video screen capture
	//    17 - A bright coloured fish
	//    18 - Illustration
	//    19 - Band/artist logotype
	//    20 - Publisher/Studio logotype
	//
	// Others are reserved and should not be used. There may only be one each of
	// picture type 1 and 2 in a file.
	Type uint32
	// The MIME type string, in printable ASCII characters 0x20-0x7e. The MIME
	// type may also be --> to signify that the data part is a URL of the picture
	// instead of the picture data itself.
	MIME string
	// The description of the picture, in UTF-8.
	Desc string
	// The width of the picture in pixels.
	Width uint32
	// The height of the picture in pixels.
	Height uint32
	// The color depth of the picture in bits-per-pixel.
	ColorDepth uint32
	// For indexed-color pictures (e.g. GIF), the number of colors used, or 0 for
	// non-indexed pictures.
	ColorCount uint32
	// The binary picture data.
	Data []byte
}

// ParsePicture parses the body of a PICTURE metadata block. The MIME type,
// description and data lengths are bounded by lim.
//
// Picture format (pseudo code):
//
//	type METADATA_BLOCK_PICTURE struct {
//	   type        uint32
//	   mime_length uint32
//	   mime_string [mime_length]byte
//	   desc_length uint32
//	   desc_string [desc_length]byte
//	   width       uint32
//	   height      uint32
//	   color_depth uint32
//	   color_count uint32
//	   data_length uint32
//	   data        [data_length]byte
//	}
func ParsePicture(body []byte, lim Limits) (*Picture, error) {
	br := bits.NewReader(body)
	pic := new(Picture)
	x, err := br.Read(32)
	if err != nil {
		return nil, pkgerrors.WithMessage(unexpected(err), "meta.ParsePicture: type")
	}
	pic.Type = uint32(x)

	// MIME type.
	n, err := readLength(br, 32, lim.MaxMIMELength, "MIME type")
	if err != nil {
		return nil, pkgerrors.WithMessage(err, "meta.ParsePicture")
	}
	buf, _ := br.ReadBytes(n)
	pic.MIME = string(buf)

	// Description.
	n, err = readLength(br, 32, lim.MaxDescLength, "description")
	if err != nil {
		return nil, pkgerrors.WithMessage(err, "meta.ParsePicture")
	}
	buf, _ = br.ReadBytes(n)
	pic.Desc = string(buf)

	// Dimensions.
	for _, field := range []*uint32{&pic.Width, &pic.Height, &pic.ColorDepth, &pic.ColorCount} {
		x, err := br.Read(32)
		if err != nil {
			return nil, pkgerrors.WithMessage(unexpected(err), "meta.ParsePicture: dimensions")
		}
		*field = uint32(x)
	}

	// Data.
	n, err = readLength(br, 32, lim.MaxPictureLength, "picture data")
	if err != nil {
		return nil, pkgerrors.WithMessage(err, "meta.ParsePicture")
	}
	pic.Data, _ = br.ReadBytes(n)
	return pic, nil
}
