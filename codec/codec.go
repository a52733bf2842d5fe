// Package codec provides the decoders that turn demuxed chunks into PCM.
package codec

import (
	"errors"

	"github.com/segin/psymp3-sub012/media"
)

// Names of the codecs registered by Register.
const (
	NameFLAC  = "flac"
	NameMuLaw = "mulaw"
	NameALaw  = "alaw"
)

// Errors returned by the codecs.
var (
	// ErrNotInitialized is returned by Decode before a successful Init.
	ErrNotInitialized = errors.New("codec: not initialized")
	// ErrEmptyChunk is returned when asked to decode an empty chunk.
	ErrEmptyChunk = errors.New("codec: empty chunk")
)

// Register adds the codecs of this package to reg.
func Register(reg *media.Registry) error {
	factories := []struct {
		name string
		f    media.CodecFactory
	}{
		{NameFLAC, func() media.Codec { return NewFLAC() }},
		{NameMuLaw, func() media.Codec { return NewG711(MuLaw) }},
		{NameALaw, func() media.Codec { return NewG711(ALaw) }},
	}
	for _, x := range factories {
		if err := reg.RegisterCodec(x.name, x.f); err != nil {
			return err
		}
	}
	return nil
}
