package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/segin/psymp3-sub012/internal/flacgen"
	"github.com/segin/psymp3-sub012/meta"
)

var genOpts = flacgen.Options{
	SampleRate:    44100,
	NChannels:     2,
	BitsPerSample: 16,
	NSamples:      441000,
	BlockSize:     4096,
}

var genArtist, genTitle string

var genCmd = &cobra.Command{
	Use:   "gen FILE",
	Short: "Write a synthetic FLAC stream with a known frame layout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := genOpts
		if genArtist != "" || genTitle != "" {
			vc := &meta.VorbisComment{Vendor: "psyflac"}
			if genArtist != "" {
				vc.Entries = append(vc.Entries, meta.VorbisEntry{Name: "ARTIST", Value: genArtist})
			}
			if genTitle != "" {
				vc.Entries = append(vc.Entries, meta.VorbisEntry{Name: "TITLE", Value: genTitle})
			}
			opts.VorbisComment = vc
		}
		s, err := flacgen.Generate(opts)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], s.Data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d frames, %d bytes, audio at offset %d\n", args[0], len(s.Frames), len(s.Data), s.DataStart)
		return nil
	},
}

func init() {
	f := genCmd.Flags()
	f.Uint32Var(&genOpts.SampleRate, "rate", genOpts.SampleRate, "sample rate in Hz")
	f.Uint8Var(&genOpts.NChannels, "channels", genOpts.NChannels, "number of channels")
	f.Uint8Var(&genOpts.BitsPerSample, "bps", genOpts.BitsPerSample, "bits per sample")
	f.Uint64Var(&genOpts.NSamples, "samples", genOpts.NSamples, "total samples per channel")
	f.Uint16Var(&genOpts.BlockSize, "block-size", genOpts.BlockSize, "samples per frame")
	f.BoolVar(&genOpts.Variable, "variable", false, "use variable block sizes")
	f.Uint64Var(&genOpts.SeekInterval, "seek-interval", 0, "samples between seek points; 0 omits the seek table")
	f.IntVar(&genOpts.Placeholders, "placeholders", 0, "placeholder seek points to append")
	f.BoolVar(&genOpts.OmitFrameSize, "omit-frame-size", false, "leave the STREAMINFO frame sizes unset")
	f.BoolVar(&genOpts.OmitTotal, "omit-total", false, "leave the STREAMINFO sample count unset")
	f.StringVar(&genArtist, "artist", "", "ARTIST comment")
	f.StringVar(&genTitle, "title", "", "TITLE comment")
}
