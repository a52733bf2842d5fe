package main

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
	"github.com/mewkiz/pkg/osutil"
	"github.com/mewkiz/pkg/pathutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/segin/psymp3-sub012/internal/flacgen"
)

var flagBlockSize uint16

var encodeCmd = &cobra.Command{
	Use:   "encode FILE.wav...",
	Short: "Convert WAV files to verbatim coded FLAC streams",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, wavPath := range args {
			if err := wav2flac(cmd, wavPath); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	encodeCmd.Flags().BoolVarP(&flagForce, "force", "f", false, "overwrite existing FLAC files")
	encodeCmd.Flags().Uint16Var(&flagBlockSize, "block-size", 4096, "samples per frame")
}

func wav2flac(cmd *cobra.Command, wavPath string) error {
	r, err := os.Open(wavPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return errors.Errorf("invalid WAV file %q", wavPath)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return errors.WithStack(err)
	}
	nchannels := int(dec.NumChans)
	// 8-bit WAV samples are unsigned.
	var offset int
	if dec.BitDepth == 8 {
		offset = 128
	}

	flacPath := pathutil.TrimExt(wavPath) + ".flac"
	if !flagForce && osutil.Exists(flacPath) {
		return errors.Errorf("FLAC file %q already present; use -f flag to force overwrite", flacPath)
	}
	s, err := flacgen.Generate(flacgen.Options{
		SampleRate:    dec.SampleRate,
		NChannels:     uint8(nchannels),
		BitsPerSample: uint8(dec.BitDepth),
		NSamples:      uint64(len(buf.Data) / nchannels),
		BlockSize:     flagBlockSize,
		SeekInterval:  uint64(dec.SampleRate) * 10,
		Signal: func(ch int, n uint64) int32 {
			return int32(buf.Data[int(n)*nchannels+ch] - offset)
		},
	})
	if err != nil {
		return errors.Wrapf(err, "encoding %q", wavPath)
	}
	if err := os.WriteFile(flacPath, s.Data, 0o644); err != nil {
		return errors.WithStack(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d frames -> %s\n", wavPath, len(s.Frames), flacPath)
	return nil
}
