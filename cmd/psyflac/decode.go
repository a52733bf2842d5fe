package main

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/go-audio/wav"
	"github.com/mewkiz/pkg/osutil"
	"github.com/mewkiz/pkg/pathutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/segin/psymp3-sub012/iohandler"
)

// flagForce specifies if file overwriting should be forced, when a WAV file of
// the same name already exists.
var flagForce bool

// WAV format code for integer PCM.
const wavFormatPCM = 1

var decodeCmd = &cobra.Command{
	Use:   "decode FILE|URL...",
	Short: "Decode FLAC streams to WAV files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, src := range args {
			if err := decode(cmd, src); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	decodeCmd.Flags().BoolVarP(&flagForce, "force", "f", false, "overwrite existing WAV files")
}

// decode converts src to a WAV file next to it, or in the working directory
// for URLs.
func decode(cmd *cobra.Command, src string) error {
	log := newLogger()
	reg, err := newRegistry(log)
	if err != nil {
		return err
	}
	h, err := openHandler(cmd.Context(), src)
	if err != nil {
		return err
	}
	dmx, err := reg.Open(h)
	if err != nil {
		h.Close()
		return errors.Wrapf(err, "%s", src)
	}
	defer dmx.Close()
	if err := dmx.ParseContainer(); err != nil {
		return errors.Wrapf(err, "%s", src)
	}
	info := dmx.Streams()[0]
	dec, err := reg.OpenCodec(info)
	if err != nil {
		return err
	}

	wavPath := pathutil.TrimExt(path.Base(src)) + ".wav"
	if _, err := os.Stat(src); err == nil {
		wavPath = pathutil.TrimExt(src) + ".wav"
	}
	if !flagForce && osutil.Exists(wavPath) {
		return errors.Errorf("WAV file %q already present; use -f flag to force overwrite", wavPath)
	}
	fw, err := os.Create(wavPath)
	if err != nil {
		return err
	}
	defer fw.Close()
	enc := wav.NewEncoder(fw, int(info.SampleRate), int(info.BitsPerSample), int(info.Channels), wavFormatPCM)

	var frames int
	for {
		chunk, err := dmx.ReadChunk()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		buf, err := dec.Decode(chunk)
		if err != nil {
			return err
		}
		if info.BitsPerSample == 8 {
			// 8-bit WAV samples are unsigned.
			for i := range buf.Data {
				buf.Data[i] += 128
			}
		}
		if err := enc.Write(buf); err != nil {
			return errors.Wrapf(err, "writing %s", wavPath)
		}
		frames++
	}
	if err := enc.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", wavPath)
	}
	if s, ok := h.(*iohandler.Stream); ok {
		log.Info("stream received", "url", src, "bytes", s.Buffered(), "requested", s.Requested())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d frames, %d ms -> %s\n", src, frames, info.DurationMs, wavPath)
	return nil
}
