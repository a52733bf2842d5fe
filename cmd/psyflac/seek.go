package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	flac "github.com/segin/psymp3-sub012"
)

var seekCmd = &cobra.Command{
	Use:   "seek FILE MS...",
	Short: "Seek to positions in milliseconds and report the frames found",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDemuxer(cmd.Context(), args[0], newLogger())
		if err != nil {
			return err
		}
		defer d.Close()
		w := cmd.OutOrStdout()
		for _, arg := range args[1:] {
			ms, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return err
			}
			d.Prefetch(ms)
			if err := d.SeekTo(ms); err != nil {
				reportError(w, d, ms)
				continue
			}
			chunk, err := d.ReadChunk()
			if err != nil {
				reportError(w, d, ms)
				continue
			}
			fmt.Fprintf(w, "%d ms: frame at offset %d, sample %d (%d ms)\n", ms, chunk.FileOffset, chunk.TimestampSamples, d.StreamInfo().SamplesToMs(chunk.TimestampSamples))
		}
		printStats(w, d)
		return nil
	},
}

// reportError writes the error recorded for the target ms and clears it, so
// the next target starts without one.
func reportError(w io.Writer, d *flac.Demuxer, ms uint64) {
	if e := d.LastError(); e != nil {
		fmt.Fprintf(w, "%d ms: %v\n", ms, e)
	}
	d.ClearError()
}
