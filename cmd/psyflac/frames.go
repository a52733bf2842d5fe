package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	flac "github.com/segin/psymp3-sub012"
	"github.com/segin/psymp3-sub012/frame"
)

var framesCmd = &cobra.Command{
	Use:   "frames FILE",
	Short: "List the frames of a FLAC stream without decoding them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDemuxer(cmd.Context(), args[0], newLogger())
		if err != nil {
			return err
		}
		defer d.Close()
		w := cmd.OutOrStdout()
		for i := 0; ; i++ {
			chunk, err := d.ReadChunk()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "frame %d: offset=%d sample=%d size=%d", i, chunk.FileOffset, chunk.TimestampSamples, len(chunk.Data))
			listSubframe(w, chunk.Data)
		}
		printStats(w, d)
		return nil
	},
}

// listSubframe completes a frame line with the block size, the channel
// assignment and the coding of the first subframe of the frame in p.
func listSubframe(w io.Writer, p []byte) {
	hdr, err := frame.ParseHeader(p)
	if err != nil {
		fmt.Fprintf(w, " header: %v\n", err)
		return
	}
	fmt.Fprintf(w, " block_size=%d channels=%d", hdr.BlockSize, hdr.ChannelOrder.Count())
	sub, err := frame.ParseSubHeader(p, &hdr)
	if err != nil {
		fmt.Fprintf(w, " subframe: %v\n", err)
		return
	}
	fmt.Fprintf(w, " pred=%v order=%d wasted=%d\n", sub.Pred, sub.Order, sub.Wasted)
}

// printStats writes the demuxer statistics.
func printStats(w io.Writer, d *flac.Demuxer) {
	st := d.Stats()
	fmt.Fprintf(w, "frames read: %d\n", st.FramesRead)
	fmt.Fprintf(w, "frames indexed: %d\n", st.FramesIndexed)
	fmt.Fprintf(w, "index complete: %t\n", st.IndexComplete)
	fmt.Fprintf(w, "resyncs: %d\n", st.Resyncs)
	fmt.Fprintf(w, "sync false positives: %d\n", st.SyncFalsePositives)
	if st.CRCCheckEnabled || st.CRCErrors > 0 {
		fmt.Fprintf(w, "CRC-16 errors: %d\n", st.CRCErrors)
	}
	fmt.Fprintf(w, "bytes read: %d\n", st.BytesRead)
}
