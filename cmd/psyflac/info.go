package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	flac "github.com/segin/psymp3-sub012"
	"github.com/segin/psymp3-sub012/meta"
)

var infoCmd = &cobra.Command{
	Use:   "info FILE...",
	Short: "List the metadata blocks of FLAC streams",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		// Files are parsed concurrently; reports are printed in argument order.
		reports := make([]bytes.Buffer, len(args))
		g, ctx := errgroup.WithContext(cmd.Context())
		for i, path := range args {
			g.Go(func() error {
				d, err := openDemuxer(ctx, path, log)
				if err != nil {
					return err
				}
				defer d.Close()
				w := &reports[i]
				if len(args) > 1 {
					fmt.Fprintf(w, "%s:\n", path)
				}
				listDemuxer(w, d)
				return nil
			})
		}
		err := g.Wait()
		for i := range reports {
			cmd.OutOrStdout().Write(reports[i].Bytes())
		}
		return err
	},
}

// listDemuxer writes the metadata blocks and stream summary of d.
func listDemuxer(w io.Writer, d *flac.Demuxer) {
	si := d.StreamInfo()
	for i, block := range d.Blocks() {
		fmt.Fprintf(w, "METADATA block #%d\n", i)
		fmt.Fprintf(w, "  type: %d (%s)\n", block.Type, block.Type)
		fmt.Fprintf(w, "  is last: %t\n", block.IsLast)
		fmt.Fprintf(w, "  length: %d\n", block.Length)
		fmt.Fprintf(w, "  offset: %d\n", block.Offset)
		switch block.Type {
		case meta.TypeStreamInfo:
			listStreamInfo(w, si)
		case meta.TypeSeekTable:
			listSeekTable(w, d.SeekTable())
		case meta.TypeVorbisComment:
			listVorbisComment(w, d.VorbisComment())
		case meta.TypeCueSheet:
			listCueSheet(w, d.CueSheet())
		}
	}
	for _, app := range d.Applications() {
		fmt.Fprintf(w, "APPLICATION %s\n", app.ID)
		fmt.Fprintf(w, "  registered: %t\n", app.ID.IsRegistered())
		fmt.Fprintf(w, "  data length: %d\n", len(app.Data))
	}
	for _, pic := range d.Pictures() {
		listPicture(w, &pic)
	}
	info := d.Streams()[0]
	fmt.Fprintf(w, "audio data offset: %d\n", d.DataStart())
	fmt.Fprintf(w, "duration: %d ms\n", info.DurationMs)
	fmt.Fprintf(w, "bitrate: %d bit/s\n", info.Bitrate)
}

func listStreamInfo(w io.Writer, si *meta.StreamInfo) {
	fmt.Fprintf(w, "  minimum blocksize: %d samples\n", si.BlockSizeMin)
	fmt.Fprintf(w, "  maximum blocksize: %d samples\n", si.BlockSizeMax)
	fmt.Fprintf(w, "  minimum framesize: %d bytes\n", si.FrameSizeMin)
	fmt.Fprintf(w, "  maximum framesize: %d bytes\n", si.FrameSizeMax)
	fmt.Fprintf(w, "  sample_rate: %d Hz\n", si.SampleRate)
	fmt.Fprintf(w, "  channels: %d\n", si.NChannels)
	fmt.Fprintf(w, "  bits-per-sample: %d\n", si.BitsPerSample)
	fmt.Fprintf(w, "  total samples: %d\n", si.NSamples)
	fmt.Fprintf(w, "  MD5 signature: %x\n", si.MD5sum)
}

func listSeekTable(w io.Writer, st *meta.SeekTable) {
	fmt.Fprintf(w, "  seek points: %d\n", len(st.Points))
	for i, point := range st.Points {
		if point.IsPlaceholder() {
			fmt.Fprintf(w, "    point %d: PLACEHOLDER\n", i)
			continue
		}
		fmt.Fprintf(w, "    point %d: sample_number=%d, stream_offset=%d, frame_samples=%d\n", i, point.SampleNum, point.Offset, point.NSamples)
	}
}

func listVorbisComment(w io.Writer, vc *meta.VorbisComment) {
	fmt.Fprintf(w, "  vendor string: %s\n", vc.Vendor)
	fmt.Fprintf(w, "  comments: %d\n", len(vc.Entries))
	for i, e := range vc.Entries {
		fmt.Fprintf(w, "    comment[%d]: %s=%s\n", i, e.Name, e.Value)
	}
}

func listCueSheet(w io.Writer, cs *meta.CueSheet) {
	fmt.Fprintf(w, "  media catalog number: %s\n", cs.MCN)
	fmt.Fprintf(w, "  lead-in: %d\n", cs.NLeadInSamples)
	fmt.Fprintf(w, "  is CD: %t\n", cs.IsCompactDisc)
	fmt.Fprintf(w, "  number of tracks: %d\n", len(cs.Tracks))
	for i, track := range cs.Tracks {
		fmt.Fprintf(w, "    track[%d]\n", i)
		fmt.Fprintf(w, "      offset: %d\n", track.Offset)
		if i == len(cs.Tracks)-1 {
			fmt.Fprintf(w, "      number: %d (LEAD-OUT)\n", track.Num)
			continue
		}
		fmt.Fprintf(w, "      number: %d\n", track.Num)
		fmt.Fprintf(w, "      ISRC: %s\n", track.ISRC)
		fmt.Fprintf(w, "      audio: %t\n", track.IsAudio)
		fmt.Fprintf(w, "      pre-emphasis: %t\n", track.HasPreEmphasis)
		fmt.Fprintf(w, "      number of index points: %d\n", len(track.Indicies))
	}
}

func listPicture(w io.Writer, pic *meta.Picture) {
	fmt.Fprintf(w, "PICTURE type %d\n", pic.Type)
	fmt.Fprintf(w, "  MIME type: %s\n", pic.MIME)
	fmt.Fprintf(w, "  description: %s\n", pic.Desc)
	fmt.Fprintf(w, "  size: %dx%d, depth %d, colors %d\n", pic.Width, pic.Height, pic.ColorDepth, pic.ColorCount)
	fmt.Fprintf(w, "  data length: %d\n", len(pic.Data))
	n := len(pic.Data)
	if n > 64 {
		n = 64
	}
	fmt.Fprint(w, hex.Dump(pic.Data[:n]))
}
