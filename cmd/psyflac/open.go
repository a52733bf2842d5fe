package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	flac "github.com/segin/psymp3-sub012"
	"github.com/segin/psymp3-sub012/codec"
	"github.com/segin/psymp3-sub012/iohandler"
	"github.com/segin/psymp3-sub012/media"
)

// newConfig returns the demuxer configuration selected by the flags.
func newConfig(log logging.Logger) *flac.Config {
	return &flac.Config{
		VerifyFrameCRC: flagVerifyCRC,
		SkipID3v2:      true,
		Logger:         log,
	}
}

// newRegistry returns a registry holding the FLAC demuxer and all codecs.
func newRegistry(log logging.Logger) (*media.Registry, error) {
	reg := media.NewRegistry()
	if err := flac.Register(reg, newConfig(log)); err != nil {
		return nil, err
	}
	if err := codec.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// openHandler opens a local file or an HTTP(S) URL.
func openHandler(ctx context.Context, path string) (iohandler.Handler, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return iohandler.OpenURL(ctx, http.DefaultClient, path, flac.DefaultWaitTimeout)
	}
	return iohandler.OpenFile(path)
}

// openDemuxer opens path and parses its FLAC container.
func openDemuxer(ctx context.Context, path string, log logging.Logger) (*flac.Demuxer, error) {
	h, err := openHandler(ctx, path)
	if err != nil {
		return nil, err
	}
	d := flac.New(h, newConfig(log))
	if err := d.ParseContainer(); err != nil {
		d.Close()
		return nil, errors.Wrapf(err, "%s", path)
	}
	return d, nil
}
