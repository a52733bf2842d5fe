package flac

import (
	"os"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/segin/psymp3-sub012/meta"
)

// Default configuration values.
const (
	DefaultSyncWindow        = 512
	DefaultResyncWindow      = 64 * 1024
	DefaultMaxSeekIterations = 32
	DefaultMaxIndexEntries   = 4096
	DefaultCRCErrorThreshold = 10
	DefaultWaitTimeout       = 5 * time.Second
	DefaultMaxFrameSize      = 16 << 20
)

// Config holds the tunables of a Demuxer. The zero value of a field selects
// its default.
type Config struct {
	// SyncWindow is the minimum number of bytes scanned for a frame header
	// around a seek estimate. The scan always covers at least one maximum
	// frame.
	SyncWindow int

	// ResyncWindow is the number of bytes scanned for the next frame header
	// when a read finds garbage where a frame should start.
	ResyncWindow int

	// MaxSeekIterations bounds the bisection steps of a seek.
	MaxSeekIterations int

	// MaxIndexEntries bounds the frame index built while reading and seeking.
	MaxIndexEntries int

	// MaxFrameSize is the largest frame the extractor will buffer.
	MaxFrameSize int

	// VerifyFrameCRC enables CRC-16 checks of frame footers. Failures are
	// counted and logged; the frame is still returned.
	VerifyFrameCRC bool

	// CRCErrorThreshold is the number of CRC-16 failures after which
	// verification turns itself off.
	CRCErrorThreshold int

	// Limits bounds the lengths declared inside metadata blocks.
	Limits *meta.Limits

	// WaitTimeout bounds how long reads from a streaming source wait for data.
	WaitTimeout time.Duration

	// SkipID3v2 skips an ID3v2 tag in front of the stream marker.
	SkipID3v2 bool

	Logger logging.Logger
}

// withDefaults returns a copy of c with zero fields set to their defaults.
func (c *Config) withDefaults() Config {
	var conf Config
	if c != nil {
		conf = *c
	}
	if conf.SyncWindow <= 0 {
		conf.SyncWindow = DefaultSyncWindow
	}
	if conf.ResyncWindow <= 0 {
		conf.ResyncWindow = DefaultResyncWindow
	}
	if conf.MaxSeekIterations <= 0 {
		conf.MaxSeekIterations = DefaultMaxSeekIterations
	}
	if conf.MaxIndexEntries <= 0 {
		conf.MaxIndexEntries = DefaultMaxIndexEntries
	}
	if conf.MaxFrameSize <= 0 {
		conf.MaxFrameSize = DefaultMaxFrameSize
	}
	if conf.CRCErrorThreshold <= 0 {
		conf.CRCErrorThreshold = DefaultCRCErrorThreshold
	}
	if conf.Limits == nil {
		lim := meta.DefaultLimits
		conf.Limits = &lim
	}
	if conf.WaitTimeout <= 0 {
		conf.WaitTimeout = DefaultWaitTimeout
	}
	if conf.Logger == nil {
		conf.Logger = logging.New(logging.Warning, os.Stderr, true)
	}
	return conf
}
