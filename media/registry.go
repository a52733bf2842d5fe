package media

import (
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/segin/psymp3-sub012/iohandler"
)

// ProbeSize is the number of leading bytes handed to demuxer probes.
const ProbeSize = 4096

// A Probe reports whether a container starting with header is handled by a
// demuxer.
type Probe func(header []byte) bool

// A DemuxerFactory creates a demuxer reading h.
type DemuxerFactory func(h iohandler.Handler) Demuxer

// A CodecFactory creates a codec.
type CodecFactory func() Codec

type demuxerEntry struct {
	name    string
	probe   Probe
	factory DemuxerFactory
}

// Registry maps format and codec names to factories. Entries are added by
// explicit registration at startup.
type Registry struct {
	mu       sync.RWMutex
	demuxers []demuxerEntry
	codecs   map[string]CodecFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]CodecFactory)}
}

// RegisterDemuxer adds a demuxer. Probes run in registration order.
func (r *Registry) RegisterDemuxer(name string, probe Probe, factory DemuxerFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.demuxers {
		if e.name == name {
			return errors.Errorf("media: demuxer %q already registered", name)
		}
	}
	r.demuxers = append(r.demuxers, demuxerEntry{name: name, probe: probe, factory: factory})
	return nil
}

// RegisterCodec adds a codec.
func (r *Registry) RegisterCodec(name string, factory CodecFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codecs[name]; ok {
		return errors.Errorf("media: codec %q already registered", name)
	}
	r.codecs[name] = factory
	return nil
}

// Demuxer returns the factory of the named demuxer.
func (r *Registry) Demuxer(name string) (DemuxerFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.demuxers {
		if e.name == name {
			return e.factory, true
		}
	}
	return nil, false
}

// Codec returns the factory of the named codec.
func (r *Registry) Codec(name string) (CodecFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.codecs[name]
	return f, ok
}

// Open probes the start of h and returns a demuxer for it, positioned at the
// start of h. It returns ErrNotSupported if no probe matches.
func (r *Registry) Open(h iohandler.Handler) (Demuxer, error) {
	header := make([]byte, ProbeSize)
	n, err := iohandler.ReadFullAt(h, header, 0, 0)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errors.Wrap(err, "media.Registry.Open: probe")
	}
	header = header[:n]
	if _, err := h.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "media.Registry.Open")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.demuxers {
		if e.probe(header) {
			return e.factory(h), nil
		}
	}
	return nil, ErrNotSupported
}

// OpenCodec returns an initialized codec for the stream.
func (r *Registry) OpenCodec(info StreamInfo) (Codec, error) {
	f, ok := r.Codec(info.CodecName)
	if !ok {
		return nil, errors.Wrapf(ErrNotSupported, "codec %q", info.CodecName)
	}
	c := f()
	if err := c.Init(info); err != nil {
		return nil, errors.Wrapf(err, "media.Registry.OpenCodec: %s", info.CodecName)
	}
	return c, nil
}
