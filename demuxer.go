package imf

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog"
)

// OutputStream is one published output: codec parameters and time base
// are inherited from the first resource's first media stream (§4.G, §6);
// Duration is expressed in that same time base.
type OutputStream struct {
	Index           int
	TimeBase        Rational
	CodecParameters any
	Duration        int64
}

// Option configures a Demuxer at Open time.
type Option func(*demuxerConfig)

type demuxerConfig struct {
	logger     zerolog.Logger
	byteReader ByteStreamReader
	opener     ChildDemuxerOpener
	childOpts  ChildOpenOptions
}

// WithLogger attaches a structured logger. The zero value (zerolog.Nop())
// is used if none is supplied.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *demuxerConfig) { c.logger = logger }
}

// WithByteStreamReader overrides the default (filesystem + http/https)
// reader used to load the CPL and asset map documents.
func WithByteStreamReader(reader ByteStreamReader) Option {
	return func(c *demuxerConfig) { c.byteReader = reader }
}

// WithChildDemuxerOpener supplies the host media framework's container
// backend. Required: Open fails without one (§1, §4.D — child-demuxer
// construction is always the host's responsibility).
func WithChildDemuxerOpener(opener ChildDemuxerOpener) Option {
	return func(c *demuxerConfig) { c.opener = opener }
}

// WithChildOpenOptions sets the I/O configuration (whitelist/blacklist,
// flags) inherited by every child demuxer this instance opens.
func WithChildOpenOptions(opts ChildOpenOptions) Option {
	return func(c *demuxerConfig) { c.childOpts = opts }
}

// Demuxer is a fully opened IMF composition: an owned Composition and
// AssetLocatorMap, one VirtualTrackPlaybackCtx per published output
// stream, and the collaborator handles needed to keep reading. All
// entities are created during Open and destroyed during Close (§3
// Lifecycle).
type Demuxer struct {
	composition *Composition
	assets      AssetLocatorMap
	tracks      []*VirtualTrackPlaybackCtx
	streams     []OutputStream

	opener     ChildDemuxerOpener
	childOpts  ChildOpenOptions
	logger     zerolog.Logger
	byteReader ByteStreamReader
}

// Composition returns the parsed, read-only composition.
func (d *Demuxer) Composition() *Composition { return d.composition }

// Assets returns the merged, read-only asset locator map.
func (d *Demuxer) Assets() AssetLocatorMap { return d.assets }

// Streams returns the published output streams, image first then audios
// in declaration order, matching §6's output contract.
func (d *Demuxer) Streams() []OutputStream { return d.streams }

// Open drives Lifecycle §4.G: parse the CPL, merge the asset map(s), and
// build one playback context per non-marker virtual track.
func Open(ctx context.Context, cplURL string, assetMapsOption string, opts ...Option) (*Demuxer, error) {
	cfg := demuxerConfig{
		logger:     zerolog.Nop(),
		byteReader: DefaultByteStreamReader{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.opener == nil {
		return nil, fmt.Errorf("%w: no ChildDemuxerOpener configured (see WithChildDemuxerOpener)", ErrInvalidData)
	}

	cplData, err := cfg.byteReader.ReadAll(ctx, cplURL)
	if err != nil {
		return nil, fmt.Errorf("reading CPL %s: %w", cplURL, err)
	}
	composition, err := ParseCPL(cplData)
	if err != nil {
		return nil, fmt.Errorf("parsing CPL %s: %w", cplURL, err)
	}

	assetMaps, err := resolveAssetMapURIs(cplURL, assetMapsOption)
	if err != nil {
		return nil, err
	}
	assets, err := MergeAssetMaps(ctx, cfg.byteReader, assetMaps, cfg.logger)
	if err != nil {
		return nil, err
	}

	d := &Demuxer{
		composition: composition,
		assets:      assets,
		opener:      cfg.opener,
		childOpts:   cfg.childOpts,
		logger:      cfg.logger,
		byteReader:  cfg.byteReader,
	}

	var index uint32
	declaredTracks := make([]*TrackFileVirtualTrack, 0, 1+len(composition.Audios))
	if composition.Image2D != nil {
		declaredTracks = append(declaredTracks, composition.Image2D)
	}
	declaredTracks = append(declaredTracks, composition.Audios...)

	for _, declared := range declaredTracks {
		track, err := buildTrack(ctx, index, declared, assets, cfg.opener, cfg.childOpts, cfg.logger)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.tracks = append(d.tracks, track)

		stream, err := publishOutputStream(track)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.streams = append(d.streams, stream)

		index++
	}

	return d, nil
}

func publishOutputStream(track *VirtualTrackPlaybackCtx) (OutputStream, error) {
	if len(track.Resources) == 0 || track.Resources[0].ChildDemuxer == nil {
		return OutputStream{}, fmt.Errorf("%w: track %d has no eagerly opened first resource", ErrInvalidData, track.Index)
	}
	childStreams := track.Resources[0].ChildDemuxer.Streams()
	if len(childStreams) == 0 {
		return OutputStream{}, fmt.Errorf("%w: track %d's first resource reports no streams", ErrInvalidData, track.Index)
	}
	first := childStreams[0]

	durationTicks := track.Duration.Mul(Rational{Num: first.TimeBase.Den, Den: first.TimeBase.Num})
	var ticks int64
	if durationTicks.Den != 0 {
		ticks = durationTicks.Num / durationTicks.Den
	}

	return OutputStream{
		Index:           int(track.Index),
		TimeBase:        first.TimeBase,
		CodecParameters: first.CodecParameters,
		Duration:        ticks,
	}, nil
}

// resolveAssetMapURIs implements §4.G's "assetmaps" option handling: a
// comma-separated list of asset map paths/URLs, defaulting to
// "<cpl_dirname>/ASSETMAP.xml" when the option is absent.
func resolveAssetMapURIs(cplURL, assetMapsOption string) ([]string, error) {
	if strings.TrimSpace(assetMapsOption) == "" {
		def, err := defaultAssetMapURI(cplURL)
		if err != nil {
			return nil, err
		}
		return []string{def}, nil
	}

	var out []string
	for _, part := range strings.Split(assetMapsOption, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: assetmaps option resolved to no paths", ErrInvalidData)
	}
	return out, nil
}

func defaultAssetMapURI(cplURL string) (string, error) {
	if strings.Contains(cplURL, "://") {
		u, err := url.Parse(cplURL)
		if err != nil {
			return "", fmt.Errorf("%w: CPL URL %q: %v", ErrInvalidData, cplURL, err)
		}
		dir := *u
		dir.Path = path.Join(path.Dir(u.Path), "ASSETMAP.xml")
		return dir.String(), nil
	}
	return path.Join(path.Dir(cplURL), "ASSETMAP.xml"), nil
}

// ReadPacket implements §4.F's per-request algorithm: pick the urgent
// track, test for composition end, locate and (if needed) switch to the
// active resource, read one packet, rewrite its timestamps, and advance
// clocks.
func (d *Demuxer) ReadPacket(ctx context.Context) (*Packet, error) {
	for {
		if ctx.Err() != nil {
			return nil, ErrEof
		}

		track := pickNextTrack(d.tracks)
		if track == nil || track.Exhausted() {
			return nil, ErrEof
		}

		activeIndex, err := locateActiveResource(track)
		if err != nil {
			if errors.Is(err, ErrEof) {
				return nil, ErrEof
			}
			return nil, err
		}

		needsSwitch := uint32(activeIndex) != track.CurrentResourceIndex ||
			track.Resources[track.CurrentResourceIndex].ChildDemuxer == nil
		if needsSwitch {
			if err := switchResource(ctx, track, activeIndex, d.opener, d.childOpts, d.logger); err != nil {
				return nil, err
			}
		}

		active := track.Resources[track.CurrentResourceIndex]
		pkt, err := active.ChildDemuxer.ReadPacket(ctx)
		if err != nil {
			if errors.Is(err, ErrEof) {
				if int(track.CurrentResourceIndex) < len(track.Resources)-1 {
					if err := switchResource(ctx, track, int(track.CurrentResourceIndex)+1, d.opener, d.childOpts, d.logger); err != nil {
						return nil, err
					}
					continue
				}
				return nil, ErrEof
			}
			return nil, fmt.Errorf("%w: reading packet from track %d: %v", ErrIo, track.Index, err)
		}

		childStreams := active.ChildDemuxer.Streams()
		childTimeBase := active.Resource.EditRate
		if len(childStreams) > 0 {
			childTimeBase = childStreams[0].TimeBase
		}

		rewriteTimestamps(pkt, track, active.Resource.EntryPoint)
		advanceClocks(track, pkt, childTimeBase, pkt.DTS)

		return pkt, nil
	}
}

// Close implements Lifecycle's teardown: every resource's child demuxer
// is closed, and no error is ever propagated (§4.G, §7).
func (d *Demuxer) Close() error {
	for _, track := range d.tracks {
		for _, rpc := range track.Resources {
			if rpc.ChildDemuxer == nil {
				continue
			}
			if err := rpc.ChildDemuxer.Close(); err != nil {
				d.logger.Warn().Err(err).Str("asset", rpc.Locator.UUID.String()).Msg("closing child demuxer")
			}
			rpc.ChildDemuxer = nil
		}
	}
	return nil
}
