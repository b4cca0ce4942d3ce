package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/go-webdl/imf"
)

// rawPassthroughOpener is a minimal, demonstration-only
// imf.ChildDemuxerOpener: it reads a resource's entire track file as one
// opaque packet. Real container decoding — essence unwrapping, frame
// boundary detection, codec parameter extraction — is the host media
// framework's job per spec.md §1 ("out of scope"); this CLI ships the
// simplest possible backend so the composition-level scheduling logic
// (the actual subject of this module) can be exercised end to end without
// vendoring a real container decoder. See DESIGN.md.
type rawPassthroughOpener struct {
	logger zerolog.Logger
}

func (o rawPassthroughOpener) Open(ctx context.Context, uri string, opts imf.ChildOpenOptions) (imf.ChildDemuxer, error) {
	data, err := os.ReadFile(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", imf.ErrIo, err)
	}
	o.logger.Debug().Str("uri", uri).Int("bytes", len(data)).Msg("opened raw passthrough resource")
	return &rawPassthroughDemuxer{data: data}, nil
}

type rawPassthroughDemuxer struct {
	data         []byte
	delivered    bool
	seekOffsetUs int64
}

func (d *rawPassthroughDemuxer) Streams() []imf.ChildStreamInfo {
	return []imf.ChildStreamInfo{{TimeBase: imf.Rational{Num: 1, Den: 1_000_000}}}
}

func (d *rawPassthroughDemuxer) Seek(ctx context.Context, microseconds int64) error {
	d.seekOffsetUs = microseconds
	return nil
}

func (d *rawPassthroughDemuxer) ReadPacket(ctx context.Context) (*imf.Packet, error) {
	if d.delivered {
		return nil, imf.ErrEof
	}
	d.delivered = true
	return &imf.Packet{DTS: d.seekOffsetUs, Duration: 0, Data: d.data}, nil
}

func (d *rawPassthroughDemuxer) Close() error { return nil }
