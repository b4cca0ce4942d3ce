package imf

import (
	"context"
	"fmt"
	"sync/atomic"
)

// mapByteReader is a ByteStreamReader backed by an in-memory map, keyed by
// URI, used throughout the test suite instead of touching the filesystem.
type mapByteReader map[string][]byte

func (m mapByteReader) ReadAll(_ context.Context, uri string) ([]byte, error) {
	data, ok := m[uri]
	if !ok {
		return nil, fmt.Errorf("%w: no such uri %q", ErrIo, uri)
	}
	return data, nil
}

// fakeOpener is a ChildDemuxerOpener that counts how many times it was
// asked to open a resource (S2's repeat-boundary re-open assertion) and
// hands back fakeDemuxer instances reporting a fixed stream/packet shape.
type fakeOpener struct {
	opens          int32
	streamTimeBase Rational
	packetCount    int
	packetDuration int64
}

func (o *fakeOpener) Open(_ context.Context, uri string, _ ChildOpenOptions) (ChildDemuxer, error) {
	atomic.AddInt32(&o.opens, 1)
	return &fakeDemuxer{
		uri:       uri,
		timeBase:  o.streamTimeBase,
		remaining: o.packetCount,
		duration:  o.packetDuration,
	}, nil
}

func (o *fakeOpener) openCount() int { return int(atomic.LoadInt32(&o.opens)) }

type fakeDemuxer struct {
	uri       string
	timeBase  Rational
	remaining int
	duration  int64
	nextDTS   int64
	seekedTo  int64
	seeked    bool
	closed    bool
}

func (d *fakeDemuxer) Streams() []ChildStreamInfo {
	return []ChildStreamInfo{{TimeBase: d.timeBase}}
}

func (d *fakeDemuxer) Seek(_ context.Context, microseconds int64) error {
	d.seeked = true
	d.seekedTo = microseconds
	d.nextDTS = 0
	return nil
}

func (d *fakeDemuxer) ReadPacket(_ context.Context) (*Packet, error) {
	if d.remaining <= 0 {
		return nil, ErrEof
	}
	d.remaining--
	pkt := &Packet{DTS: d.nextDTS, Duration: d.duration}
	d.nextDTS += d.duration
	return pkt, nil
}

func (d *fakeDemuxer) Close() error {
	d.closed = true
	return nil
}

// demuxerShape is one URI's fake stream shape: the time base packet
// timestamps are expressed in, how many packets it yields, and each
// packet's duration in that time base.
type demuxerShape struct {
	timeBase       Rational
	packetCount    int
	packetDuration int64
}

// shapeOpener is a ChildDemuxerOpener that dispatches by URI to a distinct
// demuxerShape per asset, needed whenever a test opens more than one
// distinct resource (multiple tracks, or multiple resources on one track)
// and they must not all look identical.
type shapeOpener struct {
	shapes map[string]demuxerShape
	opens  int32
}

func (o *shapeOpener) Open(_ context.Context, uri string, _ ChildOpenOptions) (ChildDemuxer, error) {
	shape, ok := o.shapes[uri]
	if !ok {
		return nil, fmt.Errorf("%w: no fake shape configured for uri %q", ErrIo, uri)
	}
	atomic.AddInt32(&o.opens, 1)
	return &fakeDemuxer{
		uri:       uri,
		timeBase:  shape.timeBase,
		remaining: shape.packetCount,
		duration:  shape.packetDuration,
	}, nil
}

func (o *shapeOpener) openCount() int { return int(atomic.LoadInt32(&o.opens)) }
