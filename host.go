package imf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
)

// Packet is one decoded elementary-stream unit, as read from a child
// demuxer and then rewritten into the composition timeline by the
// scheduler (§4.F step 6). The payload itself is opaque — this package
// never inspects or decodes it.
type Packet struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	Duration    int64
	Data        []byte
}

// ChildStreamInfo is the subset of a child demuxer's stream information
// this package needs: the time base packet timestamps are expressed in,
// and an opaque codec-parameters value copied verbatim into the output
// stream (§4.G, §6) — this package never interprets codec parameters.
type ChildStreamInfo struct {
	TimeBase        Rational
	CodecParameters any
}

// ChildDemuxer is the host media framework's container reader, bound to
// one track file and positioned at one entry point. Opening, seeking,
// stream-info discovery, and packet decoding are all the host's
// responsibility (§1 "out of scope"); this package only calls through
// the interface in the sequence §4.D and §4.F describe.
type ChildDemuxer interface {
	// Streams returns the child's stream list, in the host's own index
	// order. Index 0 is always the resource's primary media stream.
	Streams() []ChildStreamInfo

	// Seek repositions the child to the given microsecond offset, both
	// min and max bounds set to the target ("any" seek flags per §4.D
	// step 3).
	Seek(ctx context.Context, microseconds int64) error

	// ReadPacket returns the next packet, or an error wrapping ErrEof at
	// end of stream.
	ReadPacket(ctx context.Context) (*Packet, error)

	Close() error
}

// ChildOpenOptions carries the parent demuxer's I/O configuration down to
// a freshly opened child, per §4.D step 1: the child inherits the
// parent's open/close callbacks, whitelists/blacklists, and flags, with
// any "custom I/O" flag masked out.
type ChildOpenOptions struct {
	InheritIOCallbacks bool
	Whitelist          []string
	Blacklist          []string
	Flags              uint32
}

// CustomIOFlag is masked out of ChildOpenOptions.Flags before a child is
// opened (§4.D step 1).
const CustomIOFlag uint32 = 1 << 0

// ChildDemuxerOpener constructs a ChildDemuxer bound to a resolved asset
// URI. This is the seam at which a real container backend (MXF, MP4, or
// anything else the host media framework supports) plugs in; this
// package ships no concrete implementation (see DESIGN.md) beyond what
// tests need.
type ChildDemuxerOpener interface {
	Open(ctx context.Context, uri string, opts ChildOpenOptions) (ChildDemuxer, error)
}

// ByteStreamReader is the host's byte-stream I/O collaborator: given a
// URI (local path, file:// URL, or http(s):// URL), return the full
// document contents. CPL and Asset Map documents are always read fully
// into memory before parsing (§4.C step 1).
type ByteStreamReader interface {
	ReadAll(ctx context.Context, uri string) ([]byte, error)
}

// DefaultByteStreamReader is a dependency-free ByteStreamReader handling
// plain filesystem paths and http(s):// URLs, the two cases spec.md's
// worked examples (S1–S6) exercise. It is the default passed to Open when
// the caller supplies none.
type DefaultByteStreamReader struct {
	Client *http.Client
}

func (r DefaultByteStreamReader) ReadAll(ctx context.Context, uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return r.readHTTP(ctx, uri)
	}
	return r.readFile(strings.TrimPrefix(uri, "file://"))
}

func (r DefaultByteStreamReader) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIo, err)
	}
	defer f.Close()
	return readAllCapped(f)
}

func (r DefaultByteStreamReader) readHTTP(ctx context.Context, uri string) ([]byte, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIo, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIo, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: %s: HTTP status %d", ErrIo, uri, resp.StatusCode)
	}
	return readAllCapped(resp.Body)
}

// readAllCapped reads r fully into memory, capped one byte short of the
// maximum representable length to prevent size-counter wraparound, with
// an initial growth hint of 8 KiB (§4.C step 1).
func readAllCapped(r io.Reader) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 8*1024))
	limited := io.LimitReader(r, math.MaxInt64-1)
	if _, err := buf.ReadFrom(limited); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIo, err)
	}
	return buf.Bytes(), nil
}
