package imf

// BaseResource holds the fields common to every resource kind: its own
// edit rate, entry point and duration in edit units, and a repeat count.
//
// Invariants: EditRate.Valid(), Duration > 0, RepeatCount >= 1 (the parser
// defaults RepeatCount to 1 when the element is absent).
type BaseResource struct {
	EditRate    Rational
	EntryPoint  uint64
	Duration    uint64
	RepeatCount uint64
}

// TrackFileResource is a BaseResource referencing a track file (essence
// container) by UUID.
type TrackFileResource struct {
	BaseResource
	TrackFileID UUID
}

// Marker is a labeled instant within a resource's timeline.
type Marker struct {
	Label  string
	Scope  string
	Offset uint64
}

// DefaultMarkerScope is the IMF standard marker label scope used when a
// Marker's Label element carries no scope attribute.
const DefaultMarkerScope = "http://www.smpte-ra.org/schemas/2067-3/2016#standard-markers"

// MarkerResource is a BaseResource carrying an ordered sequence of
// Markers.
type MarkerResource struct {
	BaseResource
	Markers []Marker
}

// TrackFileVirtualTrack is an image-2D or audio virtual track: an ordered
// sequence of TrackFileResource, identified across the composition by ID.
type TrackFileVirtualTrack struct {
	ID        UUID
	Resources []TrackFileResource
}

// MarkerVirtualTrack is the composition's single marker track, if present.
type MarkerVirtualTrack struct {
	ID        UUID
	Resources []MarkerResource
}

// Composition is the fully parsed CPL: a composition edit rate, an
// optional marker track, an optional single 2D image track, and
// zero-or-more audio tracks. At most one markers track and at most one
// image-2D track may be present; EditRate must be strictly positive.
type Composition struct {
	ID           UUID
	ContentTitle string
	EditRate     Rational
	Markers      *MarkerVirtualTrack
	Image2D      *TrackFileVirtualTrack
	Audios       []*TrackFileVirtualTrack
}

// AssetLocator resolves one asset UUID to an absolute URI, plus the
// ST 429-9 chunk/asset metadata the distilled spec does not use for
// playback but which a complete asset map parser retains (see
// SPEC_FULL.md §3).
type AssetLocator struct {
	UUID          UUID
	AbsoluteURI   string
	VolumeIndex   uint64
	Offset        uint64
	Length        uint64
	Hash          []byte
	IsPackingList bool
	// ExtraChunks counts additional Chunk elements beyond the first, which
	// this demuxer does not resolve (§9 open question).
	ExtraChunks int
}

// AssetLocatorMap merges one or more asset maps into a UUID-keyed lookup
// table. Keys are meant to be unique across the merged set; see
// DESIGN.md for the duplicate-UUID policy actually implemented.
type AssetLocatorMap map[UUID]AssetLocator
