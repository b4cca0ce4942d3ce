package imf

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Raw CPL document shape, decoded by encoding/xml struct tags — the
// teacher's own technique (smoothstreaming.go decodes SmoothStreamingMedia
// the same way). Because the same TrackId can recur across Segments and
// must be merged into one virtual track, a single static Unmarshal target
// cannot express Composition directly; ParseCPL decodes into these raw
// types first, then folds them.
type cplDocument struct {
	XMLName      xml.Name `xml:"CompositionPlaylist"`
	ID           UUID     `xml:"Id"`
	ContentTitle string   `xml:"ContentTitle"`
	EditRate     Rational `xml:"EditRate"`
	SegmentList  struct {
		Segments []cplSegment `xml:"Segment"`
	} `xml:"SegmentList"`
}

type cplSegment struct {
	SequenceList struct {
		// ",any" captures every sequence element regardless of local name,
		// which is how MainImageSequence/MainAudioSequence/MarkerSequence
		// and any forward-compatible, unrecognized sequence kind are all
		// collected for the dispatch loop in ParseCPL to classify.
		Sequences []cplSequence `xml:",any"`
	} `xml:"SequenceList"`
}

type cplSequence struct {
	XMLName      xml.Name
	TrackID      UUID `xml:"TrackId"`
	ResourceList struct {
		Resources []cplResource `xml:"Resource"`
	} `xml:"ResourceList"`
}

type cplResource struct {
	EditRate       Rational    `xml:"EditRate"`
	EntryPoint     *ULong      `xml:"EntryPoint"`
	SourceDuration ULong       `xml:"SourceDuration"`
	RepeatCount    *ULong      `xml:"RepeatCount"`
	TrackFileID    *UUID       `xml:"TrackFileId"`
	Markers        []cplMarker `xml:"Marker"`
}

type cplMarker struct {
	Label struct {
		Scope string `xml:"scope,attr"`
		Text  string `xml:",chardata"`
	} `xml:"Label"`
	Offset ULong `xml:"Offset"`
}

const (
	sequenceKindImage  = "MainImageSequence"
	sequenceKindAudio  = "MainAudioSequence"
	sequenceKindMarker = "MarkerSequence"
)

// ParseCPL builds a Composition from a CPL XML document (§4.B). No partial
// composition is ever returned: any failure yields (nil, error wrapping
// ErrInvalidData).
func ParseCPL(data []byte) (*Composition, error) {
	var doc cplDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: CPL XML: %v", ErrInvalidData, err)
	}
	if doc.XMLName.Local != "CompositionPlaylist" {
		return nil, fmt.Errorf("%w: root element %q, want CompositionPlaylist", ErrInvalidData, doc.XMLName.Local)
	}
	if doc.ID.IsZero() {
		return nil, fmt.Errorf("%w: CompositionPlaylist missing Id", ErrInvalidData)
	}
	if !doc.EditRate.Valid() {
		return nil, fmt.Errorf("%w: CompositionPlaylist EditRate must be positive", ErrInvalidData)
	}

	comp := &Composition{
		ID:           doc.ID,
		ContentTitle: doc.ContentTitle,
		EditRate:     doc.EditRate,
	}

	audioTracks := map[UUID]*TrackFileVirtualTrack{}
	var audioOrder []UUID

	for _, segment := range doc.SegmentList.Segments {
		for _, seq := range segment.SequenceList.Sequences {
			switch seq.XMLName.Local {
			case sequenceKindImage:
				if seq.TrackID.IsZero() {
					return nil, fmt.Errorf("%w: MainImageSequence missing TrackId", ErrInvalidData)
				}
				if comp.Image2D == nil {
					comp.Image2D = &TrackFileVirtualTrack{ID: seq.TrackID}
				} else if comp.Image2D.ID != seq.TrackID {
					return nil, fmt.Errorf("%w: composition declares more than one image-2D virtual track", ErrInvalidData)
				}
				resources, err := parseTrackFileResources(seq.ResourceList.Resources)
				if err != nil {
					return nil, err
				}
				comp.Image2D.Resources = append(comp.Image2D.Resources, resources...)

			case sequenceKindAudio:
				if seq.TrackID.IsZero() {
					return nil, fmt.Errorf("%w: MainAudioSequence missing TrackId", ErrInvalidData)
				}
				track, ok := audioTracks[seq.TrackID]
				if !ok {
					track = &TrackFileVirtualTrack{ID: seq.TrackID}
					audioTracks[seq.TrackID] = track
					audioOrder = append(audioOrder, seq.TrackID)
				}
				resources, err := parseTrackFileResources(seq.ResourceList.Resources)
				if err != nil {
					return nil, err
				}
				track.Resources = append(track.Resources, resources...)

			case sequenceKindMarker:
				if seq.TrackID.IsZero() {
					return nil, fmt.Errorf("%w: MarkerSequence missing TrackId", ErrInvalidData)
				}
				if comp.Markers == nil {
					comp.Markers = &MarkerVirtualTrack{ID: seq.TrackID}
				} else if comp.Markers.ID != seq.TrackID {
					return nil, fmt.Errorf("%w: composition declares more than one marker virtual track", ErrInvalidData)
				}
				resources, err := parseMarkerResources(seq.ResourceList.Resources)
				if err != nil {
					return nil, err
				}
				comp.Markers.Resources = append(comp.Markers.Resources, resources...)

			default:
				// Unknown sequence kind at an extension point: silently
				// ignored for forward compatibility (§4.B step 2).
			}
		}
	}

	for _, id := range audioOrder {
		comp.Audios = append(comp.Audios, audioTracks[id])
	}

	return comp, nil
}

func parseBaseResource(r cplResource) (BaseResource, error) {
	if !r.EditRate.Valid() {
		return BaseResource{}, fmt.Errorf("%w: Resource EditRate must be positive", ErrInvalidData)
	}
	if r.SourceDuration == 0 {
		return BaseResource{}, fmt.Errorf("%w: Resource SourceDuration must be positive", ErrInvalidData)
	}

	var entryPoint uint64
	if r.EntryPoint != nil {
		entryPoint = uint64(*r.EntryPoint)
	}

	repeatCount := uint64(1)
	if r.RepeatCount != nil {
		repeatCount = uint64(*r.RepeatCount)
		if repeatCount == 0 {
			return BaseResource{}, fmt.Errorf("%w: Resource RepeatCount must be >= 1 when present", ErrInvalidData)
		}
	}

	return BaseResource{
		EditRate:    r.EditRate,
		EntryPoint:  entryPoint,
		Duration:    uint64(r.SourceDuration),
		RepeatCount: repeatCount,
	}, nil
}

func parseTrackFileResources(raw []cplResource) ([]TrackFileResource, error) {
	out := make([]TrackFileResource, 0, len(raw))
	for _, r := range raw {
		base, err := parseBaseResource(r)
		if err != nil {
			return nil, err
		}
		if r.TrackFileID == nil {
			return nil, fmt.Errorf("%w: Resource missing TrackFileId", ErrInvalidData)
		}
		out = append(out, TrackFileResource{BaseResource: base, TrackFileID: *r.TrackFileID})
	}
	return out, nil
}

func parseMarkerResources(raw []cplResource) ([]MarkerResource, error) {
	out := make([]MarkerResource, 0, len(raw))
	for _, r := range raw {
		base, err := parseBaseResource(r)
		if err != nil {
			return nil, err
		}
		markers := make([]Marker, 0, len(r.Markers))
		for _, m := range r.Markers {
			scope := m.Label.Scope
			if scope == "" {
				scope = DefaultMarkerScope
			}
			markers = append(markers, Marker{
				Label:  strings.TrimSpace(m.Label.Text),
				Scope:  scope,
				Offset: uint64(m.Offset),
			})
		}
		out = append(out, MarkerResource{BaseResource: base, Markers: markers})
	}
	return out, nil
}
