package imf

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// ResourcePlaybackCtx is one runtime activation of a declared
// TrackFileResource: a borrowed asset locator and resource, plus a
// lazily-materialized child demuxer handle. Repeat expansion (§4.E) gives
// each repeated copy an independent ResourcePlaybackCtx sharing the same
// immutable Locator/Resource but never sharing a ChildDemuxer.
type ResourcePlaybackCtx struct {
	Locator      *AssetLocator
	Resource     *TrackFileResource
	ChildDemuxer ChildDemuxer
}

// VirtualTrackPlaybackCtx is the scheduler's runtime view of one output
// track: its composition clock, total duration, and the flattened,
// repeat-expanded list of resource activations.
type VirtualTrackPlaybackCtx struct {
	Index                uint32
	CurrentTimestamp     Rational
	Duration             Rational
	Resources            []*ResourcePlaybackCtx
	CurrentResourceIndex uint32
	LastPTS              int64
	LastDTS              int64
}

// Exhausted reports whether the track has reached its declared duration
// (the terminal state of §4.F's per-track state machine).
func (t *VirtualTrackPlaybackCtx) Exhausted() bool {
	return t.CurrentTimestamp.Cmp(t.Duration) == 0
}

// buildTrack implements §4.E: expand a declared TrackFileVirtualTrack's
// resources by repeat_count into a playback-order list of runtime
// resource contexts, eager-opening only the very first one (needed to
// discover stream parameters for the published output stream) and
// leaving every other copy closed until the scheduler activates it.
func buildTrack(
	ctx context.Context,
	index uint32,
	declared *TrackFileVirtualTrack,
	assets AssetLocatorMap,
	opener ChildDemuxerOpener,
	parentOpts ChildOpenOptions,
	logger zerolog.Logger,
) (*VirtualTrackPlaybackCtx, error) {
	track := &VirtualTrackPlaybackCtx{
		Index:            index,
		CurrentTimestamp: Rational{Num: 0, Den: 1},
		Duration:         Rational{Num: 0, Den: 1},
	}

	openedFirst := false
	for i := range declared.Resources {
		resource := &declared.Resources[i]

		locator, ok := assets[resource.TrackFileID]
		if !ok {
			return nil, fmt.Errorf("%w: track file %s not found in asset map", ErrInvalidData, resource.TrackFileID)
		}

		perCopyDuration := Rational{Num: int64(resource.Duration), Den: 1}.
			Mul(Rational{Num: resource.EditRate.Den, Den: resource.EditRate.Num})

		for copyIndex := uint64(0); copyIndex < resource.RepeatCount; copyIndex++ {
			rpc := &ResourcePlaybackCtx{
				Locator:  &locator,
				Resource: resource,
			}

			if !openedFirst {
				if err := openResource(ctx, rpc, opener, parentOpts, logger); err != nil {
					return nil, err
				}
				openedFirst = true
			}

			track.Resources = append(track.Resources, rpc)
			track.Duration = track.Duration.Add(perCopyDuration)
		}
	}

	return track, nil
}
