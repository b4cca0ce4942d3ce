package imf

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// pickNextTrack implements §4.F step 1: scan all tracks, select the one
// with minimum CurrentTimestamp, ties broken by ascending track index.
// Tracks is assumed to already be ordered by Index (image, then audios in
// declaration order), so a strict "<" comparison while scanning forward
// keeps the lowest index on a tie.
func pickNextTrack(tracks []*VirtualTrackPlaybackCtx) *VirtualTrackPlaybackCtx {
	var urgent *VirtualTrackPlaybackCtx
	for _, t := range tracks {
		if urgent == nil || t.CurrentTimestamp.Cmp(urgent.CurrentTimestamp) < 0 {
			urgent = t
		}
	}
	return urgent
}

// locateActiveResource implements §4.F step 3: starting from resource 0,
// accumulate resource durations in composition seconds; the active
// resource is the first one for which current_timestamp + unit <=
// cumulated_duration, where unit is 1/edit_rate of the track's first
// resource.
func locateActiveResource(track *VirtualTrackPlaybackCtx) (int, error) {
	if len(track.Resources) == 0 {
		return 0, fmt.Errorf("%w: track %d has no resources", ErrStreamNotFound, track.Index)
	}

	firstEditRate := track.Resources[0].Resource.EditRate
	unit := Rational{Num: firstEditRate.Den, Den: firstEditRate.Num}
	target := track.CurrentTimestamp.Add(unit)

	cumulated := Rational{Num: 0, Den: 1}
	for i, rpc := range track.Resources {
		cumulated = cumulated.Add(resourceCopyDuration(rpc.Resource))
		if target.Cmp(cumulated) <= 0 {
			return i, nil
		}
	}

	if target.Cmp(track.Duration) > 0 {
		return 0, ErrEof
	}
	return 0, fmt.Errorf("%w: track %d duration %s disagrees with its resource list", ErrStreamNotFound, track.Index, track.Duration)
}

func resourceCopyDuration(r *TrackFileResource) Rational {
	return Rational{Num: int64(r.Duration), Den: 1}.
		Mul(Rational{Num: r.EditRate.Den, Den: r.EditRate.Num})
}

// switchResource implements §4.F step 4: close the currently open child
// demuxer (if any) and open the one at newIndex, unless it is already the
// active, already-open resource (true at track start, since buildTrack
// eager-opens resource 0).
func switchResource(ctx context.Context, track *VirtualTrackPlaybackCtx, newIndex int, opener ChildDemuxerOpener, parentOpts ChildOpenOptions, logger zerolog.Logger) error {
	current := track.Resources[track.CurrentResourceIndex]
	alreadyActive := uint32(newIndex) == track.CurrentResourceIndex && current.ChildDemuxer != nil
	if alreadyActive {
		return nil
	}

	// Switching is always forward (§4.F state machine); a newIndex behind
	// current_resource_index means locate_active_resource disagrees with a
	// switch an earlier underlying EOF already forced — the resource
	// list's declared durations don't add up to what the child demuxers
	// actually delivered. Refuse rather than bounce back to a resource
	// that may already be closed, which would replay or duplicate content.
	if newIndex < int(track.CurrentResourceIndex) {
		logger.Warn().
			Uint32("track", track.Index).
			Int("requested_index", newIndex).
			Uint32("current_index", track.CurrentResourceIndex).
			Msg("refusing backward resource switch")
		return nil
	}

	if current.ChildDemuxer != nil {
		if err := current.ChildDemuxer.Close(); err != nil {
			logger.Warn().Err(err).Str("asset", current.Locator.UUID.String()).Msg("closing child demuxer on track switch")
		}
		current.ChildDemuxer = nil
	}

	track.CurrentResourceIndex = uint32(newIndex)
	next := track.Resources[newIndex]
	if next.ChildDemuxer == nil {
		if err := openResource(ctx, next, opener, parentOpts, logger); err != nil {
			return err
		}
	}
	return nil
}

// rewriteTimestamps implements §4.F step 6. last_pts > 0 is required for
// the DTS monotonicity clamp because the very first emitted packet on a
// track has no "parent stream current DTS" yet to clamp against — see
// DESIGN.md's open-question note on this condition.
func rewriteTimestamps(pkt *Packet, track *VirtualTrackPlaybackCtx, entryPoint uint64) {
	if pkt.DTS < track.LastDTS && track.LastPTS > 0 {
		pkt.DTS = track.LastDTS
	}
	pkt.PTS = track.LastPTS
	pkt.DTS -= int64(entryPoint)
	pkt.StreamIndex = int(track.Index)
}

// advanceClocks implements §4.F step 7.
func advanceClocks(track *VirtualTrackPlaybackCtx, pkt *Packet, childTimeBase Rational, rewrittenDTS int64) {
	track.CurrentTimestamp = track.CurrentTimestamp.Add(
		Rational{Num: pkt.Duration, Den: 1}.Mul(Rational{Num: childTimeBase.Num, Den: childTimeBase.Den}),
	)
	track.LastPTS += pkt.Duration
	track.LastDTS = rewrittenDTS
}
