package imf

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// openResource implements §4.D for a single ResourcePlaybackCtx whose
// ChildDemuxer is absent or has been closed: open a child demuxer at the
// resource's entry point, tolerating (but logging) a time-base mismatch,
// and disposing of the child on any failure after creation.
func openResource(ctx context.Context, rpc *ResourcePlaybackCtx, opener ChildDemuxerOpener, parentOpts ChildOpenOptions, logger zerolog.Logger) error {
	opts := parentOpts
	opts.Flags &^= CustomIOFlag

	demux, err := opener.Open(ctx, rpc.Locator.AbsoluteURI, opts)
	if err != nil {
		return fmt.Errorf("opening resource %s (%s): %w", rpc.Locator.UUID, rpc.Locator.AbsoluteURI, err)
	}

	streams := demux.Streams()
	if len(streams) == 0 {
		demux.Close()
		return fmt.Errorf("%w: child demuxer for %s reports no streams", ErrInvalidData, rpc.Locator.AbsoluteURI)
	}

	// §4.D step 2: warn, don't fail, on a time-base mismatch.
	if childTimeBase := streams[0].TimeBase; childTimeBase.Num != 0 {
		invertedChildRate := Rational{Num: childTimeBase.Den, Den: childTimeBase.Num}
		if invertedChildRate.Cmp(rpc.Resource.EditRate) != 0 {
			logger.Warn().
				Str("asset", rpc.Locator.UUID.String()).
				Str("resource_edit_rate", rpc.Resource.EditRate.String()).
				Str("child_time_base", childTimeBase.String()).
				Msg("child demuxer time base does not match resource edit rate")
		}
	}

	// §4.D step 3: entry_point_us = entry_point * edit_rate.den * 1e6 / edit_rate.num.
	var entryPointUs int64
	if rpc.Resource.EntryPoint > 0 {
		editRate := rpc.Resource.EditRate
		entryPointUs = int64(rpc.Resource.EntryPoint) * editRate.Den * 1_000_000 / editRate.Num
	}
	if entryPointUs > 0 {
		if err := demux.Seek(ctx, entryPointUs); err != nil {
			demux.Close()
			return fmt.Errorf("seeking resource %s to entry point %dus: %w", rpc.Locator.UUID, entryPointUs, err)
		}
	}

	rpc.ChildDemuxer = demux
	return nil
}
