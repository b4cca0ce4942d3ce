package imf

import (
	"context"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestBuildTrackExpandsRepeatCount(t *testing.T) {
	is := is.New(t)

	assetUUID := mustParseUUID(testAssetID)
	declared := &TrackFileVirtualTrack{
		ID: mustParseUUID(testImageTrackID),
		Resources: []TrackFileResource{
			{
				BaseResource: BaseResource{
					EditRate:    Rational{Num: 24, Den: 1},
					Duration:    48,
					RepeatCount: 3,
				},
				TrackFileID: assetUUID,
			},
		},
	}
	assets := AssetLocatorMap{
		assetUUID: {UUID: assetUUID, AbsoluteURI: "file.mxf"},
	}
	opener := &fakeOpener{streamTimeBase: Rational{Num: 1, Den: 24}, packetCount: 48, packetDuration: 1}

	track, err := buildTrack(context.Background(), 0, declared, assets, opener, ChildOpenOptions{}, zerolog.Nop())
	is.NoErr(err)
	is.Equal(len(track.Resources), 3)
	is.Equal(track.Duration, Rational{Num: 6, Den: 1})
	is.Equal(opener.openCount(), 1)

	// Every copy shares the same declared Resource pointer and Locator but
	// only the first has an opened ChildDemuxer.
	is.True(track.Resources[0].ChildDemuxer != nil)
	is.True(track.Resources[1].ChildDemuxer == nil)
	is.True(track.Resources[2].ChildDemuxer == nil)
	is.Equal(track.Resources[0].Resource, track.Resources[1].Resource)
}

func TestBuildTrackMissingAssetLocator(t *testing.T) {
	is := is.New(t)

	declared := &TrackFileVirtualTrack{
		ID: mustParseUUID(testImageTrackID),
		Resources: []TrackFileResource{
			{
				BaseResource: BaseResource{EditRate: Rational{Num: 24, Den: 1}, Duration: 48, RepeatCount: 1},
				TrackFileID:  mustParseUUID(testAssetID),
			},
		},
	}
	opener := &fakeOpener{streamTimeBase: Rational{Num: 1, Den: 24}, packetCount: 48, packetDuration: 1}

	_, err := buildTrack(context.Background(), 0, declared, AssetLocatorMap{}, opener, ChildOpenOptions{}, zerolog.Nop())
	is.True(err != nil)
}

func TestVirtualTrackExhausted(t *testing.T) {
	is := is.New(t)

	track := &VirtualTrackPlaybackCtx{
		CurrentTimestamp: Rational{Num: 2, Den: 1},
		Duration:         Rational{Num: 2, Den: 1},
	}
	is.True(track.Exhausted())

	track.CurrentTimestamp = Rational{Num: 1, Den: 1}
	is.True(!track.Exhausted())
}
