package imf

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog"
)

// Raw Asset Map document shape (ST 429-9), decoded via the same
// struct-tag idiom cpl.go uses.
type assetMapDocument struct {
	XMLName   xml.Name `xml:"AssetMap"`
	AssetList struct {
		Assets []assetMapAsset `xml:"Asset"`
	} `xml:"AssetList"`
}

type assetMapAsset struct {
	ID          UUID   `xml:"Id"`
	PackingList bool   `xml:"PackingList"`
	Hash        string `xml:"Hash"`
	ChunkList   struct {
		Chunks []assetMapChunk `xml:"Chunk"`
	} `xml:"ChunkList"`
}

type assetMapChunk struct {
	Path        string `xml:"Path"`
	VolumeIndex *ULong `xml:"VolumeIndex"`
	Offset      *ULong `xml:"Offset"`
	Length      *ULong `xml:"Length"`
}

// ParseAssetMap builds the per-asset locators declared by one Asset Map
// document (§4.C steps 2–4). assetMapURI is the document's own URI/path,
// used as the base for resolving relative Chunk Paths.
func ParseAssetMap(data []byte, assetMapURI string) ([]AssetLocator, error) {
	var doc assetMapDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: asset map XML: %v", ErrInvalidData, err)
	}
	if doc.XMLName.Local != "AssetMap" {
		return nil, fmt.Errorf("%w: root element %q, want AssetMap", ErrInvalidData, doc.XMLName.Local)
	}

	locators := make([]AssetLocator, 0, len(doc.AssetList.Assets))
	for _, asset := range doc.AssetList.Assets {
		if asset.ID.IsZero() {
			return nil, fmt.Errorf("%w: Asset missing Id", ErrInvalidData)
		}
		if len(asset.ChunkList.Chunks) == 0 {
			return nil, fmt.Errorf("%w: Asset %s has an empty ChunkList", ErrInvalidData, asset.ID)
		}

		first := asset.ChunkList.Chunks[0]
		resolved, err := classifyAndResolvePath(first.Path, assetMapURI)
		if err != nil {
			return nil, err
		}

		loc := AssetLocator{
			UUID:          asset.ID,
			AbsoluteURI:   resolved,
			VolumeIndex:   1,
			IsPackingList: asset.PackingList,
			ExtraChunks:   len(asset.ChunkList.Chunks) - 1,
		}
		if first.VolumeIndex != nil {
			loc.VolumeIndex = uint64(*first.VolumeIndex)
		}
		if first.Offset != nil {
			loc.Offset = uint64(*first.Offset)
		}
		if first.Length != nil {
			loc.Length = uint64(*first.Length)
		}
		if trimmed := strings.TrimSpace(asset.Hash); trimmed != "" {
			if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
				loc.Hash = decoded
			}
		}

		locators = append(locators, loc)
	}
	return locators, nil
}

// classifyAndResolvePath implements §4.C step 4: URL / POSIX absolute /
// DOS absolute / relative-to-asset-map-base classification.
func classifyAndResolvePath(rawPath, assetMapURI string) (string, error) {
	switch {
	case strings.Contains(rawPath, "://"):
		return rawPath, nil
	case strings.HasPrefix(rawPath, "/"):
		return rawPath, nil
	case isDOSAbsolutePath(rawPath):
		return rawPath, nil
	default:
		return resolveAgainstBase(assetMapURI, rawPath)
	}
}

func isDOSAbsolutePath(p string) bool {
	if strings.HasPrefix(p, `\\`) {
		return true
	}
	return len(p) >= 3 && p[1] == ':' && (p[2] == '\\' || p[2] == '/')
}

func resolveAgainstBase(baseURI, rel string) (string, error) {
	base, err := url.Parse(baseURI)
	if err != nil {
		return "", fmt.Errorf("%w: asset map URI %q: %v", ErrInvalidData, baseURI, err)
	}
	ref, err := url.Parse(rel)
	if err != nil {
		return "", fmt.Errorf("%w: asset Path %q: %v", ErrInvalidData, rel, err)
	}
	if base.Scheme == "" && base.Host == "" && !strings.HasPrefix(base.Path, "/") {
		// ResolveReference roots every result at "/", which would turn a
		// relative asset map location into an absolute one.
		return path.Join(path.Dir(baseURI), rel), nil
	}
	return base.ResolveReference(ref).String(), nil
}

// MergeAssetMaps reads and parses each asset map URI in order via reader,
// merging their locators into one AssetLocatorMap (§4.C). On a duplicate
// UUID across asset maps, the last write wins, with a warning logged —
// the §9 open question resolved per DESIGN.md.
func MergeAssetMaps(ctx context.Context, reader ByteStreamReader, assetMapURIs []string, logger zerolog.Logger) (AssetLocatorMap, error) {
	merged := make(AssetLocatorMap)
	for _, uri := range assetMapURIs {
		data, err := reader.ReadAll(ctx, uri)
		if err != nil {
			return nil, fmt.Errorf("reading asset map %s: %w", uri, err)
		}
		locators, err := ParseAssetMap(data, uri)
		if err != nil {
			return nil, fmt.Errorf("parsing asset map %s: %w", uri, err)
		}
		for _, loc := range locators {
			if loc.ExtraChunks > 0 {
				logger.Warn().
					Str("asset_map", uri).
					Str("asset", loc.UUID.String()).
					Int("extra_chunks", loc.ExtraChunks).
					Msg("asset declares more than one Chunk; only the first is used")
			}
			if existing, duplicate := merged[loc.UUID]; duplicate {
				logger.Warn().
					Str("asset", loc.UUID.String()).
					Str("previous_uri", existing.AbsoluteURI).
					Str("new_uri", loc.AbsoluteURI).
					Msg("duplicate asset UUID across asset maps; last write wins")
			}
			merged[loc.UUID] = loc
		}
	}
	return merged, nil
}
