package repo

import (
	"encoding/json"
	"fmt"

	"github.com/galaxydl/galaxydl/pkg/errkind"
	"github.com/galaxydl/galaxydl/pkg/model"
)

// ManifestV2Chunk is the on-the-wire shape of one chunk entry inside a
// depot item's manifest record.
type ManifestV2Chunk struct {
	CompressedMD5   string `json:"compressedMd5"`
	MD5             string `json:"md5"`
	CompressedSize  int64  `json:"compressedSize"`
	Size            int64  `json:"size"`
}

// ManifestV2Item is one entry of a depot manifest's "items" array.
type ManifestV2Item struct {
	Path        string             `json:"path"`
	ProductID   string             `json:"productId"`
	MD5         string             `json:"md5"`
	Chunks      []ManifestV2Chunk  `json:"chunks"`
	Dependencies []string          `json:"dependencies"`
}

// ManifestV2Container is the "smallFilesContainer" field of a depot
// manifest: many small files are packed into one compressed blob and
// addressed by offset within it.
type ManifestV2Container struct {
	MD5    string             `json:"md5"`
	Chunks []ManifestV2Chunk  `json:"chunks"`
	Files  []struct {
		Path   string `json:"path"`
		Offset int64  `json:"offset"`
		Size   int64  `json:"size"`
	} `json:"files"`
}

// ManifestV2 is the decoded shape of a single depot's v2 manifest
// document, as returned by Client.ManifestV2.
type ManifestV2 struct {
	Depot struct {
		Items               []ManifestV2Item      `json:"items"`
		SmallFilesContainer *ManifestV2Container   `json:"smallFilesContainer"`
	} `json:"depot"`
}

// ParseManifestV2 decodes raw into a ManifestV2, wrapping decode
// failures as ParseError per §7's error-kind table.
func ParseManifestV2(raw json.RawMessage) (ManifestV2, error) {
	var m ManifestV2
	if err := json.Unmarshal(raw, &m); err != nil {
		return ManifestV2{}, errkind.ParseError.Wrap(fmt.Errorf("decoding manifest v2: %w", err))
	}
	return m, nil
}

// FlattenDepotItems converts a ManifestV2's items and optional
// small-files container into the model.DepotItem leaves DepotPlanner
// consumes (§4.4 step 2). Every emitted item gets baseProductID, which
// the caller resolves from the depot's productId (falling back to the
// build's base product id); an item's own productId field is not read.
func FlattenDepotItems(m ManifestV2, baseProductID int64, isDependency bool) []model.DepotItem {
	var out []model.DepotItem
	for _, item := range m.Depot.Items {
		out = append(out, depotItemFromManifest(item, baseProductID, isDependency))
	}
	if m.Depot.SmallFilesContainer != nil {
		out = append(out, smallFilesContainerItem(*m.Depot.SmallFilesContainer, baseProductID, isDependency))
	}
	return out
}

func depotItemFromManifest(item ManifestV2Item, baseProductID int64, isDependency bool) model.DepotItem {
	di := model.DepotItem{
		RelativePath: item.Path,
		ProductID:    baseProductID,
		MD5Expected:  item.MD5,
		IsDependency: isDependency,
	}
	var compOffset, uncompOffset int64
	for _, c := range item.Chunks {
		chunk := model.Chunk{
			MD5Compressed:      c.CompressedMD5,
			MD5Uncompressed:    c.MD5,
			SizeCompressed:     c.CompressedSize,
			SizeUncompressed:   c.Size,
			OffsetCompressed:   compOffset,
			OffsetUncompressed: uncompOffset,
		}
		di.Chunks = append(di.Chunks, chunk)
		compOffset += c.CompressedSize
		uncompOffset += c.Size
	}
	di.TotalCompressed = compOffset
	di.TotalUncompressed = uncompOffset
	return di
}

// smallFilesContainerItem emits the container as one synthetic item
// named "galaxy_smallfilescontainer" (§4.4 step 2). The packed files
// inside it are not modeled as separate DepotItems, and nothing in this
// repository extracts them from the downloaded container.
func smallFilesContainerItem(c ManifestV2Container, baseProductID int64, isDependency bool) model.DepotItem {
	di := model.DepotItem{
		RelativePath:          "galaxy_smallfilescontainer",
		ProductID:             baseProductID,
		MD5Expected:           c.MD5,
		IsDependency:          isDependency,
		IsSmallFilesContainer: true,
	}
	var compOffset, uncompOffset int64
	for _, ch := range c.Chunks {
		chunk := model.Chunk{
			MD5Compressed:      ch.CompressedMD5,
			MD5Uncompressed:    ch.MD5,
			SizeCompressed:     ch.CompressedSize,
			SizeUncompressed:   ch.Size,
			OffsetCompressed:   compOffset,
			OffsetUncompressed: uncompOffset,
		}
		di.Chunks = append(di.Chunks, chunk)
		compOffset += ch.CompressedSize
		uncompOffset += ch.Size
	}
	di.TotalCompressed = compOffset
	di.TotalUncompressed = uncompOffset
	if len(c.Files) > 0 {
		di.SFCOffset = c.Files[0].Offset
		var last = c.Files[len(c.Files)-1]
		di.SFCSize = last.Offset + last.Size - di.SFCOffset
	}
	return di
}
