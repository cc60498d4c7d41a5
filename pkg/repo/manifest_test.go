package repo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `{
  "depot": {
    "items": [
      {
        "path": "bin/game.exe",
        "md5": "deadbeef",
        "chunks": [
          {"compressedMd5": "c1", "md5": "u1", "compressedSize": 100, "size": 300},
          {"compressedMd5": "c2", "md5": "u2", "compressedSize": 50, "size": 150}
        ]
      }
    ],
    "smallFilesContainer": {
      "md5": "sfc-md5",
      "chunks": [
        {"compressedMd5": "sc1", "md5": "su1", "compressedSize": 10, "size": 40}
      ],
      "files": [
        {"path": "readme.txt", "offset": 0, "size": 20},
        {"path": "license.txt", "offset": 20, "size": 20}
      ]
    }
  }
}`

func TestParseManifestV2_DecodesItemsAndContainer(t *testing.T) {
	m, err := ParseManifestV2(json.RawMessage(sampleManifest))
	require.NoError(t, err)
	require.Len(t, m.Depot.Items, 1)
	require.NotNil(t, m.Depot.SmallFilesContainer)
	assert.Equal(t, "bin/game.exe", m.Depot.Items[0].Path)
}

func TestFlattenDepotItems_ComputesCumulativeOffsets(t *testing.T) {
	m, err := ParseManifestV2(json.RawMessage(sampleManifest))
	require.NoError(t, err)

	items := FlattenDepotItems(m, 42, false)
	require.Len(t, items, 2)

	game := items[0]
	assert.Equal(t, int64(42), game.ProductID)
	require.Len(t, game.Chunks, 2)
	assert.Equal(t, int64(0), game.Chunks[0].OffsetCompressed)
	assert.Equal(t, int64(100), game.Chunks[1].OffsetCompressed)
	assert.Equal(t, int64(0), game.Chunks[0].OffsetUncompressed)
	assert.Equal(t, int64(300), game.Chunks[1].OffsetUncompressed)
	assert.Equal(t, int64(150), game.TotalCompressed)
	assert.Equal(t, int64(450), game.TotalUncompressed)

	sfc := items[1]
	assert.True(t, sfc.IsSmallFilesContainer)
	assert.Equal(t, "galaxy_smallfilescontainer", sfc.RelativePath)
	assert.Equal(t, int64(0), sfc.SFCOffset)
	assert.Equal(t, int64(40), sfc.SFCSize)
}

func TestFlattenDepotItems_MarksDependencyFlag(t *testing.T) {
	m, err := ParseManifestV2(json.RawMessage(sampleManifest))
	require.NoError(t, err)

	items := FlattenDepotItems(m, 1, true)
	for _, it := range items {
		assert.True(t, it.IsDependency)
	}
}

func TestParseManifestV2_RejectsMalformedJSON(t *testing.T) {
	_, err := ParseManifestV2(json.RawMessage(`{not json`))
	assert.Error(t, err)
}
