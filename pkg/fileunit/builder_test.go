package fileunit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galaxydl/galaxydl/pkg/model"
)

type fakeFetcher struct {
	byQuery map[string]DownlinkInfo
}

func (f fakeFetcher) FetchDownlink(ctx context.Context, queryURL string) (DownlinkInfo, error) {
	return f.byQuery[queryURL], nil
}

const sampleDownloads = `{
  "installers": [
    {
      "name": "installer",
      "version": "1.2.0",
      "os": "windows",
      "language": "en",
      "count": 1,
      "total_size": 1000,
      "files": [{"id": "f1", "size": 1000, "downlink": "https://embed.gog.com/downlink/f1"}]
    },
    {
      "name": "empty group",
      "os": "windows",
      "language": "en",
      "count": 0,
      "total_size": 0,
      "files": [{"id": "skip", "size": 0, "downlink": "https://embed.gog.com/downlink/skip"}]
    },
    {
      "name": "mac installer",
      "os": "mac",
      "language": "en",
      "count": 1,
      "total_size": 500,
      "files": [{"id": "f2", "size": "500", "downlink": "https://embed.gog.com/downlink/f2"}]
    }
  ],
  "bonus_content": [
    {
      "name": "artbook",
      "count": 1,
      "total_size": 200,
      "files": [{"id": "a1", "size": 200, "downlink": "https://embed.gog.com/downlink/a1"}]
    }
  ]
}`

func sampleFetcher() fakeFetcher {
	return fakeFetcher{byQuery: map[string]DownlinkInfo{
		"https://embed.gog.com/downlink/f1":   {DownloadURL: "https://cdn.gog.com/f1.exe"},
		"https://embed.gog.com/downlink/f2":   {DownloadURL: "https://cdn.gog.com/f2.pkg"},
		"https://embed.gog.com/downlink/a1":   {DownloadURL: "https://cdn.gog.com/a1.zip"},
		"https://embed.gog.com/downlink/skip": {DownloadURL: "https://cdn.gog.com/skip.exe"},
	}}
}

func TestBuild_SkipsZeroCountZeroSizeGroups(t *testing.T) {
	b := New(sampleFetcher(), Config{})
	pctx := ProductContext{Gamename: "celeste", Title: "Celeste", InstallerTemplate: "%gamename%/%platform%/installer", ExtraTemplate: "%gamename%/extras"}

	installers, extras, _, _, err := b.Build(context.Background(), pctx, json.RawMessage(sampleDownloads))
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, u := range installers {
		ids[u.ID] = true
	}
	assert.True(t, ids["f1"])
	assert.True(t, ids["f2"])
	assert.False(t, ids["skip"])

	require.Len(t, extras, 1)
	assert.Equal(t, "a1", extras[0].ID)
	assert.Equal(t, model.KindBaseExtra, extras[0].Kind)
}

func TestBuild_AppliesPlatformMaskFilter(t *testing.T) {
	b := New(sampleFetcher(), Config{PlatformMask: model.PlatformWindows})
	pctx := ProductContext{Gamename: "celeste", InstallerTemplate: "%gamename%/%platform%/installer"}

	installers, _, _, _, err := b.Build(context.Background(), pctx, json.RawMessage(sampleDownloads))
	require.NoError(t, err)

	for _, u := range installers {
		assert.NotEqual(t, "f2", u.ID, "mac installer should be filtered out by windows-only mask")
	}
}

func TestBuild_SkipsSecurePathAnomaly(t *testing.T) {
	fetcher := fakeFetcher{byQuery: map[string]DownlinkInfo{
		"https://embed.gog.com/downlink/bad": {DownloadURL: "https://cdn.gog.com/path/secure"},
	}}
	raw := `{"installers":[{"name":"x","count":1,"total_size":10,"os":"windows","language":"en","files":[{"id":"bad","size":10,"downlink":"https://embed.gog.com/downlink/bad"}]}]}`

	b := New(fetcher, Config{})
	pctx := ProductContext{Gamename: "celeste", InstallerTemplate: "%gamename%/installer"}
	installers, _, _, _, err := b.Build(context.Background(), pctx, json.RawMessage(raw))
	require.NoError(t, err)
	assert.Empty(t, installers)
}

func TestBuild_DuplicateHandlingCoalescesByTargetPathAndOrsLanguage(t *testing.T) {
	raw := `{"installers":[
      {"name":"a","count":1,"total_size":1,"os":"windows","language":"en","files":[{"id":"f1","size":1,"downlink":"https://x/f1"}]},
      {"name":"b","count":1,"total_size":1,"os":"windows","language":"de","files":[{"id":"f2","size":1,"downlink":"https://x/f2"}]}
    ]}`
	fetcher := fakeFetcher{byQuery: map[string]DownlinkInfo{
		"https://x/f1": {DownloadURL: "https://cdn/f1.exe"},
		"https://x/f2": {DownloadURL: "https://cdn/f2.exe"},
	}}
	b := New(fetcher, Config{DuplicateHandling: true})
	pctx := ProductContext{Gamename: "celeste", InstallerTemplate: "%gamename%/installer"}

	installers, _, _, _, err := b.Build(context.Background(), pctx, json.RawMessage(raw))
	require.NoError(t, err)
	require.Len(t, installers, 1)
	assert.Equal(t, model.LanguageMask(1|2), installers[0].LanguageMask)
}

func TestBuildSidecars_SkipsEmptySpecsAndTagsDLCKind(t *testing.T) {
	pctx := ProductContext{Gamename: "celeste-dlc", IsDLC: true}
	specs := []SidecarSpec{
		IconSidecar(pctx, "https://cdn.gog.com/icon.png", "%gamename%/icon.png"),
		IconSidecar(pctx, "", "%gamename%/icon.png"),
	}
	units := BuildSidecars(pctx, specs)
	require.Len(t, units, 1)
	assert.Equal(t, model.KindCustomDLC, units[0].Kind)
	assert.Equal(t, "celeste-dlc/icon.png", units[0].TargetPath)
}
