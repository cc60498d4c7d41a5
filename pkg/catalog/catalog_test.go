package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsNoCache(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "gamedetails.json"), Config{ValidFor: time.Hour})
	_, err := s.Load(time.Now())
	require.Error(t, err)
	assert.True(t, NoCache.Has(err))
}

func TestLoad_MalformedJSONReturnsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamedetails.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := New(path, Config{ValidFor: time.Hour})
	_, err := s.Load(time.Now())
	require.Error(t, err)
	assert.True(t, Corrupt.Has(err))
}

func TestLoad_VersionMismatchReturnsVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamedetails.json")
	body := `{"cache_version":999,"timestamp":1,"games":[]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	s := New(path, Config{ValidFor: time.Hour})
	_, err := s.Load(time.Now())
	require.Error(t, err)
	assert.True(t, VersionMismatch.Has(err))
}

func TestLoad_MissingGamesKeyReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamedetails.json")
	body := `{"cache_version":1,"timestamp":1}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	s := New(path, Config{ValidFor: time.Hour})
	_, err := s.Load(time.Now())
	require.Error(t, err)
	assert.True(t, Empty.Has(err))
}

func TestLoad_StaleCacheReturnsStaleUnlessAllowed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamedetails.json")
	now := time.Now()
	stamp := now.Add(-2 * time.Hour).Unix()
	body := `{"cache_version":1,"timestamp":` + itoa(stamp) + `,"games":[]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	s := New(path, Config{ValidFor: time.Hour})
	_, err := s.Load(now)
	require.Error(t, err)
	assert.True(t, Stale.Has(err))

	sAllow := New(path, Config{ValidFor: time.Hour, AllowStale: true})
	games, err := sAllow.Load(now)
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestLoad_FreshWellFormedCacheReturnsGames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamedetails.json")
	now := time.Now()
	s := New(path, Config{ValidFor: time.Hour})
	require.NoError(t, s.Save(now, []CachedGame{{ID: 1, Slug: "celeste", Title: "Celeste"}}))

	games, err := s.Load(now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "celeste", games[0].Slug)
}

func TestSave_IsAtomicAndOverwritesPriorContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamedetails.json")
	s := New(path, Config{ValidFor: time.Hour})
	now := time.Now()

	require.NoError(t, s.Save(now, []CachedGame{{ID: 1, Slug: "a"}}))
	require.NoError(t, s.Save(now, []CachedGame{{ID: 2, Slug: "b"}}))

	games, err := s.Load(now)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "b", games[0].Slug)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should not survive a successful save")
}

type fakeProductFetcher struct {
	ids   []int64
	infos map[int64]ProductInfo
}

func (f *fakeProductFetcher) AllOwnedProductIDs(ctx context.Context, system, hiddenFlag string, isUpdated bool, tags []string) ([]int64, error) {
	return f.ids, nil
}

func (f *fakeProductFetcher) ProductInfo(ctx context.Context, productID int64) (ProductInfo, error) {
	return f.infos[productID], nil
}

func TestRefresh_WalksOwnedProductsAndNestsDLCs(t *testing.T) {
	fetcher := &fakeProductFetcher{
		ids: []int64{1},
		infos: map[int64]ProductInfo{
			1: {
				ID: 1, Slug: "game", Title: "Game",
				ExpandedDLCs: []ProductInfo{{ID: 2, Slug: "game-dlc", Title: "Game DLC"}},
			},
		},
	}

	games, err := Refresh(context.Background(), fetcher, "", "", false, nil)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "game", games[0].Slug)
	require.Len(t, games[0].DLCs, 1)
	assert.Equal(t, "game-dlc", games[0].DLCs[0].Slug)
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
