// Package catalog implements GameCatalogCache (§4.10): a single JSON
// snapshot of the account's owned products, with a typed freshness gate
// that tells the caller whether to trust the cache or refetch.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/errs"

	"github.com/galaxydl/galaxydl/pkg/errkind"
)

// CacheVersion is bumped whenever the on-disk cacheFile shape changes
// in a way old readers cannot tolerate.
const CacheVersion = 1

var (
	// NoCache marks a missing cache file.
	NoCache = errs.Class("no cache")
	// Corrupt marks a cache file that failed to parse as JSON.
	Corrupt = errs.Class("corrupt cache")
	// Stale marks a cache whose timestamp is older than the configured
	// freshness window.
	Stale = errs.Class("stale cache")
	// VersionMismatch marks a cache written by an incompatible version.
	VersionMismatch = errs.Class("cache version mismatch")
	// Empty marks a cache with no games key at all (as opposed to a
	// zero-length games list, which is a legitimate "owns nothing").
	Empty = errs.Class("empty cache")
)

// CachedGame is one product's cached fields: enough to rebuild its
// FileUnit tree via pkg/fileunit without a second network round trip.
type CachedGame struct {
	ID        int64           `json:"id"`
	Slug      string          `json:"slug"`
	Title     string          `json:"title"`
	ChangeLog string          `json:"changelog"`
	Downloads json.RawMessage `json:"downloads"`
	DLCs      []CachedGame    `json:"dlcs,omitempty"`
}

type cacheFile struct {
	CacheVersion int          `json:"cache_version"`
	Timestamp    int64        `json:"timestamp"`
	Games        []CachedGame `json:"games"`
	hasGamesKey  bool
}

// UnmarshalJSON records whether the "games" key was present at all, so
// Load can distinguish "empty cache" (§4.10: no games key) from "cache
// of an account that owns zero titles" (games: []).
func (c *cacheFile) UnmarshalJSON(data []byte) error {
	type alias cacheFile
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	_, c.hasGamesKey = probe["games"]
	return json.Unmarshal(data, (*alias)(c))
}

// Config bounds how fresh a cache must be to be trusted, and whether a
// stale cache is acceptable anyway (spec.md §4.10: "stale — fetch fresh
// unless user opts into stale reads").
type Config struct {
	ValidFor   time.Duration
	AllowStale bool
}

// Store reads and writes the gamedetails.json cache at path.
type Store struct {
	path string
	cfg  Config
}

func New(path string, cfg Config) *Store {
	return &Store{path: path, cfg: cfg}
}

// Load implements §4.10's table: it returns the cached games plus nil
// on a fresh, well-formed cache, or a typed (NoCache/Corrupt/Stale/
// VersionMismatch/Empty) error a caller checks with errs.Class.Has to
// decide whether to fetch fresh.
func (s *Store) Load(now time.Time) ([]CachedGame, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NoCache.New("%s", s.path)
		}
		return nil, errkind.DiskFull.Wrap(err)
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, Corrupt.Wrap(err)
	}

	if cf.CacheVersion != CacheVersion {
		return nil, VersionMismatch.New("cache version %d, expected %d", cf.CacheVersion, CacheVersion)
	}
	if !cf.hasGamesKey {
		return nil, Empty.New("%s has no games key", s.path)
	}

	age := now.Sub(time.Unix(cf.Timestamp, 0))
	if age > s.cfg.ValidFor && !s.cfg.AllowStale {
		return nil, Stale.New("cache is %s old, valid for %s", age.Round(time.Second), s.cfg.ValidFor)
	}

	return cf.Games, nil
}

// Save atomically replaces the cache file with games stamped at now.
func (s *Store) Save(now time.Time, games []CachedGame) error {
	cf := cacheFile{CacheVersion: CacheVersion, Timestamp: now.Unix(), Games: games}
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalog cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	return nil
}

// ProductFetcher is the subset of repo.Client the catalog's remote
// refresh path needs, narrowed the way pkg/planner.ManifestFetcher is.
type ProductFetcher interface {
	AllOwnedProductIDs(ctx context.Context, system, hiddenFlag string, isUpdated bool, tags []string) ([]int64, error)
	ProductInfo(ctx context.Context, productID int64) (ProductInfo, error)
}

// ProductInfo mirrors repo.Client.ProductInfo's return shape; catalog
// depends on this local type rather than importing pkg/repo's struct
// directly so ProductFetcher stays a narrow, test-friendly interface.
type ProductInfo struct {
	ID           int64
	Title        string
	Slug         string
	ChangeLog    string
	Downloads    json.RawMessage
	ExpandedDLCs []ProductInfo
}

// Refresh rebuilds the full game list from the network (§4.10's
// "fetch fresh" path) and returns it without touching the cache file;
// the caller decides whether/when to Save the result.
func Refresh(ctx context.Context, fetcher ProductFetcher, system, hiddenFlag string, isUpdated bool, tags []string) ([]CachedGame, error) {
	ids, err := fetcher.AllOwnedProductIDs(ctx, system, hiddenFlag, isUpdated, tags)
	if err != nil {
		return nil, err
	}

	games := make([]CachedGame, 0, len(ids))
	for _, id := range ids {
		info, err := fetcher.ProductInfo(ctx, id)
		if err != nil {
			return nil, err
		}
		games = append(games, toCachedGame(info))
	}
	return games, nil
}

func toCachedGame(info ProductInfo) CachedGame {
	g := CachedGame{
		ID:        info.ID,
		Slug:      info.Slug,
		Title:     info.Title,
		ChangeLog: info.ChangeLog,
		Downloads: info.Downloads,
	}
	for _, dlc := range info.ExpandedDLCs {
		g.DLCs = append(g.DLCs, toCachedGame(dlc))
	}
	return g
}
