// Package planner implements DepotPlanner (§4.4): it flattens a build
// manifest into the DepotItem stream the download engine consumes,
// applying language/architecture filters and resolving the global
// dependencies repository.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/galaxydl/galaxydl/pkg/errkind"
	"github.com/galaxydl/galaxydl/pkg/model"
	"github.com/galaxydl/galaxydl/pkg/repo"
)

// ManifestFetcher is the subset of repo.Client the planner needs,
// narrowed so tests can supply a fake without standing up an HTTP
// server.
type ManifestFetcher interface {
	ManifestV2(ctx context.Context, hash string, isDependency bool) (json.RawMessage, error)
	DependenciesRepository(ctx context.Context) ([]repo.DependencyDepot, error)
}

// Config mirrors the DepotPlanner inputs of §4.4: a language selector
// (already resolved to the regex for the configured language, matching
// original_source's per-language regex table), the configured
// architecture token ("32"/"64"), and the two inclusion toggles.
type Config struct {
	LanguageRegexp     string
	Arch               string
	IncludeDLC         bool
	GalaxyDependencies bool
}

// BuildManifest is the decoded top-level generation-2 build manifest
// (§4.4): a base product id, a list of depot descriptors, and an
// optional list of dependency ids to resolve against the global
// dependencies repository.
type BuildManifest struct {
	BaseProductID string        `json:"baseProductId"`
	Depots        []DepotDescriptor `json:"depots"`
	Dependencies  []string      `json:"dependencies"`
}

// DepotDescriptor is one entry of a build manifest's "depots" array,
// naming a manifest hash to fetch if the language/arch filter accepts
// it.
type DepotDescriptor struct {
	Manifest  string   `json:"manifest"`
	ProductID string   `json:"productId"`
	Languages []string `json:"languages"`
	OSBitness []string `json:"osBitness"`
}

// Planner flattens build manifests into DepotItem streams.
type Planner struct {
	fetcher  ManifestFetcher
	cfg      Config
	language *regexp.Regexp
}

// New builds a Planner bound to fetcher and cfg.
func New(fetcher ManifestFetcher, cfg Config) (*Planner, error) {
	re, err := regexp.Compile("^(" + cfg.LanguageRegexp + ")$")
	if err != nil {
		return nil, errkind.ParseError.Wrap(fmt.Errorf("invalid language regexp %q: %w", cfg.LanguageRegexp, err))
	}
	return &Planner{fetcher: fetcher, cfg: cfg, language: re}, nil
}

// acceptsLanguageArch implements §4.4 step 1's depot acceptance test.
func (p *Planner) acceptsLanguageArch(languages, osBitness []string) bool {
	selectedLanguage := false
	for _, lang := range languages {
		if lang == "*" || p.language.MatchString(lang) {
			selectedLanguage = true
			break
		}
	}
	if !selectedLanguage {
		return false
	}

	if len(osBitness) == 0 {
		return true
	}
	for _, b := range osBitness {
		if b == "*" || b == p.cfg.Arch {
			return true
		}
	}
	return false
}

// Plan implements DepotPlanner's main algorithm (§4.4 steps 1-4),
// returning the flattened, filtered DepotItem stream for one build
// manifest.
func (p *Planner) Plan(ctx context.Context, build BuildManifest) ([]model.DepotItem, error) {
	var items []model.DepotItem

	for _, depot := range build.Depots {
		if !p.acceptsLanguageArch(depot.Languages, depot.OSBitness) {
			continue
		}

		raw, err := p.fetcher.ManifestV2(ctx, depot.Manifest, false)
		if err != nil {
			return nil, err
		}
		m, err := repo.ParseManifestV2(raw)
		if err != nil {
			return nil, err
		}

		baseID := parseProductID(depot.ProductID, build.BaseProductID)
		items = append(items, repo.FlattenDepotItems(m, baseID, false)...)
	}

	if !p.cfg.IncludeDLC {
		baseID := parseProductID("", build.BaseProductID)
		filtered := items[:0]
		for _, it := range items {
			if it.ProductID == baseID {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}

	if p.cfg.GalaxyDependencies && len(build.Dependencies) > 0 {
		depItems, err := p.resolveDependencies(ctx, build.Dependencies)
		if err != nil {
			return nil, err
		}
		items = append(items, depItems...)
	}

	return items, nil
}

// UpgradeDelta implements §4.4's upgrade-delta computation: given the
// previously installed build's manifest and the newly planned item set,
// it returns the relative paths present in the old build but absent
// from the new one — files the caller should delete after a successful
// upgrade.
func (p *Planner) UpgradeDelta(ctx context.Context, oldBuild BuildManifest, newItems []model.DepotItem) ([]string, error) {
	oldItems, err := p.Plan(ctx, oldBuild)
	if err != nil {
		return nil, err
	}

	newPaths := make(map[string]bool, len(newItems))
	for _, it := range newItems {
		newPaths[it.RelativePath] = true
	}

	var removed []string
	for _, it := range oldItems {
		if !newPaths[it.RelativePath] {
			removed = append(removed, it.RelativePath)
		}
	}
	return removed, nil
}

func (p *Planner) resolveDependencies(ctx context.Context, wanted []string) ([]model.DepotItem, error) {
	depots, err := p.fetcher.DependenciesRepository(ctx)
	if err != nil {
		return nil, err
	}

	wantedSet := make(map[string]bool, len(wanted))
	for _, id := range wanted {
		wantedSet[id] = true
	}

	var items []model.DepotItem
	for _, depot := range depots {
		if !wantedSet[depot.DependencyID] {
			continue
		}
		if !p.acceptsLanguageArch(depot.Languages, depot.OSBitness) {
			continue
		}

		raw, err := p.fetcher.ManifestV2(ctx, depot.Manifest, true)
		if err != nil {
			return nil, err
		}
		m, err := repo.ParseManifestV2(raw)
		if err != nil {
			return nil, err
		}
		items = append(items, repo.FlattenDepotItems(m, 0, true)...)
	}
	return items, nil
}

func parseProductID(depotProductID, baseProductID string) int64 {
	s := depotProductID
	if s == "" {
		s = baseProductID
	}
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}
