// Package fileunit implements FileUnitBuilder (§4.6): it maps a
// product's decoded JSON into the FileUnit work list the download
// engine consumes, computing each unit's target filesystem path from a
// configurable template.
package fileunit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/galaxydl/galaxydl/pkg/model"
)

// Config configures one builder run: the masks and flags that apply to
// every product. Target-path templates are not part of Config; they come
// per product from ProductContext's *Template fields, using the
// placeholder set transform.go substitutes.
type Config struct {
	LanguageMask      model.LanguageMask
	PlatformMask      model.PlatformMask
	IncludeDLC        bool
	DuplicateHandling bool
}

// Builder expands a product's raw downloads JSON into FileUnits,
// resolving one downlink per file via fetcher.
type Builder struct {
	fetcher DownlinkFetcher
	cfg     Config
}

func New(fetcher DownlinkFetcher, cfg Config) *Builder {
	return &Builder{fetcher: fetcher, cfg: cfg}
}

// downloadsNode is the decoded shape of a product's "downloads" object.
type downloadsNode struct {
	Installers    []fileGroupNode `json:"installers"`
	BonusContent  []fileGroupNode `json:"bonus_content"`
	Patches       []fileGroupNode `json:"patches"`
	LanguagePacks []fileGroupNode `json:"language_packs"`
}

type fileGroupNode struct {
	Name      string          `json:"name"`
	Version   string          `json:"version"`
	OS        string          `json:"os"`
	Language  string          `json:"language"`
	Count     int             `json:"count"`
	TotalSize flexInt64       `json:"total_size"`
	Files     []fileEntryNode `json:"files"`
}

type fileEntryNode struct {
	ID       string    `json:"id"`
	Size     flexInt64 `json:"size"`
	Downlink string    `json:"downlink"`
}

// flexInt64 decodes a size field the service sometimes renders as a
// JSON number and sometimes as a numeric string.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt64(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flexInt64: %w", err)
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("flexInt64: %w", err)
	}
	*f = flexInt64(n)
	return nil
}

// ProductContext names the owning product/DLC for target-path
// templating and FileUnit.Gamename population.
type ProductContext struct {
	Gamename    string
	Title       string
	IsDLC       bool
	DLCGamename string // the product's own slug; equals Gamename on a base product
	DLCTitle    string

	InstallerTemplate string
	ExtraTemplate     string
	PatchTemplate     string
	LangpackTemplate  string
}

// Build expands ctx's product downloads JSON into the product's
// FileUnits, recursively fetching one downlink per file.
func (b *Builder) Build(ctx context.Context, pctx ProductContext, downloads json.RawMessage) ([]model.FileUnit, []model.FileUnit, []model.FileUnit, []model.FileUnit, error) {
	var node downloadsNode
	if len(downloads) > 0 {
		if err := json.Unmarshal(downloads, &node); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("decoding downloads: %w", err)
		}
	}

	baseKind, dlcKind := model.KindBaseInstaller, model.KindDLCInstaller
	installers, err := b.buildGroup(ctx, pctx, node.Installers, pctx.InstallerTemplate, baseKind, dlcKind, false)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	baseKind, dlcKind = model.KindBaseExtra, model.KindDLCExtra
	extras, err := b.buildGroup(ctx, pctx, node.BonusContent, pctx.ExtraTemplate, baseKind, dlcKind, true)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	baseKind, dlcKind = model.KindBasePatch, model.KindDLCPatch
	patches, err := b.buildGroup(ctx, pctx, node.Patches, pctx.PatchTemplate, baseKind, dlcKind, false)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	baseKind, dlcKind = model.KindBaseLangpack, model.KindDLCLangpack
	langpacks, err := b.buildGroup(ctx, pctx, node.LanguagePacks, pctx.LangpackTemplate, baseKind, dlcKind, false)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if b.cfg.DuplicateHandling {
		installers = coalesce(installers)
		extras = coalesce(extras)
		patches = coalesce(patches)
		langpacks = coalesce(langpacks)
	}

	return installers, extras, patches, langpacks, nil
}

func (b *Builder) buildGroup(ctx context.Context, pctx ProductContext, groups []fileGroupNode, template string, baseKind, dlcKind model.FileKind, isExtra bool) ([]model.FileUnit, error) {
	var out []model.FileUnit
	for _, g := range groups {
		if g.Count == 0 && g.TotalSize == 0 {
			continue
		}

		var platform model.PlatformMask
		var language model.LanguageMask
		if isExtra {
			platform = model.PlatformWindows | model.PlatformMac | model.PlatformLinux
			language = languageTable[0].mask
		} else {
			platform = lookupPlatform(g.OS)
			language = lookupLanguage(g.Language)
			if b.cfg.PlatformMask != 0 && platform&b.cfg.PlatformMask == 0 {
				continue
			}
			if b.cfg.LanguageMask != 0 && language&b.cfg.LanguageMask == 0 {
				continue
			}
		}

		for _, f := range g.Files {
			if f.Downlink == "" {
				continue
			}
			info, err := b.fetcher.FetchDownlink(ctx, f.Downlink)
			if err != nil {
				return nil, err
			}
			if info.DownloadURL == "" {
				continue
			}
			if isSecurePathAnomaly(info.DownloadURL) {
				continue
			}

			kind := baseKind
			if pctx.IsDLC {
				kind = dlcKind
			}

			unit := model.FileUnit{
				Kind:             kind,
				ID:               f.ID,
				DisplayName:      g.Name,
				ServerPath:       info.DownloadURL,
				DeclaredSize:     int64(f.Size),
				PlatformMask:     platform,
				LanguageMask:     language,
				Version:          g.Version,
				DownlinkQueryURL: f.Downlink,
				Gamename:         pctx.Gamename,
			}
			unit.TargetPath = Substitute(template, TemplateContext{
				Gamename:    pctx.Gamename,
				Title:       pctx.Title,
				DLCGamename: pctx.DLCGamename,
				DLCTitle:    pctx.DLCTitle,
				Platform:    platformCode(platform),
			})
			out = append(out, unit)
		}
	}
	return out, nil
}

func platformCode(mask model.PlatformMask) string {
	for _, e := range platformTable {
		if mask == e.mask {
			return e.code
		}
	}
	return ""
}

// coalesce merges units sharing a TargetPath, OR-ing their language
// masks (§3 invariant: duplicate handling coalesces units differing
// only in language_mask).
func coalesce(units []model.FileUnit) []model.FileUnit {
	byPath := make(map[string]int, len(units))
	out := make([]model.FileUnit, 0, len(units))
	for _, u := range units {
		if idx, ok := byPath[u.TargetPathKey()]; ok {
			out[idx].LanguageMask |= u.LanguageMask
			continue
		}
		byPath[u.TargetPathKey()] = len(out)
		out = append(out, u)
	}
	return out
}
