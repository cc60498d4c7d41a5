package catalog

import (
	"context"

	"github.com/galaxydl/galaxydl/pkg/fileunit"
	"github.com/galaxydl/galaxydl/pkg/model"
)

// Templates names the default target-path templates for each of the
// four FileUnitBuilder groups (§4.6).
type Templates struct {
	InstallerTemplate string
	ExtraTemplate     string
	PatchTemplate     string
	LangpackTemplate  string
}

// Override holds a per-product customization layer (§4.10: "apply
// per-product overrides, recompute target paths"), keyed by the
// product's slug in Expand's overrides map. A zero-value field falls
// back to the Expand call's defaults.
type Override struct {
	Templates    Templates
	LanguageMask model.LanguageMask
	PlatformMask model.PlatformMask
}

func (o Override) resolveTemplates(def Templates) Templates {
	t := def
	if o.Templates.InstallerTemplate != "" {
		t.InstallerTemplate = o.Templates.InstallerTemplate
	}
	if o.Templates.ExtraTemplate != "" {
		t.ExtraTemplate = o.Templates.ExtraTemplate
	}
	if o.Templates.PatchTemplate != "" {
		t.PatchTemplate = o.Templates.PatchTemplate
	}
	if o.Templates.LangpackTemplate != "" {
		t.LangpackTemplate = o.Templates.LangpackTemplate
	}
	return t
}

// Expand turns the cache's flat CachedGame list into the Product tree
// the rest of the pipeline consumes, re-running FileUnitBuilder on each
// product's stored downloads JSON so target paths reflect the caller's
// current templates and masks rather than whatever was in effect the
// last time the cache was written.
func Expand(ctx context.Context, fetcher fileunit.DownlinkFetcher, games []CachedGame, defaultCfg fileunit.Config, defaultTemplates Templates, overrides map[string]Override) ([]model.Product, error) {
	products := make([]model.Product, 0, len(games))
	for _, g := range games {
		p, err := expandOne(ctx, fetcher, g, defaultCfg, defaultTemplates, overrides, "", "")
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func expandOne(ctx context.Context, fetcher fileunit.DownlinkFetcher, g CachedGame, defaultCfg fileunit.Config, defaultTemplates Templates, overrides map[string]Override, baseGamename, baseTitle string) (model.Product, error) {
	cfg := defaultCfg
	tmpl := defaultTemplates
	if ov, ok := overrides[g.Slug]; ok {
		tmpl = ov.resolveTemplates(defaultTemplates)
		if ov.LanguageMask != 0 {
			cfg.LanguageMask = ov.LanguageMask
		}
		if ov.PlatformMask != 0 {
			cfg.PlatformMask = ov.PlatformMask
		}
	}

	gamename, title := g.Slug, g.Title
	if baseGamename != "" {
		gamename, title = baseGamename, baseTitle
	}
	pctx := fileunit.ProductContext{
		Gamename:          gamename,
		Title:             title,
		IsDLC:             baseGamename != "",
		DLCGamename:       g.Slug,
		DLCTitle:          g.Title,
		InstallerTemplate: tmpl.InstallerTemplate,
		ExtraTemplate:     tmpl.ExtraTemplate,
		PatchTemplate:     tmpl.PatchTemplate,
		LangpackTemplate:  tmpl.LangpackTemplate,
	}

	builder := fileunit.New(fetcher, cfg)
	installers, extras, patches, langpacks, err := builder.Build(ctx, pctx, g.Downloads)
	if err != nil {
		return model.Product{}, err
	}

	p := model.Product{
		ID:               g.ID,
		Slug:             g.Slug,
		Title:            g.Title,
		Changelog:        g.ChangeLog,
		GamenameBasegame: baseGamename,
		TitleBasegame:    baseTitle,
		Installers:       installers,
		Extras:           extras,
		Patches:          patches,
		LanguagePacks:    langpacks,
	}

	if cfg.IncludeDLC {
		for _, dlc := range g.DLCs {
			child, err := expandOne(ctx, fetcher, dlc, defaultCfg, defaultTemplates, overrides, g.Slug, g.Title)
			if err != nil {
				return model.Product{}, err
			}
			p.Children = append(p.Children, &child)
		}
	}

	return p, nil
}
