package fileunit

import (
	"github.com/galaxydl/galaxydl/pkg/model"
)

// SidecarSpec names one non-installer artifact (icon, logo, serial key,
// changelog, or the cached game-details JSON itself) that the planner
// wants written alongside a product's installers. These never carry a
// downlink — their ServerPath is already a direct URL, or for
// text/JSON sidecars, empty (the caller writes the content directly).
type SidecarSpec struct {
	Name       string
	ServerPath string
	TargetPath string // already resolved; sidecar paths suppress %platform%
}

// BuildSidecars turns icon/logo URLs and a resolved sidecar-JSON path
// into FileUnits of kind CustomBase/CustomDLC, so they flow through the
// same engine queue as regular installers instead of needing a special
// code path.
func BuildSidecars(pctx ProductContext, specs []SidecarSpec) []model.FileUnit {
	kind := model.KindCustomBase
	if pctx.IsDLC {
		kind = model.KindCustomDLC
	}

	out := make([]model.FileUnit, 0, len(specs))
	for _, s := range specs {
		if s.ServerPath == "" && s.TargetPath == "" {
			continue
		}
		out = append(out, model.FileUnit{
			Kind:        kind,
			ID:          s.Name,
			DisplayName: s.Name,
			ServerPath:  s.ServerPath,
			TargetPath:  s.TargetPath,
			Gamename:    pctx.Gamename,
		})
	}
	return out
}

// IconSidecar/LogoSidecar build the well-known icon/logo sidecar specs
// for a product, substituting the same template placeholders as
// installers but suppressing %platform%.
func IconSidecar(pctx ProductContext, iconURL, template string) SidecarSpec {
	return imageSidecar("icon", pctx, iconURL, template)
}

func LogoSidecar(pctx ProductContext, logoURL, template string) SidecarSpec {
	return imageSidecar("logo", pctx, logoURL, template)
}

func imageSidecar(name string, pctx ProductContext, url, template string) SidecarSpec {
	if url == "" {
		return SidecarSpec{}
	}
	return SidecarSpec{
		Name:       name,
		ServerPath: url,
		TargetPath: Substitute(template, TemplateContext{
			Gamename:         pctx.Gamename,
			Title:            pctx.Title,
			DLCGamename:      pctx.DLCGamename,
			DLCTitle:         pctx.DLCTitle,
			SuppressPlatform: true,
		}),
	}
}
