package fileunit

import (
	"strings"
	"unicode"
)

// TemplateContext binds the placeholder set §4.6 defines for target-path
// templates.
type TemplateContext struct {
	Gamename    string
	Title       string
	DLCGamename string
	DLCTitle    string
	Platform    string // "" for non-platform files; rendered as "no_platform"
	// SuppressPlatform drops the %platform% substitution entirely
	// (logo/icon/sidecar-JSON paths per §4.6).
	SuppressPlatform bool
}

// GamenameTransform applies the deterministic slug transform
// %gamename_transformed% names: lowercase, non-alphanumeric runs
// collapsed to a single underscore, leading/trailing underscores
// trimmed. Grounded on lgogdownloader's gamename "safe" transform used
// for filesystem-hostile slugs.
func GamenameTransform(gamename string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(gamename) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// FirstLetter returns the first character of s, or "0" if s begins with
// a digit (matching the original's "group numeric titles under 0"
// filesystem convention).
func FirstLetter(s string) string {
	if s == "" {
		return "0"
	}
	r := []rune(s)[0]
	if unicode.IsDigit(r) {
		return "0"
	}
	return strings.ToLower(string(r))
}

// StripPunctuation removes anything that isn't a letter, digit, or
// space from title, collapsing the result's whitespace runs to single
// spaces.
func StripPunctuation(title string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Substitute expands a target-path template against ctx, then collapses
// any resulting double slashes (§4.6).
func Substitute(template string, ctx TemplateContext) string {
	platform := ctx.Platform
	if platform == "" {
		platform = "no_platform"
	}
	replacer := strings.NewReplacer(
		"%gamename%", ctx.Gamename,
		"%gamename_firstletter%", FirstLetter(ctx.Gamename),
		"%title%", ctx.Title,
		"%title_stripped%", StripPunctuation(ctx.Title),
		"%dlcname%", ctx.DLCGamename,
		"%dlc_title%", ctx.DLCTitle,
		"%dlc_title_stripped%", StripPunctuation(ctx.DLCTitle),
		"%gamename_transformed%", GamenameTransform(ctx.Gamename),
		"%gamename_transformed_firstletter%", FirstLetter(GamenameTransform(ctx.Gamename)),
	)
	out := replacer.Replace(template)
	if ctx.SuppressPlatform {
		out = strings.ReplaceAll(out, "%platform%", "")
	} else {
		out = strings.ReplaceAll(out, "%platform%", strings.ToLower(platform))
	}
	for strings.Contains(out, "//") {
		out = strings.ReplaceAll(out, "//", "/")
	}
	return out
}
