package fileunit

import (
	"regexp"
	"strings"

	"github.com/galaxydl/galaxydl/pkg/model"
)

// platformEntry and languageEntry mirror the alias tables in
// original_source/include/globalconstants.h (PLATFORMS/LANGUAGES):
// each service-reported os/language string is matched against a
// regex of known aliases and mapped onto the fixed bitmask the
// planner and builder filter against.
type platformEntry struct {
	mask model.PlatformMask
	code string
	re   *regexp.Regexp
}

type languageEntry struct {
	mask model.LanguageMask
	code string
	re   *regexp.Regexp
}

var platformTable = []platformEntry{
	{model.PlatformWindows, "win", regexp.MustCompile(`(?i)^(w|win|windows)$`)},
	{model.PlatformMac, "mac", regexp.MustCompile(`(?i)^(m|mac|osx)$`)},
	{model.PlatformLinux, "lin", regexp.MustCompile(`(?i)^(l|lin|linux)$`)},
}

// languageTable covers the subset of original_source's 28-language
// table most GOG catalog entries actually use; a token matching none of
// them falls through to lookupLanguage's default, the English mask.
var languageTable = []languageEntry{
	{1 << 0, "en", regexp.MustCompile(`(?i)^(en|eng|english|en[_-]us)$`)},
	{1 << 1, "de", regexp.MustCompile(`(?i)^(de|deu|ger|german|de[_-]de)$`)},
	{1 << 2, "fr", regexp.MustCompile(`(?i)^(fr|fra|fre|french|fr[_-]fr)$`)},
	{1 << 3, "pl", regexp.MustCompile(`(?i)^(pl|pol|polish|pl[_-]pl)$`)},
	{1 << 4, "ru", regexp.MustCompile(`(?i)^(ru|rus|russian|ru[_-]ru)$`)},
	{1 << 5, "cn", regexp.MustCompile(`(?i)^(cn|zh|zho|chi|chinese)$`)},
	{1 << 7, "es", regexp.MustCompile(`(?i)^(es|spa|spanish|es[_-]es)$`)},
	{1 << 9, "it", regexp.MustCompile(`(?i)^(it|ita|italian|it[_-]it)$`)},
	{1 << 10, "jp", regexp.MustCompile(`(?i)^(jp|ja|jpn|japanese|ja[_-]jp)$`)},
	{1 << 12, "pt", regexp.MustCompile(`(?i)^(pt|por|portuguese|pt[_-]pt)$`)},
}

// LookupPlatform exports lookupPlatform for callers outside the package
// (the CLI's config layer, turning a user-facing "--platform" flag into
// the mask the builder/planner filter against).
func LookupPlatform(token string) model.PlatformMask { return lookupPlatform(token) }

// LookupLanguage exports lookupLanguage for the same reason.
func LookupLanguage(token string) model.LanguageMask { return lookupLanguage(token) }

func lookupPlatform(token string) model.PlatformMask {
	token = strings.TrimSpace(token)
	for _, e := range platformTable {
		if e.re.MatchString(token) {
			return e.mask
		}
	}
	return model.PlatformWindows
}

func lookupLanguage(token string) model.LanguageMask {
	token = strings.TrimSpace(token)
	for _, e := range languageTable {
		if e.re.MatchString(token) {
			return e.mask
		}
	}
	return languageTable[0].mask // default to English, matching original's fallback
}
