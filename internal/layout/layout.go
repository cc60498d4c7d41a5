// Package layout centralizes the on-disk path layout (§6) so no other
// package hardcodes "galaxydl" or the sub-path shape of the cache,
// config, and download trees.
package layout

import "path/filepath"

// Paths is the resolved set of directories and files galaxydl reads and
// writes. It is a plain value type assembled once by the CLI layer and
// threaded through constructors, never read from a global.
type Paths struct {
	CacheRoot    string
	ConfigRoot   string
	DownloadRoot string
}

func (p Paths) GameDetailsCache() string {
	return filepath.Join(p.CacheRoot, "galaxydl", "gamedetails.json")
}

func (p Paths) XMLRoot() string {
	return filepath.Join(p.CacheRoot, "galaxydl", "xml")
}

func (p Paths) XMLSidecar(gamename, filename string) string {
	return filepath.Join(p.XMLRoot(), gamename, filename+".xml")
}

func (p Paths) ConfigFile() string {
	return filepath.Join(p.ConfigRoot, "galaxydl", "config.cfg")
}

func (p Paths) CookieJar() string {
	return filepath.Join(p.ConfigRoot, "galaxydl", "cookies.txt")
}

func (p Paths) Blacklist() string {
	return filepath.Join(p.ConfigRoot, "galaxydl", "blacklist.txt")
}

func (p Paths) Ignorelist() string {
	return filepath.Join(p.ConfigRoot, "galaxydl", "ignorelist.txt")
}

func (p Paths) GameHasDLCList() string {
	return filepath.Join(p.ConfigRoot, "galaxydl", "game_has_dlc.txt")
}

func (p Paths) GalaxyTokens() string {
	return filepath.Join(p.ConfigRoot, "galaxydl", "galaxy_tokens.json")
}

// IncompleteSuffix marks a file mid-transfer.
const IncompleteSuffix = ".~incomplete"

// OldSuffixLayout is the time.Format layout used for "<path>.<ISO>.old"
// version-demotion renames (§6, §8 scenario 2).
const OldSuffixLayout = "2006-01-02T150405Z0700"
