// Package orphan implements OrphanScanner (§4.11 of the original
// spec's 4%-budget module, spec.md §9 "Orphan detection" scenario): it
// walks the download tree and reports files not named by the current
// plan's expected set, optionally deleting them.
package orphan

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/galaxydl/galaxydl/pkg/errkind"
)

// Orphan is one file present on disk but absent from the expected set.
type Orphan struct {
	Path string // absolute path
	Size int64
}

// Scan walks root and returns every regular file whose path is not a
// member of expected (absolute paths) and, when filter is non-nil,
// matches filter — mirroring `--check-orphans [REGEX]`'s optional
// pattern argument (spec.md §6).
func Scan(root string, expected map[string]struct{}, filter *regexp.Regexp) ([]Orphan, error) {
	var orphans []Orphan

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := expected[path]; ok {
			return nil
		}
		if filter != nil && !filter.MatchString(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		orphans = append(orphans, Orphan{Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, errkind.DiskFull.Wrap(err)
	}
	return orphans, nil
}

// Delete removes every orphan's file, continuing past individual
// failures and returning the first error encountered (if any) after
// attempting the rest — a partial delete shouldn't abandon the files
// that could still be cleaned up.
func Delete(orphans []Orphan) error {
	var firstErr error
	for _, o := range orphans {
		if err := os.Remove(o.Path); err != nil && firstErr == nil {
			firstErr = errkind.DiskFull.Wrap(err)
		}
	}
	return firstErr
}

// ExpectedSet builds the lookup Scan needs from a flat list of absolute
// target paths (typically every FileUnit.TargetPath/DepotItem path in
// the current plan).
func ExpectedSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}
