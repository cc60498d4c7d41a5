package legacyrepo

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/galaxydl/galaxydl/pkg/errkind"
)

const splitFilesListPath = "data/noarch/support/split_files"

var splitPartRe = regexp.MustCompile(`^(.*)\.split(\d+)$`)

// ParseSplitFilesList reads the optional support file listing base
// paths whose content is split across "basepath.splitN" members (§4.5
// "Split files").
func ParseSplitFilesList(data []byte) ([]string, error) {
	var bases []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		bases = append(bases, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errkind.ParseError.Wrap(fmt.Errorf("reading %s: %w", splitFilesListPath, err))
	}
	return bases, nil
}

// GroupSplitParts buckets members whose path matches "<base>.splitN"
// and belongs to one of bases, returning each base's parts ordered by
// N ascending.
func GroupSplitParts(members []Member, bases []string) map[string][]Member {
	baseSet := make(map[string]bool, len(bases))
	for _, b := range bases {
		baseSet[b] = true
	}

	grouped := make(map[string][]Member)
	for _, m := range members {
		match := splitPartRe.FindStringSubmatch(m.Path)
		if match == nil {
			continue
		}
		base := match[1]
		if !baseSet[base] {
			continue
		}
		grouped[base] = append(grouped[base], m)
	}
	for base := range grouped {
		parts := grouped[base]
		sort.Slice(parts, func(i, j int) bool {
			ni, _ := splitIndex(parts[i].Path)
			nj, _ := splitIndex(parts[j].Path)
			return ni < nj
		})
		grouped[base] = parts
	}
	return grouped
}

func splitIndex(p string) (int, error) {
	m := splitPartRe.FindStringSubmatch(p)
	if m == nil {
		return 0, fmt.Errorf("not a split-part path: %s", p)
	}
	return strconv.Atoi(m[2])
}

// CombineSplitParts concatenates partPaths (already extracted to disk,
// in order) into basePath, appending to a freshly created base file and
// removing the parts once fully copied. The operation is atomic per
// final file: it writes to a temp path and renames into place (§4.5:
// "Concatenation may either append to the first part... or append to a
// freshly created base file; both are valid... must be atomic
// per-file").
func CombineSplitParts(basePath string, partPaths []string) error {
	tmp := basePath + ".~incomplete"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errkind.DiskFull.Wrap(err)
	}

	for _, p := range partPaths {
		if err := appendPart(out, p); err != nil {
			out.Close()
			os.Remove(tmp)
			return err
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return errkind.DiskFull.Wrap(err)
	}
	if err := os.Rename(tmp, basePath); err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	for _, p := range partPaths {
		os.Remove(p)
	}
	return nil
}

func appendPart(dst io.Writer, partPath string) error {
	f, err := os.Open(partPath)
	if err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	defer f.Close()
	if _, err := io.Copy(dst, f); err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	return nil
}
