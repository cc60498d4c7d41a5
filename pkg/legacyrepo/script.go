package legacyrepo

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/galaxydl/galaxydl/pkg/errkind"
)

// scriptLineCountRe and payloadSizeRe extract the two values the
// makeself-style installer shell prelude embeds, matching the original
// implementation's ZipUtil::getMojoSetupScriptSize/getMojoSetupInstallerSize
// regexes byte for byte: the script computes its own length at
// extraction time via `head -n N "$0"`, and separately declares the
// payload size it appended after itself.
var (
	scriptLineCountRe = regexp.MustCompile(`offset=` + "`" + `head -n (\d+?) "\$0"` + "`")
	payloadSizeRe      = regexp.MustCompile(`filesizes="(\d+?)"`)
)

// scriptPrelude holds the two values parsed from the head bytes of a
// legacy installer (§4.5 step 2).
type scriptPrelude struct {
	ScriptBytes       int64
	ArchivePayloadBytes int64
}

// parseScriptPrelude reads the shell-script prefix inside head (the
// first ~100 KiB of the installer) and computes the script's own byte
// length by replaying its newline-counting logic, plus the declared
// payload size, matching §4.5 step 2.
func parseScriptPrelude(head []byte) (scriptPrelude, error) {
	m := scriptLineCountRe.FindSubmatch(head)
	if m == nil {
		return scriptPrelude{}, errkind.ParseError.New("legacy installer: script line-count marker not found in head")
	}
	lineCount, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return scriptPrelude{}, errkind.ParseError.Wrap(fmt.Errorf("parsing script line count: %w", err))
	}

	scriptBytes := countLineBytes(head, lineCount)

	pm := payloadSizeRe.FindSubmatch(head)
	if pm == nil {
		return scriptPrelude{}, errkind.ParseError.New("legacy installer: filesizes marker not found in head")
	}
	payload, err := strconv.ParseInt(string(pm[1]), 10, 64)
	if err != nil {
		return scriptPrelude{}, errkind.ParseError.Wrap(fmt.Errorf("parsing filesizes value: %w", err))
	}

	return scriptPrelude{ScriptBytes: scriptBytes, ArchivePayloadBytes: payload}, nil
}

// countLineBytes returns the byte offset just past the n-th newline in
// data, mirroring `head -n n` — including each line's trailing "\n".
func countLineBytes(data []byte, n int) int64 {
	count := 0
	for i, b := range data {
		if b == '\n' {
			count++
			if count == n {
				return int64(i + 1)
			}
		}
	}
	return int64(len(data))
}
