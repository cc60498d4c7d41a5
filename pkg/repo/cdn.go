package repo

import (
	"sort"
	"strings"
)

// CDNOption is one `{endpoint_name, url_format, parameters}` record from
// a secure_link/dependency_link response (§4.3).
type CDNOption struct {
	EndpointName string
	URLFormat    string
	Parameters   map[string]string
	// position is this option's index in the JSON array as returned by
	// the server, used for tie-breaking and as the fallback score.
	position int
}

// NewCDNOption constructs a CDNOption carrying its source position for
// tie-breaking, matching what a JSON array decode would give a caller.
func NewCDNOption(endpointName, urlFormat string, parameters map[string]string, position int) CDNOption {
	return CDNOption{EndpointName: endpointName, URLFormat: urlFormat, Parameters: parameters, position: position}
}

// RankCDNs implements the §4.3 CDN selection algorithm: score each
// option by its index in preference (lower is better), falling back to
// len(preference)+position for an endpoint absent from the preference
// list, then sort ascending with position as the tie-break. The
// returned slice is ordered best-first; the engine uses [0] and falls
// through to the next entry on a TransportFatal/TransportRetryable
// exhaustion (§7).
func RankCDNs(options []CDNOption, preference []string) []CDNOption {
	prefIndex := make(map[string]int, len(preference))
	for i, name := range preference {
		prefIndex[name] = i
	}

	type scored struct {
		opt   CDNOption
		score int
	}
	scoredOpts := make([]scored, len(options))
	for i, opt := range options {
		score := len(preference) + opt.position
		if idx, ok := prefIndex[opt.EndpointName]; ok {
			score = idx
		}
		scoredOpts[i] = scored{opt: opt, score: score}
	}

	sort.SliceStable(scoredOpts, func(i, j int) bool {
		if scoredOpts[i].score != scoredOpts[j].score {
			return scoredOpts[i].score < scoredOpts[j].score
		}
		return scoredOpts[i].opt.position < scoredOpts[j].opt.position
	})

	out := make([]CDNOption, len(scoredOpts))
	for i, s := range scoredOpts {
		out[i] = s.opt
	}
	return out
}

// SelectCDN returns the single best-ranked option, or false if options
// is empty.
func SelectCDN(options []CDNOption, preference []string) (CDNOption, bool) {
	ranked := RankCDNs(options, preference)
	if len(ranked) == 0 {
		return CDNOption{}, false
	}
	return ranked[0], true
}

// galaxyPathMarker is spliced into a secure_link URLFormat's {path}
// expansion so the engine can append per-chunk paths without
// re-requesting the secure link for every chunk (§4.3). dependency_link
// templates never carry this marker: one URL per call is required.
const galaxyPathMarker = "{GALAXY_PATH}"

// ResolveURL expands opt.URLFormat against opt.Parameters, substituting
// galaxyPathMarker with chunkPath when present. chunkPath is ignored
// (and should be empty) for a dependency_link-sourced option.
func ResolveURL(opt CDNOption, chunkPath string) string {
	out := opt.URLFormat
	for k, v := range opt.Parameters {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return strings.ReplaceAll(out, galaxyPathMarker, chunkPath)
}
