package fileunit

import (
	"context"
	"fmt"
	"regexp"

	"github.com/galaxydl/galaxydl/pkg/transport"
)

// securePathRe matches the service-side anomaly (§4.6) where a resolved
// download path ends in "/secure" or "/securex" — treated as an invalid
// URL and skipped.
var securePathRe = regexp.MustCompile(`(?i)/securex?$`)

// DownlinkInfo is the decoded short JSON a downlink_query_url resolves
// to: the time-scoped real download URL and, when present, the
// checksum-XML URL.
type DownlinkInfo struct {
	DownloadURL string `json:"downlink"`
	ChecksumURL string `json:"checksum"`
}

// DownlinkFetcher resolves one downlink_query_url. Implemented by
// TransportDownlinkFetcher in production, faked in tests.
type DownlinkFetcher interface {
	FetchDownlink(ctx context.Context, queryURL string) (DownlinkInfo, error)
}

// TransportDownlinkFetcher adapts an authenticated pkg/transport.Client
// into a DownlinkFetcher: downlink_query_url already carries whatever
// session parameters the service needs, so no bearer token is attached
// here (the original likewise issues this as a plain GET).
type TransportDownlinkFetcher struct {
	HTTP *transport.Client
}

func (f TransportDownlinkFetcher) FetchDownlink(ctx context.Context, queryURL string) (DownlinkInfo, error) {
	var out DownlinkInfo
	if err := f.HTTP.GetJSON(ctx, queryURL, transport.DefaultOptions(), &out); err != nil {
		return DownlinkInfo{}, fmt.Errorf("fetching downlink %s: %w", queryURL, err)
	}
	return out, nil
}

// isSecurePathAnomaly reports whether resolvedPath should be treated as
// an invalid URL per §4.6.
func isSecurePathAnomaly(resolvedPath string) bool {
	return securePathRe.MatchString(resolvedPath)
}
