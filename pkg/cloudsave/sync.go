package cloudsave

import "time"

// SyncAction is the decision `--cloud-sync` reaches for one path after
// comparing local and remote state (§4.12: "diffs local vs remote using
// LocalLastModified the way the original's galaxyapi.cpp does").
type SyncAction int

const (
	SyncNoop SyncAction = iota
	SyncUpload
	SyncDownload
)

func (a SyncAction) String() string {
	switch a {
	case SyncUpload:
		return "upload"
	case SyncDownload:
		return "download"
	default:
		return "noop"
	}
}

// Decide implements one file's side of the sync diff: present-only on
// one side always wins; when both exist, the newer LocalLastModified
// wins, and an exact tie is a no-op.
func Decide(localExists bool, localModTime time.Time, remoteExists bool, remote Metadata) SyncAction {
	switch {
	case localExists && !remoteExists:
		return SyncUpload
	case !localExists && remoteExists:
		return SyncDownload
	case !localExists && !remoteExists:
		return SyncNoop
	case localModTime.After(remote.LocalLastModified):
		return SyncUpload
	case remote.LocalLastModified.After(localModTime):
		return SyncDownload
	default:
		return SyncNoop
	}
}
