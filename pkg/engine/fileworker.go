package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/galaxydl/galaxydl/pkg/errkind"
	"github.com/galaxydl/galaxydl/pkg/messages"
	"github.com/galaxydl/galaxydl/pkg/model"
	"github.com/galaxydl/galaxydl/pkg/queue"
	"github.com/galaxydl/galaxydl/pkg/transport"
)

// fileWorker implements the file-path per-worker loop (§4.7). unit's
// TargetPath is assumed to already be an absolute filesystem path; the
// caller (cmd/galaxydl) is responsible for rooting it under the
// configured download tree.
func (e *Engine) fileWorker(ctx context.Context, workerID int, q *queue.Queue[model.FileUnit], mu *sync.Mutex, result *Result) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		unit, ok := q.TryPop()
		if !ok {
			return nil
		}

		e.setProgress(workerID, WorkerProgress{Filename: unit.TargetPath, BytesTotal: unit.DeclaredSize, State: model.StateStarting})
		outcome := e.processFileUnit(ctx, workerID, unit)

		mu.Lock()
		switch outcome.state {
		case model.StateSucceeded:
			result.Succeeded++
		case model.StateFailed:
			result.Failed = append(result.Failed, FailedUnit{TargetPath: unit.TargetPath, Err: outcome.err})
		default:
			result.Skipped++
		}
		mu.Unlock()

		if e.deps.Report != nil {
			_ = e.deps.Report.Write(messages.ReportLine{
				Outcome:  reportOutcome(outcome.state),
				Gamename: unit.Gamename,
				Filename: unit.TargetPath,
				Size:     unit.DeclaredSize,
			})
		}
		if e.deps.Messages != nil && outcome.err != nil {
			e.deps.Messages.Warning("%s: %v", unit.TargetPath, outcome.err)
		}
	}
}

type fileOutcome struct {
	state model.WorkState
	err   error
}

func (e *Engine) processFileUnit(ctx context.Context, workerID int, unit model.FileUnit) fileOutcome {
	atomic.AddInt64(&e.remaining, -unit.DeclaredSize)

	if unit.TargetPath == "" {
		return fileOutcome{state: model.StateFailed, err: fmt.Errorf("unit %s: empty target path", unit.ID)}
	}
	if e.deps.Blacklist.Matches(unit.TargetPath) {
		return fileOutcome{state: model.StateSucceeded} // skipped, not a failure
	}

	if err := e.ensureDir(filepath.Dir(unit.TargetPath)); err != nil {
		return fileOutcome{state: model.StateFailed, err: errkind.DiskFull.Wrap(err)}
	}

	if err := e.refreshIfExpired(ctx); err != nil {
		return fileOutcome{state: model.StateFailed, err: err}
	}

	info, err := e.deps.Downlink.FetchDownlink(ctx, unit.DownlinkQueryURL)
	if err != nil {
		return fileOutcome{state: model.StateFailed, err: err}
	}
	downloadURL := info.DownloadURL
	if downloadURL == "" {
		downloadURL = unit.ServerPath
	}

	filename := filepath.Base(unit.TargetPath)
	var remoteVerifier model.FileVerifier
	haveRemote := false
	if info.ChecksumURL != "" && (unit.Kind.IsInstaller() || unit.Kind.IsPatch()) && e.cfg.RemoteXMLEnabled && e.deps.Verifier != nil {
		if rv, verr := e.deps.Verifier.FetchRemote(ctx, info.ChecksumURL); verr == nil {
			remoteVerifier = rv
			haveRemote = true
		}
	}

	localVerifier, haveLocal := model.FileVerifier{}, false
	if e.deps.Verifier != nil {
		localVerifier, haveLocal = e.deps.Verifier.Load(unit.Gamename, filename)
	}

	st, statErr := os.Stat(unit.TargetPath)
	exists := statErr == nil
	var onDiskSize int64
	if exists {
		onDiskSize = st.Size()
	}

	sameVersion := true
	if haveRemote && haveLocal && remoteVerifier.MD5 != "" && localVerifier.MD5 != "" {
		sameVersion = remoteVerifier.MD5 == localVerifier.MD5
	}

	declaredTotal := unit.DeclaredSize
	if haveRemote && remoteVerifier.TotalSize > 0 {
		declaredTotal = remoteVerifier.TotalSize
	}
	isComplete := exists && sameVersion && declaredTotal > 0 && onDiskSize == declaredTotal

	if isComplete {
		e.setProgress(workerID, WorkerProgress{Filename: unit.TargetPath, BytesDone: onDiskSize, BytesTotal: declaredTotal, State: model.StateSucceeded})
		return fileOutcome{state: model.StateSucceeded}
	}

	resumeFrom := int64(0)
	if exists {
		if sameVersion {
			resumeFrom = onDiskSize
		} else {
			renamed := fmt.Sprintf("%s.%s.old", unit.TargetPath, time.Now().UTC().Format("2006-01-02T150405Z"))
			if err := os.Rename(unit.TargetPath, renamed); err != nil {
				return fileOutcome{state: model.StateFailed, err: errkind.DiskFull.Wrap(err)}
			}
		}
	}

	e.setProgress(workerID, WorkerProgress{Filename: unit.TargetPath, BytesDone: resumeFrom, BytesTotal: declaredTotal, State: model.StateRunning})

	opts := transport.DefaultOptions()
	opts.BearerToken, _ = e.deps.Tokens.GetAccess()
	status, err := e.deps.HTTP.DownloadToFile(ctx, downloadURL, unit.TargetPath, resumeFrom, opts)
	if err != nil {
		if errkind.TransportFatal.Has(err) && status.BytesWritten == 0 && resumeFrom == 0 {
			_ = os.Remove(unit.TargetPath)
		}
		return fileOutcome{state: model.StateFailed, err: err}
	}

	if !status.Filetime.IsZero() {
		_ = os.Chtimes(unit.TargetPath, status.Filetime, status.Filetime)
	}

	if e.cfg.AutomaticXMLCreation && e.deps.Verifier != nil && haveRemote {
		_ = e.deps.Verifier.Save(unit.Gamename, filename, remoteVerifier)
	}

	e.setProgress(workerID, WorkerProgress{Filename: unit.TargetPath, BytesDone: resumeFrom + status.BytesWritten, BytesTotal: declaredTotal, State: model.StateSucceeded})
	return fileOutcome{state: model.StateSucceeded}
}

func reportOutcome(state model.WorkState) messages.FileOutcome {
	switch state {
	case model.StateSucceeded:
		return messages.OutcomeOK
	case model.StateFailed:
		return messages.OutcomeFS
	default:
		return messages.OutcomeND
	}
}
