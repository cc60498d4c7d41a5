package engine

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/galaxydl/galaxydl/pkg/errkind"
	"github.com/galaxydl/galaxydl/pkg/messages"
	"github.com/galaxydl/galaxydl/pkg/model"
	"github.com/galaxydl/galaxydl/pkg/queue"
	"github.com/galaxydl/galaxydl/pkg/repo"
	"github.com/galaxydl/galaxydl/pkg/transport"
)

// depotWorker implements the repository-path per-worker loop (§4.7):
// chunk-boundary resume/verify against a content-addressed manifest,
// CDN template caching, and raw-deflate streaming decompression to
// disk.
func (e *Engine) depotWorker(ctx context.Context, workerID int, destRoot string, q *queue.Queue[model.DepotItem], mu *sync.Mutex, result *Result) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		item, ok := q.TryPop()
		if !ok {
			return nil
		}

		outcome := e.processDepotItem(ctx, workerID, destRoot, item)

		mu.Lock()
		switch outcome.state {
		case model.StateSucceeded:
			result.Succeeded++
		case model.StateFailed:
			result.Failed = append(result.Failed, FailedUnit{TargetPath: item.RelativePath, Err: outcome.err})
		default:
			result.Skipped++
		}
		mu.Unlock()

		if e.deps.Report != nil {
			_ = e.deps.Report.Write(messages.ReportLine{
				Outcome:  reportOutcome(outcome.state),
				Filename: item.RelativePath,
				Size:     item.TotalUncompressed,
				MD5:      item.MD5Expected,
			})
		}
		if e.deps.Messages != nil && outcome.err != nil {
			e.deps.Messages.Warning("%s: %v", item.RelativePath, outcome.err)
		}
	}
}

func (e *Engine) processDepotItem(ctx context.Context, workerID int, destRoot string, item model.DepotItem) fileOutcome {
	atomic.AddInt64(&e.remaining, -item.TotalCompressed)

	targetPath := filepath.Join(destRoot, filepath.FromSlash(item.RelativePath))
	if err := e.ensureDir(filepath.Dir(targetPath)); err != nil {
		return fileOutcome{state: model.StateFailed, err: errkind.DiskFull.Wrap(err)}
	}

	startChunk, err := e.resumeDecision(targetPath, item)
	if err != nil {
		return fileOutcome{state: model.StateFailed, err: err}
	}
	if startChunk < 0 {
		e.setProgress(workerID, WorkerProgress{Filename: item.RelativePath, BytesDone: item.TotalUncompressed, BytesTotal: item.TotalUncompressed, State: model.StateSucceeded})
		return fileOutcome{state: model.StateSucceeded}
	}

	templates, err := e.cdnTemplates(ctx, item)
	if err != nil {
		return fileOutcome{state: model.StateFailed, err: err}
	}
	if len(templates) == 0 {
		return fileOutcome{state: model.StateFailed, err: fmt.Errorf("no CDN templates for product %d", item.ProductID)}
	}

	var mtime time.Time
	for j := startChunk; j < len(item.Chunks); j++ {
		if err := e.refreshIfExpired(ctx); err != nil {
			return fileOutcome{state: model.StateFailed, err: err}
		}
		chunk := item.Chunks[j]
		ft, err := e.fetchChunkWithRetry(ctx, templates, chunk, targetPath)
		if err != nil {
			return fileOutcome{state: model.StateFailed, err: err}
		}
		if !ft.IsZero() {
			mtime = ft
		}
		e.setProgress(workerID, WorkerProgress{
			Filename:   item.RelativePath,
			BytesDone:  chunk.OffsetUncompressed + chunk.SizeUncompressed,
			BytesTotal: item.TotalUncompressed,
			State:      model.StateRunning,
		})
	}

	if !mtime.IsZero() {
		_ = os.Chtimes(targetPath, mtime, mtime)
	}
	return fileOutcome{state: model.StateSucceeded}
}

// resumeDecision implements §4.7's repository-path existence check: a
// complete+verified file needs no work (-1), a size/md5 mismatch
// restarts from scratch (0, after deleting), and a partial file that
// verifies up to a chunk boundary resumes from the chunk after it.
func (e *Engine) resumeDecision(targetPath string, item model.DepotItem) (int, error) {
	st, err := os.Stat(targetPath)
	if err != nil {
		return 0, nil // no existing file, start from chunk 0
	}
	size := st.Size()

	if size == item.TotalUncompressed {
		if item.MD5Expected == "" {
			return -1, nil
		}
		sum, err := md5File(targetPath, 0, size)
		if err != nil {
			return 0, err
		}
		if sum == item.MD5Expected {
			return -1, nil
		}
	}

	if size > item.TotalUncompressed {
		if err := os.Remove(targetPath); err != nil {
			return 0, errkind.DiskFull.Wrap(err)
		}
		return 0, nil
	}

	for j, chunk := range item.Chunks {
		if chunk.OffsetUncompressed != size {
			continue
		}
		if j == 0 {
			return 0, nil
		}
		prev := item.Chunks[j-1]
		sum, err := md5File(targetPath, prev.OffsetUncompressed, prev.OffsetUncompressed+prev.SizeUncompressed)
		if err != nil {
			return 0, err
		}
		if sum == prev.MD5Uncompressed {
			return j, nil
		}
		break
	}

	if err := os.Remove(targetPath); err != nil {
		return 0, errkind.DiskFull.Wrap(err)
	}
	return 0, nil
}

func md5File(path string, from, to int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errkind.DiskFull.Wrap(err)
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, io.NewSectionReader(f, from, to-from)); err != nil {
		return "", errkind.DiskFull.Wrap(err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// cdnTemplates returns the ranked CDN template list for item, fetching
// and caching it per product id. Dependencies always re-fetch, since
// dependency_link is keyed per-path rather than per-product (§4.3).
func (e *Engine) cdnTemplates(ctx context.Context, item model.DepotItem) ([]repo.CDNOption, error) {
	if item.IsDependency {
		return e.deps.Repo.DependencyLink(ctx, item.RelativePath)
	}

	e.cdnMu.Lock()
	cached, ok := e.cdnCache[item.ProductID]
	e.cdnMu.Unlock()
	if ok {
		return cached, nil
	}

	opts, err := e.deps.Repo.SecureLink(ctx, item.ProductID, item.RelativePath)
	if err != nil {
		return nil, err
	}
	e.cdnMu.Lock()
	e.cdnCache[item.ProductID] = opts
	e.cdnMu.Unlock()
	return opts, nil
}

// fetchChunkWithRetry fetches one compressed chunk in full (no range
// request — chunks are already small, content-addressed units),
// inflates it with a raw-deflate reader, and appends the result to
// target. Each CDN template is retried in place on transport-retryable
// errors with a fixed inter-request wait, matching the file-path
// worker's retry policy (§4.7 "identical across paths"); once a
// template's retries are exhausted (or it fails fatally) the loop
// advances to the next ranked template, per RankCDNs' "falls through to
// the next entry on a TransportFatal/TransportRetryable exhaustion"
// contract (§4.3, §7). The chunk only fails once every template has
// been tried.
func (e *Engine) fetchChunkWithRetry(ctx context.Context, templates []repo.CDNOption, chunk model.Chunk, target string) (time.Time, error) {
	attempts := e.cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for _, tmpl := range templates {
		if ctx.Err() != nil {
			return time.Time{}, ctx.Err()
		}
		url := repo.ResolveURL(tmpl, repo.HashPath(chunk.MD5Compressed))

		for attempt := 0; attempt < attempts; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return time.Time{}, ctx.Err()
				case <-time.After(e.cfg.RetryWait):
				}
			}

			ft, err := e.fetchChunkOnce(ctx, url, chunk, target)
			if err == nil {
				return ft, nil
			}
			lastErr = err
			if !errkind.Retryable(err) {
				break // this template is exhausted; fall through to the next CDN
			}
		}
	}
	return time.Time{}, lastErr
}

func (e *Engine) fetchChunkOnce(ctx context.Context, url string, chunk model.Chunk, target string) (time.Time, error) {
	opts := transport.DefaultOptions()
	opts.BearerToken, _ = e.deps.Tokens.GetAccess()

	var buf bytes.Buffer
	if _, err := e.deps.HTTP.DownloadRange(ctx, url, &buf, "", opts); err != nil {
		return time.Time{}, err
	}

	zr := flate.NewReader(bytes.NewReader(buf.Bytes()))
	defer zr.Close()

	h := md5.New()
	tee := io.TeeReader(zr, h)

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return time.Time{}, errkind.DiskFull.Wrap(err)
	}
	defer f.Close()

	// A failed attempt leaves no partial output behind: the file is cut
	// back to its prior length, since the retry loop appends again.
	st, err := f.Stat()
	if err != nil {
		return time.Time{}, errkind.DiskFull.Wrap(err)
	}
	prevSize := st.Size()

	if _, err := io.Copy(f, tee); err != nil {
		_ = f.Truncate(prevSize)
		return time.Time{}, errkind.ParseError.Wrap(err)
	}

	if chunk.MD5Uncompressed != "" {
		sum := hex.EncodeToString(h.Sum(nil))
		if sum != chunk.MD5Uncompressed {
			_ = f.Truncate(prevSize)
			return time.Time{}, errkind.IntegrityMismatch.New("chunk md5 mismatch: got %s want %s", sum, chunk.MD5Uncompressed)
		}
	}

	return time.Time{}, nil
}
