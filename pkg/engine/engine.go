// Package engine implements DownloadEngine (§4.7): a bounded worker
// pool draining a shared work queue of file units or depot items, with
// per-unit resume, bounded retry, and a shared mkdir mutex serializing
// directory creation across workers.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/galaxydl/galaxydl/pkg/blacklist"
	"github.com/galaxydl/galaxydl/pkg/messages"
	"github.com/galaxydl/galaxydl/pkg/model"
	"github.com/galaxydl/galaxydl/pkg/queue"
	"github.com/galaxydl/galaxydl/pkg/repo"
	"github.com/galaxydl/galaxydl/pkg/transport"
)

// TokenRefresher is the subset of pkg/token.Store the engine needs: a
// bearer token plus the ability to refresh it exactly once when a
// worker observes expiry. Matches *token.Store's method set.
type TokenRefresher interface {
	GetAccess() (string, error)
	IsExpired() bool
	Refresh(ctx context.Context, refreshToken, clientID, clientSecret string, newSession bool) error
	ClientCredentials() (clientID, clientSecret, refreshToken string)
}

// RepoLinker is the subset of pkg/repo.Client the repository-path
// worker needs for CDN template resolution.
type RepoLinker interface {
	SecureLink(ctx context.Context, productID int64, path string) ([]repo.CDNOption, error)
	DependencyLink(ctx context.Context, path string) ([]repo.CDNOption, error)
}

// Verifier is the subset of pkg/verifier.Index the file-path worker
// needs to decide same_version/is_complete/resume_from (§4.9).
type Verifier interface {
	Load(gamename, filename string) (model.FileVerifier, bool)
	Save(gamename, filename string, v model.FileVerifier) error
	FetchRemote(ctx context.Context, checksumURL string) (model.FileVerifier, error)
}

// Downlinker resolves a FileUnit's downlink_query_url into a fresh
// download URL + checksum URL immediately before the transfer, since
// the service's download links are time-scoped.
type Downlinker interface {
	FetchDownlink(ctx context.Context, queryURL string) (DownlinkInfo, error)
}

// DownlinkInfo mirrors pkg/fileunit.DownlinkInfo; engine keeps its own
// copy of the shape to avoid importing pkg/fileunit for one struct.
type DownlinkInfo struct {
	DownloadURL string
	ChecksumURL string
}

// Deps bundles the engine's collaborators. HTTP and Tokens are used by
// both runs; Downlink and Blacklist by DownloadFiles, Repo by
// DownloadDepotItems. Messages, Verifier and Report may be nil.
type Deps struct {
	HTTP      *transport.Client
	Tokens    TokenRefresher
	Blacklist blacklist.List
	Messages  *messages.Bus
	Verifier  Verifier
	Downlink  Downlinker
	Repo      RepoLinker
	Report    *messages.ReportWriter // optional; nil disables the report log
}

// Config holds the engine's tunables (§4.7/§4.2).
type Config struct {
	Workers              int
	MaxRetries           int
	RetryWait            time.Duration
	AutomaticXMLCreation bool
	RemoteXMLEnabled     bool
	CDNPreference        []string
}

// DefaultConfig mirrors the original's default thread count and retry
// bounds.
func DefaultConfig() Config {
	return Config{
		Workers:    4,
		MaxRetries: 3,
		RetryWait:  5 * time.Second,
	}
}

// WorkerProgress is one worker's current transfer telemetry, read by
// pkg/progress at the aggregator's tick interval.
type WorkerProgress struct {
	Filename  string
	BytesDone int64
	BytesTotal int64
	State     model.WorkState
}

// FailedUnit pairs a unit that did not complete with its terminal
// error.
type FailedUnit struct {
	TargetPath string
	Err        error
}

// Result aggregates one DownloadFiles/DownloadDepotItems run. The
// verb-level exit code is nonzero iff len(Failed) > 0 (§4.7 "bitwise-OR
// of per-file outcomes").
type Result struct {
	Succeeded int
	Skipped   int
	Failed    []FailedUnit
}

// Engine owns the shared state §4.7 names: the mkdir mutex and the
// remaining-bytes counter. Each run gets its own queue, but the
// remaining-bytes counter and the per-worker progress slots belong to
// the Engine: each run resets the counter at its start, and concurrent
// runs on one Engine write to the same slots.
type Engine struct {
	deps Deps
	cfg  Config

	mkdirMu sync.Mutex

	remaining int64 // atomic

	progressMu sync.Mutex
	progress   []WorkerProgress

	cdnMu    sync.Mutex
	cdnCache map[int64][]repo.CDNOption
}

func New(deps Deps, cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Engine{
		deps:     deps,
		cfg:      cfg,
		progress: make([]WorkerProgress, cfg.Workers),
		cdnCache: make(map[int64][]repo.CDNOption),
	}
}

// RemainingBytes reports the current remaining_bytes counter (§4.7),
// decremented by each worker as it claims a unit.
func (e *Engine) RemainingBytes() int64 {
	return atomic.LoadInt64(&e.remaining)
}

// Progress returns a snapshot of all workers' current telemetry.
func (e *Engine) Progress() []WorkerProgress {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	out := make([]WorkerProgress, len(e.progress))
	copy(out, e.progress)
	return out
}

func (e *Engine) setProgress(workerID int, p WorkerProgress) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	if workerID >= 0 && workerID < len(e.progress) {
		e.progress[workerID] = p
	}
}

// ensureDir serializes mkdir -p races across workers (§5 "mkdir
// operations: shared-mut, process-global mutex").
func (e *Engine) ensureDir(dir string) error {
	e.mkdirMu.Lock()
	defer e.mkdirMu.Unlock()
	return mkdirAll(dir)
}

// refreshIfExpired performs the single-flight-tolerant refresh §4.1
// describes: every caller that observes expiry may refresh
// independently, the core tolerates duplicate refreshes.
func (e *Engine) refreshIfExpired(ctx context.Context) error {
	if !e.deps.Tokens.IsExpired() {
		return nil
	}
	clientID, clientSecret, refreshToken := e.deps.Tokens.ClientCredentials()
	return e.deps.Tokens.Refresh(ctx, refreshToken, clientID, clientSecret, false)
}

// DownloadFiles runs the file-path worker pool (§4.7) to completion and
// returns the aggregated outcome. It never returns an error for
// individual file failures — only for a configuration problem (no
// units, zero workers) would a Go error be appropriate, and neither
// happens given New's normalization.
func (e *Engine) DownloadFiles(ctx context.Context, units []model.FileUnit) Result {
	q := queue.New[model.FileUnit]()
	q.PushAll(units)

	var total int64
	for _, u := range units {
		total += u.DeclaredSize
	}
	atomic.StoreInt64(&e.remaining, total)

	var mu sync.Mutex
	result := Result{}

	g, gctx := errgroup.WithContext(ctx)
	workers := e.cfg.Workers
	if workers > len(units) && len(units) > 0 {
		workers = len(units)
	}
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		workerID := i
		g.Go(func() error {
			return e.fileWorker(gctx, workerID, q, &mu, &result)
		})
	}
	_ = g.Wait() // per-file errors are recorded in result, not propagated
	return result
}

// DownloadDepotItems runs the repository-path worker pool (§4.7).
func (e *Engine) DownloadDepotItems(ctx context.Context, destRoot string, items []model.DepotItem) Result {
	q := queue.New[model.DepotItem]()
	q.PushAll(items)

	var total int64
	for _, it := range items {
		total += it.TotalCompressed
	}
	atomic.StoreInt64(&e.remaining, total)

	var mu sync.Mutex
	result := Result{}

	g, gctx := errgroup.WithContext(ctx)
	workers := e.cfg.Workers
	if workers > len(items) && len(items) > 0 {
		workers = len(items)
	}
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		workerID := i
		g.Go(func() error {
			return e.depotWorker(gctx, workerID, destRoot, q, &mu, &result)
		})
	}
	_ = g.Wait()
	return result
}
