package messages

import (
	"fmt"
	"os"
	"sync"
)

// FileOutcome is the per-file status code §6's --check-status verb and
// the supplemented report file (§9.1) both use.
type FileOutcome string

const (
	OutcomeOK  FileOutcome = "OK"
	OutcomeND  FileOutcome = "ND" // not downloaded
	OutcomeMD5 FileOutcome = "MD5"
	OutcomeFS  FileOutcome = "FS" // filesystem error
)

// ReportLine is one row of the shared {OK,ND,MD5,FS} report format used
// by both --check-status and --download --report (§9.1).
type ReportLine struct {
	Outcome  FileOutcome
	Gamename string
	Filename string
	Size     int64
	MD5      string
}

func (r ReportLine) String() string {
	return fmt.Sprintf("%s %s %s %d %s", r.Outcome, r.Gamename, r.Filename, r.Size, r.MD5)
}

// ReportWriter appends ReportLines to a file, serializing concurrent
// writers from the engine's worker pool.
type ReportWriter struct {
	mu   sync.Mutex
	f    *os.File
}

// OpenReportWriter opens (creating/appending) the report file at path.
// A nil *ReportWriter from a nil path is valid and silently discards
// writes, so callers need not branch on whether --report was passed.
func OpenReportWriter(path string) (*ReportWriter, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening report file %s: %w", path, err)
	}
	return &ReportWriter{f: f}, nil
}

func (w *ReportWriter) Write(line ReportLine) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintln(w.f, line.String())
	return err
}

func (w *ReportWriter) Close() error {
	if w == nil {
		return nil
	}
	return w.f.Close()
}
