package verifier

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/galaxydl/galaxydl/pkg/errkind"
	"github.com/galaxydl/galaxydl/pkg/model"
	"github.com/galaxydl/galaxydl/pkg/transport"
)

// Index implements VerifierIndex (§4.9): an on-disk tree of per-file
// XML sidecars rooted at xmlRoot, laid out
// <xmlRoot>/<gamename>/<filename>.xml.
type Index struct {
	xmlRoot string
	http    *transport.Client
}

func New(xmlRoot string, http *transport.Client) *Index {
	return &Index{xmlRoot: xmlRoot, http: http}
}

func (idx *Index) path(gamename, filename string) string {
	return filepath.Join(idx.xmlRoot, gamename, filename+".xml")
}

// Load reads and decodes the local sidecar for filename, if present.
func (idx *Index) Load(gamename, filename string) (model.FileVerifier, bool) {
	data, err := os.ReadFile(idx.path(gamename, filename))
	if err != nil {
		return model.FileVerifier{}, false
	}
	v, err := Decode(data)
	if err != nil {
		return model.FileVerifier{}, false
	}
	return v, true
}

// Save writes v's sidecar atomically (temp file + rename), creating the
// owning gamename directory if needed.
func (idx *Index) Save(gamename, filename string, v model.FileVerifier) error {
	dir := filepath.Join(idx.xmlRoot, gamename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	data, err := Encode(v)
	if err != nil {
		return errkind.ParseError.Wrap(err)
	}
	target := idx.path(gamename, filename)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	return nil
}

// FetchRemote retrieves and decodes the short checksum XML a downlink
// response points to (§4.9 "consulted on resume").
func (idx *Index) FetchRemote(ctx context.Context, checksumURL string) (model.FileVerifier, error) {
	if checksumURL == "" {
		return model.FileVerifier{}, fmt.Errorf("verifier: empty checksum URL")
	}
	var buf bytes.Buffer
	if _, err := idx.http.DownloadRange(ctx, checksumURL, &buf, "", transport.DefaultOptions()); err != nil {
		return model.FileVerifier{}, err
	}
	return Decode(buf.Bytes())
}
