package verifier

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"

	"github.com/galaxydl/galaxydl/pkg/errkind"
	"github.com/galaxydl/galaxydl/pkg/model"
)

// MaxChunkRepairAttempts bounds per-chunk re-fetch attempts during
// repair (§4.9).
const MaxChunkRepairAttempts = 3

// MismatchedChunks compares v's recorded chunk digests against path's
// on-disk content and returns the chunks whose md5 disagrees, in
// ascending order. A missing or short file reports every chunk as
// mismatched.
func MismatchedChunks(path string, v model.FileVerifier) ([]model.VerifierChunk, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return append([]model.VerifierChunk(nil), v.Chunks...), nil
		}
		return nil, errkind.DiskFull.Wrap(err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, errkind.DiskFull.Wrap(err)
	}

	var bad []model.VerifierChunk
	for _, c := range v.Chunks {
		if st.Size() < c.To {
			bad = append(bad, c)
			continue
		}
		h := md5.New()
		if _, err := io.Copy(h, io.NewSectionReader(f, c.From, c.To-c.From)); err != nil {
			return nil, errkind.DiskFull.Wrap(err)
		}
		if hex.EncodeToString(h.Sum(nil)) != c.MD5 {
			bad = append(bad, c)
		}
	}
	return bad, nil
}

// PatchChunk overwrites the [chunk.From, chunk.To) byte range of path
// with data, verifying the result against chunk.MD5 before returning.
func PatchChunk(path string, chunk model.VerifierChunk, data []byte) error {
	sum := md5.Sum(data)
	if hex.EncodeToString(sum[:]) != chunk.MD5 {
		return errkind.IntegrityMismatch.New("repaired chunk %d still mismatches md5", chunk.ID)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	if err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, chunk.From); err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	return nil
}
