package verifier

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galaxydl/galaxydl/pkg/model"
)

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func TestMismatchedChunks_FlagsOnlyCorruptedChunk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.bin")
	part0 := []byte("AAAA")
	part1 := []byte("XXXX") // corrupted; verifier expects "BBBB"
	require.NoError(t, os.WriteFile(path, append(part0, part1...), 0o644))

	v := model.FileVerifier{
		TotalSize: 8,
		Chunks: []model.VerifierChunk{
			{ID: 0, From: 0, To: 4, MD5: md5Hex(part0)},
			{ID: 1, From: 4, To: 8, MD5: md5Hex([]byte("BBBB"))},
		},
	}

	bad, err := MismatchedChunks(path, v)
	require.NoError(t, err)
	require.Len(t, bad, 1)
	assert.Equal(t, 1, bad[0].ID)
}

func TestMismatchedChunks_MissingFileFlagsAll(t *testing.T) {
	v := model.FileVerifier{Chunks: []model.VerifierChunk{{ID: 0}, {ID: 1}}}
	bad, err := MismatchedChunks(filepath.Join(t.TempDir(), "missing.bin"), v)
	require.NoError(t, err)
	assert.Len(t, bad, 2)
}

func TestPatchChunk_WritesAtOffsetAfterVerifying(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.bin")
	require.NoError(t, os.WriteFile(path, []byte("AAAAXXXX"), 0o644))

	chunk := model.VerifierChunk{ID: 1, From: 4, To: 8, MD5: md5Hex([]byte("BBBB"))}
	require.NoError(t, PatchChunk(path, chunk, []byte("BBBB")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "AAAABBBB", string(got))
}

func TestPatchChunk_RejectsDataNotMatchingExpectedMD5(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.bin")
	require.NoError(t, os.WriteFile(path, []byte("AAAAXXXX"), 0o644))

	chunk := model.VerifierChunk{ID: 1, From: 4, To: 8, MD5: md5Hex([]byte("BBBB"))}
	err := PatchChunk(path, chunk, []byte("ZZZZ"))
	assert.Error(t, err)
}
