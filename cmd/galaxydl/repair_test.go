package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galaxydl/galaxydl/pkg/model"
	"github.com/galaxydl/galaxydl/pkg/transport"
	"github.com/galaxydl/galaxydl/pkg/verifier"
)

func TestFindUnitByTargetPath_FindsUnitInNestedDLC(t *testing.T) {
	child := &model.Product{
		Patches: []model.FileUnit{{ID: "dlc-patch", TargetPath: "/games/dlc/patch.bin"}},
	}
	products := []model.Product{{
		Installers: []model.FileUnit{{ID: "base-installer", TargetPath: "/games/base/installer.exe"}},
		Children:   []*model.Product{child},
	}}

	u, ok := findUnitByTargetPath(products, "/games/dlc/patch.bin")
	assert.True(t, ok)
	assert.Equal(t, "dlc-patch", u.ID)
}

func TestFindUnitByTargetPath_MissesUnknownPath(t *testing.T) {
	products := []model.Product{{
		Installers: []model.FileUnit{{ID: "base-installer", TargetPath: "/games/base/installer.exe"}},
	}}

	_, ok := findUnitByTargetPath(products, "/games/base/nonexistent.exe")
	assert.False(t, ok)
}

func TestRepairChunkWithRetry_SucceedsAfterTransientBadFetches(t *testing.T) {
	good := []byte("fixed-bytes")
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < verifier.MaxChunkRepairAttempts {
			w.Write([]byte("wrong-bytes"))
			return
		}
		w.Write(good)
	}))
	defer srv.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "game.exe")
	require.NoError(t, os.WriteFile(target, []byte("xxxxxxxxxxx"), 0o644))

	chunk := model.VerifierChunk{ID: 0, From: 0, To: int64(len(good)), MD5: md5Hex(good)}
	httpClient := transport.New(transport.DefaultConfig())

	err := repairChunkWithRetry(context.Background(), httpClient, target, srv.URL, chunk)
	require.NoError(t, err)
	assert.Equal(t, verifier.MaxChunkRepairAttempts, attempts)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, string(good), string(got))
}

func TestRepairChunkWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("always-wrong"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "game.exe")
	require.NoError(t, os.WriteFile(target, []byte("xxxxxxxxxxxx"), 0o644))

	chunk := model.VerifierChunk{ID: 0, From: 0, To: 12, MD5: md5Hex([]byte("right-bytes!"))}
	httpClient := transport.New(transport.DefaultConfig())

	err := repairChunkWithRetry(context.Background(), httpClient, target, srv.URL, chunk)
	assert.Error(t, err)
}
