package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galaxydl/galaxydl/pkg/errkind"
)

func TestClient_GetJSON_PlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(DefaultConfig())
	var out struct{ Ok bool `json:"ok"` }
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, Options{}, &out))
	assert.True(t, out.Ok)
}

func TestClient_Get_RetriesOn5xxThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	cfg.RetryWait = 0
	c := New(cfg)

	resp, err := c.Get(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, 3, attempts)
}

func TestClient_Get_DoesNotRetryOn404(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	cfg.RetryWait = 0
	c := New(cfg)

	_, err := c.Get(context.Background(), srv.URL, Options{})
	require.Error(t, err)
	assert.True(t, errkind.TransportFatal.Has(err))
	assert.Equal(t, 1, attempts)
}

func TestClient_Get_DoesNotRetryOn416(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.MaxRetries, cfg.RetryWait = 3, 0
	c := New(cfg)

	_, err := c.Get(context.Background(), srv.URL, Options{})
	require.Error(t, err)
	assert.True(t, errkind.TransportFatal.Has(err))
	assert.Equal(t, 1, attempts)
}

func TestClient_DownloadToFile_ResumesFromOffset(t *testing.T) {
	full := []byte("0123456789ABCDEF")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		if rng == "" {
			w.Write(full)
			return
		}
		assert.Equal(t, "bytes=10-", rng)
		w.WriteHeader(http.StatusPartialContent)
		w.Write(full[10:])
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(path, full[:10], 0o644))

	c := New(DefaultConfig())
	status, err := c.DownloadToFile(context.Background(), srv.URL, path, 10, Options{})
	require.NoError(t, err)
	assert.True(t, status.Complete)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, full, got)
}

func TestClient_GetJSON_TolerantOfZlibBody(t *testing.T) {
	compressed := zlibCompress(t, []byte(`{"ok":true}`))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(compressed)
	}))
	defer srv.Close()

	c := New(DefaultConfig())
	var out struct{ Ok bool `json:"ok"` }
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, Options{}, &out))
	assert.True(t, out.Ok)
}
