package legacyrepo

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galaxydl/galaxydl/pkg/transport"
)

// buildFakeInstaller assembles a byte stream shaped like a makeself
// installer: a shell script prelude (carrying the line-count and
// filesizes markers the real installers embed), then the declared
// filesizes payload, then a zip archive, so the zip starts at script
// bytes + payload bytes as parseScriptPrelude/Open compute it.
func buildFakeInstaller(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var zipBuf bytes.Buffer
	zw := zip.NewWriter(&zipBuf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	payload := []byte("fake mojosetup payload")
	script := "#!/bin/sh\n" +
		"label=\"fake installer\"\n" +
		`offset=` + "`head -n 4 \"$0\"`" + "\n" +
		fmt.Sprintf(`filesizes="%d"`, len(payload)) + "\n"

	out := append([]byte(script), payload...)
	return append(out, zipBuf.Bytes()...)
}

func rangeServer(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		if rng == "" {
			w.Write(data)
			return
		}
		var start, end int64
		rng = strings.TrimPrefix(rng, "bytes=")
		parts := strings.SplitN(rng, "-", 2)
		start, _ = strconv.ParseInt(parts[0], 10, 64)
		end, _ = strconv.ParseInt(parts[1], 10, 64)
		if end >= int64(len(data)) {
			end = int64(len(data)) - 1
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
}

func TestOpen_ParsesScriptAndEnumeratesMembers(t *testing.T) {
	data := buildFakeInstaller(t, map[string]string{
		"game/bin/app.exe": "pretend executable bytes",
		"game/readme.txt":  "hello world",
	})
	srv := rangeServer(t, data)
	defer srv.Close()

	httpClient := transport.New(transport.DefaultConfig())
	repo, err := Open(context.Background(), httpClient, srv.URL)
	require.NoError(t, err)

	members := repo.Members()
	require.Len(t, members, 2)

	names := map[string]Member{}
	for _, m := range members {
		names[m.Path] = m
	}
	require.Contains(t, names, "game/bin/app.exe")
	require.Contains(t, names, "game/readme.txt")
}

func TestOpen_ExtractWritesDecompressedContent(t *testing.T) {
	data := buildFakeInstaller(t, map[string]string{
		"game/readme.txt": "hello world",
	})
	srv := rangeServer(t, data)
	defer srv.Close()

	httpClient := transport.New(transport.DefaultConfig())
	repo, err := Open(context.Background(), httpClient, srv.URL)
	require.NoError(t, err)

	members := repo.Members()
	require.Len(t, members, 1)

	dir := t.TempDir()
	dest := filepath.Join(dir, "readme.txt")
	require.NoError(t, repo.Extract(members[0], dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}
