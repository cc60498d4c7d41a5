package engine

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galaxydl/galaxydl/pkg/blacklist"
	"github.com/galaxydl/galaxydl/pkg/model"
	"github.com/galaxydl/galaxydl/pkg/repo"
	"github.com/galaxydl/galaxydl/pkg/transport"
)

type fakeTokens struct{}

func (fakeTokens) GetAccess() (string, error) { return "tok", nil }
func (fakeTokens) IsExpired() bool            { return false }
func (fakeTokens) Refresh(ctx context.Context, refreshToken, clientID, clientSecret string, newSession bool) error {
	return nil
}
func (fakeTokens) ClientCredentials() (string, string, string) { return "id", "secret", "refresh" }

type fakeDownlinker struct {
	url string
}

func (f fakeDownlinker) FetchDownlink(ctx context.Context, queryURL string) (DownlinkInfo, error) {
	return DownlinkInfo{DownloadURL: f.url}, nil
}

func TestDownloadFiles_WritesFileAndReportsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "game", "installer.exe")

	eng := New(Deps{
		HTTP:      transport.New(transport.DefaultConfig()),
		Tokens:    fakeTokens{},
		Blacklist: blacklist.List{},
		Downlink:  fakeDownlinker{url: srv.URL},
	}, Config{Workers: 2, MaxRetries: 1})

	units := []model.FileUnit{
		{ID: "f1", TargetPath: target, DeclaredSize: 11, DownlinkQueryURL: "ignored"},
	}
	result := eng.DownloadFiles(context.Background(), units)

	assert.Equal(t, 1, result.Succeeded)
	assert.Empty(t, result.Failed)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestDownloadFiles_BlacklistedUnitCountsAsSkippedNotFailed(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "game", "readme.txt")

	bl, warnings := blacklist.Parse(bytes.NewBufferString("readme.txt\n"))
	require.Empty(t, warnings)

	eng := New(Deps{
		HTTP:      transport.New(transport.DefaultConfig()),
		Tokens:    fakeTokens{},
		Blacklist: bl,
		Downlink:  fakeDownlinker{url: "http://unused.invalid"},
	}, Config{Workers: 1, MaxRetries: 0})

	units := []model.FileUnit{{ID: "f1", TargetPath: target, DeclaredSize: 5}}
	result := eng.DownloadFiles(context.Background(), units)

	assert.Equal(t, 1, result.Succeeded)
	assert.Empty(t, result.Failed)
	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadFiles_TransportFailureRecordedWithoutAbortingOthers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	eng := New(Deps{
		HTTP:      transport.New(transport.DefaultConfig()),
		Tokens:    fakeTokens{},
		Blacklist: blacklist.List{},
		Downlink:  fakeDownlinker{url: srv.URL},
	}, Config{Workers: 1, MaxRetries: 0})

	units := []model.FileUnit{
		{ID: "bad", TargetPath: filepath.Join(dir, "bad.exe"), DeclaredSize: 5},
	}
	result := eng.DownloadFiles(context.Background(), units)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 0, result.Succeeded)
}

// buildChunkServer serves one raw-deflate-compressed chunk body so the
// depot-item worker's decompress-and-append path can be exercised
// end-to-end.
func buildChunkServer(t *testing.T, plaintext []byte) (*httptest.Server, string) {
	t.Helper()
	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = zw.Write(plaintext)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	return srv, srv.URL
}

type fakeRepoLinker struct {
	templates []repo.CDNOption
}

func (f fakeRepoLinker) SecureLink(ctx context.Context, productID int64, path string) ([]repo.CDNOption, error) {
	return f.templates, nil
}
func (f fakeRepoLinker) DependencyLink(ctx context.Context, path string) ([]repo.CDNOption, error) {
	return f.templates, nil
}

func TestDownloadDepotItems_DecompressesSingleChunkToDisk(t *testing.T) {
	plaintext := []byte("depot chunk contents")
	srv, url := buildChunkServer(t, plaintext)
	defer srv.Close()

	dir := t.TempDir()
	tmpl := repo.NewCDNOption("fastly", url+"{GALAXY_PATH}", nil, 0)

	eng := New(Deps{
		HTTP:   transport.New(transport.DefaultConfig()),
		Tokens: fakeTokens{},
		Repo:   fakeRepoLinker{templates: []repo.CDNOption{tmpl}},
	}, Config{Workers: 1, MaxRetries: 1, RetryWait: time.Millisecond})

	item := model.DepotItem{
		RelativePath:      "game/data.bin",
		ProductID:         42,
		TotalCompressed:   int64(len(plaintext)),
		TotalUncompressed: int64(len(plaintext)),
		Chunks: []model.Chunk{
			{SizeUncompressed: int64(len(plaintext)), OffsetUncompressed: 0},
		},
	}

	result := eng.DownloadDepotItems(context.Background(), dir, []model.DepotItem{item})
	assert.Equal(t, 1, result.Succeeded)
	assert.Empty(t, result.Failed)

	got, err := os.ReadFile(filepath.Join(dir, "game", "data.bin"))
	require.NoError(t, err)
	assert.Equal(t, string(plaintext), string(got))
}

func TestDownloadDepotItems_FallsThroughToNextCDNOnFatalError(t *testing.T) {
	plaintext := []byte("second cdn contents")
	goodSrv, goodURL := buildChunkServer(t, plaintext)
	defer goodSrv.Close()

	badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer badSrv.Close()

	dir := t.TempDir()
	templates := []repo.CDNOption{
		repo.NewCDNOption("broken", badSrv.URL+"{GALAXY_PATH}", nil, 0),
		repo.NewCDNOption("fastly", goodURL+"{GALAXY_PATH}", nil, 1),
	}

	eng := New(Deps{
		HTTP:   transport.New(transport.DefaultConfig()),
		Tokens: fakeTokens{},
		Repo:   fakeRepoLinker{templates: templates},
	}, Config{Workers: 1, MaxRetries: 1, RetryWait: time.Millisecond})

	item := model.DepotItem{
		RelativePath:      "game/data.bin",
		ProductID:         42,
		TotalCompressed:   int64(len(plaintext)),
		TotalUncompressed: int64(len(plaintext)),
		Chunks: []model.Chunk{
			{SizeUncompressed: int64(len(plaintext)), OffsetUncompressed: 0},
		},
	}

	result := eng.DownloadDepotItems(context.Background(), dir, []model.DepotItem{item})
	assert.Equal(t, 1, result.Succeeded)
	assert.Empty(t, result.Failed)

	got, err := os.ReadFile(filepath.Join(dir, "game", "data.bin"))
	require.NoError(t, err)
	assert.Equal(t, string(plaintext), string(got))
}

func TestDownloadDepotItems_ExistingCompleteFileWithNoExpectedMD5Skips(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "game", "data.bin")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte("already here"), 0o644))

	eng := New(Deps{
		HTTP:   transport.New(transport.DefaultConfig()),
		Tokens: fakeTokens{},
		Repo:   fakeRepoLinker{},
	}, Config{Workers: 1})

	item := model.DepotItem{
		RelativePath:      "game/data.bin",
		ProductID:         1,
		TotalUncompressed: int64(len("already here")),
	}
	result := eng.DownloadDepotItems(context.Background(), dir, []model.DepotItem{item})
	assert.Equal(t, 1, result.Succeeded)
	assert.Empty(t, result.Failed)
}
