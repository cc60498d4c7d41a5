package verifier

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
)

func TestIndex_SaveThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx := New(dir, transport.New(transport.DefaultConfig()))

	v := model.FileVerifier{Name: "game.exe", MD5: "deadbeef", TotalSize: 10}
	require.NoError(t, idx.Save("celeste", "game.exe", v))

	got, ok := idx.Load("celeste", "game.exe")
	require.True(t, ok)
	assert.Equal(t, v, got)

	_, err := os.Stat(filepath.Join(dir, "celeste", "game.exe.xml"))
	require.NoError(t, err)
}

func TestIndex_LoadMissingReturnsFalse(t *testing.T) {
	idx := New(t.TempDir(), transport.New(transport.DefaultConfig()))
	_, ok := idx.Load("celeste", "missing.exe")
	assert.False(t, ok)
}

func TestIndex_FetchRemoteDecodesServerXML(t *testing.T) {
	body, err := Encode(model.FileVerifier{Name: "remote.exe", MD5: "feedface", TotalSize: 5})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	idx := New(t.TempDir(), transport.New(transport.DefaultConfig()))
	v, err := idx.FetchRemote(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "feedface", v.MD5)
}
