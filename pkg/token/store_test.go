package token

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/galaxydl/galaxydl/pkg/errkind"
)

func TestStore_IsExpired_DefaultZero(t *testing.T) {
	s := New()
	assert.True(t, s.IsExpired())
}

func TestStore_GetAccess_ExpiredReturnsAuthExpired(t *testing.T) {
	s := New()
	_, err := s.GetAccess()
	require.Error(t, err)
	assert.True(t, errkind.AuthExpired.Has(err))
}

func TestStore_ExchangeAndRefresh(t *testing.T) {
	s := New()
	s.exchangeFn = func(ctx context.Context, cfg oauth2.Config, code string) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "acc1", RefreshToken: "ref1", Expiry: time.Now().Add(time.Hour)}, nil
	}
	require.NoError(t, s.ExchangeCode(context.Background(), "cid", "csecret", "authcode"))

	access, err := s.GetAccess()
	require.NoError(t, err)
	assert.Equal(t, "acc1", access)

	s.refreshFn = func(ctx context.Context, cfg oauth2.Config, refreshToken string) (*oauth2.Token, error) {
		assert.Equal(t, "ref1", refreshToken)
		return &oauth2.Token{AccessToken: "acc2", RefreshToken: "ref2", Expiry: time.Now().Add(time.Hour)}, nil
	}
	_, _, refreshTok := s.ClientCredentials()
	require.NoError(t, s.Refresh(context.Background(), refreshTok, "cid", "csecret", false))

	access, err = s.GetAccess()
	require.NoError(t, err)
	assert.Equal(t, "acc2", access)
}

func TestStore_SaveAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "galaxy_tokens.json")

	s := New()
	s.exchangeFn = func(ctx context.Context, cfg oauth2.Config, code string) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "acc1", RefreshToken: "ref1", Expiry: time.Now().Add(time.Hour).Truncate(time.Second)}, nil
	}
	require.NoError(t, s.ExchangeCode(context.Background(), "cid", "csecret", "code"))
	require.NoError(t, s.Save(path, true))

	loaded := New()
	require.NoError(t, loaded.Load(path))

	snap := loaded.Snapshot()
	assert.Equal(t, "acc1", snap.AccessToken)
	assert.Equal(t, "ref1", snap.RefreshToken)
	assert.Equal(t, "cid", snap.ClientID)
	assert.False(t, loaded.IsExpired())
}

func TestStore_Load_ExpiresInFallsBackToMtime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "galaxy_tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"a","refresh_token":"r","expires_in":3600}`), 0o600))

	s := New()
	require.NoError(t, s.Load(path))
	snap := s.Snapshot()
	assert.WithinDuration(t, time.Now().Add(time.Hour), snap.ExpiresAt, 5*time.Second)
}
