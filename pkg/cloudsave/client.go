// Package cloudsave implements the cloud-save client (§4.12): a thin
// wrapper over minio-go/v7 targeting cloudstorage.gog.com's
// S3-compatible `/v1/{user_id}/{client_id}/{path}` object store.
package cloudsave

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// bucket is the fixed first path segment of cloudstorage.gog.com's
// object space ("v1"); the per-user/per-client scoping happens in the
// object key, not the bucket, since the service isn't bucket-per-user.
const bucket = "v1"

// localLastModifiedKey is the custom metadata header §6 names
// (`X-Object-Meta-LocalLastModified: <ISO-8601>`); minio-go strips the
// "X-Amz-Meta-"/"X-Object-Meta-" prefix and title-cases the remainder
// for both write and read, so both sides of this package address it by
// this bare name.
const localLastModifiedKey = "Locallastmodified"

// TokenSource supplies the bearer access token cloud-save requests
// authenticate with, narrowed from pkg/token.Store the same way
// pkg/repo.TokenSource is.
type TokenSource interface {
	GetAccess() (string, error)
}

// bearerTransport replaces minio-go's SigV4 Authorization header with a
// plain bearer token on every outgoing request: the object-store shape
// (PUT/GET/DELETE, path-style keys, custom metadata headers) is pure
// S3, but GOG authenticates it with the same OAuth token as the rest of
// the API, not an AWS access/secret pair.
type bearerTransport struct {
	base  http.RoundTripper
	token func() (string, error)
}

func (t bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.token()
	if err != nil {
		return nil, err
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+tok)

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// Client wraps a minio.Client scoped to one account's user/client id
// pair.
type Client struct {
	mc       *minio.Client
	userID   string
	clientID string
}

// New builds a Client against endpoint (e.g. "cloudstorage.gog.com"),
// authenticating every request with tokens.GetAccess.
func New(endpoint string, tokens TokenSource, userID, clientID string) (*Client, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4("", "", ""),
		Secure:    true,
		Transport: bearerTransport{token: tokens.GetAccess},
	})
	if err != nil {
		return nil, err
	}
	return &Client{mc: mc, userID: userID, clientID: clientID}, nil
}

func (c *Client) key(remotePath string) string {
	return path.Join(c.userID, c.clientID, remotePath)
}

// Metadata is the subset of minio's ObjectInfo callers of Show/List
// need, translated into the domain's own vocabulary.
type Metadata struct {
	Path              string
	Size              int64
	ETag              string
	LocalLastModified time.Time
}

// Upload implements `--cloud-upload`: PUTs localPath's contents,
// stamping LocalLastModified from the local file's mtime so a later
// `--cloud-sync` can compare against it without a separate HEAD of the
// local filesystem.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return err
	}

	_, err = c.mc.PutObject(ctx, bucket, c.key(remotePath), f, stat.Size(), minio.PutObjectOptions{
		UserMetadata: map[string]string{localLastModifiedKey: stat.ModTime().UTC().Format(time.RFC3339)},
	})
	return err
}

// Download implements `--cloud-download`.
func (c *Client) Download(ctx context.Context, remotePath, localPath string) error {
	obj, err := c.mc.GetObject(ctx, bucket, c.key(remotePath), minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, obj)
	return err
}

// Delete implements `--cloud-delete`.
func (c *Client) Delete(ctx context.Context, remotePath string) error {
	return c.mc.RemoveObject(ctx, bucket, c.key(remotePath), minio.RemoveObjectOptions{})
}

// List implements `--cloud-show` over a prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]Metadata, error) {
	var out []Metadata
	for obj := range c.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: c.key(prefix), Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, toMetadata(obj))
	}
	return out, nil
}

// Show implements `--cloud-show` for a single path: a StatObject call,
// no body fetch (§4.12).
func (c *Client) Show(ctx context.Context, remotePath string) (Metadata, error) {
	info, err := c.mc.StatObject(ctx, bucket, c.key(remotePath), minio.StatObjectOptions{})
	if err != nil {
		return Metadata{}, err
	}
	return toMetadata(info), nil
}

func toMetadata(info minio.ObjectInfo) Metadata {
	m := Metadata{Path: info.Key, Size: info.Size, ETag: info.ETag}
	if raw, ok := info.UserMetadata[localLastModifiedKey]; ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			m.LocalLastModified = t
		} else if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
			m.LocalLastModified = time.Unix(secs, 0).UTC()
		}
	}
	return m
}
