package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/galaxydl/galaxydl/pkg/errkind"
	"github.com/galaxydl/galaxydl/pkg/transport"
)

// TokenSource is the subset of pkg/token.Store the client needs: a
// current bearer token, independent of how it got refreshed.
type TokenSource interface {
	GetAccess() (string, error)
}

// Client is the content-addressed RepositoryClient (§4.3). It owns no
// state beyond its transport handle and CDN preference list, so
// multiple workers can share one Client value safely — every call is
// read-only against remote state.
type Client struct {
	http       *transport.Client
	tokens     TokenSource
	preference []string // endpoint_name priority order, user-configured
}

// New builds a Client. preference is the user's CDN endpoint priority
// list (config's "used-cdn" setting); a nil or empty list falls back
// entirely to server-declared order.
func New(http *transport.Client, tokens TokenSource, preference []string) *Client {
	return &Client{http: http, tokens: tokens, preference: preference}
}

func (c *Client) authOpts() (transport.Options, error) {
	tok, err := c.tokens.GetAccess()
	if err != nil {
		return transport.Options{}, err
	}
	opts := transport.DefaultOptions()
	opts.BearerToken = tok
	return opts, nil
}

// ProductInfoRaw is the subset of the "product expand" response the
// planner and catalog care about; the full payload carries many more
// fields the client does not model, so callers that need those decode
// the raw JSON separately.
type ProductInfoRaw struct {
	ID           int64            `json:"id"`
	Title        string           `json:"title"`
	Slug         string           `json:"slug"`
	ChangeLog    string           `json:"changelog"`
	Downloads    json.RawMessage  `json:"downloads"`
	ExpandedDLCs []ProductInfoRaw `json:"expanded_dlcs"`
}

// ProductInfo wraps the product-expand endpoint (§4.3).
func (c *Client) ProductInfo(ctx context.Context, productID int64) (ProductInfoRaw, error) {
	opts, err := c.authOpts()
	if err != nil {
		return ProductInfoRaw{}, err
	}
	var out ProductInfoRaw
	if err := c.http.GetJSON(ctx, productInfoURL(productID), opts, &out); err != nil {
		return ProductInfoRaw{}, fmt.Errorf("fetching product %d: %w", productID, err)
	}
	return out, nil
}

// BuildEntry is one element of a product_builds response.
type BuildEntry struct {
	BuildID    string `json:"build_id"`
	ProductID  string `json:"product_id"`
	Branch     string `json:"branch"`
	VersionName string `json:"version_name"`
	Date       string `json:"date_published"`
	Generation int    `json:"generation"`
	LegacyDownloadURL string `json:"legacy_build_url"`
	// Link is the manifest-fetch URL for this build, present on
	// generation-2 builds only.
	Link string `json:"link"`
}

type buildsResponse struct {
	Items []BuildEntry `json:"items"`
}

// ProductBuilds lists build descriptors for one platform (§4.3).
// platform is one of "windows", "osx", "linux".
func (c *Client) ProductBuilds(ctx context.Context, productID int64, platform string, generation int) ([]BuildEntry, error) {
	opts, err := c.authOpts()
	if err != nil {
		return nil, err
	}
	var out buildsResponse
	if err := c.http.GetJSON(ctx, productBuildsURL(productID, platform, generation), opts, &out); err != nil {
		return nil, fmt.Errorf("fetching builds for product %d/%s: %w", productID, platform, err)
	}
	return out.Items, nil
}

// DependencyDepot is one entry of the global dependencies repository's
// "depots" array, identified by "dependencyId" rather than a product id.
type DependencyDepot struct {
	DependencyID string   `json:"dependencyId"`
	Manifest     string   `json:"manifest"`
	Languages    []string `json:"languages"`
	OSBitness    []string `json:"osBitness"`
}

type dependenciesRepositoryPointer struct {
	RepositoryManifest string `json:"repository_manifest"`
}

type dependenciesManifest struct {
	Depots []DependencyDepot `json:"depots"`
}

// DependenciesRepository resolves the two-hop global dependencies
// manifest: a pointer document naming the actual manifest URL, fetched
// and decoded in turn (grounded on original_source's getDependenciesJson).
func (c *Client) DependenciesRepository(ctx context.Context) ([]DependencyDepot, error) {
	opts, err := c.authOpts()
	if err != nil {
		return nil, err
	}
	var ptr dependenciesRepositoryPointer
	if err := c.http.GetJSON(ctx, dependenciesRepositoryURL(), opts, &ptr); err != nil {
		return nil, fmt.Errorf("fetching dependencies repository pointer: %w", err)
	}
	if ptr.RepositoryManifest == "" {
		return nil, nil
	}
	var manifest dependenciesManifest
	if err := c.http.GetJSON(ctx, ptr.RepositoryManifest, opts, &manifest); err != nil {
		return nil, fmt.Errorf("fetching dependencies manifest: %w", err)
	}
	return manifest.Depots, nil
}

// ManifestV1 fetches a legacy (generation-1) manifest by its absolute
// URL, returning the raw decoded JSON for DepotPlanner to interpret.
func (c *Client) ManifestV1(ctx context.Context, manifestURL string) (json.RawMessage, error) {
	opts, err := c.authOpts()
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	if err := c.http.GetJSON(ctx, manifestURL, opts, &out); err != nil {
		return nil, fmt.Errorf("fetching manifest v1 %s: %w", manifestURL, err)
	}
	return out, nil
}

// ManifestV2 fetches a generation-2 manifest addressed by content hash,
// converting hash to the content-addressed path scheme per §4.3.
func (c *Client) ManifestV2(ctx context.Context, hash string, isDependency bool) (json.RawMessage, error) {
	opts, err := c.authOpts()
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	url := manifestV2URL(HashPath(hash), isDependency)
	if err := c.http.GetJSON(ctx, url, opts, &out); err != nil {
		return nil, fmt.Errorf("fetching manifest v2 %s: %w", hash, err)
	}
	return out, nil
}

type secureLinkResponse struct {
	Endpoints []struct {
		EndpointName string            `json:"endpoint_name"`
		URLFormat    string            `json:"url_format"`
		Parameters   map[string]string `json:"parameters"`
	} `json:"endpoints"`
}

// SecureLink fetches the CDN endpoint set for a product's repository
// path and ranks it by the client's configured preference (§4.3).
func (c *Client) SecureLink(ctx context.Context, productID int64, path string) ([]CDNOption, error) {
	opts, err := c.authOpts()
	if err != nil {
		return nil, err
	}
	var out secureLinkResponse
	if err := c.http.GetJSON(ctx, secureLinkURLFn(productID, path), opts, &out); err != nil {
		return nil, fmt.Errorf("fetching secure_link for product %d: %w", productID, err)
	}
	opts2 := make([]CDNOption, len(out.Endpoints))
	for i, e := range out.Endpoints {
		opts2[i] = NewCDNOption(e.EndpointName, e.URLFormat, e.Parameters, i)
	}
	return RankCDNs(opts2, c.preference), nil
}

// DependencyLink is analogous to SecureLink but for the shared
// dependencies repository; its template carries no {GALAXY_PATH}
// marker, so one URL is resolved per call (§4.3).
func (c *Client) DependencyLink(ctx context.Context, path string) ([]CDNOption, error) {
	opts, err := c.authOpts()
	if err != nil {
		return nil, err
	}
	var out secureLinkResponse
	if err := c.http.GetJSON(ctx, dependencyLinkURL(path), opts, &out); err != nil {
		return nil, fmt.Errorf("fetching dependency_link for %s: %w", path, err)
	}
	opts2 := make([]CDNOption, len(out.Endpoints))
	for i, e := range out.Endpoints {
		opts2[i] = NewCDNOption(e.EndpointName, e.URLFormat, e.Parameters, i)
	}
	return RankCDNs(opts2, c.preference), nil
}

// UserData is the top-level account notifications payload (§4.3,
// §4.11 notifications wiring).
type UserData struct {
	UserID              string `json:"userId"`
	Username            string `json:"username"`
	Email               string `json:"email"`
	Country             string `json:"country"`
	Currency            struct {
		Code string `json:"code"`
	} `json:"currency"`
	UpdatedProductsCount  int `json:"updatedProductsCount"`
	MessagesCount         int `json:"messagesCount"`
	UnreadChatMessagesCount int `json:"unreadChatMessagesCount"`
	PendingFriendRequestsCount int `json:"pendingFriendRequestsCount"`
	WishlistedInsert      int `json:"wishlistedInsert"`
}

// UserData fetches top-level account notifications (§4.3).
func (c *Client) UserData(ctx context.Context) (UserData, error) {
	opts, err := c.authOpts()
	if err != nil {
		return UserData{}, err
	}
	var out UserData
	if err := c.http.GetJSON(ctx, userDataURLFn(), opts, &out); err != nil {
		return UserData{}, fmt.Errorf("fetching user data: %w", err)
	}
	return out, nil
}

// FilteredProductsPage is one page of the account's owned-products
// listing (§9.1 supplemented: hidden-products/tags filtering).
type FilteredProductsPage struct {
	Page       int   `json:"page"`
	TotalPages int   `json:"totalPages"`
	Products   []struct {
		ID    json.Number `json:"id"`
		Title string      `json:"title"`
		Slug  string      `json:"url"`
	} `json:"products"`
}

// FilteredProducts lists a page of owned products, optionally
// restricted by system, hidden-flag, update status, and tags
// (§9.1: hidden-products/tags support the original exposed but the
// distilled spec dropped).
func (c *Client) FilteredProducts(ctx context.Context, page int, system, hiddenFlag string, isUpdated bool, tags []string) (FilteredProductsPage, error) {
	opts, err := c.authOpts()
	if err != nil {
		return FilteredProductsPage{}, err
	}
	var out FilteredProductsPage
	url := filteredProductsURL(page, system, hiddenFlag, isUpdated, tags)
	if err := c.http.GetJSON(ctx, url, opts, &out); err != nil {
		return FilteredProductsPage{}, fmt.Errorf("fetching filtered products page %d: %w", page, err)
	}
	return out, nil
}

// AllOwnedProductIDs walks every page of FilteredProducts and returns
// the full set of owned product ids.
func (c *Client) AllOwnedProductIDs(ctx context.Context, system, hiddenFlag string, isUpdated bool, tags []string) ([]int64, error) {
	var ids []int64
	for page := 1; ; page++ {
		pg, err := c.FilteredProducts(ctx, page, system, hiddenFlag, isUpdated, tags)
		if err != nil {
			return nil, err
		}
		for _, p := range pg.Products {
			id, err := strconv.ParseInt(p.ID.String(), 10, 64)
			if err != nil {
				return nil, errkind.ParseError.Wrap(fmt.Errorf("product id %q: %w", p.ID.String(), err))
			}
			ids = append(ids, id)
		}
		if page >= pg.TotalPages || pg.TotalPages == 0 {
			break
		}
	}
	return ids, nil
}

// GameDetails fetches the per-game details JSON used as a sidecar
// artifact (§9.1's game-details JSON sidecar).
func (c *Client) GameDetails(ctx context.Context, productID int64) (json.RawMessage, error) {
	opts, err := c.authOpts()
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	if err := c.http.GetJSON(ctx, gameDetailsURL(productID), opts, &out); err != nil {
		return nil, fmt.Errorf("fetching game details %d: %w", productID, err)
	}
	return out, nil
}
