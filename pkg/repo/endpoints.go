// Package repo implements RepositoryClient (§4.3): product info, build
// index, manifest v1/v2, secure-link/dependency-link CDN dispatch, and
// the pure CDN-priority selection function.
package repo

import (
	"fmt"
	"net/url"
)

const (
	embedBase         = "https://embed.gog.com"
	apiBase           = "https://api.gog.com"
	contentSystemBase = "https://content-system.gog.com"
	cdnMetaBase       = "https://cdn.gog.com/content-system/v2"
)

func productInfoURL(productID int64) string {
	return fmt.Sprintf("%s/products/%d?expand=downloads,expanded_dlcs,description,screenshots,videos,related_products,changelog&locale=en-US", apiBase, productID)
}

func productBuildsURL(productID int64, platform string, generation int) string {
	return fmt.Sprintf("%s/products/%d/os/%s/builds?generation=%d", contentSystemBase, productID, platform, generation)
}

// secureLinkURLFn is a function variable (rather than a plain func) so
// tests can redirect it at an httptest server without a DNS/transport
// seam.
var secureLinkURLFn = func(productID int64, path string) string {
	v := url.Values{}
	v.Set("generation", "2")
	v.Set("path", path)
	v.Set("_version", "2")
	return fmt.Sprintf("%s/products/%d/secure_link?%s", contentSystemBase, productID, v.Encode())
}

func dependencyLinkURL(path string) string {
	v := url.Values{}
	v.Set("path", "/dependencies/store/"+path)
	return fmt.Sprintf("%s/open_link?%s", contentSystemBase, v.Encode())
}

func manifestV2URL(hashPath string, isDependency bool) string {
	if isDependency {
		return fmt.Sprintf("%s/dependencies/meta/%s", cdnMetaBase, hashPath)
	}
	return fmt.Sprintf("%s/meta/%s", cdnMetaBase, hashPath)
}

func filteredProductsURL(page int, system, hiddenFlag string, isUpdated bool, tags []string) string {
	v := url.Values{}
	v.Set("mediaType", "1")
	v.Set("sortBy", "title")
	v.Set("page", fmt.Sprintf("%d", page))
	if system != "" {
		v.Set("system", system)
	}
	if hiddenFlag != "" {
		v.Set("hiddenFlag", hiddenFlag)
	}
	if isUpdated {
		v.Set("isUpdated", "1")
	}
	for _, tag := range tags {
		v.Add("tags", tag)
	}
	return fmt.Sprintf("%s/account/getFilteredProducts?%s", embedBase, v.Encode())
}

func gameDetailsURL(productID int64) string {
	return fmt.Sprintf("%s/account/gameDetails/%d.json", embedBase, productID)
}

func dependenciesRepositoryURL() string {
	return fmt.Sprintf("%s/dependencies/repository?generation=2", contentSystemBase)
}

var userDataURLFn = func() string {
	return fmt.Sprintf("%s/userData.json", apiBase)
}

// HashPath converts a manifest v2 hash into the content-addressed path
// scheme: hash[0..2]/hash[2..4]/hash (§4.3).
func HashPath(hash string) string {
	if len(hash) < 4 {
		return hash
	}
	return fmt.Sprintf("%s/%s/%s", hash[0:2], hash[2:4], hash)
}
