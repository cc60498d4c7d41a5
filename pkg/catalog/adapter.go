package catalog

import (
	"context"

	"github.com/galaxydl/galaxydl/pkg/repo"
)

// RepoFetcher adapts *repo.Client into a ProductFetcher, converting
// repo.ProductInfoRaw into catalog's own ProductInfo so this package
// doesn't import pkg/repo's wire-shaped struct directly — the same
// narrow-adapter pattern pkg/fileunit.TransportDownlinkFetcher uses for
// pkg/transport.
type RepoFetcher struct {
	Client *repo.Client
}

func (f RepoFetcher) AllOwnedProductIDs(ctx context.Context, system, hiddenFlag string, isUpdated bool, tags []string) ([]int64, error) {
	return f.Client.AllOwnedProductIDs(ctx, system, hiddenFlag, isUpdated, tags)
}

func (f RepoFetcher) ProductInfo(ctx context.Context, productID int64) (ProductInfo, error) {
	raw, err := f.Client.ProductInfo(ctx, productID)
	if err != nil {
		return ProductInfo{}, err
	}
	return convertProductInfo(raw), nil
}

func convertProductInfo(raw repo.ProductInfoRaw) ProductInfo {
	info := ProductInfo{
		ID:        raw.ID,
		Title:     raw.Title,
		Slug:      raw.Slug,
		ChangeLog: raw.ChangeLog,
		Downloads: raw.Downloads,
	}
	for _, dlc := range raw.ExpandedDLCs {
		info.ExpandedDLCs = append(info.ExpandedDLCs, convertProductInfo(dlc))
	}
	return info
}
