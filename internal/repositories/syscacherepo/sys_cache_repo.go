package syscacherepo

import "context"

// Well-known keys for durable process-wide identifiers.
const (
	KeyAssetID       = "usdc_dev_asset_id"
	KeyRegistryAppID = "wallet_registry_app_id"
)

// ISysCacheRepository is the durable process-wide cache backing the
// asset-id and registry-app-id lookups. A fresh process reads through it
// before deciding to provision anything on-chain.
type ISysCacheRepository interface {
	GetUint64(ctx context.Context, key string) (uint64, bool, error)
	PutUint64(ctx context.Context, key string, value uint64) error
}
