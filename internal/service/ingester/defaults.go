package ingester

import "github.com/coinforge/cryptoetl-backend/internal/model"

const (
	defaultWorkerCount = 4

	defaultBlockLimit       = 1000
	defaultTransactionLimit = 10000
	defaultAddressBatchSize = 10

	// Span of the fallback height range when only the upper bound is known.
	defaultRangeSpan = 100
)

// DefaultCatalog is the built-in coin set used when the coins table holds no
// enabled coins.
func DefaultCatalog() []model.CoinInfo {
	return []model.CoinInfo{
		{Symbol: model.BTC, Name: "Bitcoin", ExplorerID: "bitcoin", AggregatorID: "bitcoin", IngestionEnabled: true},
		{Symbol: model.ETH, Name: "Ethereum", ExplorerID: "ethereum", AggregatorID: "ethereum", IngestionEnabled: true},
		{Symbol: model.DOGE, Name: "Dogecoin", ExplorerID: "dogecoin", AggregatorID: "dogecoin", IngestionEnabled: true},
	}
}

// CoinsOrDefault returns coins unchanged, or the built-in catalog when the
// list is empty.
func CoinsOrDefault(coins []model.CoinInfo) []model.CoinInfo {
	if len(coins) == 0 {
		return DefaultCatalog()
	}
	return coins
}
