// Package model defines domain models for the crypto ETL pipeline.
package model

import "time"

// Source identifies an upstream data provider.
type Source string

// Family identifies a record family ingested from a source.
type Family string

// Coin is the ticker symbol used in natural keys of chain-scoped families.
type Coin string

var (
	// SourceBlockchair is the blockchain-explorer API.
	SourceBlockchair Source = "blockchair"
	// SourceCoingecko is the price-aggregator API.
	SourceCoingecko Source = "coingecko"
)

var (
	FamilyBlocks       Family = "blocks"
	FamilyTransactions Family = "transactions"
	FamilyAddresses    Family = "addresses"
	FamilyPrices       Family = "prices"
)

var (
	BTC  Coin = "BTC"
	ETH  Coin = "ETH"
	DOGE Coin = "DOGE"
)

// CoinInfo maps a coin symbol to its identifiers at each upstream source.
type CoinInfo struct {
	ID               int64     `gorm:"primaryKey;autoIncrement"`
	Symbol           Coin      `gorm:"type:varchar(10);uniqueIndex;not null"`
	Name             string    `gorm:"type:varchar(100);not null"`
	ExplorerID       string    `gorm:"type:varchar(50)"`
	AggregatorID     string    `gorm:"type:varchar(50)"`
	IngestionEnabled bool      `gorm:"not null;default:true"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (CoinInfo) TableName() string {
	return "coins"
}
