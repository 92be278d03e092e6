package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Keyed is implemented by record families persisted by natural key. The
// upsert engine uses it to locate existing rows, build partial-merge update
// sets and stamp bookkeeping timestamps on first insert.
type Keyed interface {
	// NaturalKey returns column conditions identifying the row.
	NaturalKey() map[string]any
	// KeyString renders the natural key for warnings and logs.
	KeyString() string
	// Merge returns the non-key columns carried by the record. Optional
	// attributes absent from the record are omitted so that an update
	// leaves the stored values untouched.
	Merge() map[string]any
	// Stamp sets created_at and updated_at before first insert.
	Stamp(now time.Time)
}

// Block is one blockchain block keyed by (coin, height).
type Block struct {
	Coin             Coin             `gorm:"column:coin_symbol;primaryKey;type:varchar(10)"`
	Height           int64            `gorm:"column:height;primaryKey"`
	Hash             string           `gorm:"column:hash;type:varchar(255);not null"`
	Time             *time.Time       `gorm:"column:block_time"`
	TransactionCount *int64           `gorm:"column:transaction_count"`
	SizeBytes        *int64           `gorm:"column:size_bytes"`
	Difficulty       *decimal.Decimal `gorm:"column:difficulty;type:numeric(30,6)"`
	CreatedAt        time.Time        `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;not null"`
}

func (Block) TableName() string {
	return "blocks"
}

func (b *Block) NaturalKey() map[string]any {
	return map[string]any{"coin_symbol": b.Coin, "height": b.Height}
}

func (b *Block) KeyString() string {
	return fmt.Sprintf("%s/%d", b.Coin, b.Height)
}

func (b *Block) Merge() map[string]any {
	vals := map[string]any{"hash": b.Hash}
	if b.Time != nil {
		vals["block_time"] = *b.Time
	}
	if b.TransactionCount != nil {
		vals["transaction_count"] = *b.TransactionCount
	}
	if b.SizeBytes != nil {
		vals["size_bytes"] = *b.SizeBytes
	}
	if b.Difficulty != nil {
		vals["difficulty"] = *b.Difficulty
	}
	return vals
}

func (b *Block) Stamp(now time.Time) {
	b.CreatedAt = now
	b.UpdatedAt = now
}

// Transaction is one blockchain transaction keyed by (coin, tx hash). The
// block height is a soft reference; the referenced block may not be ingested.
type Transaction struct {
	Coin           Coin             `gorm:"column:coin_symbol;primaryKey;type:varchar(10)"`
	TxHash         string           `gorm:"column:tx_hash;primaryKey;type:varchar(255)"`
	BlockHeight    *int64           `gorm:"column:block_height"`
	Time           *time.Time       `gorm:"column:tx_time"`
	FeeUSD         *decimal.Decimal `gorm:"column:fee_usd;type:numeric(15,8)"`
	OutputTotalUSD *decimal.Decimal `gorm:"column:output_total_usd;type:numeric(20,8)"`
	InputCount     *int64           `gorm:"column:input_count"`
	OutputCount    *int64           `gorm:"column:output_count"`
	SizeBytes      *int64           `gorm:"column:size_bytes"`
	Coinbase       *bool            `gorm:"column:is_coinbase"`
	CreatedAt      time.Time        `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;not null"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) NaturalKey() map[string]any {
	return map[string]any{"coin_symbol": t.Coin, "tx_hash": t.TxHash}
}

func (t *Transaction) KeyString() string {
	return fmt.Sprintf("%s/%s", t.Coin, t.TxHash)
}

func (t *Transaction) Merge() map[string]any {
	vals := map[string]any{}
	if t.BlockHeight != nil {
		vals["block_height"] = *t.BlockHeight
	}
	if t.Time != nil {
		vals["tx_time"] = *t.Time
	}
	if t.FeeUSD != nil {
		vals["fee_usd"] = *t.FeeUSD
	}
	if t.OutputTotalUSD != nil {
		vals["output_total_usd"] = *t.OutputTotalUSD
	}
	if t.InputCount != nil {
		vals["input_count"] = *t.InputCount
	}
	if t.OutputCount != nil {
		vals["output_count"] = *t.OutputCount
	}
	if t.SizeBytes != nil {
		vals["size_bytes"] = *t.SizeBytes
	}
	if t.Coinbase != nil {
		vals["is_coinbase"] = *t.Coinbase
	}
	return vals
}

func (t *Transaction) Stamp(now time.Time) {
	t.CreatedAt = now
	t.UpdatedAt = now
}

// Address is one blockchain address keyed by (coin, address). Counters are
// last-write-wins; monotonicity is not enforced.
type Address struct {
	Coin             Coin             `gorm:"column:coin_symbol;primaryKey;type:varchar(10)"`
	Address          string           `gorm:"column:address;primaryKey;type:varchar(255)"`
	FirstSeen        *time.Time       `gorm:"column:first_seen_time"`
	LastSeen         *time.Time       `gorm:"column:last_seen_time"`
	TransactionCount *int64           `gorm:"column:transaction_count"`
	ReceivedUSD      *decimal.Decimal `gorm:"column:received_total_usd;type:numeric(20,8)"`
	SpentUSD         *decimal.Decimal `gorm:"column:spent_total_usd;type:numeric(20,8)"`
	BalanceUSD       *decimal.Decimal `gorm:"column:balance_usd;type:numeric(20,8)"`
	CreatedAt        time.Time        `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;not null"`
}

func (Address) TableName() string {
	return "addresses"
}

func (a *Address) NaturalKey() map[string]any {
	return map[string]any{"coin_symbol": a.Coin, "address": a.Address}
}

func (a *Address) KeyString() string {
	return fmt.Sprintf("%s/%s", a.Coin, a.Address)
}

func (a *Address) Merge() map[string]any {
	vals := map[string]any{}
	if a.FirstSeen != nil {
		vals["first_seen_time"] = *a.FirstSeen
	}
	if a.LastSeen != nil {
		vals["last_seen_time"] = *a.LastSeen
	}
	if a.TransactionCount != nil {
		vals["transaction_count"] = *a.TransactionCount
	}
	if a.ReceivedUSD != nil {
		vals["received_total_usd"] = *a.ReceivedUSD
	}
	if a.SpentUSD != nil {
		vals["spent_total_usd"] = *a.SpentUSD
	}
	if a.BalanceUSD != nil {
		vals["balance_usd"] = *a.BalanceUSD
	}
	return vals
}

func (a *Address) Stamp(now time.Time) {
	a.CreatedAt = now
	a.UpdatedAt = now
}

// PricePoint is one coin's market data for one calendar day, keyed by
// (aggregator coin id, date). All amounts are quoted in USD.
type PricePoint struct {
	CoinID       string           `gorm:"column:coin_id;primaryKey;type:varchar(50)"`
	Date         time.Time        `gorm:"column:price_date;primaryKey;type:date"`
	PriceUSD     *decimal.Decimal `gorm:"column:price_usd;type:numeric(15,8)"`
	VolumeUSD    *decimal.Decimal `gorm:"column:volume_usd;type:numeric(20,2)"`
	MarketCapUSD *decimal.Decimal `gorm:"column:market_cap_usd;type:numeric(25,2)"`
	CreatedAt    time.Time        `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;not null"`
}

func (PricePoint) TableName() string {
	return "prices"
}

func (p *PricePoint) NaturalKey() map[string]any {
	return map[string]any{"coin_id": p.CoinID, "price_date": p.Date}
}

func (p *PricePoint) KeyString() string {
	return fmt.Sprintf("%s/%s", p.CoinID, p.Date.Format("2006-01-02"))
}

func (p *PricePoint) Merge() map[string]any {
	vals := map[string]any{}
	if p.PriceUSD != nil {
		vals["price_usd"] = *p.PriceUSD
	}
	if p.VolumeUSD != nil {
		vals["volume_usd"] = *p.VolumeUSD
	}
	if p.MarketCapUSD != nil {
		vals["market_cap_usd"] = *p.MarketCapUSD
	}
	return vals
}

func (p *PricePoint) Stamp(now time.Time) {
	p.CreatedAt = now
	p.UpdatedAt = now
}
