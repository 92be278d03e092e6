// Package validate normalizes raw source records into typed, constraint-checked
// records. It is pure: no I/O, no store access.
package validate

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinforge/cryptoetl-backend/internal/clock"
	"github.com/coinforge/cryptoetl-backend/internal/model"
	"github.com/coinforge/cryptoetl-backend/pkg/safe"
)

// Reason classifies why a raw record was rejected.
type Reason string

const (
	ReasonMissingKey    Reason = "MISSING_KEY"
	ReasonTypeCoercion  Reason = "TYPE_COERCION_FAILED"
	ReasonOutOfRange    Reason = "OUT_OF_RANGE"
	ReasonFutureDate    Reason = "FUTURE_DATE"
	ReasonMalformedHash Reason = "MALFORMED_HASH"
)

// Rejection identifies one dropped record. Rejections never abort the batch;
// the remaining records are still returned.
type Rejection struct {
	Index  int
	Field  string
	Reason Reason
}

var hashPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

const minAddressLen = 20

// timestamp layouts seen across the two upstreams
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Blocks validates raw explorer block records for one coin.
func Blocks(raws []model.Raw, coin model.Coin) ([]model.Block, []Rejection) {
	blocks := make([]model.Block, 0, len(raws))
	var rejects []Rejection

	for i, raw := range raws {
		height, rej := requiredCount(raw, "height")
		if rej != nil {
			rejects = append(rejects, Rejection{Index: i, Field: "height", Reason: *rej})
			continue
		}
		hash, rej2 := requiredHash(raw, "hash")
		if rej2 != nil {
			rejects = append(rejects, Rejection{Index: i, Field: "hash", Reason: *rej2})
			continue
		}

		b := model.Block{
			Coin:   coin,
			Height: height,
			Hash:   hash,
			Time:   optionalTime(raw, "time"),
		}
		var reason *Reason
		var field string
		if b.TransactionCount, reason = optionalCount(raw, "transaction_count"); reason != nil {
			field = "transaction_count"
		} else if b.SizeBytes, reason = optionalCount(raw, "size"); reason != nil {
			field = "size"
		} else if b.Difficulty, reason = optionalSignedDecimal(raw, "difficulty"); reason != nil {
			field = "difficulty"
		}
		if reason != nil {
			rejects = append(rejects, Rejection{Index: i, Field: field, Reason: *reason})
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks, rejects
}

// Transactions validates raw explorer transaction records for one coin.
func Transactions(raws []model.Raw, coin model.Coin) ([]model.Transaction, []Rejection) {
	txs := make([]model.Transaction, 0, len(raws))
	var rejects []Rejection

	for i, raw := range raws {
		hash, rej := requiredHash(raw, "hash")
		if rej != nil {
			rejects = append(rejects, Rejection{Index: i, Field: "hash", Reason: *rej})
			continue
		}

		tx := model.Transaction{
			Coin:   coin,
			TxHash: hash,
			Time:   optionalTime(raw, "time"),
		}
		var reason *Reason
		var field string
		if tx.BlockHeight, reason = optionalCount(raw, "block_id"); reason != nil {
			field = "block_id"
		} else if tx.FeeUSD, reason = optionalMoney(raw, "fee_usd"); reason != nil {
			field = "fee_usd"
		} else if tx.OutputTotalUSD, reason = optionalMoney(raw, "output_total_usd"); reason != nil {
			field = "output_total_usd"
		} else if tx.InputCount, reason = optionalCount(raw, "input_count"); reason != nil {
			field = "input_count"
		} else if tx.OutputCount, reason = optionalCount(raw, "output_count"); reason != nil {
			field = "output_count"
		} else if tx.SizeBytes, reason = optionalCount(raw, "size"); reason != nil {
			field = "size"
		} else if tx.Coinbase, reason = optionalBool(raw, "is_coinbase"); reason != nil {
			field = "is_coinbase"
		}
		if reason != nil {
			rejects = append(rejects, Rejection{Index: i, Field: field, Reason: *reason})
			continue
		}
		txs = append(txs, tx)
	}
	return txs, rejects
}

// Addresses validates raw explorer address records for one coin.
func Addresses(raws []model.Raw, coin model.Coin) ([]model.Address, []Rejection) {
	addrs := make([]model.Address, 0, len(raws))
	var rejects []Rejection

	for i, raw := range raws {
		v, ok := raw["address"]
		addr, isStr := v.(string)
		if !ok || !isStr || addr == "" {
			rejects = append(rejects, Rejection{Index: i, Field: "address", Reason: ReasonMissingKey})
			continue
		}
		if len(addr) < minAddressLen {
			rejects = append(rejects, Rejection{Index: i, Field: "address", Reason: ReasonOutOfRange})
			continue
		}

		a := model.Address{
			Coin:      coin,
			Address:   addr,
			FirstSeen: optionalTime(raw, "first_seen_receiving"),
			LastSeen:  optionalTime(raw, "last_seen_spending"),
		}
		var reason *Reason
		var field string
		if a.TransactionCount, reason = optionalCount(raw, "transaction_count"); reason != nil {
			field = "transaction_count"
		} else if a.ReceivedUSD, reason = optionalMoney(raw, "received_usd"); reason != nil {
			field = "received_usd"
		} else if a.SpentUSD, reason = optionalMoney(raw, "spent_usd"); reason != nil {
			field = "spent_usd"
		} else if a.BalanceUSD, reason = optionalSignedDecimal(raw, "balance_usd"); reason != nil {
			field = "balance_usd"
		}
		if reason != nil {
			rejects = append(rejects, Rejection{Index: i, Field: field, Reason: *reason})
			continue
		}
		addrs = append(addrs, a)
	}
	return addrs, rejects
}

// Prices validates raw aggregator price records. A date strictly after the
// current UTC calendar date is rejected regardless of other fields.
func Prices(raws []model.Raw, now time.Time) ([]model.PricePoint, []Rejection) {
	today := clock.Midnight(now)
	points := make([]model.PricePoint, 0, len(raws))
	var rejects []Rejection

	for i, raw := range raws {
		v, ok := raw["coin_id"]
		coinID, isStr := v.(string)
		if !ok || !isStr || coinID == "" {
			rejects = append(rejects, Rejection{Index: i, Field: "coin_id", Reason: ReasonMissingKey})
			continue
		}
		day, rej := requiredDate(raw, "price_date")
		if rej != nil {
			rejects = append(rejects, Rejection{Index: i, Field: "price_date", Reason: *rej})
			continue
		}
		if day.After(today) {
			rejects = append(rejects, Rejection{Index: i, Field: "price_date", Reason: ReasonFutureDate})
			continue
		}

		p := model.PricePoint{CoinID: coinID, Date: day}
		var reason *Reason
		var field string
		if p.PriceUSD, reason = optionalMoney(raw, "price_usd"); reason != nil {
			field = "price_usd"
		} else if p.VolumeUSD, reason = optionalMoney(raw, "volume_usd"); reason != nil {
			field = "volume_usd"
		} else if p.MarketCapUSD, reason = optionalMoney(raw, "market_cap_usd"); reason != nil {
			field = "market_cap_usd"
		}
		if reason != nil {
			rejects = append(rejects, Rejection{Index: i, Field: field, Reason: *reason})
			continue
		}
		points = append(points, p)
	}
	return points, rejects
}

func requiredCount(raw model.Raw, field string) (int64, *Reason) {
	v, ok := raw[field]
	if !ok || v == nil {
		return 0, reason(ReasonMissingKey)
	}
	n, err := safe.Int64(v)
	if err != nil {
		return 0, reason(ReasonTypeCoercion)
	}
	if n < 0 {
		return 0, reason(ReasonOutOfRange)
	}
	return n, nil
}

func requiredHash(raw model.Raw, field string) (string, *Reason) {
	v, ok := raw[field]
	if !ok || v == nil {
		return "", reason(ReasonMissingKey)
	}
	s, isStr := v.(string)
	if !isStr {
		return "", reason(ReasonTypeCoercion)
	}
	if s == "" {
		return "", reason(ReasonMissingKey)
	}
	if !hashPattern.MatchString(s) {
		return "", reason(ReasonMalformedHash)
	}
	return s, nil
}

func requiredDate(raw model.Raw, field string) (time.Time, *Reason) {
	v, ok := raw[field]
	if !ok || v == nil {
		return time.Time{}, reason(ReasonMissingKey)
	}
	switch value := v.(type) {
	case time.Time:
		return clock.Midnight(value), nil
	case string:
		day, err := time.Parse("2006-01-02", value)
		if err != nil {
			return time.Time{}, reason(ReasonTypeCoercion)
		}
		return day.UTC(), nil
	default:
		return time.Time{}, reason(ReasonTypeCoercion)
	}
}

func optionalCount(raw model.Raw, field string) (*int64, *Reason) {
	v, ok := raw[field]
	if !ok || v == nil {
		return nil, nil
	}
	n, err := safe.Int64(v)
	if err != nil {
		return nil, reason(ReasonTypeCoercion)
	}
	if n < 0 {
		return nil, reason(ReasonOutOfRange)
	}
	return &n, nil
}

func optionalMoney(raw model.Raw, field string) (*decimal.Decimal, *Reason) {
	v, ok := raw[field]
	if !ok || v == nil {
		return nil, nil
	}
	d, err := safe.Decimal(v)
	if err != nil {
		return nil, reason(ReasonTypeCoercion)
	}
	if d.IsNegative() {
		return nil, reason(ReasonOutOfRange)
	}
	return &d, nil
}

// optionalSignedDecimal is for fields that may legitimately be negative
// (difficulty, balance).
func optionalSignedDecimal(raw model.Raw, field string) (*decimal.Decimal, *Reason) {
	v, ok := raw[field]
	if !ok || v == nil {
		return nil, nil
	}
	d, err := safe.Decimal(v)
	if err != nil {
		return nil, reason(ReasonTypeCoercion)
	}
	return &d, nil
}

func optionalBool(raw model.Raw, field string) (*bool, *Reason) {
	v, ok := raw[field]
	if !ok || v == nil {
		return nil, nil
	}
	b, isBool := v.(bool)
	if !isBool {
		return nil, reason(ReasonTypeCoercion)
	}
	return &b, nil
}

// optionalTime never rejects: unparseable or absent timestamps are stored as
// absent, matching the upstream's loose time formatting.
func optionalTime(raw model.Raw, field string) *time.Time {
	v, ok := raw[field]
	if !ok || v == nil {
		return nil
	}
	switch value := v.(type) {
	case time.Time:
		t := value.UTC()
		return &t
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				t = t.UTC()
				return &t
			}
		}
		return nil
	case float64:
		t := time.Unix(int64(value), 0).UTC()
		return &t
	default:
		return nil
	}
}

func reason(r Reason) *Reason {
	return &r
}
