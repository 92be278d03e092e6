package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

func newTestAddress(coin model.Coin, addr string, txCount int64) model.Address {
	received := decimal.RequireFromString("1500.10")
	spent := decimal.RequireFromString("200.05")
	balance := decimal.RequireFromString("1300.05")
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return model.Address{
		Coin:             coin,
		Address:          addr,
		FirstSeen:        &first,
		LastSeen:         &last,
		TransactionCount: &txCount,
		ReceivedUSD:      &received,
		SpentUSD:         &spent,
		BalanceUSD:       &balance,
	}
}

func (s *RepositorySuite) TestUpsertAddressesCountersAreLastWriteWins() {
	addr := newTestAddress(model.BTC, "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", 50)

	s.expectObserve("upsert_addresses", model.BTC)
	res, err := s.repo.UpsertAddresses(s.testCtx, []model.Address{addr})
	s.Require().NoError(err)
	s.Equal(1, res.Inserted)

	lower := newTestAddress(model.BTC, addr.Address, 10)

	s.expectObserve("upsert_addresses", model.BTC)
	res, err = s.repo.UpsertAddresses(s.testCtx, []model.Address{lower})
	s.Require().NoError(err)
	s.Equal(1, res.Updated)

	var stored model.Address
	s.Require().NoError(s.db.WithContext(s.testCtx).
		Where("coin_symbol = ? AND address = ?", model.BTC, addr.Address).
		First(&stored).Error)
	s.Require().NotNil(stored.TransactionCount)
	s.Equal(int64(10), *stored.TransactionCount)
}

func (s *RepositorySuite) TestUpsertAddressesNegativeBalanceStored() {
	addr := newTestAddress(model.DOGE, "DLCDJhnh6aGotar6b182jpzbNEyXb3C361", 3)
	negative := decimal.RequireFromString("-0.25")
	addr.BalanceUSD = &negative

	s.expectObserve("upsert_addresses", model.DOGE)
	res, err := s.repo.UpsertAddresses(s.testCtx, []model.Address{addr})
	s.Require().NoError(err)
	s.Equal(1, res.Inserted)

	var stored model.Address
	s.Require().NoError(s.db.WithContext(s.testCtx).
		Where("coin_symbol = ? AND address = ?", model.DOGE, addr.Address).
		First(&stored).Error)
	s.Require().NotNil(stored.BalanceUSD)
	s.True(negative.Equal(*stored.BalanceUSD))
}
