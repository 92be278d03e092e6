package postgres

import (
	"github.com/coinforge/cryptoetl-backend/internal/model"
)

func (s *RepositorySuite) TestUpsertCoinInsertThenRefresh() {
	info := model.CoinInfo{
		Symbol:           model.BTC,
		Name:             "Bitcoin",
		ExplorerID:       "bitcoin",
		AggregatorID:     "bitcoin",
		IngestionEnabled: true,
	}

	s.expectObserve("upsert_coin", model.BTC)
	s.Require().NoError(s.repo.UpsertCoin(s.testCtx, info))

	info.Name = "Bitcoin Core"
	info.IngestionEnabled = false

	s.expectObserve("upsert_coin", model.BTC)
	s.Require().NoError(s.repo.UpsertCoin(s.testCtx, info))

	var stored model.CoinInfo
	s.Require().NoError(s.db.WithContext(s.testCtx).Where("symbol = ?", model.BTC).First(&stored).Error)
	s.Equal("Bitcoin Core", stored.Name)
	s.False(stored.IngestionEnabled)
	s.Equal(int64(1), s.countRows("coins"))
}

func (s *RepositorySuite) TestActiveCoinsExcludesDisabled() {
	coins := []model.CoinInfo{
		{Symbol: model.ETH, Name: "Ethereum", ExplorerID: "ethereum", AggregatorID: "ethereum", IngestionEnabled: true},
		{Symbol: model.BTC, Name: "Bitcoin", ExplorerID: "bitcoin", AggregatorID: "bitcoin", IngestionEnabled: true},
		{Symbol: model.DOGE, Name: "Dogecoin", ExplorerID: "dogecoin", AggregatorID: "dogecoin", IngestionEnabled: false},
	}
	for _, c := range coins {
		s.expectObserve("upsert_coin", c.Symbol)
		s.Require().NoError(s.repo.UpsertCoin(s.testCtx, c))
	}

	s.expectObserve("active_coins", model.Coin(""))
	active, err := s.repo.ActiveCoins(s.testCtx)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal(model.BTC, active[0].Symbol)
	s.Equal(model.ETH, active[1].Symbol)
}
