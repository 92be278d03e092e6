package postgres

import (
	"time"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

func (s *RepositorySuite) TestStats() {
	now := time.Now().UTC().Truncate(time.Second)
	day := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

	s.expectObserve("upsert_blocks", model.BTC)
	_, err := s.repo.UpsertBlocks(s.testCtx, []model.Block{
		newTestBlock(model.BTC, 100, "a", now),
		newTestBlock(model.BTC, 101, "b", now),
	})
	s.Require().NoError(err)

	s.expectObserve("upsert_prices", model.Coin("bitcoin"))
	_, err = s.repo.UpsertPrices(s.testCtx, []model.PricePoint{
		newTestPrice("bitcoin", day.AddDate(0, 0, -1), "64000"),
		newTestPrice("bitcoin", day, "65000"),
	})
	s.Require().NoError(err)

	s.expectObserve("stats", model.Coin(""))
	stats, err := s.repo.Stats(s.testCtx)
	s.Require().NoError(err)

	s.Equal(int64(2), stats.Blocks)
	s.Equal(int64(0), stats.Transactions)
	s.Equal(int64(0), stats.Addresses)
	s.Equal(int64(2), stats.Prices)
	s.Equal(int64(101), stats.TopHeights[model.BTC])
	s.Equal(day, stats.LatestPrices["bitcoin"].UTC())
}

func (s *RepositorySuite) TestPing() {
	s.expectObserve("ping", model.Coin(""))
	s.Require().NoError(s.repo.Ping(s.testCtx))
}
