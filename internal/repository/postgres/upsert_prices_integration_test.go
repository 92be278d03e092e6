package postgres

import (
	"time"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

func (s *RepositorySuite) TestUpsertPricesInsertThenUpdate() {
	day := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	points := []model.PricePoint{
		newTestPrice("bitcoin", day, "65000.12345678"),
		newTestPrice("ethereum", day, "3500.5"),
	}

	s.expectObserve("upsert_prices", model.Coin("bitcoin"))
	res, err := s.repo.UpsertPrices(s.testCtx, points)
	s.Require().NoError(err)
	s.Equal(2, res.Inserted)

	s.expectObserve("upsert_prices", model.Coin("bitcoin"))
	res, err = s.repo.UpsertPrices(s.testCtx, points)
	s.Require().NoError(err)
	s.Equal(0, res.Inserted)
	s.Equal(2, res.Updated)
	s.Equal(int64(2), s.countRows("prices"))
}

func (s *RepositorySuite) TestExistingPriceDates() {
	d1 := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

	s.expectObserve("upsert_prices", model.Coin("bitcoin"))
	_, err := s.repo.UpsertPrices(s.testCtx, []model.PricePoint{
		newTestPrice("bitcoin", d1, "64000"),
		newTestPrice("bitcoin", d3, "66000"),
		newTestPrice("ethereum", d2, "3400"),
	})
	s.Require().NoError(err)

	s.expectObserve("existing_price_dates", model.Coin(""))
	dates, err := s.repo.ExistingPriceDates(s.testCtx, d1, d3)
	s.Require().NoError(err)

	s.Len(dates["bitcoin"], 2)
	s.Len(dates["ethereum"], 1)
	s.Equal(d2, dates["ethereum"][0])
}

func (s *RepositorySuite) TestExistingPriceDatesWindowExcludesOutside() {
	inside := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	outside := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	s.expectObserve("upsert_prices", model.Coin("dogecoin"))
	_, err := s.repo.UpsertPrices(s.testCtx, []model.PricePoint{
		newTestPrice("dogecoin", inside, "0.12"),
		newTestPrice("dogecoin", outside, "0.10"),
	})
	s.Require().NoError(err)

	s.expectObserve("existing_price_dates", model.Coin(""))
	dates, err := s.repo.ExistingPriceDates(s.testCtx,
		time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)

	s.Require().Len(dates["dogecoin"], 1)
	s.Equal(inside, dates["dogecoin"][0])
}
