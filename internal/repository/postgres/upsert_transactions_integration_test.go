package postgres

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

func newTestTransaction(coin model.Coin, hashFill string, height int64, ts time.Time) model.Transaction {
	fee := decimal.RequireFromString("1.52")
	output := decimal.RequireFromString("9500.25")
	inputs := int64(2)
	outputs := int64(3)
	size := int64(512)
	coinbase := false
	t := ts
	return model.Transaction{
		Coin:           coin,
		TxHash:         strings.Repeat(hashFill, 64/len(hashFill)),
		BlockHeight:    &height,
		Time:           &t,
		FeeUSD:         &fee,
		OutputTotalUSD: &output,
		InputCount:     &inputs,
		OutputCount:    &outputs,
		SizeBytes:      &size,
		Coinbase:       &coinbase,
	}
}

func (s *RepositorySuite) TestUpsertTransactionsInsertThenUpdate() {
	now := time.Now().UTC().Truncate(time.Second)
	txs := []model.Transaction{
		newTestTransaction(model.ETH, "a", 100, now),
		newTestTransaction(model.ETH, "b", 100, now),
	}

	s.expectObserve("upsert_transactions", model.ETH)
	res, err := s.repo.UpsertTransactions(s.testCtx, txs)
	s.Require().NoError(err)
	s.Equal(2, res.Inserted)

	s.expectObserve("upsert_transactions", model.ETH)
	res, err = s.repo.UpsertTransactions(s.testCtx, txs)
	s.Require().NoError(err)
	s.Equal(0, res.Inserted)
	s.Equal(2, res.Updated)
	s.Equal(int64(2), s.countRows("transactions"))
}

func (s *RepositorySuite) TestUpsertTransactionsSameHashDifferentCoin() {
	now := time.Now().UTC().Truncate(time.Second)
	btc := newTestTransaction(model.BTC, "a", 100, now)
	doge := newTestTransaction(model.DOGE, "a", 5000, now)

	s.expectObserve("upsert_transactions", model.BTC)
	res, err := s.repo.UpsertTransactions(s.testCtx, []model.Transaction{btc, doge})
	s.Require().NoError(err)
	s.Equal(2, res.Inserted)
	s.Empty(res.Skipped)
}
