package postgres

import (
	"time"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

func (s *RepositorySuite) TestBeginAndFinalizeRun() {
	target := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	scope := model.Scope{
		Source:     model.SourceBlockchair,
		Family:     model.FamilyBlocks,
		Coin:       model.BTC,
		TargetDate: &target,
	}

	s.expectObserve("begin_run", model.BTC)
	id, err := s.repo.BeginRun(s.testCtx, scope)
	s.Require().NoError(err)
	s.Require().Positive(id)

	var open model.IngestionRun
	s.Require().NoError(s.db.WithContext(s.testCtx).First(&open, id).Error)
	s.Equal(model.RunRunning, open.Status)
	s.Nil(open.CompletedAt)

	s.expectObserve("finalize_run", model.Coin(""))
	counts := model.RunCounts{Processed: 10, Inserted: 7, Updated: 2}
	s.Require().NoError(s.repo.FinalizeRun(s.testCtx, id, model.RunSuccess, counts, ""))

	var closed model.IngestionRun
	s.Require().NoError(s.db.WithContext(s.testCtx).First(&closed, id).Error)
	s.Equal(model.RunSuccess, closed.Status)
	s.Equal(10, closed.RecordsProcessed)
	s.Equal(7, closed.RecordsInserted)
	s.Equal(2, closed.RecordsUpdated)
	s.Require().NotNil(closed.CompletedAt)
	s.Empty(closed.ErrorMessage)
}

func (s *RepositorySuite) TestFinalizeRunStoresErrorForFailure() {
	scope := model.Scope{Source: model.SourceCoingecko, Family: model.FamilyPrices}

	s.expectObserve("begin_run", model.Coin(""))
	id, err := s.repo.BeginRun(s.testCtx, scope)
	s.Require().NoError(err)

	s.expectObserve("finalize_run", model.Coin(""))
	s.Require().NoError(s.repo.FinalizeRun(s.testCtx, id, model.RunFailed, model.RunCounts{}, "fetch daily prices: status 429"))

	var run model.IngestionRun
	s.Require().NoError(s.db.WithContext(s.testCtx).First(&run, id).Error)
	s.Equal(model.RunFailed, run.Status)
	s.Equal("fetch daily prices: status 429", run.ErrorMessage)
}

func (s *RepositorySuite) TestFinalizeRunUnknownID() {
	s.expectObserve("finalize_run", model.Coin(""))
	err := s.repo.FinalizeRun(s.testCtx, 999999, model.RunSuccess, model.RunCounts{}, "")
	s.Require().Error(err)
	s.Contains(err.Error(), "no such run")
}

func (s *RepositorySuite) TestRunsFiltersAndOrder() {
	scopes := []model.Scope{
		{Source: model.SourceBlockchair, Family: model.FamilyBlocks, Coin: model.BTC},
		{Source: model.SourceBlockchair, Family: model.FamilyTransactions, Coin: model.BTC},
		{Source: model.SourceCoingecko, Family: model.FamilyPrices},
	}

	ids := make([]int64, 0, len(scopes))
	for _, scope := range scopes {
		s.expectObserve("begin_run", scope.Coin)
		id, err := s.repo.BeginRun(s.testCtx, scope)
		s.Require().NoError(err)
		ids = append(ids, id)
		time.Sleep(5 * time.Millisecond)
	}

	s.expectObserve("finalize_run", model.Coin(""))
	s.Require().NoError(s.repo.FinalizeRun(s.testCtx, ids[0], model.RunSuccess, model.RunCounts{Processed: 1, Inserted: 1}, ""))

	s.expectObserve("list_runs", model.Coin(""))
	all, err := s.repo.Runs(s.testCtx, RunFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(ids[2], all[0].ID)

	s.expectObserve("list_runs", model.Coin(""))
	explorer, err := s.repo.Runs(s.testCtx, RunFilter{Source: model.SourceBlockchair})
	s.Require().NoError(err)
	s.Len(explorer, 2)

	s.expectObserve("list_runs", model.Coin(""))
	succeeded, err := s.repo.Runs(s.testCtx, RunFilter{Status: model.RunSuccess})
	s.Require().NoError(err)
	s.Require().Len(succeeded, 1)
	s.Equal(ids[0], succeeded[0].ID)

	s.expectObserve("list_runs", model.Coin(""))
	limited, err := s.repo.Runs(s.testCtx, RunFilter{Limit: 1})
	s.Require().NoError(err)
	s.Len(limited, 1)
}

func (s *RepositorySuite) TestSweepStaleRuns() {
	scope := model.Scope{Source: model.SourceBlockchair, Family: model.FamilyBlocks, Coin: model.BTC}

	s.expectObserve("begin_run", model.BTC)
	staleID, err := s.repo.BeginRun(s.testCtx, scope)
	s.Require().NoError(err)

	old := time.Now().UTC().Add(-3 * time.Hour)
	s.Require().NoError(s.db.WithContext(s.testCtx).
		Model(&model.IngestionRun{}).
		Where("id = ?", staleID).
		Update("started_at", old).Error)

	s.expectObserve("begin_run", model.BTC)
	freshID, err := s.repo.BeginRun(s.testCtx, scope)
	s.Require().NoError(err)

	s.expectObserve("sweep_stale_runs", model.Coin(""))
	swept, err := s.repo.SweepStaleRuns(s.testCtx, 2*time.Hour)
	s.Require().NoError(err)
	s.Equal(int64(1), swept)

	var stale model.IngestionRun
	s.Require().NoError(s.db.WithContext(s.testCtx).First(&stale, staleID).Error)
	s.Equal(model.RunFailed, stale.Status)
	s.Equal("run abandoned", stale.ErrorMessage)

	var fresh model.IngestionRun
	s.Require().NoError(s.db.WithContext(s.testCtx).First(&fresh, freshID).Error)
	s.Equal(model.RunRunning, fresh.Status)
}
