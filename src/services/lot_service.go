package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/username/lotfolio/src/logger"
	"github.com/username/lotfolio/src/model"
	"github.com/username/lotfolio/src/models"
	"github.com/username/lotfolio/src/processors"
	"github.com/username/lotfolio/src/security/validation"
	"github.com/username/lotfolio/src/utils"
)

const (
	ckPLSummary  = "agg_pl_summary_%s"
	ckPLOverTime = "agg_pl_over_time_%s"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute

	defaultPerPage = 50
)

type lotServiceImpl struct {
	db          *sql.DB
	matcher     processors.Matcher
	reportCache *cache.Cache
	locks       *scopeLocks
	perPage     int
}

// NewLotService wires the matching engine to db. Aggregate reports are kept in
// reportCache until the next write.
func NewLotService(db *sql.DB, matcher processors.Matcher, reportCache *cache.Cache, perPage int) LotService {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	return &lotServiceImpl{
		db:          db,
		matcher:     matcher,
		reportCache: reportCache,
		locks:       newScopeLocks(),
		perPage:     perPage,
	}
}

func (s *lotServiceImpl) MatchAll(ctx context.Context, accountID *int64) (*models.MatchResult, error) {
	return s.runMatch(ctx, models.MatchModeIncremental, accountID, nil)
}

func (s *lotServiceImpl) RematchAll(ctx context.Context, accountID *int64) (*models.MatchResult, error) {
	return s.runMatch(ctx, models.MatchModeRematch, accountID, nil)
}

func (s *lotServiceImpl) MatchPosition(ctx context.Context, key models.PositionKey) (*models.MatchResult, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: position key is required", ErrInvalidInput)
	}
	accountID := key.Account()
	return s.runMatch(ctx, models.MatchModePosition, &accountID, key)
}

// runMatch performs one match run in a single database transaction. Either every
// lot of the run is stored together with its audit row, or nothing is.
func (s *lotServiceImpl) runMatch(ctx context.Context, mode models.MatchMode, accountID *int64, key models.PositionKey) (*models.MatchResult, error) {
	unlock := s.locks.lock(accountID)
	defer unlock()

	startedAt := time.Now()
	runID := uuid.NewString()
	log := logger.L.With("runID", runID, "mode", mode, "accountID", scopeLabel(accountID))
	log.Info("MatchRun START")

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	result := &models.MatchResult{RunID: runID}
	if mode == models.MatchModeRematch {
		if result.Deleted, err = model.DeleteScopeLots(ctx, dbTx, accountID); err != nil {
			return nil, err
		}
		log.Info("Deleted existing lots for rematch", "deleted", result.Deleted)
	}

	txns, err := model.ScopeTransactions(ctx, dbTx, accountID)
	if err != nil {
		return nil, err
	}
	linked, err := model.LinkedTransactionIDs(ctx, dbTx, accountID)
	if err != nil {
		return nil, err
	}

	var batch processors.BatchOutcome
	if key != nil {
		outcome := s.matcher.Match(key, txns, linked)
		batch = processors.BatchOutcome{
			Outcomes:       []processors.MatchOutcome{outcome},
			Created:        len(outcome.Lots),
			OrphanedCloses: outcome.OrphanedCloses,
		}
		if key.Kind() == models.InstrumentOption {
			batch.OptionsProcessed = 1
		} else {
			batch.StocksProcessed = 1
		}
	} else {
		batch = s.matcher.MatchTransactions(txns, accountID, linked)
	}

	for _, lot := range batch.Lots() {
		if err := model.InsertLot(ctx, dbTx, lot); err != nil {
			return nil, err
		}
	}
	if _, err := recalculatePL(ctx, dbTx, accountID); err != nil {
		return nil, err
	}

	result.Created = batch.Created
	result.OptionsProcessed = batch.OptionsProcessed
	result.StocksProcessed = batch.StocksProcessed
	result.Processed = batch.OptionsProcessed + batch.StocksProcessed
	result.OrphanedCloses = batch.OrphanedCloses
	if result.OrphanOptions, err = model.CountUnlinkedTransactions(ctx, dbTx, models.InstrumentOption, accountID); err != nil {
		return nil, err
	}
	if result.OrphanStocks, err = model.CountUnlinkedTransactions(ctx, dbTx, models.InstrumentStock, accountID); err != nil {
		return nil, err
	}

	run := &models.MatchRun{
		ID:         runID,
		AccountID:  accountID,
		Mode:       mode,
		Result:     *result,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	if err := model.InsertMatchRun(ctx, dbTx, run); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing match run: %w", err)
	}

	s.InvalidateReportCache()
	log.Info("MatchRun END",
		"created", result.Created,
		"processed", result.Processed,
		"orphanOptions", result.OrphanOptions,
		"orphanStocks", result.OrphanStocks,
		"orphanedCloses", result.OrphanedCloses,
		"duration", time.Since(startedAt))
	return result, nil
}

// recalculatePL recomputes the stored realized P/L of every lot in scope and
// returns how many changed.
func recalculatePL(ctx context.Context, q model.Querier, accountID *int64) (int, error) {
	lots, err := model.ScopeLots(ctx, q, accountID)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, lot := range lots {
		pl := processors.LotRealizedPL(lot)
		if pl.Equal(lot.RealizedPL) {
			continue
		}
		if err := model.UpdateLotPL(ctx, q, lot.ID, pl); err != nil {
			return 0, err
		}
		changed++
	}
	return changed, nil
}

func (s *lotServiceImpl) RecalculateAllPL(ctx context.Context) (int, error) {
	unlock := s.locks.lock(nil)
	defer unlock()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	changed, err := recalculatePL(ctx, dbTx, nil)
	if err != nil {
		return 0, err
	}
	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing P/L recalculation: %w", err)
	}
	if changed > 0 {
		s.InvalidateReportCache()
	}
	logger.L.Info("Recalculated realized P/L", "changed", changed)
	return changed, nil
}

func (s *lotServiceImpl) GetLots(ctx context.Context, filter models.LotFilter, page models.Pagination) (*models.LotPage, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PerPage <= 0 {
		page.PerPage = s.perPage
	}
	lots, total, err := model.ListLots(ctx, s.db, filter, page)
	if err != nil {
		return nil, err
	}
	if lots == nil {
		lots = []*models.Lot{}
	}
	return &models.LotPage{Lots: lots, Total: total, Page: page.Page, PerPage: page.PerPage}, nil
}

func (s *lotServiceImpl) GetLot(ctx context.Context, id int64) (*models.Lot, error) {
	lot, err := model.GetLot(ctx, s.db, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrLotNotFound
	}
	return lot, err
}

// DeleteLot unlinks a lot. Its transactions become unlinked and are picked up
// again by the next incremental run.
func (s *lotServiceImpl) DeleteLot(ctx context.Context, id int64) error {
	unlock := s.locks.lock(nil)
	defer unlock()

	err := model.DeleteLot(ctx, s.db, id)
	if errors.Is(err, model.ErrNotFound) {
		return ErrLotNotFound
	}
	if err != nil {
		return err
	}
	s.InvalidateReportCache()
	logger.L.Info("Lot deleted", "lotID", id)
	return nil
}

func (s *lotServiceImpl) UpdateLotNotes(ctx context.Context, id int64, notes string) (*models.Lot, error) {
	err := model.UpdateLotNotes(ctx, s.db, id, validation.CleanText(notes))
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrLotNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.GetLot(ctx, id)
}

func (s *lotServiceImpl) GetLotsForTransaction(ctx context.Context, txnID int64) ([]*models.Lot, error) {
	if _, err := model.GetTransaction(ctx, s.db, txnID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return model.LotsForTransaction(ctx, s.db, txnID)
}

func (s *lotServiceImpl) GetOpenPositions(ctx context.Context, accountID *int64) ([]*models.Lot, error) {
	return model.OpenPositions(ctx, s.db, accountID)
}

func (s *lotServiceImpl) GetUniqueSymbols(ctx context.Context) ([]string, error) {
	return model.UniqueSymbols(ctx, s.db)
}

func (s *lotServiceImpl) GetUnlinkedOptionTransactions(ctx context.Context, accountID *int64) ([]*models.Transaction, error) {
	return model.UnlinkedTransactions(ctx, s.db, models.InstrumentOption, accountID)
}

func (s *lotServiceImpl) GetUnlinkedStockTransactions(ctx context.Context, accountID *int64) ([]*models.Transaction, error) {
	return model.UnlinkedTransactions(ctx, s.db, models.InstrumentStock, accountID)
}

func (s *lotServiceImpl) GetPLSummary(ctx context.Context, filter models.PLFilter) (*models.PLSummary, error) {
	cacheKey := fmt.Sprintf(ckPLSummary, plFilterKey(filter))
	// The cache holds values; every caller gets its own copy.
	if cached, found := s.reportCache.Get(cacheKey); found {
		if summary, ok := cached.(models.PLSummary); ok {
			logger.L.Debug("P/L summary served from cache", "key", cacheKey)
			return &summary, nil
		}
	}

	lots, err := model.PLLots(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	summary := processors.PLSummary(lots)
	s.reportCache.Set(cacheKey, summary, cache.DefaultExpiration)
	return &summary, nil
}

func (s *lotServiceImpl) GetPLOverTime(ctx context.Context, accountID *int64) ([]models.PLPoint, error) {
	filter := models.PLFilter{}
	if accountID != nil {
		filter.AccountIDs = []int64{*accountID}
	}
	cacheKey := fmt.Sprintf(ckPLOverTime, plFilterKey(filter))
	if cached, found := s.reportCache.Get(cacheKey); found {
		if points, ok := cached.([]models.PLPoint); ok {
			return append([]models.PLPoint{}, points...), nil
		}
	}

	lots, err := model.PLLots(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	points := processors.PLOverTime(lots)
	if points == nil {
		points = []models.PLPoint{}
	}
	s.reportCache.Set(cacheKey, points, cache.DefaultExpiration)
	return append([]models.PLPoint{}, points...), nil
}

func (s *lotServiceImpl) RecentMatchRuns(ctx context.Context, limit int) ([]*models.MatchRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return model.RecentMatchRuns(ctx, s.db, limit)
}

// InvalidateReportCache drops every cached aggregate. Any write to lots makes
// them stale.
func (s *lotServiceImpl) InvalidateReportCache() {
	s.reportCache.Flush()
	logger.L.Debug("Report cache invalidated")
}

func plFilterKey(f models.PLFilter) string {
	ids := make([]string, len(f.AccountIDs))
	for i, id := range f.AccountIDs {
		ids[i] = fmt.Sprint(id)
	}
	start, end := "", ""
	if f.StartDate != nil {
		start = utils.FormatDate(*f.StartDate)
	}
	if f.EndDate != nil {
		end = utils.FormatDate(*f.EndDate)
	}
	return strings.Join(ids, ",") + "|" + start + "|" + end
}

func scopeLabel(accountID *int64) string {
	if accountID == nil {
		return "all"
	}
	return fmt.Sprint(*accountID)
}
