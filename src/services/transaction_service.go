package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/username/lotfolio/src/logger"
	"github.com/username/lotfolio/src/model"
	"github.com/username/lotfolio/src/models"
	"github.com/username/lotfolio/src/parsers"
	"github.com/username/lotfolio/src/processors"
)

type transactionServiceImpl struct {
	db                   *sql.DB
	transactionProcessor *processors.TransactionProcessor
	lotService           LotService
	autoMatch            bool
	perPage              int
}

// NewTransactionService creates the import service. With autoMatch set, every
// import that stores new rows is followed by an incremental match run.
func NewTransactionService(db *sql.DB, transactionProcessor *processors.TransactionProcessor, lotService LotService, autoMatch bool, perPage int) TransactionService {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	return &transactionServiceImpl{
		db:                   db,
		transactionProcessor: transactionProcessor,
		lotService:           lotService,
		autoMatch:            autoMatch,
		perPage:              perPage,
	}
}

func (s *transactionServiceImpl) ImportFile(ctx context.Context, file io.Reader, source string) (*models.ImportResult, error) {
	parser, err := parsers.GetParser(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	raw, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	return s.ImportRaw(ctx, raw)
}

func (s *transactionServiceImpl) ImportRaw(ctx context.Context, raw []models.RawTransaction) (*models.ImportResult, error) {
	startTime := time.Now()
	logger.L.Info("ImportTransactions START", "rows", len(raw))

	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no transactions in request", ErrInvalidInput)
	}

	rows, rowErrs := s.transactionProcessor.Process(raw)
	result := &models.ImportResult{Received: len(raw)}
	for _, err := range rowErrs {
		result.Errors = append(result.Errors, err.Error())
		logger.L.Warn("Rejected import row", "error", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: all %d rows rejected, first error: %v", ErrImportFailed, len(raw), rowErrs[0])
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	accounts := make(map[string]*models.Account)
	touched := make(map[int64]bool)
	for _, row := range rows {
		account, ok := accounts[row.AccountExternalID]
		if !ok {
			account, err = model.GetOrCreateAccount(ctx, dbTx, row.AccountExternalID, row.AccountName, row.Institution)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrImportFailed, err)
			}
			accounts[row.AccountExternalID] = account
		}
		row.Transaction.AccountID = account.ID

		inserted, err := model.InsertTransaction(ctx, dbTx, row.Transaction)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrImportFailed, err)
		}
		if !inserted {
			logger.L.Debug("Skipping duplicate transaction on import", "externalID", row.Transaction.ExternalID)
			result.Skipped++
			continue
		}
		result.Inserted++
		touched[account.ID] = true
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing transactions: %w", err)
	}
	logger.L.Info("ImportTransactions END",
		"received", result.Received,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"rejected", len(rowErrs),
		"duration", time.Since(startTime))

	if !s.autoMatch || result.Inserted == 0 {
		return result, nil
	}

	var scope *int64
	if len(touched) == 1 {
		for id := range touched {
			scope = &id
		}
	}
	match, err := s.lotService.MatchAll(ctx, scope)
	if err != nil {
		// The import itself is committed; matching can be retried.
		logger.L.Error("Auto-match after import failed", "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("auto-match failed: %v", err))
		return result, nil
	}
	result.Match = match
	return result, nil
}

func (s *transactionServiceImpl) ListTransactions(ctx context.Context, filter models.TransactionFilter, page models.Pagination) (*models.TransactionPage, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PerPage <= 0 {
		page.PerPage = s.perPage
	}
	txns, total, err := model.ListTransactions(ctx, s.db, filter, page)
	if err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []*models.Transaction{}
	}
	return &models.TransactionPage{Transactions: txns, Total: total, Page: page.Page, PerPage: page.PerPage}, nil
}
