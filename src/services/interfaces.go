package services

import (
	"context"
	"io"

	"github.com/username/lotfolio/src/models"
)

// LotService runs lot matching and answers lot and P/L queries.
type LotService interface {
	MatchAll(ctx context.Context, accountID *int64) (*models.MatchResult, error)
	RematchAll(ctx context.Context, accountID *int64) (*models.MatchResult, error)
	MatchPosition(ctx context.Context, key models.PositionKey) (*models.MatchResult, error)
	RecalculateAllPL(ctx context.Context) (int, error)

	GetLots(ctx context.Context, filter models.LotFilter, page models.Pagination) (*models.LotPage, error)
	GetLot(ctx context.Context, id int64) (*models.Lot, error)
	DeleteLot(ctx context.Context, id int64) error
	UpdateLotNotes(ctx context.Context, id int64, notes string) (*models.Lot, error)
	GetLotsForTransaction(ctx context.Context, txnID int64) ([]*models.Lot, error)
	GetOpenPositions(ctx context.Context, accountID *int64) ([]*models.Lot, error)
	GetUniqueSymbols(ctx context.Context) ([]string, error)
	GetUnlinkedOptionTransactions(ctx context.Context, accountID *int64) ([]*models.Transaction, error)
	GetUnlinkedStockTransactions(ctx context.Context, accountID *int64) ([]*models.Transaction, error)

	GetPLSummary(ctx context.Context, filter models.PLFilter) (*models.PLSummary, error)
	GetPLOverTime(ctx context.Context, accountID *int64) ([]models.PLPoint, error)
	RecentMatchRuns(ctx context.Context, limit int) ([]*models.MatchRun, error)

	InvalidateReportCache()
}

// TransactionService ingests normalized transactions and lists them.
type TransactionService interface {
	ImportFile(ctx context.Context, file io.Reader, source string) (*models.ImportResult, error)
	ImportRaw(ctx context.Context, raw []models.RawTransaction) (*models.ImportResult, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter, page models.Pagination) (*models.TransactionPage, error)
}

type AccountService interface {
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error)
}

// AnnotationService manages the user's tags, comments and trade groups on transactions.
type AnnotationService interface {
	ListTags(ctx context.Context) ([]*models.Tag, error)
	CreateTag(ctx context.Context, name, color string) (*models.Tag, error)
	UpdateTag(ctx context.Context, id int64, update models.TagUpdate) (*models.Tag, error)
	DeleteTag(ctx context.Context, id int64) error
	TagTransaction(ctx context.Context, txnID, tagID int64) (bool, error)
	UntagTransaction(ctx context.Context, txnID, tagID int64) error
	GetTransactionTags(ctx context.Context, txnID int64) ([]*models.Tag, error)

	GetComments(ctx context.Context, txnID int64) ([]*models.Comment, error)
	AddComment(ctx context.Context, txnID int64, text string) (*models.Comment, error)
	UpdateComment(ctx context.Context, id int64, text string) (*models.Comment, error)
	DeleteComment(ctx context.Context, id int64) error

	ListTradeGroups(ctx context.Context) ([]*models.TradeGroup, error)
	GetTradeGroup(ctx context.Context, id int64) (*models.TradeGroup, error)
	CreateTradeGroup(ctx context.Context, group *models.TradeGroup) (*models.TradeGroup, error)
	UpdateTradeGroup(ctx context.Context, id int64, update models.TradeGroupUpdate) (*models.TradeGroup, error)
	DeleteTradeGroup(ctx context.Context, id int64) error
	AddToTradeGroup(ctx context.Context, groupID, txnID int64) (bool, error)
	RemoveFromTradeGroup(ctx context.Context, groupID, txnID int64) error
	GetTransactionTradeGroups(ctx context.Context, txnID int64) ([]*models.TradeGroup, error)
}
