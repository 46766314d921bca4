package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/username/lotfolio/src/models"
	"github.com/username/lotfolio/src/utils"
)

const transactionColumns = `t.id, t.external_id, t.account_id, t.symbol, t.trade_date, t.type,
	t.quantity, t.price, t.amount, t.currency, t.description,
	t.is_option, t.option_type, t.strike_price, t.expiration_date, t.underlying_symbol, t.option_action`

// Conditions a transaction must meet to be matchable; shared with the unlinked queries.
const (
	matchableOptionCond = `t.is_option = 1 AND t.option_action IS NOT NULL AND t.option_action != ''
	AND t.underlying_symbol IS NOT NULL AND t.underlying_symbol != '' AND t.option_type IS NOT NULL AND t.option_type != ''
	AND t.strike_price IS NOT NULL AND t.expiration_date IS NOT NULL AND t.expiration_date != ''`
	matchableStockCond = `t.is_option = 0 AND t.type IN ('BUY', 'SELL') AND t.symbol IS NOT NULL AND t.symbol != ''`
	unlinkedCond       = `NOT EXISTS (SELECT 1 FROM lot_transactions lt WHERE lt.transaction_id = t.id)`
)

func scanTransaction(s rowScanner, extra ...any) (*models.Transaction, error) {
	var t models.Transaction
	var symbol, description, optionType, expiration, underlying, action sql.NullString
	var tradeDate string
	dest := []any{
		&t.ID, &t.ExternalID, &t.AccountID, &symbol, &tradeDate, &t.Type,
		&t.Quantity, &t.Price, &t.Amount, &t.Currency, &description,
		&t.IsOption, &optionType, &t.StrikePrice, &expiration, &underlying, &action,
	}
	if err := s.Scan(append(extra, dest...)...); err != nil {
		return nil, err
	}
	td, err := utils.ParseFlexibleDate(tradeDate)
	if err != nil {
		return nil, fmt.Errorf("transaction %d: %w", t.ID, err)
	}
	t.TradeDate = td
	if expiration.Valid {
		exp, err := utils.ParseNullableDate(&expiration.String)
		if err != nil {
			return nil, fmt.Errorf("transaction %d expiration: %w", t.ID, err)
		}
		t.ExpirationDate = exp
	}
	t.Symbol = symbol.String
	t.Description = description.String
	t.OptionType = optionType.String
	t.UnderlyingSymbol = underlying.String
	t.OptionAction = action.String
	return &t, nil
}

func collectTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	defer rows.Close()
	var txns []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// InsertTransaction stores t unless a row with the same external id exists.
// It reports whether a row was written.
func InsertTransaction(ctx context.Context, q Querier, t *models.Transaction) (bool, error) {
	res, err := q.ExecContext(ctx, `
	INSERT INTO transactions (external_id, account_id, symbol, trade_date, type, quantity, price, amount,
		currency, description, is_option, option_type, strike_price, expiration_date, underlying_symbol,
		option_action, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO NOTHING`,
		t.ExternalID, t.AccountID, nullString(t.Symbol), utils.FormatDate(t.TradeDate), t.Type,
		t.Quantity, t.Price, t.Amount, t.Currency, nullString(t.Description),
		t.IsOption, nullString(t.OptionType), t.StrikePrice, utils.FormatNullableDate(t.ExpirationDate),
		nullString(t.UnderlyingSymbol), nullString(t.OptionAction), now())
	if err != nil {
		return false, fmt.Errorf("insert transaction %s: %w", t.ExternalID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	t.ID = id
	return true, nil
}

// GetTransaction retrieves a transaction by id.
func GetTransaction(ctx context.Context, q Querier, id int64) (*models.Transaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions t WHERE t.id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ScopeTransactions loads every matchable transaction of the scope ordered by (trade_date, id).
// A nil accountID means all accounts.
func ScopeTransactions(ctx context.Context, q Querier, accountID *int64) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions t
	WHERE ((` + matchableOptionCond + `) OR (` + matchableStockCond + `))`
	var args []any
	if accountID != nil {
		query += ` AND t.account_id = ?`
		args = append(args, *accountID)
	}
	query += ` ORDER BY t.trade_date, t.id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load scope transactions: %w", err)
	}
	return collectTransactions(rows)
}

// LinkedTransactionIDs returns the ids of scope transactions present in any allocation.
func LinkedTransactionIDs(ctx context.Context, q Querier, accountID *int64) (map[int64]bool, error) {
	query := `SELECT DISTINCT lt.transaction_id FROM lot_transactions lt
	JOIN transactions t ON t.id = lt.transaction_id`
	var args []any
	if accountID != nil {
		query += ` WHERE t.account_id = ?`
		args = append(args, *accountID)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load linked transaction ids: %w", err)
	}
	defer rows.Close()

	linked := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		linked[id] = true
	}
	return linked, rows.Err()
}

func unlinkedQuery(kind models.InstrumentKind, accountID *int64, selectList string) (string, []any) {
	cond := matchableStockCond
	if kind == models.InstrumentOption {
		cond = matchableOptionCond
	}
	query := `SELECT ` + selectList + ` FROM transactions t WHERE ` + cond + ` AND ` + unlinkedCond
	var args []any
	if accountID != nil {
		query += ` AND t.account_id = ?`
		args = append(args, *accountID)
	}
	return query, args
}

// UnlinkedTransactions lists matchable transactions of kind that no lot references.
func UnlinkedTransactions(ctx context.Context, q Querier, kind models.InstrumentKind, accountID *int64) ([]*models.Transaction, error) {
	query, args := unlinkedQuery(kind, accountID, transactionColumns)
	rows, err := q.QueryContext(ctx, query+` ORDER BY t.trade_date, t.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("load unlinked %s transactions: %w", strings.ToLower(string(kind)), err)
	}
	return collectTransactions(rows)
}

// CountUnlinkedTransactions is the orphan count reported by match runs.
func CountUnlinkedTransactions(ctx context.Context, q Querier, kind models.InstrumentKind, accountID *int64) (int, error) {
	query, args := unlinkedQuery(kind, accountID, `COUNT(*)`)
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unlinked %s transactions: %w", strings.ToLower(string(kind)), err)
	}
	return n, nil
}

// ListTransactions returns one page of transactions, newest first, and the filtered total.
func ListTransactions(ctx context.Context, q Querier, f models.TransactionFilter, p models.Pagination) ([]*models.Transaction, int, error) {
	var where []string
	var args []any
	if f.AccountID != nil {
		where = append(where, `t.account_id = ?`)
		args = append(args, *f.AccountID)
	}
	if f.Symbol != "" {
		where = append(where, `(t.symbol = ? OR t.underlying_symbol = ?)`)
		args = append(args, f.Symbol, f.Symbol)
	}
	if f.Type != "" {
		where = append(where, `t.type = ?`)
		args = append(args, f.Type)
	}
	if f.IsOption != nil {
		where = append(where, `t.is_option = ?`)
		args = append(args, *f.IsOption)
	}
	if f.StartDate != nil {
		where = append(where, `t.trade_date >= ?`)
		args = append(args, utils.FormatDate(*f.StartDate))
	}
	if f.EndDate != nil {
		where = append(where, `t.trade_date <= ?`)
		args = append(args, utils.FormatDate(*f.EndDate))
	}
	clause := ""
	if len(where) > 0 {
		clause = ` WHERE ` + strings.Join(where, ` AND `)
	}

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions t`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions t` + clause + ` ORDER BY t.trade_date DESC, t.id DESC`
	if p.PerPage > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, p.PerPage, p.Offset())
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	txns, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}
