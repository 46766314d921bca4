package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/username/lotfolio/src/models"
	"github.com/username/lotfolio/src/utils"
)

const lotColumns = `l.id, l.account_id, l.instrument_type, l.symbol, l.option_type, l.strike_price, l.expiration_date,
	l.direction, l.realized_pl, l.is_closed, l.total_opened_quantity, l.total_closed_quantity,
	l.is_auto_matched, l.notes, l.created_at, l.updated_at`

const legColumns = `lt.id, lt.lot_id, lt.transaction_id, lt.allocated_quantity, lt.leg_type, lt.trade_date, lt.price_per_contract`

// Legs are read in (trade_date, id) order everywhere; P/L over time depends on it.
const legOrder = `lt.lot_id, lt.trade_date, lt.id`

// Large IN lists are split to stay under sqlite's bound-parameter limit.
const legBatchSize = 500

func scanLot(s rowScanner) (*models.Lot, error) {
	var l models.Lot
	var optionType, expiration, notes, createdAt, updatedAt sql.NullString
	var instrument, direction string
	if err := s.Scan(&l.ID, &l.AccountID, &instrument, &l.Symbol, &optionType, &l.StrikePrice, &expiration,
		&direction, &l.RealizedPL, &l.IsClosed, &l.TotalOpenedQuantity, &l.TotalClosedQuantity,
		&l.IsAutoMatched, &notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	l.InstrumentType = models.InstrumentKind(instrument)
	l.Direction = models.Direction(direction)
	l.OptionType = optionType.String
	l.Notes = notes.String
	l.CreatedAt = parseTimestamp(createdAt)
	l.UpdatedAt = parseTimestamp(updatedAt)
	if expiration.Valid {
		exp, err := utils.ParseNullableDate(&expiration.String)
		if err != nil {
			return nil, fmt.Errorf("lot %d expiration: %w", l.ID, err)
		}
		l.ExpirationDate = exp
	}
	return &l, nil
}

func collectLots(rows *sql.Rows) ([]*models.Lot, error) {
	defer rows.Close()
	var lots []*models.Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

// InsertLot stores a lot and all of its legs, setting the generated ids.
func InsertLot(ctx context.Context, q Querier, l *models.Lot) error {
	ts := now()
	res, err := q.ExecContext(ctx, `
	INSERT INTO trade_lots (account_id, instrument_type, symbol, option_type, strike_price, expiration_date,
		direction, realized_pl, is_closed, total_opened_quantity, total_closed_quantity, is_auto_matched,
		notes, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.AccountID, string(l.InstrumentType), l.Symbol, nullString(l.OptionType), l.StrikePrice,
		utils.FormatNullableDate(l.ExpirationDate), string(l.Direction), l.RealizedPL, l.IsClosed,
		l.TotalOpenedQuantity, l.TotalClosedQuantity, l.IsAutoMatched, nullString(l.Notes), ts, ts)
	if err != nil {
		return fmt.Errorf("insert lot for %s: %w", l.Symbol, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = id
	l.CreatedAt = parseTimestamp(sql.NullString{String: ts, Valid: true})
	l.UpdatedAt = l.CreatedAt

	for i := range l.Legs {
		l.Legs[i].LotID = id
		if err := InsertAllocation(ctx, q, &l.Legs[i]); err != nil {
			return err
		}
	}
	return nil
}

// InsertAllocation stores one leg.
func InsertAllocation(ctx context.Context, q Querier, a *models.Allocation) error {
	res, err := q.ExecContext(ctx, `
	INSERT INTO lot_transactions (lot_id, transaction_id, allocated_quantity, leg_type, trade_date, price_per_contract)
	VALUES (?, ?, ?, ?, ?, ?)`,
		a.LotID, a.TransactionID, a.AllocatedQuantity, string(a.LegType), utils.FormatDate(a.TradeDate), a.PricePerContract)
	if err != nil {
		return fmt.Errorf("insert %s leg for transaction %d: %w", a.LegType, a.TransactionID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// AttachLegs loads the legs of lots, with their transactions, in stored order.
func AttachLegs(ctx context.Context, q Querier, lots []*models.Lot) error {
	byID := make(map[int64]*models.Lot, len(lots))
	ids := make([]any, 0, len(lots))
	for _, l := range lots {
		l.Legs = nil
		byID[l.ID] = l
		ids = append(ids, l.ID)
	}
	for start := 0; start < len(ids); start += legBatchSize {
		end := start + legBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		rows, err := q.QueryContext(ctx, `SELECT `+legColumns+`, `+transactionColumns+`
		FROM lot_transactions lt JOIN transactions t ON t.id = lt.transaction_id
		WHERE lt.lot_id IN (`+placeholders(len(batch))+`)
		ORDER BY `+legOrder, batch...)
		if err != nil {
			return fmt.Errorf("load lot legs: %w", err)
		}
		if err := scanLegs(rows, byID); err != nil {
			return err
		}
	}
	return nil
}

func scanLegs(rows *sql.Rows, byID map[int64]*models.Lot) error {
	defer rows.Close()
	for rows.Next() {
		var a models.Allocation
		var legType, tradeDate string
		txn, err := scanTransaction(rows, &a.ID, &a.LotID, &a.TransactionID, &a.AllocatedQuantity, &legType, &tradeDate, &a.PricePerContract)
		if err != nil {
			return err
		}
		a.LegType = models.LegType(legType)
		if a.TradeDate, err = utils.ParseFlexibleDate(tradeDate); err != nil {
			return fmt.Errorf("leg %d: %w", a.ID, err)
		}
		a.Transaction = txn
		if l, ok := byID[a.LotID]; ok {
			l.Legs = append(l.Legs, a)
		}
	}
	return rows.Err()
}

// GetLot retrieves a lot with its legs.
func GetLot(ctx context.Context, q Querier, id int64) (*models.Lot, error) {
	row := q.QueryRowContext(ctx, `SELECT `+lotColumns+` FROM trade_lots l WHERE l.id = ?`, id)
	l, err := scanLot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := AttachLegs(ctx, q, []*models.Lot{l}); err != nil {
		return nil, err
	}
	return l, nil
}

func lotWhere(f models.LotFilter) (string, []any) {
	var where []string
	var args []any
	if f.AccountID != nil {
		where = append(where, `l.account_id = ?`)
		args = append(args, *f.AccountID)
	}
	if f.Symbol != "" {
		where = append(where, `l.symbol = ?`)
		args = append(args, f.Symbol)
	}
	if f.InstrumentType != "" {
		where = append(where, `l.instrument_type = ?`)
		args = append(args, string(f.InstrumentType))
	}
	if f.Direction != "" {
		where = append(where, `l.direction = ?`)
		args = append(args, string(f.Direction))
	}
	if f.IsClosed != nil {
		where = append(where, `l.is_closed = ?`)
		args = append(args, *f.IsClosed)
	}
	if len(where) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(where, ` AND `), args
}

// ListLots returns one page of lots with legs, latest expiration first, and the filtered total.
func ListLots(ctx context.Context, q Querier, f models.LotFilter, p models.Pagination) ([]*models.Lot, int, error) {
	clause, args := lotWhere(f)
	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM trade_lots l`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count lots: %w", err)
	}

	query := `SELECT ` + lotColumns + ` FROM trade_lots l` + clause +
		` ORDER BY l.expiration_date IS NULL, l.expiration_date DESC, l.id DESC`
	if p.PerPage > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, p.PerPage, p.Offset())
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list lots: %w", err)
	}
	lots, err := collectLots(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := AttachLegs(ctx, q, lots); err != nil {
		return nil, 0, err
	}
	return lots, total, nil
}

// ScopeLots loads every lot of the scope with its legs.
func ScopeLots(ctx context.Context, q Querier, accountID *int64) ([]*models.Lot, error) {
	lots, _, err := ListLots(ctx, q, models.LotFilter{AccountID: accountID}, models.Pagination{})
	return lots, err
}

// OpenPositions returns unclosed lots, soonest expiration first and stocks last.
func OpenPositions(ctx context.Context, q Querier, accountID *int64) ([]*models.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM trade_lots l WHERE l.is_closed = 0`
	var args []any
	if accountID != nil {
		query += ` AND l.account_id = ?`
		args = append(args, *accountID)
	}
	query += ` ORDER BY l.expiration_date IS NULL, l.expiration_date, l.id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}
	lots, err := collectLots(rows)
	if err != nil {
		return nil, err
	}
	return lots, AttachLegs(ctx, q, lots)
}

// LotsForTransaction returns the lots that hold a leg of txnID.
func LotsForTransaction(ctx context.Context, q Querier, txnID int64) ([]*models.Lot, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+lotColumns+` FROM trade_lots l
	WHERE l.id IN (SELECT lot_id FROM lot_transactions WHERE transaction_id = ?)
	ORDER BY l.id`, txnID)
	if err != nil {
		return nil, fmt.Errorf("lots for transaction %d: %w", txnID, err)
	}
	lots, err := collectLots(rows)
	if err != nil {
		return nil, err
	}
	return lots, AttachLegs(ctx, q, lots)
}

// PLLots loads the lots a P/L summary covers. With a date range only lots with a
// CLOSE leg inside it qualify.
func PLLots(ctx context.Context, q Querier, f models.PLFilter) ([]*models.Lot, error) {
	var where []string
	var args []any
	if len(f.AccountIDs) > 0 {
		where = append(where, `l.account_id IN (`+placeholders(len(f.AccountIDs))+`)`)
		for _, id := range f.AccountIDs {
			args = append(args, id)
		}
	}
	if f.StartDate != nil || f.EndDate != nil {
		sub := `SELECT lot_id FROM lot_transactions WHERE leg_type = 'CLOSE'`
		if f.StartDate != nil {
			sub += ` AND trade_date >= ?`
			args = append(args, utils.FormatDate(*f.StartDate))
		}
		if f.EndDate != nil {
			sub += ` AND trade_date <= ?`
			args = append(args, utils.FormatDate(*f.EndDate))
		}
		where = append(where, `l.id IN (`+sub+`)`)
	}
	query := `SELECT ` + lotColumns + ` FROM trade_lots l`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY l.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("load lots for P/L: %w", err)
	}
	lots, err := collectLots(rows)
	if err != nil {
		return nil, err
	}
	return lots, AttachLegs(ctx, q, lots)
}

// UniqueSymbols lists the distinct lot symbols alphabetically.
func UniqueSymbols(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT symbol FROM trade_lots ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list lot symbols: %w", err)
	}
	defer rows.Close()
	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// UpdateLotPL persists a recomputed realized P/L.
func UpdateLotPL(ctx context.Context, q Querier, id int64, pl decimal.Decimal) error {
	_, err := q.ExecContext(ctx, `UPDATE trade_lots SET realized_pl = ?, updated_at = ? WHERE id = ?`, pl, now(), id)
	if err != nil {
		return fmt.Errorf("update P/L of lot %d: %w", id, err)
	}
	return nil
}

// UpdateLotNotes sets the user notes of a lot.
func UpdateLotNotes(ctx context.Context, q Querier, id int64, notes string) error {
	res, err := q.ExecContext(ctx, `UPDATE trade_lots SET notes = ?, updated_at = ? WHERE id = ?`, nullString(notes), now(), id)
	if err != nil {
		return fmt.Errorf("update notes of lot %d: %w", id, err)
	}
	return requireAffected(res)
}

// DeleteLot removes a lot; its legs cascade.
func DeleteLot(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM trade_lots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete lot %d: %w", id, err)
	}
	return requireAffected(res)
}

// DeleteScopeLots removes every lot of the scope and returns how many went.
func DeleteScopeLots(ctx context.Context, q Querier, accountID *int64) (int, error) {
	query := `DELETE FROM trade_lots`
	var args []any
	if accountID != nil {
		query += ` WHERE account_id = ?`
		args = append(args, *accountID)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete lots: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
