package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/username/lotfolio/src/models"
)

const tradeGroupColumns = `tg.id, tg.name, tg.strategy_type, tg.description, tg.created_at, tg.updated_at`

func scanTradeGroup(s rowScanner) (*models.TradeGroup, error) {
	var g models.TradeGroup
	var strategy, description, createdAt, updatedAt sql.NullString
	if err := s.Scan(&g.ID, &g.Name, &strategy, &description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	g.StrategyType = strategy.String
	g.Description = description.String
	g.CreatedAt = parseTimestamp(createdAt)
	g.UpdatedAt = parseTimestamp(updatedAt)
	return &g, nil
}

func collectTradeGroups(rows *sql.Rows) ([]*models.TradeGroup, error) {
	defer rows.Close()
	var groups []*models.TradeGroup
	for rows.Next() {
		g, err := scanTradeGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func CreateTradeGroup(ctx context.Context, q Querier, g *models.TradeGroup) error {
	ts := now()
	res, err := q.ExecContext(ctx, `
	INSERT INTO trade_groups (name, strategy_type, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		g.Name, nullString(g.StrategyType), nullString(g.Description), ts, ts)
	if err != nil {
		return fmt.Errorf("insert trade group %q: %w", g.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	g.ID = id
	g.CreatedAt = parseTimestamp(sql.NullString{String: ts, Valid: true})
	g.UpdatedAt = g.CreatedAt
	return nil
}

// GetTradeGroup loads a group without its transactions.
func GetTradeGroup(ctx context.Context, q Querier, id int64) (*models.TradeGroup, error) {
	g, err := scanTradeGroup(q.QueryRowContext(ctx, `SELECT `+tradeGroupColumns+` FROM trade_groups tg WHERE tg.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return g, err
}

// ListTradeGroups returns every group, newest first.
func ListTradeGroups(ctx context.Context, q Querier) ([]*models.TradeGroup, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+tradeGroupColumns+` FROM trade_groups tg ORDER BY tg.created_at DESC, tg.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list trade groups: %w", err)
	}
	return collectTradeGroups(rows)
}

// UpdateTradeGroup writes name, strategy and description; empty optional fields are stored as NULL.
func UpdateTradeGroup(ctx context.Context, q Querier, g *models.TradeGroup) error {
	ts := now()
	res, err := q.ExecContext(ctx, `UPDATE trade_groups SET name = ?, strategy_type = ?, description = ?, updated_at = ? WHERE id = ?`,
		g.Name, nullString(g.StrategyType), nullString(g.Description), ts, g.ID)
	if err != nil {
		return fmt.Errorf("update trade group %d: %w", g.ID, err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	g.UpdatedAt = parseTimestamp(sql.NullString{String: ts, Valid: true})
	return nil
}

// DeleteTradeGroup removes a group; its membership rows cascade, the transactions stay.
func DeleteTradeGroup(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM trade_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete trade group %d: %w", id, err)
	}
	return requireAffected(res)
}

// AddGroupTransaction puts a transaction in a group; adding twice is a no-op.
func AddGroupTransaction(ctx context.Context, q Querier, groupID, txnID int64) (added bool, err error) {
	if err := requireRows(ctx, q, "trade_groups", groupID, "transactions", txnID); err != nil {
		return false, err
	}
	res, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO trade_group_transactions (trade_group_id, transaction_id) VALUES (?, ?)`,
		groupID, txnID)
	if err != nil {
		return false, fmt.Errorf("add transaction %d to group %d: %w", txnID, groupID, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func RemoveGroupTransaction(ctx context.Context, q Querier, groupID, txnID int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM trade_group_transactions WHERE trade_group_id = ? AND transaction_id = ?`,
		groupID, txnID)
	if err != nil {
		return fmt.Errorf("remove transaction %d from group %d: %w", txnID, groupID, err)
	}
	return requireAffected(res)
}

// GroupTransactions returns the members of a group in trade order.
func GroupTransactions(ctx context.Context, q Querier, groupID int64) ([]*models.Transaction, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+transactionColumns+`
	FROM transactions t JOIN trade_group_transactions gt ON gt.transaction_id = t.id
	WHERE gt.trade_group_id = ? ORDER BY t.trade_date, t.id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("transactions of group %d: %w", groupID, err)
	}
	return collectTransactions(rows)
}

// TransactionGroups returns the groups a transaction belongs to, newest first.
func TransactionGroups(ctx context.Context, q Querier, txnID int64) ([]*models.TradeGroup, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+tradeGroupColumns+`
	FROM trade_groups tg JOIN trade_group_transactions gt ON gt.trade_group_id = tg.id
	WHERE gt.transaction_id = ? ORDER BY tg.created_at DESC, tg.id DESC`, txnID)
	if err != nil {
		return nil, fmt.Errorf("groups of transaction %d: %w", txnID, err)
	}
	return collectTradeGroups(rows)
}
