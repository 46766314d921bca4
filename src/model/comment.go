package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/username/lotfolio/src/models"
)

const commentColumns = `c.id, c.transaction_id, c.text, c.created_at, c.updated_at`

func scanComment(s rowScanner) (*models.Comment, error) {
	var c models.Comment
	var createdAt, updatedAt sql.NullString
	if err := s.Scan(&c.ID, &c.TransactionID, &c.Text, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = parseTimestamp(createdAt)
	c.UpdatedAt = parseTimestamp(updatedAt)
	return &c, nil
}

// CreateComment stores a comment on an existing transaction.
func CreateComment(ctx context.Context, q Querier, c *models.Comment) error {
	ok, err := exists(ctx, q, "transactions", c.TransactionID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("transactions %d: %w", c.TransactionID, ErrNotFound)
	}
	ts := now()
	res, err := q.ExecContext(ctx, `INSERT INTO comments (transaction_id, text, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		c.TransactionID, c.Text, ts, ts)
	if err != nil {
		return fmt.Errorf("insert comment on transaction %d: %w", c.TransactionID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	c.CreatedAt = parseTimestamp(sql.NullString{String: ts, Valid: true})
	c.UpdatedAt = c.CreatedAt
	return nil
}

func GetComment(ctx context.Context, q Querier, id int64) (*models.Comment, error) {
	c, err := scanComment(q.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments c WHERE c.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// TransactionComments lists a transaction's comments, newest first.
func TransactionComments(ctx context.Context, q Querier, txnID int64) ([]*models.Comment, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+commentColumns+` FROM comments c
	WHERE c.transaction_id = ? ORDER BY c.created_at DESC, c.id DESC`, txnID)
	if err != nil {
		return nil, fmt.Errorf("comments of transaction %d: %w", txnID, err)
	}
	defer rows.Close()
	var comments []*models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func UpdateComment(ctx context.Context, q Querier, id int64, text string) error {
	res, err := q.ExecContext(ctx, `UPDATE comments SET text = ?, updated_at = ? WHERE id = ?`, text, now(), id)
	if err != nil {
		return fmt.Errorf("update comment %d: %w", id, err)
	}
	return requireAffected(res)
}

func DeleteComment(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comment %d: %w", id, err)
	}
	return requireAffected(res)
}
