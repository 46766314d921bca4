package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/username/lotfolio/src/models"
)

const tagColumns = `g.id, g.name, g.color, g.created_at, g.updated_at`

func scanTag(s rowScanner) (*models.Tag, error) {
	var tag models.Tag
	var createdAt, updatedAt sql.NullString
	if err := s.Scan(&tag.ID, &tag.Name, &tag.Color, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	tag.CreatedAt = parseTimestamp(createdAt)
	tag.UpdatedAt = parseTimestamp(updatedAt)
	return &tag, nil
}

func collectTags(rows *sql.Rows) ([]*models.Tag, error) {
	defer rows.Close()
	var tags []*models.Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// CreateTag stores a tag; a name already in use gives ErrDuplicate.
func CreateTag(ctx context.Context, q Querier, tag *models.Tag) error {
	if tag.Color == "" {
		tag.Color = models.DefaultTagColor
	}
	ts := now()
	res, err := q.ExecContext(ctx, `INSERT INTO tags (name, color, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		tag.Name, tag.Color, ts, ts)
	if isUniqueViolation(err) {
		return fmt.Errorf("tag %q: %w", tag.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert tag %q: %w", tag.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	tag.ID = id
	tag.CreatedAt = parseTimestamp(sql.NullString{String: ts, Valid: true})
	tag.UpdatedAt = tag.CreatedAt
	return nil
}

func GetTag(ctx context.Context, q Querier, id int64) (*models.Tag, error) {
	tag, err := scanTag(q.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags g WHERE g.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tag, err
}

// ListTags returns every tag ordered by name.
func ListTags(ctx context.Context, q Querier) ([]*models.Tag, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+tagColumns+` FROM tags g ORDER BY g.name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return collectTags(rows)
}

// UpdateTag renames or recolors a tag.
func UpdateTag(ctx context.Context, q Querier, tag *models.Tag) error {
	ts := now()
	res, err := q.ExecContext(ctx, `UPDATE tags SET name = ?, color = ?, updated_at = ? WHERE id = ?`,
		tag.Name, tag.Color, ts, tag.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("tag %q: %w", tag.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update tag %d: %w", tag.ID, err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	tag.UpdatedAt = parseTimestamp(sql.NullString{String: ts, Valid: true})
	return nil
}

// DeleteTag removes a tag; its transaction links cascade.
func DeleteTag(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tag %d: %w", id, err)
	}
	return requireAffected(res)
}

// AddTransactionTag links a tag to a transaction. Linking twice is a no-op;
// added reports whether a new link was made. A missing transaction or tag
// gives ErrNotFound.
func AddTransactionTag(ctx context.Context, q Querier, txnID, tagID int64) (added bool, err error) {
	if err := requireRows(ctx, q, "transactions", txnID, "tags", tagID); err != nil {
		return false, err
	}
	res, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?)`, txnID, tagID)
	if err != nil {
		return false, fmt.Errorf("tag transaction %d with %d: %w", txnID, tagID, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RemoveTransactionTag unlinks a tag; ErrNotFound when there was no link.
func RemoveTransactionTag(ctx context.Context, q Querier, txnID, tagID int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM transaction_tags WHERE transaction_id = ? AND tag_id = ?`, txnID, tagID)
	if err != nil {
		return fmt.Errorf("untag transaction %d: %w", txnID, err)
	}
	return requireAffected(res)
}

// TransactionTags returns the tags on a transaction ordered by name.
func TransactionTags(ctx context.Context, q Querier, txnID int64) ([]*models.Tag, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+tagColumns+`
	FROM tags g JOIN transaction_tags tt ON tt.tag_id = g.id
	WHERE tt.transaction_id = ? ORDER BY g.name`, txnID)
	if err != nil {
		return nil, fmt.Errorf("tags of transaction %d: %w", txnID, err)
	}
	return collectTags(rows)
}

// requireRows checks that both ids exist in their tables.
func requireRows(ctx context.Context, q Querier, tableA string, idA int64, tableB string, idB int64) error {
	for _, c := range []struct {
		table string
		id    int64
	}{{tableA, idA}, {tableB, idB}} {
		ok, err := exists(ctx, q, c.table, c.id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s %d: %w", c.table, c.id, ErrNotFound)
		}
	}
	return nil
}
