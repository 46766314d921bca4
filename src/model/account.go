package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/username/lotfolio/src/models"
)

const accountColumns = `id, external_id, name, institution_name, created_at`

func scanAccount(s rowScanner) (*models.Account, error) {
	var a models.Account
	var createdAt sql.NullString
	if err := s.Scan(&a.ID, &a.ExternalID, &a.Name, &a.InstitutionName, &createdAt); err != nil {
		return nil, err
	}
	a.CreatedAt = parseTimestamp(createdAt)
	return &a, nil
}

// CreateAccount inserts a new account and sets its ID.
func CreateAccount(ctx context.Context, q Querier, a *models.Account) error {
	createdAt := now()
	res, err := q.ExecContext(ctx,
		`INSERT INTO accounts (external_id, name, institution_name, created_at) VALUES (?, ?, ?, ?)`,
		a.ExternalID, a.Name, a.InstitutionName, createdAt)
	if err != nil {
		return fmt.Errorf("insert account %s: %w", a.ExternalID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	a.CreatedAt = parseTimestamp(sql.NullString{String: createdAt, Valid: true})
	return nil
}

// GetAccount retrieves an account by id.
func GetAccount(ctx context.Context, q Querier, id int64) (*models.Account, error) {
	row := q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// GetAccountByExternalID retrieves an account by its broker identifier.
func GetAccountByExternalID(ctx context.Context, q Querier, externalID string) (*models.Account, error) {
	row := q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE external_id = ?`, externalID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// GetOrCreateAccount returns the account with externalID, creating it when missing.
func GetOrCreateAccount(ctx context.Context, q Querier, externalID, name, institution string) (*models.Account, error) {
	a, err := GetAccountByExternalID(ctx, q, externalID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if name == "" {
		name = externalID
	}
	a = &models.Account{ExternalID: externalID, Name: name, InstitutionName: institution}
	if err := CreateAccount(ctx, q, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAccounts returns all accounts ordered by name.
func ListAccounts(ctx context.Context, q Querier) ([]*models.Account, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
