package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/username/lotfolio/src/model"
	"github.com/username/lotfolio/src/models"
)

type accountServiceImpl struct {
	db *sql.DB
}

func NewAccountService(db *sql.DB) AccountService {
	return &accountServiceImpl{db: db}
}

func (s *accountServiceImpl) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	accounts, err := model.ListAccounts(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}
	return accounts, nil
}

// CreateAccount registers an account ahead of any import. An existing external
// id is returned unchanged.
func (s *accountServiceImpl) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	externalID := strings.TrimSpace(account.ExternalID)
	if externalID == "" {
		return nil, fmt.Errorf("%w: external_id is required", ErrInvalidInput)
	}
	return model.GetOrCreateAccount(ctx, s.db, externalID, strings.TrimSpace(account.Name), strings.TrimSpace(account.InstitutionName))
}
