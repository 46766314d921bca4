package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/username/lotfolio/src/models"
	"github.com/username/lotfolio/src/utils"
)

// Cash per option contract is price times this multiplier.
var optionContractMultiplier = decimal.NewFromInt(100)

// ProcessedRow is a normalized transaction plus the broker account it belongs to.
// Transaction.AccountID is filled in once the account is resolved.
type ProcessedRow struct {
	AccountExternalID string
	AccountName       string
	Institution       string
	Transaction       *models.Transaction
}

type TransactionProcessor struct{}

func NewTransactionProcessor() *TransactionProcessor { return &TransactionProcessor{} }

// Process converts raw import rows into transactions. Rows that cannot be converted
// are reported by position and left out of the result.
func (p *TransactionProcessor) Process(raw []models.RawTransaction) ([]ProcessedRow, []error) {
	var rows []ProcessedRow
	var errs []error
	occurrences := make(map[string]int)
	for i, r := range raw {
		row, err := p.processRow(r)
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		if strings.TrimSpace(r.ExternalID) == "" {
			// Identical rows in one file are distinct trades; number the repeats.
			id := row.Transaction.ExternalID
			occurrences[id]++
			if n := occurrences[id]; n > 1 {
				sum := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", id, n)))
				row.Transaction.ExternalID = hex.EncodeToString(sum[:])
			}
		}
		rows = append(rows, row)
	}
	return rows, errs
}

func (p *TransactionProcessor) processRow(r models.RawTransaction) (ProcessedRow, error) {
	accountID := strings.TrimSpace(r.AccountID)
	if accountID == "" {
		return ProcessedRow{}, fmt.Errorf("missing account id")
	}
	tradeDate, err := utils.ParseFlexibleDate(r.TradeDate)
	if err != nil {
		return ProcessedRow{}, err
	}

	tx := &models.Transaction{
		ExternalID:       strings.TrimSpace(r.ExternalID),
		Symbol:           strings.ToUpper(strings.TrimSpace(r.Symbol)),
		TradeDate:        tradeDate,
		Type:             strings.ToUpper(strings.TrimSpace(r.Type)),
		Currency:         strings.ToUpper(strings.TrimSpace(r.Currency)),
		Description:      strings.TrimSpace(r.Description),
		OptionType:       strings.ToUpper(strings.TrimSpace(r.OptionType)),
		UnderlyingSymbol: strings.ToUpper(strings.TrimSpace(r.UnderlyingSymbol)),
		OptionAction:     strings.ToUpper(strings.TrimSpace(r.OptionAction)),
	}
	if tx.Currency == "" {
		tx.Currency = "USD"
	}
	tx.IsOption = parseBoolish(r.IsOption) || tx.OptionAction != ""

	if tx.Quantity, err = utils.ParseNullDecimal(strings.TrimSpace(r.Quantity)); err != nil {
		return ProcessedRow{}, fmt.Errorf("invalid quantity %q: %w", r.Quantity, err)
	}
	if tx.Price, err = utils.ParseNullDecimal(strings.TrimSpace(r.Price)); err != nil {
		return ProcessedRow{}, fmt.Errorf("invalid price %q: %w", r.Price, err)
	}
	if tx.Amount, err = utils.ParseNullDecimal(strings.TrimSpace(r.Amount)); err != nil {
		return ProcessedRow{}, fmt.Errorf("invalid amount %q: %w", r.Amount, err)
	}

	if tx.IsOption {
		if tx.StrikePrice, err = utils.ParseNullDecimal(strings.TrimSpace(r.StrikePrice)); err != nil {
			return ProcessedRow{}, fmt.Errorf("invalid strike price %q: %w", r.StrikePrice, err)
		}
		exp := strings.TrimSpace(r.ExpirationDate)
		if tx.ExpirationDate, err = utils.ParseNullableDate(&exp); err != nil {
			return ProcessedRow{}, err
		}
		if tx.UnderlyingSymbol == "" {
			tx.UnderlyingSymbol = tx.Symbol
		}
		if tx.Type == "" {
			tx.Type = sideOfAction(tx.OptionAction)
		}
	}
	if tx.Type == "" {
		return ProcessedRow{}, fmt.Errorf("missing transaction type")
	}

	if !tx.Amount.Valid {
		tx.Amount = deriveAmount(tx)
	}
	if tx.ExternalID == "" {
		tx.ExternalID = generateHash(accountID, r)
	}

	return ProcessedRow{
		AccountExternalID: accountID,
		AccountName:       strings.TrimSpace(r.AccountName),
		Institution:       strings.TrimSpace(r.Institution),
		Transaction:       tx,
	}, nil
}

// deriveAmount computes the cash impact of a trade when the broker omitted it:
// buys are debits, sells credits.
func deriveAmount(tx *models.Transaction) decimal.NullDecimal {
	if !tx.Quantity.Valid || !tx.Price.Valid {
		return decimal.NullDecimal{}
	}
	gross := tx.Quantity.Decimal.Mul(tx.Price.Decimal).Abs()
	if tx.IsOption {
		gross = gross.Mul(optionContractMultiplier)
	}
	switch {
	case tx.Type == models.TypeBuy, strings.HasPrefix(tx.OptionAction, "BUY_"):
		return decimal.NewNullDecimal(gross.Neg())
	case tx.Type == models.TypeSell, strings.HasPrefix(tx.OptionAction, "SELL_"):
		return decimal.NewNullDecimal(gross)
	default:
		return decimal.NullDecimal{}
	}
}

func sideOfAction(action string) string {
	switch {
	case strings.HasPrefix(action, "BUY_"):
		return models.TypeBuy
	case strings.HasPrefix(action, "SELL_"):
		return models.TypeSell
	default:
		return ""
	}
}

func parseBoolish(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "yes" || s == "y" {
		return true
	}
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// generateHash creates a stable id for a row the broker did not identify, so the
// same file imported twice yields the same ids.
func generateHash(accountID string, r models.RawTransaction) string {
	input := strings.Join([]string{
		accountID, r.TradeDate, r.Symbol, r.Type, r.Quantity, r.Price, r.Amount,
		r.OptionType, r.StrikePrice, r.ExpirationDate, r.UnderlyingSymbol, r.OptionAction, r.Description,
	}, "|")
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}
