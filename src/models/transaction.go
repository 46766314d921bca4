package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock transaction types. Anything else (DIVIDEND, FEE, ...) is stored but never matched.
const (
	TypeBuy  = "BUY"
	TypeSell = "SELL"
)

// Option actions as reported by the broker.
const (
	ActionBuyToOpen   = "BUY_TO_OPEN"
	ActionSellToOpen  = "SELL_TO_OPEN"
	ActionBuyToClose  = "BUY_TO_CLOSE"
	ActionSellToClose = "SELL_TO_CLOSE"
)

const (
	OptionTypeCall = "CALL"
	OptionTypePut  = "PUT"
)

// Account is a brokerage account transactions belong to.
type Account struct {
	ID              int64     `json:"id"`
	ExternalID      string    `json:"external_id"`
	Name            string    `json:"name"`
	InstitutionName string    `json:"institution_name"`
	CreatedAt       time.Time `json:"created_at"`
}

// Transaction is one normalized brokerage event. The matching engine only reads it.
type Transaction struct {
	ID          int64               `json:"id,omitempty"`
	ExternalID  string              `json:"external_id"`
	AccountID   int64               `json:"account_id"`
	Symbol      string              `json:"symbol,omitempty"`
	TradeDate   time.Time           `json:"trade_date"`
	Type        string              `json:"type"` // BUY, SELL, DIVIDEND, ...
	Quantity    decimal.NullDecimal `json:"quantity"`
	Price       decimal.NullDecimal `json:"price"`
	Amount      decimal.NullDecimal `json:"amount"` // positive = credit, negative = debit
	Currency    string              `json:"currency"`
	Description string              `json:"description,omitempty"`

	IsOption         bool                `json:"is_option"`
	OptionType       string              `json:"option_type,omitempty"` // CALL or PUT
	StrikePrice      decimal.NullDecimal `json:"strike_price"`
	ExpirationDate   *time.Time          `json:"expiration_date,omitempty"`
	UnderlyingSymbol string              `json:"underlying_symbol,omitempty"`
	OptionAction     string              `json:"option_action,omitempty"`
}

// TradedQuantity is the magnitude of the quantity; the sign is broker convention only.
func (t *Transaction) TradedQuantity() decimal.Decimal {
	if !t.Quantity.Valid {
		return decimal.Zero
	}
	return t.Quantity.Decimal.Abs()
}

// IsMatchableOption reports whether the transaction carries everything an OptionKey needs.
func (t *Transaction) IsMatchableOption() bool {
	return t.IsOption &&
		t.OptionAction != "" &&
		t.UnderlyingSymbol != "" &&
		t.OptionType != "" &&
		t.StrikePrice.Valid &&
		t.ExpirationDate != nil && !t.ExpirationDate.IsZero()
}

// IsMatchableStock reports whether the transaction is a stock BUY or SELL with a symbol.
func (t *Transaction) IsMatchableStock() bool {
	return !t.IsOption && t.Symbol != "" && (t.Type == TypeBuy || t.Type == TypeSell)
}

// IsOpeningOption reports whether the option action opens a position.
func (t *Transaction) IsOpeningOption() bool {
	return t.OptionAction == ActionBuyToOpen || t.OptionAction == ActionSellToOpen
}
