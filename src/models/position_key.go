package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const keyDateFormat = "2006-01-02"

// PositionKey identifies one fungible position. It is a closed sum type:
// StockKey and OptionKey are the only implementations.
type PositionKey interface {
	Account() int64
	Kind() InstrumentKind
	// String is the canonical identity used for grouping and deduplication.
	String() string
	// Matches reports whether txn belongs to this position.
	Matches(txn *Transaction) bool

	isPositionKey()
}

// StockKey groups stock trades by account and symbol.
type StockKey struct {
	AccountID int64  `json:"account_id"`
	Symbol    string `json:"symbol"`
}

func (k StockKey) Account() int64       { return k.AccountID }
func (k StockKey) Kind() InstrumentKind { return InstrumentStock }
func (StockKey) isPositionKey()         {}

func (k StockKey) String() string {
	return fmt.Sprintf("STOCK|%d|%s", k.AccountID, k.Symbol)
}

func (k StockKey) Matches(txn *Transaction) bool {
	return txn.IsMatchableStock() && txn.AccountID == k.AccountID && txn.Symbol == k.Symbol
}

// OptionKey groups option trades on one contract.
type OptionKey struct {
	AccountID        int64           `json:"account_id"`
	UnderlyingSymbol string          `json:"underlying_symbol"`
	OptionType       string          `json:"option_type"`
	StrikePrice      decimal.Decimal `json:"strike_price"`
	ExpirationDate   time.Time       `json:"expiration_date"`
}

func (k OptionKey) Account() int64       { return k.AccountID }
func (k OptionKey) Kind() InstrumentKind { return InstrumentOption }
func (OptionKey) isPositionKey()         {}

// String normalizes the strike so 150 and 150.00 produce the same identity.
func (k OptionKey) String() string {
	return fmt.Sprintf("OPTION|%d|%s|%s|%s|%s",
		k.AccountID, k.UnderlyingSymbol, k.OptionType, k.StrikePrice.String(), k.ExpirationDate.Format(keyDateFormat))
}

func (k OptionKey) Matches(txn *Transaction) bool {
	return txn.IsMatchableOption() &&
		txn.AccountID == k.AccountID &&
		txn.UnderlyingSymbol == k.UnderlyingSymbol &&
		txn.OptionType == k.OptionType &&
		txn.StrikePrice.Decimal.Equal(k.StrikePrice) &&
		txn.ExpirationDate.Format(keyDateFormat) == k.ExpirationDate.Format(keyDateFormat)
}

// KeyForTransaction returns the key a transaction matches under, or nil when it
// is neither a matchable option nor a matchable stock trade.
func KeyForTransaction(txn *Transaction) PositionKey {
	switch {
	case txn.IsMatchableOption():
		return OptionKey{
			AccountID:        txn.AccountID,
			UnderlyingSymbol: txn.UnderlyingSymbol,
			OptionType:       txn.OptionType,
			StrikePrice:      txn.StrikePrice.Decimal,
			ExpirationDate:   *txn.ExpirationDate,
		}
	case txn.IsMatchableStock():
		return StockKey{AccountID: txn.AccountID, Symbol: txn.Symbol}
	default:
		return nil
	}
}
