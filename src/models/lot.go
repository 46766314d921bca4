package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type InstrumentKind string

const (
	InstrumentStock  InstrumentKind = "STOCK"
	InstrumentOption InstrumentKind = "OPTION"
)

type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

type LegType string

const (
	LegOpen  LegType = "OPEN"
	LegClose LegType = "CLOSE"
)

// Lot tracks a batch of shares or contracts from open through (possibly partial) close.
type Lot struct {
	ID                  int64               `json:"id"`
	AccountID           int64               `json:"account_id"`
	InstrumentType      InstrumentKind      `json:"instrument_type"`
	Symbol              string              `json:"symbol"` // ticker for stocks, underlying for options
	OptionType          string              `json:"option_type,omitempty"`
	StrikePrice         decimal.NullDecimal `json:"strike_price"`
	ExpirationDate      *time.Time          `json:"expiration_date,omitempty"`
	Direction           Direction           `json:"direction"`
	RealizedPL          decimal.Decimal     `json:"realized_pl"`
	IsClosed            bool                `json:"is_closed"`
	TotalOpenedQuantity decimal.Decimal     `json:"total_opened_quantity"`
	TotalClosedQuantity decimal.Decimal     `json:"total_closed_quantity"`
	IsAutoMatched       bool                `json:"is_auto_matched"`
	Notes               string              `json:"notes,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`

	Legs []Allocation `json:"legs,omitempty"`
}

// Allocation (leg) records how much of one transaction one lot consumed.
type Allocation struct {
	ID                int64           `json:"id"`
	LotID             int64           `json:"lot_id"`
	TransactionID     int64           `json:"transaction_id"`
	AllocatedQuantity decimal.Decimal `json:"allocated_quantity"`
	LegType           LegType         `json:"leg_type"`
	TradeDate         time.Time       `json:"trade_date"`
	PricePerContract  decimal.Decimal `json:"price_per_contract"`

	// Loaded alongside the leg; P/L needs its amount and quantity.
	Transaction *Transaction `json:"transaction,omitempty"`
}

// RemainingQuantity is the quantity still open.
func (l *Lot) RemainingQuantity() decimal.Decimal {
	return l.TotalOpenedQuantity.Sub(l.TotalClosedQuantity)
}

// SettleStatus derives IsClosed from the quantity totals.
func (l *Lot) SettleStatus() {
	l.IsClosed = l.TotalOpenedQuantity.IsPositive() &&
		l.TotalClosedQuantity.GreaterThanOrEqual(l.TotalOpenedQuantity)
}

// HasCloseLeg reports whether any leg closes quantity.
func (l *Lot) HasCloseLeg() bool {
	for _, leg := range l.Legs {
		if leg.LegType == LegClose {
			return true
		}
	}
	return false
}

// ContractDisplay renders "AAPL" for stocks and "AAPL $150.00 03/21 C" for options.
func (l *Lot) ContractDisplay() string {
	if l.InstrumentType == InstrumentStock {
		return l.Symbol
	}
	exp := ""
	if l.ExpirationDate != nil {
		exp = l.ExpirationDate.Format("01/02")
	}
	optChar := "P"
	if l.OptionType == OptionTypeCall {
		optChar = "C"
	}
	return fmt.Sprintf("%s $%s %s %s", l.Symbol, l.StrikePrice.Decimal.StringFixed(2), exp, optChar)
}

// Key rebuilds the position key the lot was matched under.
func (l *Lot) Key() PositionKey {
	if l.InstrumentType == InstrumentOption {
		var exp time.Time
		if l.ExpirationDate != nil {
			exp = *l.ExpirationDate
		}
		return OptionKey{
			AccountID:        l.AccountID,
			UnderlyingSymbol: l.Symbol,
			OptionType:       l.OptionType,
			StrikePrice:      l.StrikePrice.Decimal,
			ExpirationDate:   exp,
		}
	}
	return StockKey{AccountID: l.AccountID, Symbol: l.Symbol}
}
