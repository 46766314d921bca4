package models

import "time"

// DefaultTagColor is used when a tag is created without a color.
const DefaultTagColor = "neutral"

// Tag is a user label that can be put on any number of transactions.
type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment is a free-text note on one transaction.
type Comment struct {
	ID            int64     `json:"id"`
	TransactionID int64     `json:"transaction_id"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TradeGroup bundles related transactions, e.g. the legs of a spread.
type TradeGroup struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	StrategyType string    `json:"strategy_type,omitempty"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Filled on detail reads only.
	Transactions []*Transaction `json:"transactions,omitempty"`
	// TotalAmount is the sum of the member transactions' cash amounts.
	TotalAmount string `json:"total_amount,omitempty"`
}

// StrategyType is one of the known multi-leg strategies a group can be labelled with.
type StrategyType struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var StrategyTypes = []StrategyType{
	{"vertical_spread", "Vertical Spread"},
	{"iron_condor", "Iron Condor"},
	{"iron_butterfly", "Iron Butterfly"},
	{"straddle", "Straddle"},
	{"strangle", "Strangle"},
	{"calendar_spread", "Calendar Spread"},
	{"diagonal_spread", "Diagonal Spread"},
	{"covered_call", "Covered Call"},
	{"protective_put", "Protective Put"},
	{"collar", "Collar"},
	{"custom", "Custom"},
}

// IsKnownStrategyType reports whether v is empty or one of StrategyTypes.
func IsKnownStrategyType(v string) bool {
	if v == "" {
		return true
	}
	for _, s := range StrategyTypes {
		if s.Value == v {
			return true
		}
	}
	return false
}

// TradeGroupUpdate carries the fields a PATCH changes; nil leaves a field as is
// and an empty string clears an optional one.
type TradeGroupUpdate struct {
	Name         *string `json:"name"`
	StrategyType *string `json:"strategy_type"`
	Description  *string `json:"description"`
}

// TagUpdate carries the fields a tag PATCH changes.
type TagUpdate struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}
