package models

import "time"

// RawTransaction is one row of a normalized import file, before type conversion.
type RawTransaction struct {
	ExternalID       string `json:"external_id"`
	AccountID        string `json:"account_id"` // broker account identifier
	AccountName      string `json:"account_name"`
	Institution      string `json:"institution"`
	TradeDate        string `json:"trade_date"`
	Symbol           string `json:"symbol"`
	Type             string `json:"type"`
	Quantity         string `json:"quantity"`
	Price            string `json:"price"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Description      string `json:"description"`
	IsOption         string `json:"is_option"`
	OptionType       string `json:"option_type"`
	StrikePrice      string `json:"strike_price"`
	ExpirationDate   string `json:"expiration_date"`
	UnderlyingSymbol string `json:"underlying_symbol"`
	OptionAction     string `json:"option_action"`
}

// MatchMode distinguishes incremental runs from full rematches.
type MatchMode string

const (
	MatchModeIncremental MatchMode = "incremental"
	MatchModeRematch     MatchMode = "rematch"
	MatchModePosition    MatchMode = "position"
)

// MatchResult is what a match run reports back.
type MatchResult struct {
	RunID            string `json:"run_id"`
	Created          int    `json:"created"`
	Processed        int    `json:"processed"`
	OptionsProcessed int    `json:"options_processed"`
	StocksProcessed  int    `json:"stocks_processed"`
	OrphanOptions    int    `json:"orphan_options"`
	OrphanStocks     int    `json:"orphan_stocks"`
	OrphanedCloses   int    `json:"orphaned_closes"`
	Deleted          int    `json:"deleted,omitempty"`
}

// MatchRun is the audit row persisted for every run.
type MatchRun struct {
	ID         string      `json:"id"`
	AccountID  *int64      `json:"account_id,omitempty"`
	Mode       MatchMode   `json:"mode"`
	Result     MatchResult `json:"result"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// PLSummary aggregates realized P/L over a set of lots.
type PLSummary struct {
	TotalPL     string  `json:"total_pl"`
	Winners     int     `json:"winners"`
	Losers      int     `json:"losers"`
	WinRate     float64 `json:"win_rate"`
	OpenCount   int     `json:"open_count"`
	ClosedCount int     `json:"closed_count"`
}

// PLPoint is one bucket of the cumulative P/L series.
type PLPoint struct {
	Date         string `json:"date"`
	CumulativePL string `json:"cumulative_pl"`
}

type LotFilter struct {
	AccountID      *int64
	Symbol         string
	InstrumentType InstrumentKind
	Direction      Direction
	IsClosed       *bool
}

type TransactionFilter struct {
	AccountID *int64
	Symbol    string // matches symbol or underlying
	Type      string
	IsOption  *bool
	StartDate *time.Time
	EndDate   *time.Time
}

type PLFilter struct {
	AccountIDs []int64
	StartDate  *time.Time
	EndDate    *time.Time
}

type Pagination struct {
	Page    int
	PerPage int
}

// Offset is the row offset for a 1-based page.
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// LotPage is one page of lots plus the unpaginated total.
type LotPage struct {
	Lots    []*Lot `json:"lots"`
	Total   int    `json:"total"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}

type TransactionPage struct {
	Transactions []*Transaction `json:"transactions"`
	Total        int            `json:"total"`
	Page         int            `json:"page"`
	PerPage      int            `json:"per_page"`
}

// ImportResult summarizes one ingestion call.
type ImportResult struct {
	Received int          `json:"received"`
	Inserted int          `json:"inserted"`
	Skipped  int          `json:"skipped"`
	Errors   []string     `json:"errors,omitempty"`
	Match    *MatchResult `json:"match,omitempty"`
}
