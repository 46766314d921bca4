package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/lotfolio/src/models"
)

func TestTransactionProcessor_Process(t *testing.T) {
	raw := []models.RawTransaction{
		{AccountID: "ACC-1", AccountName: "Brokerage", TradeDate: "2024-03-01", Symbol: "aapl", Type: "buy", Quantity: "10", Price: "150"},
		{AccountID: "ACC-1", TradeDate: "2024-03-02", Symbol: "AAPL  240419C00150000", OptionAction: "sell_to_open",
			OptionType: "call", StrikePrice: "150", ExpirationDate: "2024-04-19", UnderlyingSymbol: "AAPL",
			Quantity: "-2", Price: "3.10", ExternalID: "broker-42"},
		{AccountID: "ACC-1", TradeDate: "not a date", Symbol: "AAPL", Type: "BUY"},
		{TradeDate: "2024-03-01", Symbol: "AAPL", Type: "BUY"},
	}

	rows, errs := NewTransactionProcessor().Process(raw)

	require.Len(t, rows, 2)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "row 3")
	assert.Contains(t, errs[1].Error(), "row 4")

	stock := rows[0].Transaction
	assert.Equal(t, "ACC-1", rows[0].AccountExternalID)
	assert.Equal(t, "Brokerage", rows[0].AccountName)
	assert.Equal(t, "AAPL", stock.Symbol)
	assert.Equal(t, models.TypeBuy, stock.Type)
	assert.Equal(t, "USD", stock.Currency)
	assert.False(t, stock.IsOption)
	assertDecimal(t, "-1500", stock.Amount.Decimal)
	assert.Len(t, stock.ExternalID, 64)

	opt := rows[1].Transaction
	assert.True(t, opt.IsOption)
	assert.Equal(t, "broker-42", opt.ExternalID)
	assert.Equal(t, models.ActionSellToOpen, opt.OptionAction)
	assert.Equal(t, models.OptionTypeCall, opt.OptionType)
	assert.Equal(t, models.TypeSell, opt.Type)
	assertDecimal(t, "620", opt.Amount.Decimal)
	require.NotNil(t, opt.ExpirationDate)
	assert.Equal(t, "2024-04-19", opt.ExpirationDate.Format("2006-01-02"))
	assert.True(t, opt.IsMatchableOption())
}

func TestTransactionProcessor_StableAndDistinctHashes(t *testing.T) {
	row := models.RawTransaction{AccountID: "ACC-1", TradeDate: "2024-03-01", Symbol: "AAPL", Type: "BUY", Quantity: "1", Price: "10"}
	p := NewTransactionProcessor()

	first, errs := p.Process([]models.RawTransaction{row, row})
	require.Empty(t, errs)
	again, _ := p.Process([]models.RawTransaction{row, row})

	require.Len(t, first, 2)
	assert.NotEqual(t, first[0].Transaction.ExternalID, first[1].Transaction.ExternalID)
	assert.Equal(t, first[0].Transaction.ExternalID, again[0].Transaction.ExternalID)
	assert.Equal(t, first[1].Transaction.ExternalID, again[1].Transaction.ExternalID)
}

func TestTransactionProcessor_KeepsGivenAmount(t *testing.T) {
	rows, errs := NewTransactionProcessor().Process([]models.RawTransaction{
		{AccountID: "A", TradeDate: "03/15/2024", Symbol: "MSFT", Type: "SELL", Quantity: "-3", Price: "400", Amount: "1199.95"},
	})
	require.Empty(t, errs)
	assertDecimal(t, "1199.95", rows[0].Transaction.Amount.Decimal)
	assert.Equal(t, "2024-03-15", rows[0].Transaction.TradeDate.Format("2006-01-02"))
}
