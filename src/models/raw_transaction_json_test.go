package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawTransaction_UnmarshalAcceptsScalars(t *testing.T) {
	body := `[
		{"account_id": 1001, "trade_date": "2024-01-02", "symbol": "AAPL", "type": "BUY",
		 "quantity": 10, "price": 100.50, "amount": -1005.0, "unknown": {"nested": true}},
		{"account_id": "ACC-1", "trade_date": "2024-01-03", "symbol": "AAPL240216C150",
		 "is_option": true, "strike_price": 150, "quantity": "1", "description": null}
	]`
	var rows []RawTransaction
	require.NoError(t, json.Unmarshal([]byte(body), &rows))
	require.Len(t, rows, 2)

	assert.Equal(t, "1001", rows[0].AccountID)
	assert.Equal(t, "10", rows[0].Quantity)
	assert.Equal(t, "100.50", rows[0].Price)
	assert.Equal(t, "-1005.0", rows[0].Amount)

	assert.Equal(t, "true", rows[1].IsOption)
	assert.Equal(t, "150", rows[1].StrikePrice)
	assert.Equal(t, "1", rows[1].Quantity)
	assert.Empty(t, rows[1].Description)
}

func TestRawTransaction_UnmarshalRejectsNestedValues(t *testing.T) {
	var row RawTransaction
	err := json.Unmarshal([]byte(`{"quantity": [1, 2]}`), &row)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity")

	assert.Error(t, json.Unmarshal([]byte(`"not an object"`), &row))
}
