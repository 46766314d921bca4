package processors

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/username/lotfolio/src/models"
)

var baseDay = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return baseDay.AddDate(0, 0, n) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nullDec(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(dec(s))
}

func stockTx(id, account int64, symbol, typ, qty, amount string, d int) *models.Transaction {
	return &models.Transaction{
		ID:        id,
		AccountID: account,
		Symbol:    symbol,
		Type:      typ,
		Quantity:  nullDec(qty),
		Price:     nullDec("10"),
		Amount:    nullDec(amount),
		TradeDate: day(d),
		Currency:  "USD",
	}
}

func optionTx(id, account int64, underlying, optType, strike string, expDay int, action, qty, amount string, d int) *models.Transaction {
	exp := day(expDay)
	typ := models.TypeBuy
	if action == models.ActionSellToOpen || action == models.ActionSellToClose {
		typ = models.TypeSell
	}
	return &models.Transaction{
		ID:               id,
		AccountID:        account,
		Symbol:           underlying + "_OPT",
		Type:             typ,
		Quantity:         nullDec(qty),
		Price:            nullDec("1.5"),
		Amount:           nullDec(amount),
		TradeDate:        day(d),
		Currency:         "USD",
		IsOption:         true,
		OptionType:       optType,
		StrikePrice:      nullDec(strike),
		ExpirationDate:   &exp,
		UnderlyingSymbol: underlying,
		OptionAction:     action,
	}
}

type legView struct {
	TxID int64
	Type models.LegType
	Qty  string
}

func legsOf(l *models.Lot) []legView {
	var out []legView
	for _, leg := range l.Legs {
		out = append(out, legView{TxID: leg.TransactionID, Type: leg.LegType, Qty: leg.AllocatedQuantity.String()})
	}
	return out
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

// assertLotInvariants checks the quantity invariants every lot must satisfy.
func assertLotInvariants(t *testing.T, lots []*models.Lot) {
	t.Helper()
	for _, l := range lots {
		assert.True(t, l.TotalClosedQuantity.LessThanOrEqual(l.TotalOpenedQuantity),
			"closed %s exceeds opened %s", l.TotalClosedQuantity, l.TotalOpenedQuantity)
		expectClosed := l.TotalOpenedQuantity.IsPositive() && l.TotalClosedQuantity.Equal(l.TotalOpenedQuantity)
		assert.Equal(t, expectClosed, l.IsClosed)

		opened, closed := decimal.Zero, decimal.Zero
		for _, leg := range l.Legs {
			assert.True(t, leg.AllocatedQuantity.IsPositive())
			if leg.LegType == models.LegOpen {
				opened = opened.Add(leg.AllocatedQuantity)
			} else {
				closed = closed.Add(leg.AllocatedQuantity)
			}
		}
		assert.True(t, opened.Equal(l.TotalOpenedQuantity))
		assert.True(t, closed.Equal(l.TotalClosedQuantity))
	}
}

func linkedFrom(lots []*models.Lot) map[int64]bool {
	linked := make(map[int64]bool)
	for _, l := range lots {
		for _, leg := range l.Legs {
			linked[leg.TransactionID] = true
		}
	}
	return linked
}
