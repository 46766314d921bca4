package processors

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/lotfolio/src/models"
)

func leg(tx *models.Transaction, qty string, legType models.LegType) models.Allocation {
	return models.Allocation{
		TransactionID:     tx.ID,
		AllocatedQuantity: dec(qty),
		LegType:           legType,
		TradeDate:         tx.TradeDate,
		Transaction:       tx,
	}
}

func TestRealizedPL_FullRoundTrip(t *testing.T) {
	open := stockTx(1, 1, "AAPL", models.TypeBuy, "10", "-1000", 1)
	closeTx := stockTx(2, 1, "AAPL", models.TypeSell, "-10", "1500", 2)
	lot := &models.Lot{Legs: []models.Allocation{
		leg(open, "10", models.LegOpen),
		leg(closeTx, "10", models.LegClose),
	}}

	assertDecimal(t, "500", RealizedPL(lot))
}

func TestRealizedPL_ProportionalLeg(t *testing.T) {
	open := stockTx(1, 1, "AAPL", models.TypeBuy, "10", "-1000", 1)
	lot := &models.Lot{Legs: []models.Allocation{leg(open, "5", models.LegOpen)}}

	assertDecimal(t, "-500", RealizedPL(lot))
}

func TestRealizedPL_SkipsMissingValues(t *testing.T) {
	noAmount := stockTx(1, 1, "AAPL", models.TypeBuy, "10", "", 1)
	zeroAmount := stockTx(2, 1, "AAPL", models.TypeBuy, "10", "0", 1)
	noQty := stockTx(3, 1, "AAPL", models.TypeBuy, "", "-100", 1)
	zeroQty := stockTx(4, 1, "AAPL", models.TypeBuy, "0", "-100", 1)
	good := stockTx(5, 1, "AAPL", models.TypeSell, "4", "80", 2)

	lot := &models.Lot{Legs: []models.Allocation{
		leg(noAmount, "10", models.LegOpen),
		leg(zeroAmount, "10", models.LegOpen),
		leg(noQty, "1", models.LegOpen),
		leg(zeroQty, "1", models.LegOpen),
		{TransactionID: 9, AllocatedQuantity: dec("1"), LegType: models.LegOpen},
		leg(good, "1", models.LegClose),
	}}

	assertDecimal(t, "20", RealizedPL(lot))
}

func TestLotRealizedPL_ZeroWithoutCloseLegs(t *testing.T) {
	open := stockTx(1, 1, "AAPL", models.TypeBuy, "10", "-1000", 1)
	lot := &models.Lot{Legs: []models.Allocation{leg(open, "10", models.LegOpen)}}

	assert.True(t, LotRealizedPL(lot).IsZero())
	assertDecimal(t, "-1000", RealizedPL(lot))
}

func closedLot(pl string, closeDay int) *models.Lot {
	return &models.Lot{
		IsClosed:   true,
		RealizedPL: dec(pl),
		Legs: []models.Allocation{
			{LegType: models.LegOpen, TradeDate: day(0)},
			{LegType: models.LegClose, TradeDate: day(closeDay)},
		},
	}
}

func TestPLSummary(t *testing.T) {
	lots := []*models.Lot{
		closedLot("100", 1),
		closedLot("-50", 2),
		closedLot("200", 3),
		{IsClosed: false, RealizedPL: dec("999")},
	}

	s := PLSummary(lots)

	assert.Equal(t, "250", s.TotalPL)
	assert.Equal(t, 2, s.Winners)
	assert.Equal(t, 1, s.Losers)
	assert.InDelta(t, 66.67, s.WinRate, 0.001)
	assert.Equal(t, 3, s.ClosedCount)
	assert.Equal(t, 1, s.OpenCount)
}

func TestPLSummary_BreakEvenAndEmpty(t *testing.T) {
	s := PLSummary([]*models.Lot{closedLot("0", 1)})
	assert.Equal(t, 0, s.Winners)
	assert.Equal(t, 0, s.Losers)
	assert.Equal(t, 0.0, s.WinRate)
	assert.Equal(t, 1, s.ClosedCount)

	empty := PLSummary(nil)
	assert.Equal(t, "0", empty.TotalPL)
	assert.Equal(t, 0.0, empty.WinRate)
}

func TestPLOverTime_GroupsSameDayAndAccumulates(t *testing.T) {
	lots := []*models.Lot{
		closedLot("25", 5),
		closedLot("100", 3),
		closedLot("50", 3),
		{IsClosed: false, RealizedPL: dec("1000"), Legs: []models.Allocation{{TradeDate: day(4)}}},
	}

	points := PLOverTime(lots)

	require.Len(t, points, 2)
	assert.Equal(t, models.PLPoint{Date: "2024-01-04", CumulativePL: "150"}, points[0])
	assert.Equal(t, models.PLPoint{Date: "2024-01-06", CumulativePL: "175"}, points[1])
}

func TestPLOverTime_UsesLastStoredLeg(t *testing.T) {
	lot := closedLot("30", 2)
	lot.Legs = append(lot.Legs, models.Allocation{LegType: models.LegClose, TradeDate: day(9)})

	points := PLOverTime([]*models.Lot{lot})

	require.Len(t, points, 1)
	assert.Equal(t, "2024-01-10", points[0].Date)
	assert.True(t, decimal.RequireFromString(points[0].CumulativePL).Equal(dec("30")))
}
