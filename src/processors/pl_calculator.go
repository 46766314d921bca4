package processors

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/username/lotfolio/src/models"
	"github.com/username/lotfolio/src/utils"
)

// RealizedPL sums each leg's share of its transaction's cash amount:
// amount * allocated / |quantity|. Legs without a transaction, or whose transaction
// has a null or zero amount or quantity, contribute nothing.
func RealizedPL(lot *models.Lot) decimal.Decimal {
	total := decimal.Zero
	for _, leg := range lot.Legs {
		tx := leg.Transaction
		if tx == nil || !tx.Amount.Valid || tx.Amount.Decimal.IsZero() {
			continue
		}
		qty := tx.TradedQuantity()
		if qty.IsZero() {
			continue
		}
		total = total.Add(tx.Amount.Decimal.Mul(leg.AllocatedQuantity).Div(qty))
	}
	return total
}

// LotRealizedPL is the value stored on a lot: zero until it has a CLOSE leg.
func LotRealizedPL(lot *models.Lot) decimal.Decimal {
	if !lot.HasCloseLeg() {
		return decimal.Zero
	}
	return RealizedPL(lot)
}

// PLSummary aggregates stored P/L. Only closed lots count toward totals; a lot at
// exactly zero is neither a winner nor a loser.
func PLSummary(lots []*models.Lot) models.PLSummary {
	total := decimal.Zero
	var s models.PLSummary
	for _, l := range lots {
		if !l.IsClosed {
			s.OpenCount++
			continue
		}
		s.ClosedCount++
		total = total.Add(l.RealizedPL)
		switch l.RealizedPL.Sign() {
		case 1:
			s.Winners++
		case -1:
			s.Losers++
		}
	}
	if s.ClosedCount > 0 {
		s.WinRate = utils.RoundFloat(float64(s.Winners)/float64(s.ClosedCount)*100, 2)
	}
	s.TotalPL = total.String()
	return s
}

// PLOverTime buckets closed lots by the trade date of their last stored leg and
// returns the running total per date, oldest first. A lot closed in several
// tranches lands entirely on its final date.
func PLOverTime(lots []*models.Lot) []models.PLPoint {
	daily := make(map[string]decimal.Decimal)
	for _, l := range lots {
		if !l.IsClosed || len(l.Legs) == 0 {
			continue
		}
		day := utils.FormatDate(l.Legs[len(l.Legs)-1].TradeDate)
		daily[day] = daily[day].Add(l.RealizedPL)
	}

	dates := make([]string, 0, len(daily))
	for d := range daily {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	points := make([]models.PLPoint, 0, len(dates))
	cumulative := decimal.Zero
	for _, d := range dates {
		cumulative = cumulative.Add(daily[d])
		points = append(points, models.PLPoint{Date: d, CumulativePL: cumulative.String()})
	}
	return points
}
