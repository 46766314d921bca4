package processors

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/username/lotfolio/src/models"
)

// lotFold is the accumulator of the lot builder. With current == nil or closed the
// builder is between lots; the next close or leftover open starts a fresh one.
type lotFold struct {
	key       models.PositionKey
	direction models.Direction
	lots      []*models.Lot
	current   *models.Lot
	attached  map[int64]bool // opens that already have an OPEN leg
}

// BuildLots turns an allocation plan into lots and legs for one key. It does not
// apply the creation guard; see shouldBuildLots.
func BuildLots(key models.PositionKey, direction models.Direction, plan AllocationPlan) []*models.Lot {
	fold := &lotFold{key: key, direction: direction, attached: make(map[int64]bool)}
	for _, c := range plan.Closes {
		fold.applyClose(c)
	}
	for _, o := range plan.Opens {
		fold.applyLeftoverOpen(o, plan.Remaining[o.ID])
	}
	for _, l := range fold.lots {
		sortLegs(l)
		l.SettleStatus()
		l.RealizedPL = LotRealizedPL(l)
	}
	return fold.lots
}

func (f *lotFold) applyClose(c CloseAllocation) {
	if len(c.Fills) == 0 {
		return
	}
	lot := f.currentOrNew()
	for _, fill := range c.Fills {
		if f.attached[fill.Open.ID] {
			continue
		}
		// An attached open counts with its whole size, not just this fill.
		f.addLeg(lot, fill.Open, fill.Open.TradedQuantity(), models.LegOpen)
	}
	f.addLeg(lot, c.Close, c.Total(), models.LegClose)
	if lot.TotalClosedQuantity.GreaterThanOrEqual(lot.TotalOpenedQuantity) {
		lot.IsClosed = true
	}
}

func (f *lotFold) applyLeftoverOpen(open *models.Transaction, remaining decimal.Decimal) {
	if !remaining.IsPositive() || f.attached[open.ID] {
		return
	}
	f.addLeg(f.currentOrNew(), open, remaining, models.LegOpen)
}

func (f *lotFold) currentOrNew() *models.Lot {
	if f.current == nil || f.current.IsClosed {
		f.current = newLot(f.key, f.direction)
		f.lots = append(f.lots, f.current)
	}
	return f.current
}

func (f *lotFold) addLeg(lot *models.Lot, tx *models.Transaction, qty decimal.Decimal, legType models.LegType) {
	price := decimal.Zero
	if tx.Price.Valid {
		price = tx.Price.Decimal
	}
	lot.Legs = append(lot.Legs, models.Allocation{
		TransactionID:     tx.ID,
		AllocatedQuantity: qty,
		LegType:           legType,
		TradeDate:         tx.TradeDate,
		PricePerContract:  price,
		Transaction:       tx,
	})
	if legType == models.LegOpen {
		f.attached[tx.ID] = true
		lot.TotalOpenedQuantity = lot.TotalOpenedQuantity.Add(qty)
	} else {
		lot.TotalClosedQuantity = lot.TotalClosedQuantity.Add(qty)
	}
}

func newLot(key models.PositionKey, direction models.Direction) *models.Lot {
	lot := &models.Lot{
		AccountID:           key.Account(),
		InstrumentType:      key.Kind(),
		Direction:           direction,
		RealizedPL:          decimal.Zero,
		TotalOpenedQuantity: decimal.Zero,
		TotalClosedQuantity: decimal.Zero,
		IsAutoMatched:       true,
	}
	switch k := key.(type) {
	case models.StockKey:
		lot.Symbol = k.Symbol
	case models.OptionKey:
		lot.Symbol = k.UnderlyingSymbol
		lot.OptionType = k.OptionType
		lot.StrikePrice = decimal.NewNullDecimal(k.StrikePrice)
		exp := k.ExpirationDate
		lot.ExpirationDate = &exp
	}
	return lot
}

// sortLegs puts legs in the order they are read back from storage: trade date,
// then insertion.
func sortLegs(l *models.Lot) {
	sort.SliceStable(l.Legs, func(i, j int) bool {
		return l.Legs[i].TradeDate.Before(l.Legs[j].TradeDate)
	})
}

// shouldBuildLots is the creation guard: a key gets lots only when some close was
// allocated a nonzero quantity or when at least two opens can be grouped.
func shouldBuildLots(plan AllocationPlan) bool {
	if len(plan.Opens) >= 2 {
		return true
	}
	for _, c := range plan.Closes {
		if c.Total().IsPositive() {
			return true
		}
	}
	return false
}
