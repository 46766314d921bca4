package processors

import (
	"github.com/shopspring/decimal"

	"github.com/username/lotfolio/src/models"
	"github.com/username/lotfolio/src/utils"
)

// Fill is the quantity one close consumed from one open.
type Fill struct {
	Open     *models.Transaction
	Quantity decimal.Decimal
}

// CloseAllocation groups the fills of one closing transaction, earliest open first.
type CloseAllocation struct {
	Close *models.Transaction
	Fills []Fill
	// Orphaned is the part of the close no open could absorb.
	Orphaned decimal.Decimal
}

// Total is the quantity the close contributed across all its fills.
func (c CloseAllocation) Total() decimal.Decimal {
	total := decimal.Zero
	for _, f := range c.Fills {
		total = total.Add(f.Quantity)
	}
	return total
}

// AllocationPlan is the result of one FIFO pass.
type AllocationPlan struct {
	Opens     []*models.Transaction
	Remaining map[int64]decimal.Decimal // open id -> quantity left after all closes
	Closes    []CloseAllocation
}

// OrphanedQuantity sums the unallocated close quantity across the plan.
func (p AllocationPlan) OrphanedQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, c := range p.Closes {
		total = total.Add(c.Orphaned)
	}
	return total
}

// AllocateFIFO allocates each close, in order, against the earliest opens that still
// have quantity. Both slices must already be ordered by (trade date, id).
func AllocateFIFO(opens, closes []*models.Transaction) AllocationPlan {
	plan := AllocationPlan{
		Opens:     opens,
		Remaining: make(map[int64]decimal.Decimal, len(opens)),
	}
	for _, o := range opens {
		plan.Remaining[o.ID] = o.TradedQuantity()
	}

	// Opens before head are exhausted; remaining only ever decreases.
	head := 0
	for _, c := range closes {
		alloc := CloseAllocation{Close: c}
		need := c.TradedQuantity()
		for need.IsPositive() {
			for head < len(opens) && !plan.Remaining[opens[head].ID].IsPositive() {
				head++
			}
			if head == len(opens) {
				break
			}
			open := opens[head]
			qty := utils.MinDecimal(need, plan.Remaining[open.ID])
			alloc.Fills = append(alloc.Fills, Fill{Open: open, Quantity: qty})
			plan.Remaining[open.ID] = plan.Remaining[open.ID].Sub(qty)
			need = need.Sub(qty)
		}
		alloc.Orphaned = need
		plan.Closes = append(plan.Closes, alloc)
	}
	return plan
}
