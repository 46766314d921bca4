package processors

import (
	"github.com/shopspring/decimal"

	"github.com/username/lotfolio/src/logger"
	"github.com/username/lotfolio/src/models"
)

// MatchOutcome is the result of matching one position key.
type MatchOutcome struct {
	Key  models.PositionKey
	Lots []*models.Lot
	// Skipped is set when the key had no usable opening transaction.
	Skipped bool
	// OrphanedCloses counts closes left (partly) unallocated; OrphanedQuantity is their total.
	OrphanedCloses   int
	OrphanedQuantity decimal.Decimal
}

// BatchOutcome is the result of matching every key of a snapshot.
type BatchOutcome struct {
	Outcomes         []MatchOutcome
	OptionsProcessed int
	StocksProcessed  int
	Created          int
	OrphanedCloses   int
}

// Lots flattens the lots of every outcome in key order.
func (b BatchOutcome) Lots() []*models.Lot {
	var lots []*models.Lot
	for _, o := range b.Outcomes {
		lots = append(lots, o.Lots...)
	}
	return lots
}

// LotMatcher implements Matcher by dispatching each key to the selector for its kind.
type LotMatcher struct {
	selectors map[models.InstrumentKind]LegSelector
}

// NewLotMatcher creates a matcher with the given selectors, or the stock and option
// selectors when none are passed.
func NewLotMatcher(selectors ...LegSelector) *LotMatcher {
	if len(selectors) == 0 {
		selectors = []LegSelector{NewOptionLegSelector(), NewStockLegSelector()}
	}
	m := &LotMatcher{selectors: make(map[models.InstrumentKind]LegSelector, len(selectors))}
	for _, s := range selectors {
		m.selectors[s.Kind()] = s
	}
	return m
}

// Match builds the new lots for one key from txns. Transactions in linked already
// belong to a lot and are left alone; the returned lots are not persisted.
func (m *LotMatcher) Match(key models.PositionKey, txns []*models.Transaction, linked map[int64]bool) MatchOutcome {
	out := MatchOutcome{Key: key, OrphanedQuantity: decimal.Zero}

	selector, ok := m.selectors[key.Kind()]
	if !ok {
		out.Skipped = true
		return out
	}
	var keyTxns []*models.Transaction
	for _, tx := range txns {
		if key.Matches(tx) {
			keyTxns = append(keyTxns, tx)
		}
	}

	// Direction comes from the first open ever seen for the key, linked or not.
	sel, ok := selector.SelectLegs(keyTxns)
	if !ok {
		out.Skipped = true
		return out
	}
	opens := excludeLinked(sel.Opens, linked)
	closes := excludeLinked(sel.Closes, linked)

	plan := AllocateFIFO(opens, closes)
	for _, c := range plan.Closes {
		if c.Orphaned.IsPositive() {
			out.OrphanedCloses++
			out.OrphanedQuantity = out.OrphanedQuantity.Add(c.Orphaned)
		}
	}
	if out.OrphanedCloses > 0 {
		logger.L.Warn("Close quantity left unallocated", "key", key.String(),
			"closes", out.OrphanedCloses, "quantity", out.OrphanedQuantity.String())
	}

	if len(opens) == 0 || !shouldBuildLots(plan) {
		return out
	}
	out.Lots = BuildLots(key, sel.Direction, plan)
	return out
}

// MatchTransactions discovers every key in txns (restricted to accountID when set)
// and matches each one.
func (m *LotMatcher) MatchTransactions(txns []*models.Transaction, accountID *int64, linked map[int64]bool) BatchOutcome {
	var batch BatchOutcome
	grouped := groupTransactionsByKey(txns)
	for _, key := range DiscoverPositionKeys(txns, accountID) {
		outcome := m.Match(key, grouped[key.String()], linked)
		switch key.Kind() {
		case models.InstrumentOption:
			batch.OptionsProcessed++
		case models.InstrumentStock:
			batch.StocksProcessed++
		}
		batch.Created += len(outcome.Lots)
		batch.OrphanedCloses += outcome.OrphanedCloses
		batch.Outcomes = append(batch.Outcomes, outcome)
	}
	return batch
}

func excludeLinked(txns []*models.Transaction, linked map[int64]bool) []*models.Transaction {
	if len(linked) == 0 {
		return txns
	}
	out := make([]*models.Transaction, 0, len(txns))
	for _, tx := range txns {
		if !linked[tx.ID] {
			out = append(out, tx)
		}
	}
	return out
}
