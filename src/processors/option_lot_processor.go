package processors

import (
	"github.com/username/lotfolio/src/models"
)

// optionLegSelector implements LegSelector for option contracts.
type optionLegSelector struct{}

// NewOptionLegSelector returns the selector for option keys.
func NewOptionLegSelector() LegSelector {
	return &optionLegSelector{}
}

func (s *optionLegSelector) Kind() models.InstrumentKind { return models.InstrumentOption }

// SelectLegs takes every opening trade of the contract in date order. The first one
// fixes the direction: BUY_TO_OPEN is LONG and closes with SELL_TO_CLOSE, anything
// else is SHORT and closes with BUY_TO_CLOSE. A transaction without an action never
// qualifies as an open, so a contract with no usable open yields ok == false.
func (s *optionLegSelector) SelectLegs(txns []*models.Transaction) (LegSelection, bool) {
	opens := filterOptionTransactions(txns, models.ActionBuyToOpen, models.ActionSellToOpen)
	if len(opens) == 0 {
		return LegSelection{}, false
	}
	sortTransactionsByDate(opens)

	direction, closeAction := determineOptionDirection(opens[0].OptionAction)

	closes := filterOptionTransactions(txns, closeAction)
	sortTransactionsByDate(closes)
	return LegSelection{Direction: direction, Opens: opens, Closes: closes}, true
}

func determineOptionDirection(openAction string) (models.Direction, string) {
	if openAction == models.ActionBuyToOpen {
		return models.DirectionLong, models.ActionSellToClose
	}
	return models.DirectionShort, models.ActionBuyToClose
}

func filterOptionTransactions(txns []*models.Transaction, actions ...string) []*models.Transaction {
	var out []*models.Transaction
	for _, tx := range txns {
		if !tx.IsMatchableOption() {
			continue
		}
		for _, a := range actions {
			if tx.OptionAction == a {
				out = append(out, tx)
				break
			}
		}
	}
	return out
}
