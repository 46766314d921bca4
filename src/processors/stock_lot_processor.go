package processors

import (
	"github.com/username/lotfolio/src/models"
)

// stockLegSelector implements LegSelector for stock positions.
type stockLegSelector struct{}

// NewStockLegSelector returns the selector for stock keys. Stocks are always
// matched LONG: BUY opens, SELL closes.
func NewStockLegSelector() LegSelector {
	return &stockLegSelector{}
}

func (s *stockLegSelector) Kind() models.InstrumentKind { return models.InstrumentStock }

func (s *stockLegSelector) SelectLegs(txns []*models.Transaction) (LegSelection, bool) {
	purchases, sales := separatePurchasesAndSales(txns)
	if len(purchases) == 0 {
		return LegSelection{}, false
	}
	sortTransactionsByDate(purchases)
	sortTransactionsByDate(sales)
	return LegSelection{Direction: models.DirectionLong, Opens: purchases, Closes: sales}, true
}

func separatePurchasesAndSales(txns []*models.Transaction) (purchases, sales []*models.Transaction) {
	for _, tx := range txns {
		if !tx.IsMatchableStock() {
			continue
		}
		switch tx.Type {
		case models.TypeBuy:
			purchases = append(purchases, tx)
		case models.TypeSell:
			sales = append(sales, tx)
		}
	}
	return purchases, sales
}
