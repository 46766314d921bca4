package processors

import (
	"sort"

	"github.com/username/lotfolio/src/models"
)

// DiscoverPositionKeys returns the distinct position keys present in txns, optionally
// restricted to one account. Option keys come first, then stock keys, each sorted by
// canonical identity.
func DiscoverPositionKeys(txns []*models.Transaction, accountID *int64) []models.PositionKey {
	seen := make(map[string]bool)
	var optionKeys, stockKeys []models.PositionKey
	for _, tx := range txns {
		if accountID != nil && tx.AccountID != *accountID {
			continue
		}
		key := models.KeyForTransaction(tx)
		if key == nil || seen[key.String()] {
			continue
		}
		seen[key.String()] = true
		switch key.(type) {
		case models.OptionKey:
			optionKeys = append(optionKeys, key)
		case models.StockKey:
			stockKeys = append(stockKeys, key)
		}
	}
	sortKeys(optionKeys)
	sortKeys(stockKeys)
	return append(optionKeys, stockKeys...)
}

func sortKeys(keys []models.PositionKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
}

// groupTransactionsByKey buckets matchable transactions by canonical key.
func groupTransactionsByKey(txns []*models.Transaction) map[string][]*models.Transaction {
	grouped := make(map[string][]*models.Transaction)
	for _, tx := range txns {
		key := models.KeyForTransaction(tx)
		if key == nil {
			continue
		}
		grouped[key.String()] = append(grouped[key.String()], tx)
	}
	return grouped
}

// sortTransactionsByDate orders by trade date, then id, so ties resolve deterministically.
func sortTransactionsByDate(txns []*models.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		if txns[i].TradeDate.Equal(txns[j].TradeDate) {
			return txns[i].ID < txns[j].ID
		}
		return txns[i].TradeDate.Before(txns[j].TradeDate)
	})
}
