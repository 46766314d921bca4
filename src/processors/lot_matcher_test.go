package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/lotfolio/src/models"
)

func matchStock(txns []*models.Transaction, linked map[int64]bool) MatchOutcome {
	return NewLotMatcher().Match(models.StockKey{AccountID: 1, Symbol: "AAPL"}, txns, linked)
}

func TestMatch_FIFOOrderAcrossTwoOpens(t *testing.T) {
	txns := []*models.Transaction{
		stockTx(3, 1, "AAPL", models.TypeSell, "-5", "600", 3),
		stockTx(2, 1, "AAPL", models.TypeBuy, "2", "-200", 2),
		stockTx(1, 1, "AAPL", models.TypeBuy, "3", "-300", 1),
	}

	out := matchStock(txns, nil)

	require.Len(t, out.Lots, 1)
	lot := out.Lots[0]
	assert.Equal(t, []legView{
		{1, models.LegOpen, "3"},
		{2, models.LegOpen, "2"},
		{3, models.LegClose, "5"},
	}, legsOf(lot))
	assert.True(t, lot.IsClosed)
	assert.Equal(t, models.DirectionLong, lot.Direction)
	assert.Equal(t, models.InstrumentStock, lot.InstrumentType)
	assert.True(t, lot.IsAutoMatched)
	assertDecimal(t, "100", lot.RealizedPL)
	assertLotInvariants(t, out.Lots)
}

func TestMatch_PartialCloseAttachesWholeOpen(t *testing.T) {
	txns := []*models.Transaction{
		stockTx(1, 1, "AAPL", models.TypeBuy, "3", "-300", 1),
		stockTx(2, 1, "AAPL", models.TypeBuy, "2", "-200", 2),
		stockTx(3, 1, "AAPL", models.TypeSell, "2", "240", 3),
	}

	out := matchStock(txns, nil)

	require.Len(t, out.Lots, 1)
	lot := out.Lots[0]
	// O1 is only partly consumed but counts in full; O2 is never touched and joins as leftover.
	assert.Equal(t, []legView{
		{1, models.LegOpen, "3"},
		{2, models.LegOpen, "2"},
		{3, models.LegClose, "2"},
	}, legsOf(lot))
	assert.False(t, lot.IsClosed)
	assertDecimal(t, "5", lot.TotalOpenedQuantity)
	assertDecimal(t, "2", lot.TotalClosedQuantity)
	assertLotInvariants(t, out.Lots)
}

func TestMatch_ClosedLotStartsFreshLot(t *testing.T) {
	txns := []*models.Transaction{
		stockTx(1, 1, "AAPL", models.TypeBuy, "5", "-500", 1),
		stockTx(2, 1, "AAPL", models.TypeSell, "2", "220", 2),
		stockTx(3, 1, "AAPL", models.TypeSell, "3", "330", 3),
		stockTx(4, 1, "AAPL", models.TypeBuy, "4", "-400", 4),
		stockTx(5, 1, "AAPL", models.TypeSell, "4", "380", 5),
		stockTx(6, 1, "AAPL", models.TypeBuy, "1", "-100", 6),
		stockTx(7, 1, "AAPL", models.TypeBuy, "1", "-100", 7),
	}

	out := matchStock(txns, nil)

	require.Len(t, out.Lots, 3)
	assert.Equal(t, []legView{
		{1, models.LegOpen, "5"},
		{2, models.LegClose, "2"},
		{3, models.LegClose, "3"},
	}, legsOf(out.Lots[0]))
	assert.True(t, out.Lots[0].IsClosed)
	assertDecimal(t, "50", out.Lots[0].RealizedPL)

	assert.Equal(t, []legView{
		{4, models.LegOpen, "4"},
		{5, models.LegClose, "4"},
	}, legsOf(out.Lots[1]))
	assertDecimal(t, "-20", out.Lots[1].RealizedPL)

	assert.Equal(t, []legView{
		{6, models.LegOpen, "1"},
		{7, models.LegOpen, "1"},
	}, legsOf(out.Lots[2]))
	assert.False(t, out.Lots[2].IsClosed)
	assert.True(t, out.Lots[2].RealizedPL.IsZero())
	assertLotInvariants(t, out.Lots)
}

func TestMatch_MultiTrancheClose(t *testing.T) {
	txns := []*models.Transaction{
		stockTx(1, 1, "AAPL", models.TypeBuy, "3", "-300", 1),
		stockTx(2, 1, "AAPL", models.TypeBuy, "3", "-300", 2),
		stockTx(3, 1, "AAPL", models.TypeSell, "4", "480", 3),
		stockTx(4, 1, "AAPL", models.TypeSell, "2", "220", 4),
	}

	out := matchStock(txns, nil)

	require.Len(t, out.Lots, 1)
	lot := out.Lots[0]
	assert.Equal(t, []legView{
		{1, models.LegOpen, "3"},
		{2, models.LegOpen, "3"},
		{3, models.LegClose, "4"},
		{4, models.LegClose, "2"},
	}, legsOf(lot))
	assert.True(t, lot.IsClosed)
	assertDecimal(t, "100", lot.RealizedPL)
	assertLotInvariants(t, out.Lots)
}

func TestMatch_SingleOpenCreatesNoLot(t *testing.T) {
	out := matchStock([]*models.Transaction{
		stockTx(1, 1, "AAPL", models.TypeBuy, "10", "-1000", 1),
	}, nil)

	assert.Empty(t, out.Lots)
	assert.False(t, out.Skipped)
}

func TestMatch_SingleOpenWithUnallocatableCloseCreatesNoLot(t *testing.T) {
	// The only open has no size, so the close cannot be allocated.
	out := matchStock([]*models.Transaction{
		stockTx(1, 1, "AAPL", models.TypeBuy, "", "-1000", 1),
		stockTx(2, 1, "AAPL", models.TypeSell, "10", "1100", 2),
	}, nil)

	assert.Empty(t, out.Lots)
	assert.Equal(t, 1, out.OrphanedCloses)
	assertDecimal(t, "10", out.OrphanedQuantity)
}

func TestMatch_TwoOpensGroupedIntoOpenLot(t *testing.T) {
	out := matchStock([]*models.Transaction{
		stockTx(1, 1, "AAPL", models.TypeBuy, "10", "-1000", 1),
		stockTx(2, 1, "AAPL", models.TypeBuy, "5", "-520", 2),
	}, nil)

	require.Len(t, out.Lots, 1)
	assert.False(t, out.Lots[0].IsClosed)
	assertDecimal(t, "15", out.Lots[0].TotalOpenedQuantity)
	assert.True(t, out.Lots[0].RealizedPL.IsZero())
}

func TestMatch_OnlyClosesIsSkipped(t *testing.T) {
	out := matchStock([]*models.Transaction{
		stockTx(1, 1, "AAPL", models.TypeSell, "10", "1000", 1),
	}, nil)

	assert.True(t, out.Skipped)
	assert.Empty(t, out.Lots)
}

func TestMatch_OrphanedCloseExcessIsDropped(t *testing.T) {
	out := matchStock([]*models.Transaction{
		stockTx(1, 1, "AAPL", models.TypeBuy, "3", "-300", 1),
		stockTx(2, 1, "AAPL", models.TypeSell, "5", "500", 2),
	}, nil)

	require.Len(t, out.Lots, 1)
	assert.Equal(t, []legView{
		{1, models.LegOpen, "3"},
		{2, models.LegClose, "3"},
	}, legsOf(out.Lots[0]))
	assert.True(t, out.Lots[0].IsClosed)
	assert.Equal(t, 1, out.OrphanedCloses)
	assertDecimal(t, "2", out.OrphanedQuantity)
	// The close contributes only the 3 of 5 it actually closed.
	assertDecimal(t, "0", out.Lots[0].RealizedPL)
}

func TestMatch_RunningTwiceCreatesNothingNew(t *testing.T) {
	txns := []*models.Transaction{
		stockTx(1, 1, "AAPL", models.TypeBuy, "5", "-500", 1),
		stockTx(2, 1, "AAPL", models.TypeSell, "2", "220", 2),
		stockTx(3, 1, "AAPL", models.TypeBuy, "1", "-90", 3),
	}

	first := matchStock(txns, nil)
	require.Len(t, first.Lots, 1)

	second := matchStock(txns, linkedFrom(first.Lots))
	assert.Empty(t, second.Lots)
}

func TestMatch_PicksUpNewTransactionsOnly(t *testing.T) {
	txns := []*models.Transaction{
		stockTx(1, 1, "AAPL", models.TypeBuy, "5", "-500", 1),
		stockTx(2, 1, "AAPL", models.TypeSell, "5", "550", 2),
	}
	first := matchStock(txns, nil)
	require.Len(t, first.Lots, 1)

	txns = append(txns,
		stockTx(3, 1, "AAPL", models.TypeBuy, "2", "-180", 3),
		stockTx(4, 1, "AAPL", models.TypeSell, "2", "200", 4),
	)
	second := matchStock(txns, linkedFrom(first.Lots))

	require.Len(t, second.Lots, 1)
	assert.Equal(t, []legView{
		{3, models.LegOpen, "2"},
		{4, models.LegClose, "2"},
	}, legsOf(second.Lots[0]))
}

func TestMatch_NewCloseAgainstFullyLinkedOpensStaysOrphaned(t *testing.T) {
	txns := []*models.Transaction{
		stockTx(1, 1, "AAPL", models.TypeBuy, "5", "-500", 1),
		stockTx(2, 1, "AAPL", models.TypeSell, "2", "220", 2),
	}
	first := matchStock(txns, nil)
	require.Len(t, first.Lots, 1)
	require.False(t, first.Lots[0].IsClosed)

	txns = append(txns, stockTx(3, 1, "AAPL", models.TypeSell, "3", "330", 3))
	second := matchStock(txns, linkedFrom(first.Lots))

	assert.Empty(t, second.Lots)
	assert.Equal(t, 1, second.OrphanedCloses)
}

func TestMatch_ShortOption(t *testing.T) {
	txns := []*models.Transaction{
		optionTx(1, 1, "SPY", models.OptionTypePut, "400", 30, models.ActionSellToOpen, "-2", "300", 1),
		optionTx(2, 1, "SPY", models.OptionTypePut, "400", 30, models.ActionBuyToClose, "2", "-100", 5),
		// Ignored: a SELL_TO_CLOSE never closes a short lot.
		optionTx(3, 1, "SPY", models.OptionTypePut, "400", 30, models.ActionSellToClose, "-1", "40", 6),
	}
	key := models.KeyForTransaction(txns[0])

	out := NewLotMatcher().Match(key, txns, nil)

	require.Len(t, out.Lots, 1)
	lot := out.Lots[0]
	assert.Equal(t, models.DirectionShort, lot.Direction)
	assert.Equal(t, models.InstrumentOption, lot.InstrumentType)
	assert.Equal(t, "SPY", lot.Symbol)
	assert.Equal(t, models.OptionTypePut, lot.OptionType)
	assertDecimal(t, "400", lot.StrikePrice.Decimal)
	require.NotNil(t, lot.ExpirationDate)
	assert.True(t, day(30).Equal(*lot.ExpirationDate))
	assert.True(t, lot.IsClosed)
	assertDecimal(t, "200", lot.RealizedPL)
	assert.Equal(t, []legView{
		{1, models.LegOpen, "2"},
		{2, models.LegClose, "2"},
	}, legsOf(lot))
}

func TestMatch_LongOption(t *testing.T) {
	txns := []*models.Transaction{
		optionTx(1, 1, "AAPL", models.OptionTypeCall, "150", 60, models.ActionBuyToOpen, "1", "-250", 1),
		optionTx(2, 1, "AAPL", models.OptionTypeCall, "150", 60, models.ActionBuyToClose, "1", "-10", 2),
		optionTx(3, 1, "AAPL", models.OptionTypeCall, "150", 60, models.ActionSellToClose, "-1", "400", 3),
	}
	key := models.KeyForTransaction(txns[0])

	out := NewLotMatcher().Match(key, txns, nil)

	require.Len(t, out.Lots, 1)
	assert.Equal(t, models.DirectionLong, out.Lots[0].Direction)
	assert.Equal(t, []legView{
		{1, models.LegOpen, "1"},
		{3, models.LegClose, "1"},
	}, legsOf(out.Lots[0]))
	assertDecimal(t, "150", out.Lots[0].RealizedPL)
	assert.Equal(t, "AAPL $150.00 03/01 C", out.Lots[0].ContractDisplay())
}

func TestMatch_DirectionFromFirstOpenEvenWhenLinked(t *testing.T) {
	txns := []*models.Transaction{
		optionTx(1, 1, "QQQ", models.OptionTypeCall, "300", 40, models.ActionSellToOpen, "-1", "100", 1),
		optionTx(2, 1, "QQQ", models.OptionTypeCall, "300", 40, models.ActionBuyToOpen, "1", "-120", 2),
		optionTx(3, 1, "QQQ", models.OptionTypeCall, "300", 40, models.ActionBuyToClose, "1", "-30", 3),
	}
	key := models.KeyForTransaction(txns[0])

	out := NewLotMatcher().Match(key, txns, map[int64]bool{1: true})

	require.Len(t, out.Lots, 1)
	assert.Equal(t, models.DirectionShort, out.Lots[0].Direction)
	assert.Equal(t, []legView{
		{2, models.LegOpen, "1"},
		{3, models.LegClose, "1"},
	}, legsOf(out.Lots[0]))
}

func TestMatchTransactions_IsolatesAccountsAndContracts(t *testing.T) {
	txns := []*models.Transaction{
		stockTx(1, 1, "AAPL", models.TypeBuy, "5", "-500", 1),
		stockTx(2, 2, "AAPL", models.TypeBuy, "5", "-450", 0),
		stockTx(4, 1, "AAPL", models.TypeSell, "5", "550", 4),
		optionTx(5, 1, "AAPL", models.OptionTypeCall, "150", 30, models.ActionBuyToOpen, "1", "-100", 1),
		optionTx(6, 1, "AAPL", models.OptionTypeCall, "155", 30, models.ActionSellToClose, "-1", "200", 2),
		optionTx(7, 1, "AAPL", models.OptionTypeCall, "150", 31, models.ActionSellToClose, "-1", "200", 2),
	}

	batch := NewLotMatcher().MatchTransactions(txns, nil, nil)

	assert.Equal(t, 3, batch.OptionsProcessed)
	assert.Equal(t, 2, batch.StocksProcessed)
	lots := batch.Lots()
	require.Len(t, lots, 1)
	assert.Equal(t, int64(1), lots[0].AccountID)
	assert.Equal(t, []legView{
		{1, models.LegOpen, "5"},
		{4, models.LegClose, "5"},
	}, legsOf(lots[0]))
	assert.Equal(t, 1, batch.Created)
	assertLotInvariants(t, lots)
	for _, l := range lots {
		for _, leg := range l.Legs {
			assert.Equal(t, l.AccountID, leg.Transaction.AccountID)
		}
	}
}

func TestMatchTransactions_AccountScope(t *testing.T) {
	txns := []*models.Transaction{
		stockTx(1, 1, "AAPL", models.TypeBuy, "5", "-500", 1),
		stockTx(2, 1, "AAPL", models.TypeSell, "5", "550", 2),
		stockTx(3, 2, "MSFT", models.TypeBuy, "5", "-500", 1),
		stockTx(4, 2, "MSFT", models.TypeSell, "5", "550", 2),
	}
	account := int64(2)

	batch := NewLotMatcher().MatchTransactions(txns, &account, nil)

	require.Len(t, batch.Lots(), 1)
	assert.Equal(t, "MSFT", batch.Lots()[0].Symbol)
	assert.Equal(t, 1, batch.StocksProcessed)
}
