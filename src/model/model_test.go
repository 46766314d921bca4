package model

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/lotfolio/src/database"
	"github.com/username/lotfolio/src/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func insertStock(t *testing.T, db *sql.DB, accountID int64, extID, typ, qty, amount, tradeDate string) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		ExternalID: extID,
		AccountID:  accountID,
		Symbol:     "AAPL",
		TradeDate:  date(tradeDate),
		Type:       typ,
		Quantity:   nd(qty),
		Price:      nd("10"),
		Amount:     nd(amount),
		Currency:   "USD",
	}
	inserted, err := InsertTransaction(context.Background(), db, tx)
	require.NoError(t, err)
	require.True(t, inserted)
	return tx
}

func newAccount(t *testing.T, db *sql.DB, extID string) *models.Account {
	t.Helper()
	a, err := GetOrCreateAccount(context.Background(), db, extID, "", "Broker")
	require.NoError(t, err)
	return a
}

func stockLot(accountID int64, open, close *models.Transaction, closedQty string) *models.Lot {
	lot := &models.Lot{
		AccountID:           accountID,
		InstrumentType:      models.InstrumentStock,
		Symbol:              "AAPL",
		Direction:           models.DirectionLong,
		TotalOpenedQuantity: open.TradedQuantity(),
		TotalClosedQuantity: decimal.Zero,
		IsAutoMatched:       true,
		Legs: []models.Allocation{{
			TransactionID:     open.ID,
			AllocatedQuantity: open.TradedQuantity(),
			LegType:           models.LegOpen,
			TradeDate:         open.TradeDate,
			PricePerContract:  open.Price.Decimal,
		}},
	}
	if close != nil {
		qty := decimal.RequireFromString(closedQty)
		lot.TotalClosedQuantity = qty
		lot.Legs = append(lot.Legs, models.Allocation{
			TransactionID:     close.ID,
			AllocatedQuantity: qty,
			LegType:           models.LegClose,
			TradeDate:         close.TradeDate,
			PricePerContract:  close.Price.Decimal,
		})
	}
	lot.SettleStatus()
	return lot
}

func TestGetOrCreateAccount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a, err := GetOrCreateAccount(ctx, db, "U1", "", "IBKR")
	require.NoError(t, err)
	assert.Equal(t, "U1", a.Name)
	assert.False(t, a.CreatedAt.IsZero())

	again, err := GetOrCreateAccount(ctx, db, "U1", "Renamed", "Other")
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID)
	assert.Equal(t, "U1", again.Name)

	_, err = GetAccount(ctx, db, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	accounts, err := ListAccounts(ctx, db)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestInsertTransaction_SkipsDuplicateExternalID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	acct := newAccount(t, db, "U1")

	first := insertStock(t, db, acct.ID, "ext-1", models.TypeBuy, "10", "-100", "2024-01-02")
	assert.NotZero(t, first.ID)

	dup := *first
	dup.ID = 0
	inserted, err := InsertTransaction(ctx, db, &dup)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Zero(t, dup.ID)

	got, err := GetTransaction(ctx, db, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Decimal.Equal(decimal.NewFromInt(10)))
	assert.True(t, got.TradeDate.Equal(date("2024-01-02")))
	assert.Equal(t, "USD", got.Currency)
}

func TestInsertTransaction_OptionRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	acct := newAccount(t, db, "U1")

	exp := date("2024-03-15")
	tx := &models.Transaction{
		ExternalID:       "opt-1",
		AccountID:        acct.ID,
		Symbol:           "AAPL  240315C00150000",
		TradeDate:        date("2024-02-01"),
		Type:             models.TypeSell,
		Quantity:         nd("2"),
		Amount:           nd("300"),
		Currency:         "USD",
		IsOption:         true,
		OptionType:       models.OptionTypeCall,
		StrikePrice:      nd("150.00"),
		ExpirationDate:   &exp,
		UnderlyingSymbol: "AAPL",
		OptionAction:     models.ActionSellToOpen,
	}
	_, err := InsertTransaction(ctx, db, tx)
	require.NoError(t, err)

	got, err := GetTransaction(ctx, db, tx.ID)
	require.NoError(t, err)
	assert.True(t, got.IsMatchableOption())
	require.NotNil(t, got.ExpirationDate)
	assert.True(t, got.ExpirationDate.Equal(exp))
	assert.True(t, got.StrikePrice.Decimal.Equal(decimal.NewFromInt(150)))
	assert.False(t, got.Price.Valid)
}

func TestScopeTransactions_OrderAndScope(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a1 := newAccount(t, db, "U1")
	a2 := newAccount(t, db, "U2")

	later := insertStock(t, db, a1.ID, "a", models.TypeSell, "5", "60", "2024-01-05")
	earlier := insertStock(t, db, a1.ID, "b", models.TypeBuy, "5", "-50", "2024-01-01")
	insertStock(t, db, a2.ID, "c", models.TypeBuy, "5", "-50", "2024-01-01")
	div := &models.Transaction{ExternalID: "d", AccountID: a1.ID, Symbol: "AAPL", TradeDate: date("2024-01-03"), Type: "DIVIDEND", Amount: nd("1"), Currency: "USD"}
	_, err := InsertTransaction(ctx, db, div)
	require.NoError(t, err)

	txns, err := ScopeTransactions(ctx, db, &a1.ID)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, earlier.ID, txns[0].ID)
	assert.Equal(t, later.ID, txns[1].ID)

	all, err := ScopeTransactions(ctx, db, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLots_InsertLoadAndLink(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	acct := newAccount(t, db, "U1")
	buy := insertStock(t, db, acct.ID, "buy", models.TypeBuy, "10", "-1000", "2024-01-01")
	sell := insertStock(t, db, acct.ID, "sell", models.TypeSell, "10", "1500", "2024-01-10")
	loose := insertStock(t, db, acct.ID, "loose", models.TypeSell, "3", "30", "2024-01-11")

	lot := stockLot(acct.ID, buy, sell, "10")
	require.NoError(t, InsertLot(ctx, db, lot))
	assert.NotZero(t, lot.ID)
	assert.NotZero(t, lot.Legs[0].ID)

	got, err := GetLot(ctx, db, lot.ID)
	require.NoError(t, err)
	assert.True(t, got.IsClosed)
	require.Len(t, got.Legs, 2)
	assert.Equal(t, models.LegOpen, got.Legs[0].LegType)
	assert.Equal(t, models.LegClose, got.Legs[1].LegType)
	require.NotNil(t, got.Legs[1].Transaction)
	assert.Equal(t, "sell", got.Legs[1].Transaction.ExternalID)

	linked, err := LinkedTransactionIDs(ctx, db, &acct.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{buy.ID: true, sell.ID: true}, linked)

	unlinked, err := UnlinkedTransactions(ctx, db, models.InstrumentStock, nil)
	require.NoError(t, err)
	require.Len(t, unlinked, 1)
	assert.Equal(t, loose.ID, unlinked[0].ID)

	n, err := CountUnlinkedTransactions(ctx, db, models.InstrumentOption, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	byTxn, err := LotsForTransaction(ctx, db, sell.ID)
	require.NoError(t, err)
	require.Len(t, byTxn, 1)
	assert.Equal(t, lot.ID, byTxn[0].ID)
}

func TestInsertLot_RejectsSecondOpenLeg(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	acct := newAccount(t, db, "U1")
	buy := insertStock(t, db, acct.ID, "buy", models.TypeBuy, "10", "-1000", "2024-01-01")

	require.NoError(t, InsertLot(ctx, db, stockLot(acct.ID, buy, nil, "")))
	assert.Error(t, InsertLot(ctx, db, stockLot(acct.ID, buy, nil, "")))
}

func TestLotUpdatesAndDeletes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	acct := newAccount(t, db, "U1")
	buy := insertStock(t, db, acct.ID, "buy", models.TypeBuy, "10", "-1000", "2024-01-01")
	lot := stockLot(acct.ID, buy, nil, "")
	require.NoError(t, InsertLot(ctx, db, lot))

	require.NoError(t, UpdateLotPL(ctx, db, lot.ID, decimal.RequireFromString("12.5")))
	require.NoError(t, UpdateLotNotes(ctx, db, lot.ID, "rolled"))
	got, err := GetLot(ctx, db, lot.ID)
	require.NoError(t, err)
	assert.True(t, got.RealizedPL.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "rolled", got.Notes)

	assert.ErrorIs(t, UpdateLotNotes(ctx, db, 999, "x"), ErrNotFound)
	assert.ErrorIs(t, DeleteLot(ctx, db, 999), ErrNotFound)

	require.NoError(t, DeleteLot(ctx, db, lot.ID))
	_, err = GetLot(ctx, db, lot.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	linked, err := LinkedTransactionIDs(ctx, db, nil)
	require.NoError(t, err)
	assert.Empty(t, linked)
}

func TestListLots_FilterOrderAndPage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	acct := newAccount(t, db, "U1")

	var ids []int64
	for i, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		buy := insertStock(t, db, acct.ID, "buy"+d, models.TypeBuy, "1", "-10", d)
		lot := stockLot(acct.ID, buy, nil, "")
		lot.Symbol = []string{"AAPL", "MSFT", "AAPL"}[i]
		require.NoError(t, InsertLot(ctx, db, lot))
		ids = append(ids, lot.ID)
	}

	lots, total, err := ListLots(ctx, db, models.LotFilter{Symbol: "AAPL"}, models.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, lots, 2)
	assert.Equal(t, ids[2], lots[0].ID)
	assert.Equal(t, ids[0], lots[1].ID)

	page, total, err := ListLots(ctx, db, models.LotFilter{}, models.Pagination{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	open, err := OpenPositions(ctx, db, &acct.ID)
	require.NoError(t, err)
	assert.Len(t, open, 3)

	symbols, err := UniqueSymbols(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)

	deleted, err := DeleteScopeLots(ctx, db, &acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
}

func TestPLLots_FiltersByCloseDate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	acct := newAccount(t, db, "U1")

	buyA := insertStock(t, db, acct.ID, "buyA", models.TypeBuy, "1", "-10", "2024-01-01")
	sellA := insertStock(t, db, acct.ID, "sellA", models.TypeSell, "1", "20", "2024-02-01")
	buyB := insertStock(t, db, acct.ID, "buyB", models.TypeBuy, "1", "-10", "2024-01-01")
	sellB := insertStock(t, db, acct.ID, "sellB", models.TypeSell, "1", "20", "2024-03-01")
	buyC := insertStock(t, db, acct.ID, "buyC", models.TypeBuy, "1", "-10", "2024-02-05")

	inRange := stockLot(acct.ID, buyA, sellA, "1")
	outOfRange := stockLot(acct.ID, buyB, sellB, "1")
	openOnly := stockLot(acct.ID, buyC, nil, "")
	for _, l := range []*models.Lot{inRange, outOfRange, openOnly} {
		require.NoError(t, InsertLot(ctx, db, l))
	}

	start, end := date("2024-01-15"), date("2024-02-15")
	lots, err := PLLots(ctx, db, models.PLFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, inRange.ID, lots[0].ID)

	all, err := PLLots(ctx, db, models.PLFilter{AccountIDs: []int64{acct.ID}})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := PLLots(ctx, db, models.PLFilter{AccountIDs: []int64{acct.ID + 1}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMatchRuns_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	accountID := int64(7)

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	runs := []*models.MatchRun{
		{ID: "run-1", Mode: models.MatchModeRematch, Result: models.MatchResult{Created: 2, Deleted: 1}, StartedAt: started, FinishedAt: started.Add(time.Second)},
		{ID: "run-2", AccountID: &accountID, Mode: models.MatchModeIncremental, Result: models.MatchResult{Created: 1, OrphanStocks: 3}, StartedAt: started.Add(time.Hour), FinishedAt: started.Add(time.Hour)},
	}
	for _, r := range runs {
		require.NoError(t, InsertMatchRun(ctx, db, r))
	}

	got, err := RecentMatchRuns(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-2", got[0].ID)
	require.NotNil(t, got[0].AccountID)
	assert.Equal(t, accountID, *got[0].AccountID)
	assert.Equal(t, 3, got[0].Result.OrphanStocks)
	assert.Equal(t, "run-2", got[0].Result.RunID)
	assert.Nil(t, got[1].AccountID)
	assert.Equal(t, 1, got[1].Result.Deleted)
	assert.True(t, got[1].StartedAt.Equal(started))
}
