package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/lotfolio/src/models"
)

func txnID(t *testing.T, env *testEnv, externalID string) int64 {
	t.Helper()
	var id int64
	require.NoError(t, env.db.QueryRow(`SELECT id FROM transactions WHERE external_id = ?`, externalID).Scan(&id))
	return id
}

func strPtr(s string) *string { return &s }

func TestTags_CreateRenameAndDuplicates(t *testing.T) {
	env := newTestEnv(t, false)
	svc := NewAnnotationService(env.db)
	ctx := context.Background()

	wheel, err := svc.CreateTag(ctx, "  wheel\x00 ", "")
	require.NoError(t, err)
	assert.Equal(t, "wheel", wheel.Name)
	assert.Equal(t, models.DefaultTagColor, wheel.Color)

	_, err = svc.CreateTag(ctx, "earnings", "warning")
	require.NoError(t, err)

	_, err = svc.CreateTag(ctx, "wheel", "primary")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.CreateTag(ctx, "   ", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateTag(ctx, wheel.ID, models.TagUpdate{Name: strPtr("earnings")})
	assert.ErrorIs(t, err, ErrConflict)

	updated, err := svc.UpdateTag(ctx, wheel.ID, models.TagUpdate{Color: strPtr("success")})
	require.NoError(t, err)
	assert.Equal(t, "wheel", updated.Name)
	assert.Equal(t, "success", updated.Color)

	tags, err := svc.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "earnings", tags[0].Name)

	_, err = svc.UpdateTag(ctx, 999, models.TagUpdate{})
	assert.ErrorIs(t, err, ErrTagNotFound)
	assert.ErrorIs(t, svc.DeleteTag(ctx, 999), ErrTagNotFound)
}

func TestTags_OnTransactions(t *testing.T) {
	env := newTestEnv(t, false)
	svc := NewAnnotationService(env.db)
	ctx := context.Background()
	importRows(t, env, sampleRows())
	buy := txnID(t, env, "t1")

	tag, err := svc.CreateTag(ctx, "core", "")
	require.NoError(t, err)

	added, err := svc.TagTransaction(ctx, buy, tag.ID)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = svc.TagTransaction(ctx, buy, tag.ID)
	require.NoError(t, err)
	assert.False(t, added, "tagging twice is a no-op")

	_, err = svc.TagTransaction(ctx, 999, tag.ID)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	_, err = svc.TagTransaction(ctx, buy, 999)
	assert.ErrorIs(t, err, ErrTagNotFound)

	tags, err := svc.GetTransactionTags(ctx, buy)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "core", tags[0].Name)

	// Deleting the tag removes its links.
	require.NoError(t, svc.DeleteTag(ctx, tag.ID))
	tags, err = svc.GetTransactionTags(ctx, buy)
	require.NoError(t, err)
	assert.Empty(t, tags)
	assert.ErrorIs(t, svc.UntagTransaction(ctx, buy, tag.ID), ErrTagNotFound)
}

func TestComments_Lifecycle(t *testing.T) {
	env := newTestEnv(t, false)
	svc := NewAnnotationService(env.db)
	ctx := context.Background()
	importRows(t, env, sampleRows())
	buy := txnID(t, env, "t1")

	first, err := svc.AddComment(ctx, buy, "entry on breakout")
	require.NoError(t, err)
	second, err := svc.AddComment(ctx, buy, "sized down")
	require.NoError(t, err)

	_, err = svc.AddComment(ctx, buy, " \x07 ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.AddComment(ctx, 999, "orphan")
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	comments, err := svc.GetComments(ctx, buy)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, second.ID, comments[0].ID, "newest first")

	edited, err := svc.UpdateComment(ctx, first.ID, "entry on breakout, stop at 95")
	require.NoError(t, err)
	assert.Equal(t, "entry on breakout, stop at 95", edited.Text)

	require.NoError(t, svc.DeleteComment(ctx, second.ID))
	assert.ErrorIs(t, svc.DeleteComment(ctx, second.ID), ErrCommentNotFound)
	_, err = svc.UpdateComment(ctx, second.ID, "gone")
	assert.ErrorIs(t, err, ErrCommentNotFound)

	_, err = svc.GetComments(ctx, 999)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestTradeGroups_MembershipAndTotal(t *testing.T) {
	env := newTestEnv(t, false)
	svc := NewAnnotationService(env.db)
	ctx := context.Background()
	importRows(t, env, sampleRows())
	open, closing := txnID(t, env, "o1"), txnID(t, env, "o2")

	_, err := svc.CreateTradeGroup(ctx, &models.TradeGroup{Name: "AAPL call", StrategyType: "butterfly_spread"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	g, err := svc.CreateTradeGroup(ctx, &models.TradeGroup{Name: "AAPL call", StrategyType: "covered_call", Description: "Jan"})
	require.NoError(t, err)

	for _, id := range []int64{open, closing} {
		added, err := svc.AddToTradeGroup(ctx, g.ID, id)
		require.NoError(t, err)
		assert.True(t, added)
	}
	added, err := svc.AddToTradeGroup(ctx, g.ID, open)
	require.NoError(t, err)
	assert.False(t, added)
	_, err = svc.AddToTradeGroup(ctx, 999, open)
	assert.ErrorIs(t, err, ErrTradeGroupNotFound)
	_, err = svc.AddToTradeGroup(ctx, g.ID, 999)
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	detail, err := svc.GetTradeGroup(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, detail.Transactions, 2)
	assert.Equal(t, open, detail.Transactions[0].ID)
	assert.Equal(t, "150", detail.TotalAmount)

	groups, err := svc.GetTransactionTradeGroups(ctx, closing)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	// Empty strings clear the optional fields.
	updated, err := svc.UpdateTradeGroup(ctx, g.ID, models.TradeGroupUpdate{StrategyType: strPtr(""), Description: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, "AAPL call", updated.Name)
	assert.Empty(t, updated.StrategyType)
	assert.Empty(t, updated.Description)

	require.NoError(t, svc.RemoveFromTradeGroup(ctx, g.ID, closing))
	assert.ErrorIs(t, svc.RemoveFromTradeGroup(ctx, g.ID, closing), ErrTradeGroupNotFound)

	require.NoError(t, svc.DeleteTradeGroup(ctx, g.ID))
	_, err = svc.GetTradeGroup(ctx, g.ID)
	assert.ErrorIs(t, err, ErrTradeGroupNotFound)

	// The transactions outlive the group.
	groups, err = svc.GetTransactionTradeGroups(ctx, open)
	require.NoError(t, err)
	assert.Empty(t, groups)
}
