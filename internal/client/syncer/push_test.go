package syncer

import (
	"testing"

	"github.com/cardkeeper/cardkeeper/internal/client/models"
	"github.com/cardkeeper/cardkeeper/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPush_SortsMutationsIntoBuckets(t *testing.T) {
	decks := []models.Deck{
		{Meta: models.Meta{TempID: "d-new", New: true, UpdatedAt: t1}, Name: "pending"},
		{Meta: models.Meta{ServerID: 7, Dirty: true, UpdatedAt: t1}, Name: "edited"},
		{Meta: models.Meta{ServerID: 8, Deleted: true, Dirty: true, DeletedAt: &t1, UpdatedAt: t1}, Name: "removed"},
		{Meta: models.Meta{ServerID: 9, UpdatedAt: t1}, Name: "clean"},
	}
	cards := []models.Card{
		{Meta: models.Meta{TempID: "c-ready", New: true, UpdatedAt: t1}, DeckID: 7},
		{Meta: models.Meta{TempID: "c-held", New: true, UpdatedAt: t1}, DeckTempID: "d-new"},
		{Meta: models.Meta{ServerID: 3, Dirty: true, UpdatedAt: t1}, DeckID: 7},
	}

	req := BuildPush(t2, decks, cards)

	require.Len(t, req.NewDecks, 1)
	assert.Equal(t, "d-new", req.NewDecks[0].ClientRef)

	require.Len(t, req.UpdatedDecks, 2)
	assert.False(t, req.UpdatedDecks[0].IsDeleted)
	assert.True(t, req.UpdatedDecks[1].IsDeleted)

	require.Len(t, req.NewCards, 1, "card in an unsynced deck is held back")
	assert.Equal(t, "c-ready", req.NewCards[0].ClientRef)

	require.Len(t, req.UpdatedCards, 1)
	assert.Equal(t, int64(3), req.UpdatedCards[0].ID)
	assert.Equal(t, t2, req.ClientTimestamp)
}

func TestBuildPush_EmptyWhenNothingPending(t *testing.T) {
	decks := []models.Deck{{Meta: models.Meta{ServerID: 7, UpdatedAt: t1}, Name: "clean"}}

	req := BuildPush(t2, decks, nil)

	assert.True(t, req.Empty())
}

func TestApplyPush_IdenticalNamesMapToDistinctIDs(t *testing.T) {
	// two decks with the same name pending at once must each adopt the id
	// created from their own token, never the other one's
	decks := []models.Deck{
		{Meta: models.Meta{TempID: "ref-a", New: true, UpdatedAt: t1}, Name: "Spanish"},
		{Meta: models.Meta{TempID: "ref-b", New: true, UpdatedAt: t1}, Name: "Spanish"},
	}
	resp := &wire.PushResponse{CreatedDecks: []wire.Deck{
		{ID: 41, ClientRef: "ref-b", Name: "Spanish", CreatedAt: t2, UpdatedAt: t2},
		{ID: 42, ClientRef: "ref-a", Name: "Spanish", CreatedAt: t2, UpdatedAt: t2},
	}}

	out, _, conflicts := ApplyPush(resp, decks, nil)

	require.Empty(t, conflicts)
	require.Len(t, out, 2)
	assert.Equal(t, int64(42), out[0].ServerID)
	assert.Equal(t, int64(41), out[1].ServerID)
	for _, d := range out {
		assert.False(t, d.New)
		assert.False(t, d.Dirty)
	}
	assert.Equal(t, "ref-a", out[0].TempID, "temp id survives as a local alias")
}

func TestApplyPush_RewritesCardDeckReferences(t *testing.T) {
	decks := []models.Deck{{Meta: models.Meta{TempID: "d-tmp", New: true, UpdatedAt: t1}, Name: "Spanish"}}
	cards := []models.Card{{Meta: models.Meta{TempID: "c-tmp", New: true, UpdatedAt: t1}, DeckTempID: "d-tmp"}}

	resp := &wire.PushResponse{CreatedDecks: []wire.Deck{
		{ID: 42, ClientRef: "d-tmp", Name: "Spanish", CreatedAt: t2, UpdatedAt: t2},
	}}

	outDecks, outCards, _ := ApplyPush(resp, decks, cards)

	require.Len(t, outDecks, 1)
	assert.Equal(t, int64(42), outDecks[0].ServerID)

	// the held-back card is still pending but now references the real deck id
	require.Len(t, outCards, 1)
	assert.True(t, outCards[0].New)
	assert.Equal(t, int64(42), outCards[0].DeckID)
	assert.Empty(t, outCards[0].DeckTempID)
	assert.True(t, outCards[0].DeckResolved())
}

func TestApplyPush_UnacknowledgedCreationStaysPending(t *testing.T) {
	decks := []models.Deck{{Meta: models.Meta{TempID: "d-tmp", New: true, UpdatedAt: t1}, Name: "Spanish"}}

	out, _, _ := ApplyPush(&wire.PushResponse{}, decks, nil)

	require.Len(t, out, 1)
	assert.True(t, out[0].New)
	assert.Equal(t, "d-tmp", out[0].TempID)
}

func TestApplyPush_AcknowledgedUpdateClearsDirty(t *testing.T) {
	decks := []models.Deck{{Meta: models.Meta{ServerID: 7, Dirty: true, UpdatedAt: t1}, Name: "edited"}}

	out, _, _ := ApplyPush(&wire.PushResponse{}, decks, nil)

	require.Len(t, out, 1)
	assert.False(t, out[0].Dirty)
	assert.Equal(t, "edited", out[0].Name)
}

func TestApplyPush_ConflictedRecordStaysDirty(t *testing.T) {
	decks := []models.Deck{
		{Meta: models.Meta{ServerID: 7, Dirty: true, UpdatedAt: t1}, Name: "mine"},
		{Meta: models.Meta{ServerID: 8, Dirty: true, UpdatedAt: t1}, Name: "fine"},
	}
	resp := &wire.PushResponse{Conflicts: []wire.Conflict{
		{Type: wire.ConflictDeck, ID: 7, Message: "newer version on server"},
	}}

	out, _, conflicts := ApplyPush(resp, decks, nil)

	require.Len(t, conflicts, 1)
	require.Len(t, out, 2)
	assert.True(t, out[0].Dirty, "conflicted record keeps pending state")
	assert.False(t, out[1].Dirty, "unrelated record is acknowledged")
}

func TestApplyPush_AcknowledgedDeletionLeavesActiveSet(t *testing.T) {
	decks := []models.Deck{
		{Meta: models.Meta{ServerID: 7, Deleted: true, Dirty: true, DeletedAt: &t1, UpdatedAt: t1}, Name: "doomed"},
		{Meta: models.Meta{ServerID: 8, UpdatedAt: t1}, Name: "keep"},
	}

	out, _, _ := ApplyPush(&wire.PushResponse{}, decks, nil)

	require.Len(t, out, 1)
	assert.Equal(t, int64(8), out[0].ServerID)
}

func TestApplyPush_ConflictedDeletionKeepsTombstone(t *testing.T) {
	decks := []models.Deck{
		{Meta: models.Meta{ServerID: 7, Deleted: true, Dirty: true, DeletedAt: &t1, UpdatedAt: t1}, Name: "doomed"},
	}
	resp := &wire.PushResponse{Conflicts: []wire.Conflict{
		{Type: wire.ConflictDeck, ID: 7, Message: "deck was edited elsewhere"},
	}}

	out, _, _ := ApplyPush(resp, decks, nil)

	require.Len(t, out, 1)
	assert.True(t, out[0].Deleted)
}

func TestApplyPush_CreatedCardAdoptsServerRecord(t *testing.T) {
	cards := []models.Card{
		{Meta: models.Meta{TempID: "c-1", New: true, UpdatedAt: t1}, DeckID: 7, RawClozeText: "q"},
	}
	resp := &wire.PushResponse{CreatedCards: []wire.Card{
		{ID: 55, ClientRef: "c-1", DeckID: 7, RawClozeText: "q", CreatedAt: t2, UpdatedAt: t2},
	}}

	_, out, _ := ApplyPush(resp, nil, cards)

	require.Len(t, out, 1)
	assert.Equal(t, int64(55), out[0].ServerID)
	assert.False(t, out[0].New)
	assert.Equal(t, "c-1", out[0].TempID)
}
