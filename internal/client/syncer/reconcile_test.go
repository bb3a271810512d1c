package syncer

import (
	"testing"
	"time"

	"github.com/cardkeeper/cardkeeper/internal/client/models"
	"github.com/cardkeeper/cardkeeper/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t1 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	t2 = time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
)

func localDeck(id int64, name string, updated time.Time, mut func(*models.Deck)) models.Deck {
	d := models.Deck{
		Meta: models.Meta{ServerID: id, CreatedAt: t1, UpdatedAt: updated},
		Name: name,
	}
	if mut != nil {
		mut(&d)
	}
	return d
}

func serverDeck(id int64, name string, updated time.Time) wire.Deck {
	return wire.Deck{ID: id, Name: name, CreatedAt: t1, UpdatedAt: updated}
}

func TestReconcile_ServerWinsOnCleanRecord(t *testing.T) {
	local := []models.Deck{localDeck(7, "old name", t1, nil)}
	pull := &wire.PullResponse{Decks: []wire.Deck{serverDeck(7, "new name", t2)}}

	decks, _ := Reconcile(pull, local, nil)

	require.Len(t, decks, 1)
	assert.Equal(t, "new name", decks[0].Name)
	assert.Equal(t, t2, decks[0].UpdatedAt)
	assert.False(t, decks[0].Dirty)
	assert.False(t, decks[0].New)
}

func TestReconcile_DirtyLocalBeatsNewerServer(t *testing.T) {
	local := []models.Deck{localDeck(7, "my edit", t1, func(d *models.Deck) { d.Dirty = true })}
	pull := &wire.PullResponse{Decks: []wire.Deck{serverDeck(7, "their edit", t2)}}

	decks, _ := Reconcile(pull, local, nil)

	require.Len(t, decks, 1)
	assert.Equal(t, "my edit", decks[0].Name)
	assert.True(t, decks[0].Dirty, "dirty record must survive for the next push")

	req := BuildPush(t2, decks, nil)
	require.Len(t, req.UpdatedDecks, 1)
	assert.Equal(t, "my edit", req.UpdatedDecks[0].Name)
}

func TestReconcile_OlderServerVersionIgnoredOnCleanRecord(t *testing.T) {
	local := []models.Deck{localDeck(7, "current", t2, nil)}
	pull := &wire.PullResponse{Decks: []wire.Deck{serverDeck(7, "stale", t1)}}

	decks, _ := Reconcile(pull, local, nil)

	require.Len(t, decks, 1)
	assert.Equal(t, "current", decks[0].Name)
}

func TestReconcile_PendingCreationKeptUnconditionally(t *testing.T) {
	local := []models.Deck{{
		Meta: models.Meta{TempID: "tmp-1", New: true, CreatedAt: t1, UpdatedAt: t1},
		Name: "offline deck",
	}}
	pull := &wire.PullResponse{}

	decks, _ := Reconcile(pull, local, nil)

	require.Len(t, decks, 1)
	assert.True(t, decks[0].New)
	assert.Equal(t, "tmp-1", decks[0].TempID)
}

func TestReconcile_UnknownServerRecordsAdopted(t *testing.T) {
	pull := &wire.PullResponse{Decks: []wire.Deck{serverDeck(9, "from another client", t2)}}

	decks, _ := Reconcile(pull, nil, nil)

	require.Len(t, decks, 1)
	assert.Equal(t, int64(9), decks[0].ServerID)
	assert.False(t, decks[0].New)
	assert.False(t, decks[0].Dirty)
}

func TestReconcile_ServerTombstonesNeverEnterActiveSet(t *testing.T) {
	dead := serverDeck(9, "gone", t2)
	dead.IsDeleted = true
	dead.DeletedAt = &t2

	// unseen tombstone is omitted
	decks, _ := Reconcile(&wire.PullResponse{Decks: []wire.Deck{dead}}, nil, nil)
	assert.Empty(t, decks)

	// tombstone for a known clean record removes it locally
	local := []models.Deck{localDeck(9, "gone", t1, nil)}
	decks, _ = Reconcile(&wire.PullResponse{Decks: []wire.Deck{dead}}, local, nil)
	assert.Empty(t, decks)
}

func TestReconcile_CleanRecordNotReturnedIsKept(t *testing.T) {
	// incremental pull omits unchanged records; they must not vanish
	local := []models.Deck{localDeck(7, "unchanged", t1, nil)}

	decks, _ := Reconcile(&wire.PullResponse{}, local, nil)

	require.Len(t, decks, 1)
	assert.Equal(t, int64(7), decks[0].ServerID)
}

func TestReconcile_LocalTombstoneKeptForPush(t *testing.T) {
	local := []models.Deck{localDeck(7, "doomed", t1, func(d *models.Deck) {
		d.Deleted = true
		d.DeletedAt = &t1
		d.Dirty = true
	})}

	decks, _ := Reconcile(&wire.PullResponse{Decks: []wire.Deck{serverDeck(7, "doomed", t2)}}, local, nil)

	require.Len(t, decks, 1)
	assert.True(t, decks[0].Deleted)

	req := BuildPush(t2, decks, nil)
	require.Len(t, req.UpdatedDecks, 1)
	assert.True(t, req.UpdatedDecks[0].IsDeleted)
}

func TestReconcile_Cards(t *testing.T) {
	localCards := []models.Card{
		{Meta: models.Meta{ServerID: 1, UpdatedAt: t1}, DeckID: 7, RawClozeText: "local"},
		{Meta: models.Meta{TempID: "c-new", New: true, UpdatedAt: t1}, DeckTempID: "d-new", RawClozeText: "pending"},
	}
	pull := &wire.PullResponse{Cards: []wire.Card{
		{ID: 1, DeckID: 7, RawClozeText: "server", UpdatedAt: t2},
		{ID: 2, DeckID: 7, RawClozeText: "fresh", UpdatedAt: t2},
	}}

	_, cards := Reconcile(pull, nil, localCards)

	require.Len(t, cards, 3)
	byKey := map[string]models.Card{}
	for _, c := range cards {
		byKey[c.Key()] = c
	}
	assert.Equal(t, "server", byKey["1"].RawClozeText, "clean card adopts newer server version")
	assert.Equal(t, "pending", byKey["c-new"].RawClozeText)
	assert.Equal(t, "fresh", byKey["2"].RawClozeText)
}

func TestReconcile_Idempotent(t *testing.T) {
	local := []models.Deck{
		localDeck(7, "clean", t1, nil),
		localDeck(8, "dirty", t1, func(d *models.Deck) { d.Dirty = true }),
		{Meta: models.Meta{TempID: "tmp-1", New: true, UpdatedAt: t1}, Name: "pending"},
	}
	localCards := []models.Card{
		{Meta: models.Meta{ServerID: 1, UpdatedAt: t1}, DeckID: 7},
		{Meta: models.Meta{TempID: "c-1", New: true, UpdatedAt: t1}, DeckTempID: "tmp-1"},
	}
	pull := &wire.PullResponse{
		Decks: []wire.Deck{serverDeck(7, "newer", t2), serverDeck(9, "unseen", t2)},
		Cards: []wire.Card{{ID: 1, DeckID: 7, UpdatedAt: t2}},
	}

	d1, c1 := Reconcile(pull, local, localCards)
	d2, c2 := Reconcile(pull, d1, c1)

	assert.Equal(t, d1, d2)
	assert.Equal(t, c1, c2)
}
