package syncer

import (
	"strconv"
	"time"

	"github.com/cardkeeper/cardkeeper/internal/client/models"
	"github.com/cardkeeper/cardkeeper/internal/wire"
)

// BuildPush assembles the outbound payload from the reconciled collections:
// creations from records pending creation, updates and soft deletes from
// dirty records. Cards whose parent deck is itself still unsynced are held
// back until the deck's id mapping resolves in a later cycle.
func BuildPush(clientTimestamp time.Time, decks []models.Deck, cards []models.Card) *wire.PushRequest {
	req := &wire.PushRequest{ClientTimestamp: clientTimestamp}

	for _, d := range decks {
		switch {
		case d.New && !d.Deleted:
			req.NewDecks = append(req.NewDecks, d.CreatePayload())
		case d.Synced() && (d.Dirty || d.Deleted):
			req.UpdatedDecks = append(req.UpdatedDecks, d.Wire())
		}
	}

	for _, c := range cards {
		switch {
		case c.New && !c.Deleted && c.DeckResolved():
			req.NewCards = append(req.NewCards, c.CreatePayload())
		case c.Synced() && (c.Dirty || c.Deleted):
			req.UpdatedCards = append(req.UpdatedCards, c.Wire())
		}
	}

	return req
}

// ApplyPush folds the server's acknowledgement back into the reconciled
// collections: created records adopt their server-assigned ids by exact
// client_ref match, acknowledged updates drop their dirty flag, acknowledged
// deletions leave the active set, and conflicted records stay dirty for a
// manual follow-up.
func ApplyPush(resp *wire.PushResponse, decks []models.Deck, cards []models.Card) ([]models.Deck, []models.Card, []wire.Conflict) {
	createdDecks := make(map[string]wire.Deck, len(resp.CreatedDecks))
	for _, d := range resp.CreatedDecks {
		if d.ClientRef != "" {
			createdDecks[d.ClientRef] = d
		}
	}
	createdCards := make(map[string]wire.Card, len(resp.CreatedCards))
	for _, c := range resp.CreatedCards {
		if c.ClientRef != "" {
			createdCards[c.ClientRef] = c
		}
	}

	conflicted := make(map[string]struct{}, len(resp.Conflicts))
	for _, c := range resp.Conflicts {
		conflicted[conflictKey(c.Type, c.ID)] = struct{}{}
	}

	// deck temp id -> assigned server id, for rewriting card references
	deckIDs := make(map[string]int64)

	outDecks := make([]models.Deck, 0, len(decks))
	for _, d := range decks {
		switch {
		case d.New:
			created, ok := createdDecks[d.TempID]
			if !ok {
				// not acknowledged: stays pending for the next cycle
				outDecks = append(outDecks, d)
				continue
			}
			deckIDs[d.TempID] = created.ID
			nd := models.DeckFromWire(created)
			// the temporary id stays behind as a local alias so a
			// mutation raced against this cycle still resolves here
			nd.TempID = d.TempID
			outDecks = append(outDecks, nd)
		case d.Dirty || d.Deleted:
			if _, hasConflict := conflicted[conflictKey(wire.ConflictDeck, d.ServerID)]; hasConflict {
				outDecks = append(outDecks, d)
				continue
			}
			if d.Deleted {
				// deletion acknowledged: tombstone is not retained locally
				continue
			}
			d.Dirty = false
			outDecks = append(outDecks, d)
		default:
			outDecks = append(outDecks, d)
		}
	}

	outCards := make([]models.Card, 0, len(cards))
	for _, c := range cards {
		switch {
		case c.New:
			created, ok := createdCards[c.TempID]
			if !ok {
				outCards = append(outCards, c)
				continue
			}
			nc := models.CardFromWire(created)
			nc.TempID = c.TempID
			outCards = append(outCards, nc)
		case c.Dirty || c.Deleted:
			if _, hasConflict := conflicted[conflictKey(wire.ConflictCard, c.ServerID)]; hasConflict {
				outCards = append(outCards, c)
				continue
			}
			if c.Deleted {
				continue
			}
			c.Dirty = false
			outCards = append(outCards, c)
		default:
			outCards = append(outCards, c)
		}
	}

	// rewrite temp deck references that resolved in this push
	for i := range outCards {
		if outCards[i].DeckTempID == "" {
			continue
		}
		if id, ok := deckIDs[outCards[i].DeckTempID]; ok {
			outCards[i].DeckID = id
			outCards[i].DeckTempID = ""
		}
	}

	return outDecks, outCards, resp.Conflicts
}

func conflictKey(kind string, id int64) string {
	return kind + "/" + strconv.FormatInt(id, 10)
}
