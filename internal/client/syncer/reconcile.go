// Package syncer implements the sync cycle: pull the authoritative delta,
// reconcile it with pending local mutations, push the outbound payload and
// apply the server's response. The merge is idempotent so a partially failed
// cycle is always safe to repeat.
package syncer

import (
	"github.com/cardkeeper/cardkeeper/internal/client/models"
	"github.com/cardkeeper/cardkeeper/internal/wire"
)

// Reconcile merges the pulled server state with the local snapshot and
// returns the new Local Record Store contents.
//
// The policy is last-local-write-wins-until-pushed: the server version is
// adopted only for clean records (not dirty, not pending creation) that the
// server returned with a strictly newer UpdatedAt. Local pending work is
// never discarded in favor of a concurrently pulled version.
func Reconcile(pull *wire.PullResponse, decks []models.Deck, cards []models.Card) ([]models.Deck, []models.Card) {
	return mergeDecks(decks, pull.Decks), mergeCards(cards, pull.Cards)
}

func mergeDecks(local []models.Deck, server []wire.Deck) []models.Deck {
	byID := make(map[int64]wire.Deck, len(server))
	for _, sv := range server {
		byID[sv.ID] = sv
	}

	merged := make([]models.Deck, 0, len(local)+len(server))
	for _, l := range local {
		if l.ServerID != 0 {
			sv, returned := byID[l.ServerID]
			if returned {
				delete(byID, l.ServerID)
			}
			switch {
			case returned && sv.UpdatedAt.After(l.UpdatedAt) && !l.Dirty && !l.New:
				// server wins on a clean record; tombstones leave the active set
				if !sv.IsDeleted {
					merged = append(merged, models.DeckFromWire(sv))
				}
			case l.Dirty || l.Deleted:
				// pending local work, pushed later
				merged = append(merged, l)
			default:
				l.New = false
				l.Dirty = false
				merged = append(merged, l)
			}
			continue
		}
		if l.New {
			// no server counterpart yet
			merged = append(merged, l)
		}
	}

	for _, sv := range server {
		if rest, ok := byID[sv.ID]; ok && !rest.IsDeleted {
			merged = append(merged, models.DeckFromWire(rest))
			delete(byID, sv.ID)
		}
	}
	return merged
}

func mergeCards(local []models.Card, server []wire.Card) []models.Card {
	byID := make(map[int64]wire.Card, len(server))
	for _, sv := range server {
		byID[sv.ID] = sv
	}

	merged := make([]models.Card, 0, len(local)+len(server))
	for _, l := range local {
		if l.ServerID != 0 {
			sv, returned := byID[l.ServerID]
			if returned {
				delete(byID, l.ServerID)
			}
			switch {
			case returned && sv.UpdatedAt.After(l.UpdatedAt) && !l.Dirty && !l.New:
				if !sv.IsDeleted {
					merged = append(merged, models.CardFromWire(sv))
				}
			case l.Dirty || l.Deleted:
				merged = append(merged, l)
			default:
				l.New = false
				l.Dirty = false
				merged = append(merged, l)
			}
			continue
		}
		if l.New {
			merged = append(merged, l)
		}
	}

	for _, sv := range server {
		if rest, ok := byID[sv.ID]; ok && !rest.IsDeleted {
			merged = append(merged, models.CardFromWire(rest))
			delete(byID, sv.ID)
		}
	}
	return merged
}
