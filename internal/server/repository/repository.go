// Package repository implements the server's record storage. Records are
// never hard-deleted: a delete sets is_deleted and deleted_at, and tombstones
// keep flowing through ChangedSince so offline clients eventually observe
// them.
package repository

import (
	"context"
	"time"

	"github.com/cardkeeper/cardkeeper/internal/wire"
)

// Repository is the storage boundary of the sync handlers.
//
// CreateDeck and CreateCard are idempotent on the client_ref token: repeating
// a creation with a ref that was already used returns the previously created
// record instead of inserting a second one.
//
// UpdateDeck and UpdateCard refuse the write and return a conflict when the
// stored row carries a strictly newer updated_at than the incoming record.
type Repository interface {
	ChangedSince(ctx context.Context, since *time.Time) ([]wire.Deck, []wire.Card, error)

	CreateDeck(ctx context.Context, req wire.DeckCreate, now time.Time) (wire.Deck, error)
	CreateCard(ctx context.Context, req wire.CardCreate, now time.Time) (wire.Card, error)

	UpdateDeck(ctx context.Context, d wire.Deck, now time.Time) (*wire.Conflict, error)
	UpdateCard(ctx context.Context, c wire.Card, now time.Time) (*wire.Conflict, error)

	Close() error
}
