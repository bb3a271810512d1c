package models

import "github.com/cardkeeper/cardkeeper/internal/wire"

// Deck is a locally tracked deck.
type Deck struct {
	Meta
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DeckDraft is the input for creating a deck.
type DeckDraft struct {
	Name        string
	Description string
}

// DeckPatch is a partial update; nil fields are left unchanged.
type DeckPatch struct {
	Name        *string
	Description *string
}

// Apply copies the non-nil patch fields onto the deck.
func (d *Deck) Apply(p DeckPatch) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
}

// Clone returns an independent copy of the deck.
func (d Deck) Clone() Deck {
	out := d
	if d.DeletedAt != nil {
		t := *d.DeletedAt
		out.DeletedAt = &t
	}
	return out
}

// DeckFromWire converts a server deck into a local record with cleared flags.
func DeckFromWire(w wire.Deck) Deck {
	return Deck{
		Meta: Meta{
			ServerID:  w.ID,
			CreatedAt: w.CreatedAt,
			UpdatedAt: w.UpdatedAt,
			Deleted:   w.IsDeleted,
			DeletedAt: w.DeletedAt,
		},
		Name:        w.Name,
		Description: w.Description,
	}
}

// Wire converts the deck into its server representation. Local-only flags are
// dropped.
func (d Deck) Wire() wire.Deck {
	return wire.Deck{
		ID:          d.ServerID,
		Name:        d.Name,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		IsDeleted:   d.Deleted,
		DeletedAt:   d.DeletedAt,
	}
}

// CreatePayload builds the creation payload carrying the temporary id as the
// idempotency token.
func (d Deck) CreatePayload() wire.DeckCreate {
	return wire.DeckCreate{
		ClientRef:   d.TempID,
		Name:        d.Name,
		Description: d.Description,
	}
}
