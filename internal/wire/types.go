// Package wire defines the JSON payloads exchanged between the study-card
// client and the sync server. The client and server packages share these
// types so the two sides cannot drift apart.
package wire

import (
	"encoding/json"
	"time"
)

// Content block types for card faces.
const (
	BlockText      = "text"
	BlockImage     = "image"
	BlockAudio     = "audio"
	BlockClozeText = "cloze_text"
	BlockHTML      = "html"
)

// ContentBlock is one piece of a card face: plain text, HTML, a media
// reference or a cloze-text fragment.
type ContentBlock struct {
	Type                 string `json:"type"`
	Content              string `json:"content,omitempty"`
	Src                  string `json:"src,omitempty"`
	Alt                  string `json:"alt,omitempty"`
	TextWithPlaceholders string `json:"textWithPlaceholders,omitempty"`
}

// Deck is the server representation of a deck, including soft-delete state.
// ClientRef is only populated on records echoed back from a create request;
// pull responses never carry it.
type Deck struct {
	ID          int64      `json:"id"`
	ClientRef   string     `json:"client_ref,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	IsDeleted   bool       `json:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Card is the server representation of a card. The FSRS fields belong to the
// review scheduler; the sync layer carries them opaquely.
type Card struct {
	ID             int64           `json:"id"`
	ClientRef      string          `json:"client_ref,omitempty"`
	DeckID         int64           `json:"deck_id"`
	FrontContent   []ContentBlock  `json:"front_content,omitempty"`
	BackContent    []ContentBlock  `json:"back_content,omitempty"`
	RawClozeText   string          `json:"raw_cloze_text,omitempty"`
	ClozeData      json.RawMessage `json:"cloze_data,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	NextReviewAt   *time.Time      `json:"next_review_at,omitempty"`
	FSRSStability  *float64        `json:"fsrs_stability,omitempty"`
	FSRSDifficulty *float64        `json:"fsrs_difficulty,omitempty"`
	FSRSLapses     int             `json:"fsrs_lapses"`
	FSRSState      int             `json:"fsrs_state"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	IsDeleted      bool            `json:"is_deleted"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
}

// DeckCreate is a client-originated deck creation. ClientRef is the
// idempotency token: the server echoes it verbatim on the created record and
// treats a repeated ref as the same creation.
type DeckCreate struct {
	ClientRef   string `json:"client_ref"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CardCreate is a client-originated card creation. DeckID must be a
// server-assigned deck id; cards whose deck is itself unsynced are held back
// by the client until the deck's id resolves.
type CardCreate struct {
	ClientRef    string          `json:"client_ref"`
	DeckID       int64           `json:"deck_id"`
	FrontContent []ContentBlock  `json:"front_content,omitempty"`
	BackContent  []ContentBlock  `json:"back_content,omitempty"`
	RawClozeText string          `json:"raw_cloze_text,omitempty"`
	ClozeData    json.RawMessage `json:"cloze_data,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
}

// PullResponse is the authoritative delta since the client's watermark, or a
// full snapshot when no watermark was sent. Tombstones are always included.
type PullResponse struct {
	ServerTimestamp time.Time `json:"server_timestamp"`
	Decks           []Deck    `json:"decks"`
	Cards           []Card    `json:"cards"`
}

// PushRequest carries every pending local mutation: creations in the New
// slices, updates and soft deletes in the Updated slices.
type PushRequest struct {
	ClientTimestamp time.Time    `json:"client_timestamp"`
	NewDecks        []DeckCreate `json:"new_decks,omitempty"`
	NewCards        []CardCreate `json:"new_cards,omitempty"`
	UpdatedDecks    []Deck       `json:"updated_decks,omitempty"`
	UpdatedCards    []Card       `json:"updated_cards,omitempty"`
}

// Empty reports whether the push carries no mutations at all, in which case
// the client skips the network call entirely.
func (p *PushRequest) Empty() bool {
	return len(p.NewDecks) == 0 && len(p.NewCards) == 0 &&
		len(p.UpdatedDecks) == 0 && len(p.UpdatedCards) == 0
}

// Conflict record types.
const (
	ConflictDeck    = "deck"
	ConflictCard    = "card"
	ConflictNewDeck = "new_deck"
	ConflictNewCard = "new_card"
)

// Conflict reports a pushed record the server refused to apply. The client
// keeps the record dirty and surfaces the message; there is no automatic
// resolution.
type Conflict struct {
	Type       string `json:"type"`
	ID         int64  `json:"id"`
	Identifier string `json:"identifier,omitempty"`
	Message    string `json:"message"`
}

// PushResponse acknowledges a push. Created records carry their
// server-assigned ids and echo the client_ref they were created from.
type PushResponse struct {
	Message      string     `json:"message"`
	CreatedDecks []Deck     `json:"created_decks,omitempty"`
	CreatedCards []Card     `json:"created_cards,omitempty"`
	Conflicts    []Conflict `json:"conflicts,omitempty"`
}
