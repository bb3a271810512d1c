package models

import (
	"encoding/json"
	"time"

	"github.com/cardkeeper/cardkeeper/internal/wire"
)

// FSRS scheduler states carried on every card. The review scheduler owns the
// values; the sync layer only transports them.
const (
	FSRSStateNew        = 0
	FSRSStateLearning   = 1
	FSRSStateReview     = 2
	FSRSStateRelearning = 3
)

// Card is a locally tracked card. Its parent deck is referenced either by
// DeckID (server-assigned) or DeckTempID while the deck itself is unsynced;
// exactly one of the two is set.
type Card struct {
	Meta
	DeckID         int64               `json:"deck_id"`
	DeckTempID     string              `json:"deck_temp_id,omitempty"`
	FrontContent   []wire.ContentBlock `json:"front_content,omitempty"`
	BackContent    []wire.ContentBlock `json:"back_content,omitempty"`
	RawClozeText   string              `json:"raw_cloze_text,omitempty"`
	ClozeData      json.RawMessage     `json:"cloze_data,omitempty"`
	Tags           []string            `json:"tags,omitempty"`
	NextReviewAt   *time.Time          `json:"next_review_at,omitempty"`
	FSRSStability  *float64            `json:"fsrs_stability,omitempty"`
	FSRSDifficulty *float64            `json:"fsrs_difficulty,omitempty"`
	FSRSLapses     int                 `json:"fsrs_lapses"`
	FSRSState      int                 `json:"fsrs_state"`
}

// CardDraft is the input for creating a card. DeckKey addresses the parent
// deck by server id or temporary id.
type CardDraft struct {
	DeckKey      string
	FrontContent []wire.ContentBlock
	BackContent  []wire.ContentBlock
	RawClozeText string
	ClozeData    json.RawMessage
	Tags         []string
}

// HasContent reports whether the draft carries anything worth storing.
func (d CardDraft) HasContent() bool {
	return len(d.FrontContent) > 0 || len(d.BackContent) > 0 || d.RawClozeText != ""
}

// CardPatch is a partial update; nil fields are left unchanged.
type CardPatch struct {
	FrontContent *[]wire.ContentBlock
	BackContent  *[]wire.ContentBlock
	RawClozeText *string
	ClozeData    *json.RawMessage
	Tags         *[]string
}

// ReviewPatch updates the scheduler-owned fields after a review.
type ReviewPatch struct {
	NextReviewAt time.Time
	Stability    float64
	Difficulty   float64
	Lapses       int
	State        int
}

// Apply copies the non-nil patch fields onto the card.
func (c *Card) Apply(p CardPatch) {
	if p.FrontContent != nil {
		c.FrontContent = *p.FrontContent
	}
	if p.BackContent != nil {
		c.BackContent = *p.BackContent
	}
	if p.RawClozeText != nil {
		c.RawClozeText = *p.RawClozeText
	}
	if p.ClozeData != nil {
		c.ClozeData = *p.ClozeData
	}
	if p.Tags != nil {
		c.Tags = *p.Tags
	}
}

// ApplyReview writes the scheduler results onto the card.
func (c *Card) ApplyReview(p ReviewPatch) {
	t := p.NextReviewAt
	c.NextReviewAt = &t
	s := p.Stability
	c.FSRSStability = &s
	d := p.Difficulty
	c.FSRSDifficulty = &d
	c.FSRSLapses = p.Lapses
	c.FSRSState = p.State
}

// DeckResolved reports whether the parent deck reference is a server id.
func (c Card) DeckResolved() bool { return c.DeckTempID == "" }

// BelongsTo reports whether the card references the given deck.
func (c Card) BelongsTo(d Deck) bool {
	if c.DeckTempID != "" {
		return c.DeckTempID == d.TempID
	}
	return d.ServerID != 0 && c.DeckID == d.ServerID
}

// Clone returns an independent copy of the card.
func (c Card) Clone() Card {
	out := c
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		out.DeletedAt = &t
	}
	if c.NextReviewAt != nil {
		t := *c.NextReviewAt
		out.NextReviewAt = &t
	}
	if c.FSRSStability != nil {
		v := *c.FSRSStability
		out.FSRSStability = &v
	}
	if c.FSRSDifficulty != nil {
		v := *c.FSRSDifficulty
		out.FSRSDifficulty = &v
	}
	out.FrontContent = append([]wire.ContentBlock(nil), c.FrontContent...)
	out.BackContent = append([]wire.ContentBlock(nil), c.BackContent...)
	out.Tags = append([]string(nil), c.Tags...)
	out.ClozeData = append(json.RawMessage(nil), c.ClozeData...)
	return out
}

// CardFromWire converts a server card into a local record with cleared flags.
func CardFromWire(w wire.Card) Card {
	return Card{
		Meta: Meta{
			ServerID:  w.ID,
			CreatedAt: w.CreatedAt,
			UpdatedAt: w.UpdatedAt,
			Deleted:   w.IsDeleted,
			DeletedAt: w.DeletedAt,
		},
		DeckID:         w.DeckID,
		FrontContent:   w.FrontContent,
		BackContent:    w.BackContent,
		RawClozeText:   w.RawClozeText,
		ClozeData:      w.ClozeData,
		Tags:           w.Tags,
		NextReviewAt:   w.NextReviewAt,
		FSRSStability:  w.FSRSStability,
		FSRSDifficulty: w.FSRSDifficulty,
		FSRSLapses:     w.FSRSLapses,
		FSRSState:      w.FSRSState,
	}
}

// Wire converts the card into its server representation. Local-only flags and
// the temporary deck reference are dropped; callers must not transmit cards
// whose deck reference is still unresolved.
func (c Card) Wire() wire.Card {
	return wire.Card{
		ID:             c.ServerID,
		DeckID:         c.DeckID,
		FrontContent:   c.FrontContent,
		BackContent:    c.BackContent,
		RawClozeText:   c.RawClozeText,
		ClozeData:      c.ClozeData,
		Tags:           c.Tags,
		NextReviewAt:   c.NextReviewAt,
		FSRSStability:  c.FSRSStability,
		FSRSDifficulty: c.FSRSDifficulty,
		FSRSLapses:     c.FSRSLapses,
		FSRSState:      c.FSRSState,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		IsDeleted:      c.Deleted,
		DeletedAt:      c.DeletedAt,
	}
}

// CreatePayload builds the creation payload carrying the temporary id as the
// idempotency token. The deck reference must already be resolved.
func (c Card) CreatePayload() wire.CardCreate {
	return wire.CardCreate{
		ClientRef:    c.TempID,
		DeckID:       c.DeckID,
		FrontContent: c.FrontContent,
		BackContent:  c.BackContent,
		RawClozeText: c.RawClozeText,
		ClozeData:    c.ClozeData,
		Tags:         c.Tags,
	}
}
