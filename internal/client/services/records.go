// Package services implements the Mutation API: the create/update/soft-delete
// operations the UI calls. They only ever touch the Local Record Store and
// never talk to the network, so every operation succeeds offline.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cardkeeper/cardkeeper/internal/client/models"
	"github.com/cardkeeper/cardkeeper/internal/client/store"
	"github.com/cardkeeper/cardkeeper/internal/common"
	"github.com/cardkeeper/cardkeeper/internal/logging"
	"github.com/google/uuid"
)

type RecordService struct {
	store *store.Store
	log   logging.Logger

	now   func() time.Time
	newID func() string
}

func NewRecordService(st *store.Store, log logging.Logger) *RecordService {
	return &RecordService{
		store: st,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// CreateDeck registers a new deck locally. The deck is born pending creation:
// no server id, a fresh temporary id, and is included in the next push cycle.
func (s *RecordService) CreateDeck(ctx context.Context, draft models.DeckDraft) (models.Deck, error) {
	name := strings.TrimSpace(draft.Name)
	if name == "" {
		return models.Deck{}, fmt.Errorf("%w: deck name is required", common.ErrValidation)
	}
	for _, d := range s.store.Decks() {
		if !d.Deleted && d.Name == name {
			return models.Deck{}, fmt.Errorf("%w: deck %q already exists", common.ErrValidation, name)
		}
	}

	now := s.now()
	deck := models.Deck{
		Meta: models.Meta{
			TempID:    s.newID(),
			CreatedAt: now,
			UpdatedAt: now,
			New:       true,
		},
		Name:        name,
		Description: draft.Description,
	}

	if err := s.store.UpsertDeck(ctx, deck); err != nil {
		return models.Deck{}, fmt.Errorf("failed to save deck: %w", err)
	}
	s.log.Debug(ctx, "deck created locally", "key", deck.Key(), "name", deck.Name)
	return deck, nil
}

// CreateCard registers a new card locally. The parent deck may itself be
// unsynced, in which case the card holds the deck's temporary id until the
// mapping resolves.
func (s *RecordService) CreateCard(ctx context.Context, draft models.CardDraft) (models.Card, error) {
	if !draft.HasContent() {
		return models.Card{}, fmt.Errorf("%w: card content is required", common.ErrValidation)
	}
	deck, ok := s.store.FindDeck(draft.DeckKey)
	if !ok || deck.Deleted {
		return models.Card{}, fmt.Errorf("%w: deck %q does not exist", common.ErrValidation, draft.DeckKey)
	}

	now := s.now()
	card := models.Card{
		Meta: models.Meta{
			TempID:    s.newID(),
			CreatedAt: now,
			UpdatedAt: now,
			New:       true,
		},
		FrontContent: draft.FrontContent,
		BackContent:  draft.BackContent,
		RawClozeText: draft.RawClozeText,
		ClozeData:    draft.ClozeData,
		Tags:         draft.Tags,
		NextReviewAt: &now,
		FSRSState:    models.FSRSStateNew,
	}
	if deck.Synced() {
		card.DeckID = deck.ServerID
	} else {
		card.DeckTempID = deck.TempID
	}

	if err := s.store.UpsertCard(ctx, card); err != nil {
		return models.Card{}, fmt.Errorf("failed to save card: %w", err)
	}
	s.log.Debug(ctx, "card created locally", "key", card.Key(), "deck", draft.DeckKey)
	return card, nil
}

// UpdateDeck resolves the deck by server id or temporary id, applies the
// patch and bumps UpdatedAt. A synced deck becomes dirty; an unsynced one
// stays pending creation.
func (s *RecordService) UpdateDeck(ctx context.Context, key string, patch models.DeckPatch) (models.Deck, error) {
	deck, ok := s.store.FindDeck(key)
	if !ok {
		return models.Deck{}, fmt.Errorf("%w: deck %q", common.ErrNotFound, key)
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return models.Deck{}, fmt.Errorf("%w: deck name is required", common.ErrValidation)
		}
		for _, d := range s.store.Decks() {
			if !d.Deleted && d.Name == name && !sameKey(d.Meta, deck.Meta) {
				return models.Deck{}, fmt.Errorf("%w: deck %q already exists", common.ErrValidation, name)
			}
		}
		patch.Name = &name
	}

	deck.Apply(patch)
	deck.Touch(s.now())

	if err := s.store.UpsertDeck(ctx, deck); err != nil {
		return models.Deck{}, fmt.Errorf("failed to save deck: %w", err)
	}
	return deck, nil
}

// UpdateCard resolves the card by server id or temporary id, applies the
// patch and bumps UpdatedAt.
func (s *RecordService) UpdateCard(ctx context.Context, key string, patch models.CardPatch) (models.Card, error) {
	card, ok := s.store.FindCard(key)
	if !ok {
		return models.Card{}, fmt.Errorf("%w: card %q", common.ErrNotFound, key)
	}

	card.Apply(patch)
	card.Touch(s.now())

	if err := s.store.UpsertCard(ctx, card); err != nil {
		return models.Card{}, fmt.Errorf("failed to save card: %w", err)
	}
	return card, nil
}

// ReviewCard writes the scheduler's results for a reviewed card through the
// same dirty-tracking path as any other edit.
func (s *RecordService) ReviewCard(ctx context.Context, key string, patch models.ReviewPatch) (models.Card, error) {
	card, ok := s.store.FindCard(key)
	if !ok {
		return models.Card{}, fmt.Errorf("%w: card %q", common.ErrNotFound, key)
	}

	card.ApplyReview(patch)
	card.Touch(s.now())

	if err := s.store.UpsertCard(ctx, card); err != nil {
		return models.Card{}, fmt.Errorf("failed to save card: %w", err)
	}
	return card, nil
}

// DeleteDeck soft-deletes a synced deck (pushed as a deletion on the next
// cycle) and purges an unsynced one outright, along with its cards.
func (s *RecordService) DeleteDeck(ctx context.Context, key string) error {
	deck, ok := s.store.FindDeck(key)
	if !ok {
		return fmt.Errorf("%w: deck %q", common.ErrNotFound, key)
	}

	now := s.now()

	if deck.New {
		// never reached the server: drop the deck and its cards locally
		if _, err := s.store.RemoveCardsWhere(ctx, func(c models.Card) bool { return c.BelongsTo(deck) }); err != nil {
			return err
		}
		if _, err := s.store.RemoveDecksWhere(ctx, func(d models.Deck) bool { return sameKey(d.Meta, deck.Meta) }); err != nil {
			return err
		}
		s.log.Debug(ctx, "unsynced deck purged", "key", key)
		return nil
	}

	deck.MarkDeleted(now)
	if err := s.store.UpsertDeck(ctx, deck); err != nil {
		return fmt.Errorf("failed to save deck: %w", err)
	}

	// cascade to the deck's cards
	if _, err := s.store.RemoveCardsWhere(ctx, func(c models.Card) bool { return c.BelongsTo(deck) && c.New }); err != nil {
		return err
	}
	for _, c := range s.store.Cards() {
		if c.BelongsTo(deck) && !c.Deleted {
			c.MarkDeleted(now)
			if err := s.store.UpsertCard(ctx, c); err != nil {
				return fmt.Errorf("failed to save card: %w", err)
			}
		}
	}
	return nil
}

// DeleteCard soft-deletes a synced card and purges an unsynced one outright.
func (s *RecordService) DeleteCard(ctx context.Context, key string) error {
	card, ok := s.store.FindCard(key)
	if !ok {
		return fmt.Errorf("%w: card %q", common.ErrNotFound, key)
	}

	if card.New {
		_, err := s.store.RemoveCardsWhere(ctx, func(c models.Card) bool { return sameKey(c.Meta, card.Meta) })
		if err == nil {
			s.log.Debug(ctx, "unsynced card purged", "key", key)
		}
		return err
	}

	card.MarkDeleted(s.now())
	if err := s.store.UpsertCard(ctx, card); err != nil {
		return fmt.Errorf("failed to save card: %w", err)
	}
	return nil
}

func sameKey(a, b models.Meta) bool {
	if a.ServerID != 0 && b.ServerID != 0 {
		return a.ServerID == b.ServerID
	}
	return a.TempID != "" && a.TempID == b.TempID
}
