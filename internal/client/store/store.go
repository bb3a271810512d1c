// Package store implements the Local Record Store: the authoritative local
// view of every deck and card, held in memory and persisted to the durable
// key-value store before any mutation returns. It never touches the network.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cardkeeper/cardkeeper/internal/client/kv"
	"github.com/cardkeeper/cardkeeper/internal/client/models"
)

// Stable persistence keys.
const (
	keyDecks     = "decks"
	keyCards     = "cards"
	keyWatermark = "last_sync_timestamp"
)

// Store is the only shared mutable resource of the sync engine. It is
// mutated by the Mutation API (upserts/removals) and by the sync engine
// (ApplyCycle at the end of a cycle). The mutation API stays available while
// a cycle's network calls are in flight; the generation marks below let
// ApplyCycle fold the cycle's result around anything that changed meanwhile.
type Store struct {
	mu sync.Mutex
	kv kv.Store

	decks     []models.Deck
	cards     []models.Card
	watermark *time.Time
	loaded    bool

	// gen counts local mutations; deckMut/cardMut record, per record
	// identity, the generation of its latest local mutation (including
	// removal). Consulted by ApplyCycle, pruned there as well.
	gen     uint64
	deckMut map[string]uint64
	cardMut map[string]uint64
}

func New(kvs kv.Store) *Store {
	return &Store{
		kv:      kvs,
		deckMut: map[string]uint64{},
		cardMut: map[string]uint64{},
	}
}

// Load restores the persisted state. It must complete before any mutation is
// accepted; missing keys leave the store empty (first run).
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, err := s.kv.Get(ctx, keyDecks); err != nil {
		return fmt.Errorf("failed to load decks: %w", err)
	} else if b != nil {
		if err := json.Unmarshal(b, &s.decks); err != nil {
			return fmt.Errorf("failed to decode decks: %w", err)
		}
	}

	if b, err := s.kv.Get(ctx, keyCards); err != nil {
		return fmt.Errorf("failed to load cards: %w", err)
	} else if b != nil {
		if err := json.Unmarshal(b, &s.cards); err != nil {
			return fmt.Errorf("failed to decode cards: %w", err)
		}
	}

	if b, err := s.kv.Get(ctx, keyWatermark); err != nil {
		return fmt.Errorf("failed to load watermark: %w", err)
	} else if len(b) > 0 {
		t, err := time.Parse(time.RFC3339Nano, string(b))
		if err != nil {
			return fmt.Errorf("failed to parse watermark: %w", err)
		}
		s.watermark = &t
	}

	s.loaded = true
	return nil
}

// Decks returns an independent copy of all tracked decks.
func (s *Store) Decks() []models.Deck {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDecks(s.decks)
}

// Cards returns an independent copy of all tracked cards.
func (s *Store) Cards() []models.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCards(s.cards)
}

// Snapshot returns a consistent copy of both collections plus the current
// mutation generation, taken under a single lock acquisition. The sync engine
// feeds the copies into a cycle and hands the generation back to ApplyCycle,
// which uses it to tell which records changed while the cycle ran.
func (s *Store) Snapshot() ([]models.Deck, []models.Card, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDecks(s.decks), cloneCards(s.cards), s.gen
}

// FindDeck resolves a deck by server id or temporary id.
func (s *Store) FindDeck(key string) (models.Deck, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.decks {
		if d.Matches(key) {
			return d.Clone(), true
		}
	}
	return models.Deck{}, false
}

// FindCard resolves a card by server id or temporary id.
func (s *Store) FindCard(key string) (models.Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cards {
		if c.Matches(key) {
			return c.Clone(), true
		}
	}
	return models.Card{}, false
}

// UpsertDeck inserts or replaces a deck by record identity and persists the
// collection before returning.
func (s *Store) UpsertDeck(ctx context.Context, d models.Deck) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i := range s.decks {
		if sameRecord(s.decks[i].Meta, d.Meta) {
			s.decks[i] = d.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		s.decks = append(s.decks, d.Clone())
	}
	s.gen++
	markMutated(s.deckMut, s.gen, d.Meta)
	return s.persistDecks(ctx)
}

// UpsertCard inserts or replaces a card by record identity and persists the
// collection before returning.
func (s *Store) UpsertCard(ctx context.Context, c models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i := range s.cards {
		if sameRecord(s.cards[i].Meta, c.Meta) {
			s.cards[i] = c.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		s.cards = append(s.cards, c.Clone())
	}
	s.gen++
	markMutated(s.cardMut, s.gen, c.Meta)
	return s.persistCards(ctx)
}

// RemoveDecksWhere drops every deck matching pred and persists. Returns the
// number of removed records.
func (s *Store) RemoveDecksWhere(ctx context.Context, pred func(models.Deck) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.decks[:0]
	var gone []models.Meta
	for _, d := range s.decks {
		if pred(d) {
			gone = append(gone, d.Meta)
			continue
		}
		kept = append(kept, d)
	}
	s.decks = kept
	if len(gone) == 0 {
		return 0, nil
	}
	s.gen++
	for _, m := range gone {
		markMutated(s.deckMut, s.gen, m)
	}
	return len(gone), s.persistDecks(ctx)
}

// RemoveCardsWhere drops every card matching pred and persists. Returns the
// number of removed records.
func (s *Store) RemoveCardsWhere(ctx context.Context, pred func(models.Card) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.cards[:0]
	var gone []models.Meta
	for _, c := range s.cards {
		if pred(c) {
			gone = append(gone, c.Meta)
			continue
		}
		kept = append(kept, c)
	}
	s.cards = kept
	if len(gone) == 0 {
		return 0, nil
	}
	s.gen++
	for _, m := range gone {
		markMutated(s.cardMut, s.gen, m)
	}
	return len(gone), s.persistCards(ctx)
}

// ApplyCycle folds a sync cycle's reconciled collections back into the store
// and persists both. base is the generation returned by the Snapshot the
// cycle started from. When nothing changed since, this is a plain swap.
// Records mutated while the cycle's network calls were in flight keep their
// live version instead of being overwritten by the cycle's stale view of
// them; a record removed mid-cycle whose creation the cycle completed on the
// server anyway comes back as a tombstone so the server copy dies too.
func (s *Store) ApplyCycle(ctx context.Context, base uint64, decks []models.Deck, cards []models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen == base {
		s.decks = cloneDecks(decks)
		s.cards = cloneCards(cards)
	} else {
		s.decks = foldDecks(decks, s.decks, s.deckMut, base)
		s.cards = foldCards(cards, s.cards, s.cardMut, base)
		s.resolveCardRefs()
	}
	pruneMutated(s.deckMut, base)
	pruneMutated(s.cardMut, base)

	if err := s.persistDecks(ctx); err != nil {
		return err
	}
	return s.persistCards(ctx)
}

func foldDecks(repl, live []models.Deck, mut map[string]uint64, base uint64) []models.Deck {
	out := make([]models.Deck, 0, len(repl)+len(live))
	for _, r := range repl {
		if !mutatedAfter(mut, base, r.Meta) {
			out = append(out, r.Clone())
			continue
		}
		l, ok := findDeck(live, r.Meta)
		if !ok {
			// removed while the cycle ran; if the cycle created it on
			// the server anyway, keep a tombstone to push the deletion
			if r.Synced() {
				r = r.Clone()
				r.MarkDeleted(time.Now().UTC())
				out = append(out, r)
			}
			continue
		}
		l = l.Clone()
		if !l.Synced() && r.Synced() {
			// creation acknowledged while the record was edited
			// locally; adopt the id, the edit goes out as an update
			l.ServerID = r.ServerID
			l.New = false
			l.Dirty = true
		}
		out = append(out, l)
	}
	for _, l := range live {
		if _, ok := findDeck(repl, l.Meta); ok {
			continue
		}
		if mutatedAfter(mut, base, l.Meta) {
			out = append(out, l.Clone())
		}
	}
	return out
}

func foldCards(repl, live []models.Card, mut map[string]uint64, base uint64) []models.Card {
	out := make([]models.Card, 0, len(repl)+len(live))
	for _, r := range repl {
		if !mutatedAfter(mut, base, r.Meta) {
			out = append(out, r.Clone())
			continue
		}
		l, ok := findCard(live, r.Meta)
		if !ok {
			if r.Synced() {
				r = r.Clone()
				r.MarkDeleted(time.Now().UTC())
				out = append(out, r)
			}
			continue
		}
		l = l.Clone()
		if !l.Synced() && r.Synced() {
			l.ServerID = r.ServerID
			l.New = false
			l.Dirty = true
		}
		if l.DeckID == 0 && r.DeckID != 0 {
			l.DeckID = r.DeckID
			l.DeckTempID = ""
		}
		out = append(out, l)
	}
	for _, l := range live {
		if _, ok := findCard(repl, l.Meta); ok {
			continue
		}
		if mutatedAfter(mut, base, l.Meta) {
			out = append(out, l.Clone())
		}
	}
	return out
}

// resolveCardRefs rewrites temporary deck references once the referenced deck
// carries a server id, so cards folded in mid-cycle do not stay held back.
func (s *Store) resolveCardRefs() {
	ids := make(map[string]int64)
	for _, d := range s.decks {
		if d.ServerID != 0 && d.TempID != "" {
			ids[d.TempID] = d.ServerID
		}
	}
	if len(ids) == 0 {
		return
	}
	for i := range s.cards {
		if s.cards[i].DeckTempID == "" {
			continue
		}
		if id, ok := ids[s.cards[i].DeckTempID]; ok {
			s.cards[i].DeckID = id
			s.cards[i].DeckTempID = ""
		}
	}
}

// Watermark returns the timestamp of the last successful sync, nil before the
// first one.
func (s *Store) Watermark() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watermark == nil {
		return nil
	}
	t := *s.watermark
	return &t
}

// SetWatermark persists the new watermark after a completed cycle.
func (s *Store) SetWatermark(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(ctx, keyWatermark, []byte(t.Format(time.RFC3339Nano))); err != nil {
		return fmt.Errorf("failed to persist watermark: %w", err)
	}
	s.watermark = &t
	return nil
}

func (s *Store) persistDecks(ctx context.Context) error {
	b, err := json.Marshal(s.decks)
	if err != nil {
		return fmt.Errorf("failed to encode decks: %w", err)
	}
	if err := s.kv.Set(ctx, keyDecks, b); err != nil {
		return fmt.Errorf("failed to persist decks: %w", err)
	}
	return nil
}

func (s *Store) persistCards(ctx context.Context) error {
	b, err := json.Marshal(s.cards)
	if err != nil {
		return fmt.Errorf("failed to encode cards: %w", err)
	}
	if err := s.kv.Set(ctx, keyCards, b); err != nil {
		return fmt.Errorf("failed to persist cards: %w", err)
	}
	return nil
}

// sameRecord reports whether two envelopes identify the same record: matching
// server ids when both are assigned, otherwise matching temporary ids.
func sameRecord(a, b models.Meta) bool {
	if a.ServerID != 0 && b.ServerID != 0 {
		return a.ServerID == b.ServerID
	}
	return a.TempID != "" && a.TempID == b.TempID
}

func findDeck(list []models.Deck, m models.Meta) (models.Deck, bool) {
	for _, d := range list {
		if sameRecord(d.Meta, m) {
			return d, true
		}
	}
	return models.Deck{}, false
}

func findCard(list []models.Card, m models.Meta) (models.Card, bool) {
	for _, c := range list {
		if sameRecord(c.Meta, m) {
			return c, true
		}
	}
	return models.Card{}, false
}

// markMutated records a local mutation of the record under every identity it
// currently carries, so ApplyCycle can recognize it even after the cycle's
// copy adopted a server id the live record does not have yet.
func markMutated(mut map[string]uint64, gen uint64, m models.Meta) {
	if m.ServerID != 0 {
		mut[strconv.FormatInt(m.ServerID, 10)] = gen
	}
	if m.TempID != "" {
		mut[m.TempID] = gen
	}
}

func mutatedAfter(mut map[string]uint64, base uint64, m models.Meta) bool {
	if m.ServerID != 0 && mut[strconv.FormatInt(m.ServerID, 10)] > base {
		return true
	}
	return m.TempID != "" && mut[m.TempID] > base
}

func pruneMutated(mut map[string]uint64, base uint64) {
	for k, g := range mut {
		if g <= base {
			delete(mut, k)
		}
	}
}

func cloneDecks(in []models.Deck) []models.Deck {
	out := make([]models.Deck, len(in))
	for i, d := range in {
		out[i] = d.Clone()
	}
	return out
}

func cloneCards(in []models.Card) []models.Card {
	out := make([]models.Card, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
