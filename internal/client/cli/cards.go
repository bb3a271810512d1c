package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/cardkeeper/cardkeeper/internal/client/models"
	"github.com/cardkeeper/cardkeeper/internal/wire"
)

func (a *App) listCards(ctx context.Context, args []string) {
	var deck *models.Deck
	if len(args) > 0 {
		d, ok := a.store.FindDeck(args[0])
		if !ok {
			fmt.Println("Unknown deck:", args[0])
			return
		}
		deck = &d
	}

	shown := 0
	for _, c := range a.store.Cards() {
		if c.Deleted {
			continue
		}
		if deck != nil && !c.BelongsTo(*deck) {
			continue
		}
		fmt.Printf("  [%s] %s%s\n", c.Key(), cardSummary(c), cardFlags(c))
		shown++
	}
	if shown == 0 {
		fmt.Println("No cards found.")
	}
}

// cardSummary picks a short human-readable label for the card: the first text
// block of the front face, or the raw cloze text.
func cardSummary(c models.Card) string {
	for _, b := range c.FrontContent {
		if b.Type == wire.BlockText && b.Content != "" {
			return truncate(b.Content, 60)
		}
	}
	if c.RawClozeText != "" {
		return truncate(c.RawClozeText, 60)
	}
	return "(no text)"
}

func cardFlags(c models.Card) string {
	switch {
	case c.New:
		return " (not synced)"
	case c.Dirty:
		return " (pending changes)"
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (a *App) addCard(ctx context.Context, deckKey string) {
	front, err := GetMultiline(a.reader, "Front side:", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	back, err := GetMultiline(a.reader, "Back side:", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	tags, err := GetTags(a.reader, os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	draft := models.CardDraft{DeckKey: deckKey, Tags: tags}
	if front != "" {
		draft.FrontContent = []wire.ContentBlock{{Type: wire.BlockText, Content: front}}
	}
	if back != "" {
		draft.BackContent = []wire.ContentBlock{{Type: wire.BlockText, Content: back}}
	}

	card, err := a.records.CreateCard(ctx, draft)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("Created card [%s]\n", card.Key())
}

func (a *App) deleteCard(ctx context.Context, key string) {
	if err := a.records.DeleteCard(ctx, key); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Card deleted.")
}
