package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/cardkeeper/cardkeeper/internal/client/models"
)

func (a *App) listDecks(ctx context.Context) {
	decks := a.store.Decks()

	shown := 0
	for _, d := range decks {
		if d.Deleted {
			continue
		}
		fmt.Printf("  [%s] %s%s\n", d.Key(), d.Name, deckFlags(d))
		shown++
	}
	if shown == 0 {
		fmt.Println("No decks yet. Try 'add-deck'.")
	}
}

func deckFlags(d models.Deck) string {
	switch {
	case d.New:
		return " (not synced)"
	case d.Dirty:
		return " (pending changes)"
	default:
		return ""
	}
}

func (a *App) addDeck(ctx context.Context) {
	name, err := GetSimpleText(a.reader, "Deck name:", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	description, err := GetSimpleText(a.reader, "Description (optional):", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	deck, err := a.records.CreateDeck(ctx, models.DeckDraft{Name: name, Description: description})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("Created deck [%s] %s\n", deck.Key(), deck.Name)
}

func (a *App) editDeck(ctx context.Context, key string) {
	name, err := GetSimpleText(a.reader, "New name (empty to keep):", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	var patch models.DeckPatch
	if name != "" {
		patch.Name = &name
	}
	description, err := GetSimpleText(a.reader, "New description (empty to keep):", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if description != "" {
		patch.Description = &description
	}

	deck, err := a.records.UpdateDeck(ctx, key, patch)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("Updated deck [%s] %s\n", deck.Key(), deck.Name)
}

func (a *App) deleteDeck(ctx context.Context, key string) {
	if err := a.records.DeleteDeck(ctx, key); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Deck deleted.")
}
