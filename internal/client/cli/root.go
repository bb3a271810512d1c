package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) getStatus() string {
	s := "offline"
	if a.syncEnabled() {
		s = "sync on"
		if a.engine.Syncing() {
			s = "syncing"
		}
	}
	return fmt.Sprintf("(%s)", s)
}

func (a *App) Root(ctx context.Context) {

	fmt.Println("Welcome to CardKeeper CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("ck %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			fmt.Println("Available commands: decks, cards [deck], add-deck, add-card <deck>, edit-deck <id>, del-deck <id>, del-card <id>, due, review, sync, status, exit")

		case "decks":
			a.listDecks(ctx)
		case "cards":
			a.listCards(ctx, args)
		case "add-deck":
			a.addDeck(ctx)
		case "add-card":
			if len(args) == 0 {
				fmt.Println("Usage: add-card <deck-id>")
				continue
			}
			a.addCard(ctx, args[0])
		case "edit-deck":
			if len(args) == 0 {
				fmt.Println("Usage: edit-deck <deck-id>")
				continue
			}
			a.editDeck(ctx, args[0])
		case "del-deck":
			if len(args) == 0 {
				fmt.Println("Usage: del-deck <deck-id>")
				continue
			}
			a.deleteDeck(ctx, args[0])
		case "del-card":
			if len(args) == 0 {
				fmt.Println("Usage: del-card <card-id>")
				continue
			}
			a.deleteCard(ctx, args[0])
		case "due":
			a.listDue(ctx)
		case "review":
			a.review(ctx)
		case "sync":
			a.sync(ctx)
		case "status":
			a.status(ctx)
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Println("Unknown command:", cmd)
		}
	}

}
