package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/cardkeeper/cardkeeper/internal/common"
)

func (a *App) sync(ctx context.Context) {
	if !a.syncEnabled() {
		fmt.Println("Sync is disabled: no server configured.")
		return
	}

	err := a.engine.Sync(ctx)
	switch {
	case errors.Is(err, common.ErrSyncInProgress):
		fmt.Println("A sync cycle is already running.")
		return
	case err != nil:
		fmt.Println("Sync failed:", err)
		return
	}

	conflicts := a.engine.LastConflicts()
	if len(conflicts) == 0 {
		fmt.Println("Sync completed.")
		return
	}
	fmt.Printf("Sync completed with %d conflict(s):\n", len(conflicts))
	for _, c := range conflicts {
		fmt.Printf("  %s %d: %s\n", c.Type, c.ID, c.Message)
	}
}

func (a *App) status(ctx context.Context) {
	decks := a.store.Decks()
	cards := a.store.Cards()

	var pending int
	for _, d := range decks {
		if d.New || d.Dirty {
			pending++
		}
	}
	for _, c := range cards {
		if c.New || c.Dirty {
			pending++
		}
	}

	fmt.Printf("Decks: %d, cards: %d, pending changes: %d\n", len(decks), len(cards), pending)

	if !a.syncEnabled() {
		fmt.Println("Sync: disabled")
		return
	}
	if wm := a.store.Watermark(); wm != nil {
		fmt.Println("Last sync:", wm.Local().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Last sync: never")
	}
	if err := a.engine.LastError(); err != nil {
		fmt.Println("Last sync error:", err)
	}
}
