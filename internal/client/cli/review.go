package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cardkeeper/cardkeeper/internal/client/models"
	"github.com/cardkeeper/cardkeeper/internal/wire"
)

// Review ratings, roughly the FSRS grades.
const (
	ratingAgain = "1"
	ratingHard  = "2"
	ratingGood  = "3"
	ratingEasy  = "4"
)

func (a *App) dueCards(now time.Time) []models.Card {
	var due []models.Card
	for _, c := range a.store.Cards() {
		if c.Deleted {
			continue
		}
		if c.NextReviewAt == nil || !c.NextReviewAt.After(now) {
			due = append(due, c)
		}
	}
	return due
}

func (a *App) listDue(ctx context.Context) {
	due := a.dueCards(time.Now().UTC())
	if len(due) == 0 {
		fmt.Println("Nothing due. Well done!")
		return
	}
	for _, c := range due {
		fmt.Printf("  [%s] %s\n", c.Key(), cardSummary(c))
	}
}

// review walks through the due cards one at a time: show the front, reveal
// the back on Enter, then apply the chosen rating through the mutation API so
// the result syncs like any other edit.
func (a *App) review(ctx context.Context) {
	due := a.dueCards(time.Now().UTC())
	if len(due) == 0 {
		fmt.Println("Nothing due. Well done!")
		return
	}

	for _, c := range due {
		fmt.Println("----")
		printFace(c.FrontContent, c.RawClozeText)

		if _, err := GetSimpleText(a.reader, "Press Enter to reveal", os.Stdout); err != nil {
			return
		}
		printFace(c.BackContent, "")

		rating, err := GetSimpleText(a.reader, "Rate: 1=again 2=hard 3=good 4=easy (q to stop)", os.Stdout)
		if err != nil || rating == "q" {
			return
		}

		patch, ok := nextReview(c, rating, time.Now().UTC())
		if !ok {
			fmt.Println("Skipped.")
			continue
		}
		if _, err := a.records.ReviewCard(ctx, c.Key(), patch); err != nil {
			fmt.Println("Error:", err)
			return
		}
	}
	fmt.Println("Review finished.")
}

func printFace(blocks []wire.ContentBlock, cloze string) {
	printed := false
	for _, b := range blocks {
		if b.Content != "" {
			fmt.Println(b.Content)
			printed = true
		}
	}
	if !printed && cloze != "" {
		fmt.Println(cloze)
	}
}

// nextReview computes the scheduler update for a rating. The intervals are a
// plain graduated schedule, not a full FSRS implementation; the fields travel
// through sync either way.
func nextReview(c models.Card, rating string, now time.Time) (models.ReviewPatch, bool) {
	patch := models.ReviewPatch{
		Lapses: c.FSRSLapses,
		State:  models.FSRSStateReview,
	}
	if c.FSRSStability != nil {
		patch.Stability = *c.FSRSStability
	}
	if c.FSRSDifficulty != nil {
		patch.Difficulty = *c.FSRSDifficulty
	}

	var interval time.Duration
	switch rating {
	case ratingAgain:
		interval = 10 * time.Minute
		patch.Lapses++
		patch.State = models.FSRSStateRelearning
	case ratingHard:
		interval = 24 * time.Hour
	case ratingGood:
		interval = 3 * 24 * time.Hour
	case ratingEasy:
		interval = 7 * 24 * time.Hour
	default:
		return models.ReviewPatch{}, false
	}
	if c.FSRSState == models.FSRSStateNew {
		patch.State = models.FSRSStateLearning
	}

	patch.NextReviewAt = now.Add(interval)
	return patch, true
}
