package cli

import (
	"testing"
	"time"

	"github.com/cardkeeper/cardkeeper/internal/client/models"
	"github.com/cardkeeper/cardkeeper/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextReview(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	card := models.Card{FSRSState: models.FSRSStateReview, FSRSLapses: 2}

	t.Run("again counts a lapse", func(t *testing.T) {
		patch, ok := nextReview(card, ratingAgain, now)
		require.True(t, ok)
		assert.Equal(t, 3, patch.Lapses)
		assert.Equal(t, models.FSRSStateRelearning, patch.State)
		assert.Equal(t, now.Add(10*time.Minute), patch.NextReviewAt)
	})

	t.Run("good schedules days out", func(t *testing.T) {
		patch, ok := nextReview(card, ratingGood, now)
		require.True(t, ok)
		assert.Equal(t, 2, patch.Lapses)
		assert.Equal(t, now.Add(3*24*time.Hour), patch.NextReviewAt)
	})

	t.Run("new card graduates to learning", func(t *testing.T) {
		fresh := models.Card{FSRSState: models.FSRSStateNew}
		patch, ok := nextReview(fresh, ratingGood, now)
		require.True(t, ok)
		assert.Equal(t, models.FSRSStateLearning, patch.State)
	})

	t.Run("unknown rating is a skip", func(t *testing.T) {
		_, ok := nextReview(card, "x", now)
		assert.False(t, ok)
	})
}

func TestCardSummary(t *testing.T) {
	c := models.Card{FrontContent: []wire.ContentBlock{
		{Type: wire.BlockImage, Src: "pic.png"},
		{Type: wire.BlockText, Content: "hola"},
	}}
	assert.Equal(t, "hola", cardSummary(c))

	cloze := models.Card{RawClozeText: "hola = {{hello}}"}
	assert.Equal(t, "hola = {{hello}}", cardSummary(cloze))

	assert.Equal(t, "(no text)", cardSummary(models.Card{}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "until her…", truncate("until here and beyond", 10))
}
