package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMeta_Matches_ServerIDFirst(t *testing.T) {
	tests := []struct {
		name string
		meta Meta
		key  string
		want bool
	}{
		{name: "server id match", meta: Meta{ServerID: 42}, key: "42", want: true},
		{name: "server id mismatch", meta: Meta{ServerID: 42}, key: "7", want: false},
		{name: "temp id match", meta: Meta{TempID: "abc-123"}, key: "abc-123", want: true},
		{name: "temp id mismatch", meta: Meta{TempID: "abc-123"}, key: "def", want: false},
		{name: "temp id still matches after server id assigned", meta: Meta{ServerID: 42, TempID: "abc"}, key: "abc", want: true},
		{name: "numeric key never matches temp-only record", meta: Meta{TempID: "abc"}, key: "42", want: false},
		{name: "empty key", meta: Meta{ServerID: 42, TempID: "abc"}, key: "", want: false},
		{name: "zero server id does not match key 0", meta: Meta{TempID: "abc"}, key: "0", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.meta.Matches(tc.key))
		})
	}
}

func TestMeta_Key(t *testing.T) {
	assert.Equal(t, "42", Meta{ServerID: 42, TempID: "abc"}.Key())
	assert.Equal(t, "abc", Meta{TempID: "abc"}.Key())
}

func TestMeta_Touch(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)

	m := Meta{ServerID: 1, UpdatedAt: t0}
	m.Touch(t1)
	assert.Equal(t, t1, m.UpdatedAt)
	assert.True(t, m.Dirty, "synced record becomes dirty on edit")

	// an unsynced record stays new, never dirty
	n := Meta{TempID: "x", New: true, UpdatedAt: t0}
	n.Touch(t1)
	assert.True(t, n.New)
	assert.False(t, n.Dirty)

	// UpdatedAt never goes backwards
	m.Touch(t0)
	assert.Equal(t, t1, m.UpdatedAt)
}

func TestMeta_MarkDeleted(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	m := Meta{ServerID: 7}
	m.MarkDeleted(now)
	assert.True(t, m.Deleted)
	assert.NotNil(t, m.DeletedAt)
	assert.Equal(t, now, *m.DeletedAt)
	assert.True(t, m.Dirty)
}

func TestCard_BelongsTo(t *testing.T) {
	synced := Deck{Meta: Meta{ServerID: 5}}
	unsynced := Deck{Meta: Meta{TempID: "tmp-1", New: true}}

	assert.True(t, Card{DeckID: 5}.BelongsTo(synced))
	assert.False(t, Card{DeckID: 6}.BelongsTo(synced))
	assert.True(t, Card{DeckTempID: "tmp-1"}.BelongsTo(unsynced))
	assert.False(t, Card{DeckTempID: "tmp-2"}.BelongsTo(unsynced))
	assert.False(t, Card{DeckID: 0}.BelongsTo(unsynced))
}
