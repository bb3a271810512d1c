// Package cli implements the interactive CardKeeper command loop.
//
// Commands
//
//	decks               — list decks
//	cards [deck]        — list cards, optionally for one deck
//	add-deck            — create a deck (works offline)
//	add-card <deck>     — create a card in a deck (works offline)
//	edit-deck <id>      — rename a deck
//	del-deck <id>       — delete a deck and its cards
//	del-card <id>       — delete a card
//	due                 — list cards due for review
//	review              — review due cards one by one
//	sync                — run one sync cycle against the server
//	status              — record counts, pending changes, last sync
//	exit | quit         — leave the program
//
// Records are addressed by the id shown in listings: the server-assigned id
// once a record has synced, a temporary id before that. Either form works for
// every command.
package cli
