// Package handler exposes the sync API over HTTP: a pull endpoint returning
// the delta since the client's watermark and a push endpoint applying the
// client's pending mutations.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cardkeeper/cardkeeper/internal/common"
	"github.com/cardkeeper/cardkeeper/internal/logging"
	"github.com/cardkeeper/cardkeeper/internal/server/repository"
	"github.com/cardkeeper/cardkeeper/internal/wire"
)

type SyncHandler struct {
	repo repository.Repository
	log  logging.Logger

	now func() time.Time
}

func NewSyncHandler(repo repository.Repository, log logging.Logger) *SyncHandler {
	return &SyncHandler{
		repo: repo,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// HandlePull returns every record changed since the last_sync_timestamp query
// parameter, tombstones included, or the full data set when the parameter is
// absent. The response timestamp is taken before the query so a concurrent
// write is never skipped by the next incremental pull.
func (h *SyncHandler) HandlePull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var since *time.Time
	if raw := r.URL.Query().Get("last_sync_timestamp"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid last_sync_timestamp")
			return
		}
		since = &t
	}

	serverTimestamp := h.now()

	decks, cards, err := h.repo.ChangedSince(ctx, since)
	if err != nil {
		h.log.Error(ctx, "pull failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load records")
		return
	}
	if decks == nil {
		decks = []wire.Deck{}
	}
	if cards == nil {
		cards = []wire.Card{}
	}

	h.log.Debug(ctx, "pull served", "decks", len(decks), "cards", len(cards), "incremental", since != nil)
	writeJSON(w, http.StatusOK, wire.PullResponse{
		ServerTimestamp: serverTimestamp,
		Decks:           decks,
		Cards:           cards,
	})
}

// HandlePush applies the client's mutations in order: deck creations, card
// creations, then updates and soft deletes. Refused records come back as
// conflicts; the rest of the batch is still applied.
func (h *SyncHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req wire.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := h.now()
	resp := wire.PushResponse{Message: "Sync completed"}

	for _, dc := range req.NewDecks {
		if dc.ClientRef == "" || dc.Name == "" {
			resp.Conflicts = append(resp.Conflicts, wire.Conflict{
				Type: wire.ConflictNewDeck, Identifier: dc.ClientRef,
				Message: "client_ref and name are required",
			})
			continue
		}
		created, err := h.repo.CreateDeck(ctx, dc, now)
		if err != nil {
			h.log.Error(ctx, "deck creation failed", "client_ref", dc.ClientRef, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create deck")
			return
		}
		resp.CreatedDecks = append(resp.CreatedDecks, created)
	}

	for _, cc := range req.NewCards {
		if cc.ClientRef == "" {
			resp.Conflicts = append(resp.Conflicts, wire.Conflict{
				Type: wire.ConflictNewCard, Message: "client_ref is required",
			})
			continue
		}
		created, err := h.repo.CreateCard(ctx, cc, now)
		if errors.Is(err, common.ErrNotFound) {
			resp.Conflicts = append(resp.Conflicts, wire.Conflict{
				Type: wire.ConflictNewCard, Identifier: cc.ClientRef,
				Message: "deck does not exist",
			})
			continue
		}
		if err != nil {
			h.log.Error(ctx, "card creation failed", "client_ref", cc.ClientRef, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create card")
			return
		}
		resp.CreatedCards = append(resp.CreatedCards, created)
	}

	for _, d := range req.UpdatedDecks {
		conflict, err := h.repo.UpdateDeck(ctx, d, now)
		if err != nil {
			h.log.Error(ctx, "deck update failed", "id", d.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update deck")
			return
		}
		if conflict != nil {
			resp.Conflicts = append(resp.Conflicts, *conflict)
		}
	}

	for _, c := range req.UpdatedCards {
		conflict, err := h.repo.UpdateCard(ctx, c, now)
		if err != nil {
			h.log.Error(ctx, "card update failed", "id", c.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update card")
			return
		}
		if conflict != nil {
			resp.Conflicts = append(resp.Conflicts, *conflict)
		}
	}

	h.log.Info(ctx, "push applied",
		"created_decks", len(resp.CreatedDecks), "created_cards", len(resp.CreatedCards),
		"updates", len(req.UpdatedDecks)+len(req.UpdatedCards), "conflicts", len(resp.Conflicts))
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
