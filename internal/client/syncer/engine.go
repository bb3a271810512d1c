package syncer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cardkeeper/cardkeeper/internal/client/store"
	"github.com/cardkeeper/cardkeeper/internal/common"
	"github.com/cardkeeper/cardkeeper/internal/logging"
	"github.com/cardkeeper/cardkeeper/internal/wire"
)

// Engine drives the sync cycle: pull, reconcile, push, apply, advance the
// watermark. A cycle requested while one is in flight is a strict no-op.
// Cycle failures never roll back local state; pending mutations keep their
// flags and are retried on the next cycle.
type Engine struct {
	store     *store.Store
	transport Transport
	log       logging.Logger

	syncing atomic.Bool

	mu        sync.Mutex
	lastErr   error
	conflicts []wire.Conflict
}

func NewEngine(st *store.Store, tr Transport, log logging.Logger) *Engine {
	return &Engine{store: st, transport: tr, log: log}
}

// Syncing reports whether a cycle is currently in flight.
func (e *Engine) Syncing() bool { return e.syncing.Load() }

// LastError returns the error recorded by the most recent cycle, nil after a
// clean one. The UI observes this instead of receiving thrown errors.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// LastConflicts returns the server-reported conflicts from the most recent
// cycle. Conflicted records stay dirty until resolved by a follow-up edit.
func (e *Engine) LastConflicts() []wire.Conflict {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]wire.Conflict(nil), e.conflicts...)
}

// Sync runs one full cycle. It returns common.ErrSyncInProgress when another
// cycle is already running, and common.ErrSync when the network portion of
// the cycle failed. Conflicts are not errors; read them from LastConflicts.
func (e *Engine) Sync(ctx context.Context) error {
	if !e.syncing.CompareAndSwap(false, true) {
		return common.ErrSyncInProgress
	}
	defer e.syncing.Store(false)

	err := e.cycle(ctx)

	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
	return err
}

func (e *Engine) cycle(ctx context.Context) error {
	since := e.store.Watermark()

	pull, err := e.transport.Pull(ctx, since)
	if err != nil {
		e.log.Error(ctx, "pull failed", "error", err)
		return err
	}
	e.log.Debug(ctx, "pull completed",
		"decks", len(pull.Decks), "cards", len(pull.Cards), "server_ts", pull.ServerTimestamp)

	decks, cards, base := e.store.Snapshot()
	mergedDecks, mergedCards := Reconcile(pull, decks, cards)

	if err := e.store.ApplyCycle(ctx, base, mergedDecks, mergedCards); err != nil {
		return err
	}

	req := BuildPush(time.Now().UTC(), mergedDecks, mergedCards)
	if req.Empty() {
		e.log.Debug(ctx, "nothing to push, pull-only cycle")
		e.setConflicts(nil)
		return e.store.SetWatermark(ctx, pull.ServerTimestamp)
	}

	resp, err := e.transport.Push(ctx, req)
	if err != nil {
		// merged state is already persisted; dirty/new flags survive for retry
		e.log.Error(ctx, "push failed", "error", err)
		return err
	}

	// the fold keeps any record mutated while the push was in flight
	finalDecks, finalCards, conflicts := ApplyPush(resp, mergedDecks, mergedCards)
	if err := e.store.ApplyCycle(ctx, base, finalDecks, finalCards); err != nil {
		return err
	}
	if err := e.store.SetWatermark(ctx, pull.ServerTimestamp); err != nil {
		return err
	}

	e.setConflicts(conflicts)
	if len(conflicts) > 0 {
		e.log.Warn(ctx, "push reported conflicts", "count", len(conflicts))
	}
	e.log.Info(ctx, "sync cycle completed",
		"pushed_new_decks", len(req.NewDecks), "pushed_new_cards", len(req.NewCards),
		"pushed_updates", len(req.UpdatedDecks)+len(req.UpdatedCards),
		"conflicts", len(conflicts))
	return nil
}

func (e *Engine) setConflicts(c []wire.Conflict) {
	e.mu.Lock()
	e.conflicts = c
	e.mu.Unlock()
}

// Run triggers a cycle every interval until the context is cancelled. Errors
// are recorded in LastError and logged, never fatal.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.Sync(ctx); err != nil && err != common.ErrSyncInProgress {
				e.log.Warn(ctx, "background sync failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
