package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/cardkeeper/cardkeeper/internal/client/config"
	"github.com/cardkeeper/cardkeeper/internal/client/kv"
	"github.com/cardkeeper/cardkeeper/internal/client/services"
	"github.com/cardkeeper/cardkeeper/internal/client/store"
	"github.com/cardkeeper/cardkeeper/internal/client/syncer"
	"github.com/cardkeeper/cardkeeper/internal/logging"
)

// App wires the local store, the mutation services and the sync engine behind
// the interactive command loop. Every command works offline; sync is the only
// operation that touches the network.
type App struct {
	config  *config.Config
	store   *store.Store
	records *services.RecordService
	engine  *syncer.Engine
	kvs     kv.Store
	log     logging.Logger
	reader  *bufio.Reader
}

func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	kvs, err := kv.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}

	st := store.New(kvs)
	if err := st.Load(ctx); err != nil {
		_ = kvs.Close()
		return nil, fmt.Errorf("failed to load local records: %w", err)
	}

	app := &App{
		config:  cfg,
		store:   st,
		records: services.NewRecordService(st, log),
		kvs:     kvs,
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
	}

	if cfg.ServerURL != "" {
		tr := syncer.NewHTTPTransport(cfg.ServerURL, cfg.Secret, cfg.RequestTimeout)
		app.engine = syncer.NewEngine(st, tr, log)
	}

	return app, nil
}

// Run starts the background sync loop (when a server is configured) and the
// interactive command loop, then releases the database on exit.
func (a *App) Run(ctx context.Context) {
	defer a.kvs.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.engine != nil && a.config.SyncInterval > 0 {
		go a.engine.Run(ctx, a.config.SyncInterval)
	}

	a.Root(ctx)
}

func (a *App) syncEnabled() bool {
	return a.engine != nil
}
