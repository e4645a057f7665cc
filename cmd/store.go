package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/campleads/internal/config"
	"github.com/sells-group/campleads/internal/store"
)

const defaultSQLitePath = "campleads.db"

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate(config.ComponentStore); err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore connects and applies the schema. Callers close the store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
