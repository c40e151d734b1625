package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/sentinelpay/alertmatch/internal/config"
	"github.com/sentinelpay/alertmatch/internal/feed"
	"github.com/sentinelpay/alertmatch/internal/service"
	"github.com/sentinelpay/alertmatch/internal/storage"
)

// initStorage opens the database and brings the schema up to date.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initFeed builds the configured ledger transaction feed.
func initFeed() (service.TransactionFeed, *config.FeedConfig, error) {
	cfg, err := config.LoadFeedConfig()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Source {
	case "api":
		f, err := feed.NewHTTPFeed(cfg.APIURL, cfg.APIToken)
		if err != nil {
			return nil, nil, err
		}
		return f, cfg, nil
	default:
		return feed.NewSimulatedFeed(), cfg, nil
	}
}
