// Package bootstrap opens the backing services named by the configuration.
package bootstrap

import (
	"context"
	"fmt"

	"perfume-store/internal/config"
	"perfume-store/internal/database"
	"perfume-store/internal/logger"
	"perfume-store/internal/store"
	"perfume-store/internal/store/memory"
)

// OpenStore connects the configured store driver. Mongo indexes are ensured
// on every start; a failure there is logged and does not stop the process.
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn(ctx, "using in-memory store; data is lost on restart")
		return memory.New(), nil
	case config.StoreDriverMongo:
		client, err := database.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		st := database.NewStore(client, cfg.DBName)
		if err := database.EnsureIndexes(ctx, st.Database(), log); err != nil {
			log.Error(ctx, "index setup incomplete", err)
		}
		log.Event(ctx).Str("database", cfg.DBName).Msg("mongo connected")
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg *config.Config, service string) *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})
}
