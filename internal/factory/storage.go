package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meetscribe/meetscribe/server/internal/config"
	storepkg "github.com/meetscribe/meetscribe/server/internal/store"
	"github.com/meetscribe/meetscribe/server/internal/store/memory"
	storepg "github.com/meetscribe/meetscribe/server/internal/store/postgres"
	storelite "github.com/meetscribe/meetscribe/server/internal/store/sqlite"
)

// NewStore builds the store for the configured driver. Connections are
// opened synchronously since health checks need them immediately.
func NewStore(cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return memory.New(), nil
	case "sqlite":
		db, err := storelite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return storelite.NewWithDB(db), nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("MEETSCRIBE_POSTGRES_DSN is required for the postgres driver")
		}
		db, err := storepg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return storepg.NewWithDB(db), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER: %s", cfg.StoreDriver)
	}
}
