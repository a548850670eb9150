// package repositories provides [models.CredentialStore] implementations.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
	"github.com/redis/go-redis/v9"
)

var (
	_ models.CredentialStore = (*MemoryStore)(nil)
	_ models.CredentialStore = (*SQLiteStore)(nil)
	_ models.CredentialStore = (*RedisStore)(nil)

	_ models.SessionLister = (*MemoryStore)(nil)
	_ models.SessionLister = (*SQLiteStore)(nil)
)

// Open builds the credential store selected by config.Store.Driver.
//
// The sqlite driver runs pending migrations before returning. The redis driver pings the server.
func Open(ctx context.Context, config *shared.Config, logger *log.Logger) (models.CredentialStore, error) {
	switch config.Store.Driver {
	case "memory", "":
		return NewMemoryStore(config.Store.SessionTTL.Duration), nil
	case "sqlite":
		db, err := shared.NewDatabase(config.Database.Path)
		if err != nil {
			return nil, err
		}
		if config.Database.Path != ":memory:" {
			shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
		}
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		store := NewSQLiteStore(db)
		if ttl := config.Store.SessionTTL.Duration; ttl > 0 {
			n, err := store.Prune(ctx, time.Now().Add(-ttl))
			if err != nil {
				logger.Warn("failed to prune stale sessions", "error", err)
			} else if n > 0 {
				logger.Info("pruned stale sessions", "count", n)
			}
		}
		return store, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("%w: redis ping failed: %v", shared.ErrServiceUnavailable, err)
		}
		return NewRedisStore(client, config.Redis.Prefix, config.Store.SessionTTL.Duration), nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", shared.ErrInvalidConfig, config.Store.Driver)
	}
}
