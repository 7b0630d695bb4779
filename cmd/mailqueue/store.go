package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/mailqueue/pkg/config"
	"github.com/dmitrymomot/mailqueue/pkg/httpserver"
	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
	"github.com/dmitrymomot/mailqueue/pkg/mailqueue/mongostore"
	"github.com/dmitrymomot/mailqueue/pkg/mailqueue/pgstore"
	"github.com/dmitrymomot/mailqueue/pkg/mailqueue/redisstore"
	"github.com/dmitrymomot/mailqueue/pkg/mongo"
	"github.com/dmitrymomot/mailqueue/pkg/pg"
	"github.com/dmitrymomot/mailqueue/pkg/redis"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
)

var ErrUnknownStoreDriver = errors.New("unknown store driver")

type storeConfig struct {
	Driver          string `env:"STORE_DRIVER" envDefault:"memory"`
	MongoCollection string `env:"MONGODB_COLLECTION" envDefault:"mail_queue_items"`
}

// backend is an opened store together with its readiness checks and cleanup.
type backend struct {
	store  mailqueue.Store
	checks map[string]httpserver.CheckFunc
	close  func(context.Context) error
}

func noopClose(context.Context) error { return nil }

// openStore connects the driver selected in cfg. Driver settings are loaded
// only for the selected driver, so PG_CONN_URL is not required for redis.
func openStore(ctx context.Context, cfg storeConfig, log *slog.Logger) (*backend, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		log.WarnContext(ctx, "using in-memory store, queued items are lost on restart")
		return &backend{store: mailqueue.NewMemoryStorage(), close: noopClose}, nil

	case DriverPostgres:
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		if pgCfg.AutoMigrate {
			if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgCfg, log); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return &backend{
			store:  pgstore.New(pool),
			checks: map[string]httpserver.CheckFunc{"postgres": pg.Healthcheck(pool)},
			close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case DriverRedis:
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, err
		}
		return &backend{
			store:  redisstore.New(client, redisstore.WithPrefix(redisCfg.KeyPrefix)),
			checks: map[string]httpserver.CheckFunc{"redis": redis.Healthcheck(client)},
			close:  func(context.Context) error { return client.Close() },
		}, nil

	case DriverMongo:
		var mongoCfg mongo.Config
		if err := config.Load(&mongoCfg); err != nil {
			return nil, err
		}
		db, err := mongo.NewWithDatabase(ctx, mongoCfg, mongoCfg.Database)
		if err != nil {
			return nil, err
		}
		store := mongostore.New(db, cfg.MongoCollection)
		indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := store.EnsureIndexes(indexCtx); err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, err
		}
		return &backend{
			store:  store,
			checks: map[string]httpserver.CheckFunc{"mongo": mongo.Healthcheck(db.Client())},
			close:  db.Client().Disconnect,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStoreDriver, cfg.Driver)
	}
}
