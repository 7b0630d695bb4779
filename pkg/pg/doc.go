// Package pg bootstraps the PostgreSQL connection used by the durable mail
// queue store.
//
// It wraps pgx/v5 connection pooling with startup retries, applies goose
// migrations shipped as an fs.FS, exposes a readiness probe and classifies
// the driver errors the store needs to translate.
//
//	var cfg pg.Config
//	if err := env.Parse(&cfg); err != nil {
//		return err
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, cfg, slog.Default()); err != nil {
//		return err
//	}
package pg
