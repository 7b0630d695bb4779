// Package mongo connects the mail queue to MongoDB using the v2 driver.
//
// New retries until the deployment answers a ping, NewWithDatabase returns
// the database handle the mongostore package writes to, and Healthcheck
// adapts the client to a readiness probe.
//
//	var cfg mongo.Config
//	if err := env.Parse(&cfg); err != nil {
//		return err
//	}
//
//	db, err := mongo.NewWithDatabase(ctx, cfg, cfg.Database)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
package mongo
