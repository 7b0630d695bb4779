// Package redis connects the mail queue to a Redis server.
//
// Connect retries until the server answers PING, Healthcheck adapts the
// client to a readiness probe, and Config is populated from REDIS_*
// environment variables via github.com/caarlos0/env.
//
//	var cfg redis.Config
//	if err := env.Parse(&cfg); err != nil {
//		return err
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store := redisstore.New(client, redisstore.WithPrefix(cfg.KeyPrefix))
package redis
