// Package config loads env-tagged configuration structs.
//
// Parsing is delegated to github.com/caarlos0/env/v11 and optional .env files
// are read with github.com/joho/godotenv. Each config type is parsed once and
// cached by type, so every component of the process sees the same immutable
// values:
//
//	var queueCfg mailqueue.Config
//	if err := config.Load(&queueCfg); err != nil {
//		log.Fatal(err)
//	}
//
// Types implementing Validator are validated right after parsing; an invalid
// config is returned as ErrInvalidConfig and never cached.
//
// Use LoadEnv to read specific .env files before the first Load, and
// ResetCache or ForceReloadConfig in tests that change the environment.
package config
