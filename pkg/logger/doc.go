// Package logger builds *slog.Logger values for the mail queue process and
// provides attribute helpers so queue components log the same keys.
//
// New takes functional options; FromConfig maps APP_ENV, LOG_LEVEL and
// LOG_FORMAT onto them:
//
//	log, err := logger.FromConfig(cfg)
//	if err != nil {
//		return err
//	}
//	log.InfoContext(ctx, "item sent", logger.ItemID(item.ID), logger.Kind(item.Kind))
//
// Development defaults to text output at DEBUG; staging and production use
// JSON at INFO.
//
// Handlers are wrapped in LogHandlerDecorator, which runs registered
// ContextExtractor functions on every record. The admin HTTP server uses it to
// attach the chi request id.
package logger
