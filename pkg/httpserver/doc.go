// Package httpserver runs an http.Handler until its context is cancelled and
// shuts it down gracefully, which makes Run a natural errgroup member:
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// Signal handling is left to the caller (signal.NotifyContext in main).
// LivenessHandler and ReadinessHandler provide the probe endpoints.
package httpserver
