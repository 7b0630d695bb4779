// Package handler provides type-safe HTTP request handling.
//
// A HandlerFunc receives a Context and a request value populated by binders,
// and returns a Response that renders itself:
//
//	type ItemRequest struct {
//		ID uuid.UUID `path:"id"`
//	}
//
//	r.Get("/items/{id}", handler.Wrap(
//		func(ctx handler.Context, req ItemRequest) handler.Response {
//			item, err := store.Get(ctx, req.ID)
//			if err != nil {
//				return handler.JSONError(err)
//			}
//			return handler.JSON(item)
//		},
//		handler.WithBinders(binder.Path(chi.URLParam)),
//	))
//
// Binding and rendering failures go to the ErrorHandler configured with
// WithErrorHandler. HTTPError carries the status code and a stable key that
// JSON error bodies expose as "code".
package handler
