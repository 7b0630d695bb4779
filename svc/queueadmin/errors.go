package queueadmin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/mailqueue/handler"
	"github.com/dmitrymomot/mailqueue/pkg/binder"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

// httpError maps queue and binding errors onto HTTP statuses.
func httpError(err error) handler.HTTPError {
	switch {
	case errors.Is(err, binder.ErrInvalidPath):
		return handler.NewHTTPError(http.StatusBadRequest, "invalid_id", errors.New("item id must be a UUID"))
	case errors.Is(err, binder.ErrMissingContentType), errors.Is(err, binder.ErrUnsupportedMediaType):
		return handler.NewHTTPError(http.StatusUnsupportedMediaType, "unsupported_media_type", err)
	case errors.Is(err, binder.ErrInvalidJSON):
		return handler.NewHTTPError(http.StatusBadRequest, "invalid_body", err)
	case errors.Is(err, mailqueue.ErrInvalidItem):
		return handler.NewHTTPError(http.StatusUnprocessableEntity, "invalid_item", err)
	case errors.Is(err, mailqueue.ErrNotFound):
		return handler.NewHTTPError(http.StatusNotFound, "not_found", err)
	case errors.Is(err, mailqueue.ErrNotFailed):
		return handler.NewHTTPError(http.StatusConflict, "not_failed", err)
	case errors.Is(err, mailqueue.ErrConflict):
		return handler.NewHTTPError(http.StatusConflict, "conflict", err)
	default:
		return handler.NewHTTPError(http.StatusInternalServerError, "internal_error", err)
	}
}

// fail renders err as a JSON error. Server errors are logged; their text
// never reaches the client.
func (s *Service) fail(ctx handler.Context, err error) handler.Response {
	httpErr := httpError(err)
	if httpErr.Code >= http.StatusInternalServerError {
		r := ctx.Request()
		s.logger.ErrorContext(ctx, "admin request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err))
	}
	return handler.JSONError(httpErr)
}

// errorHandler renders binding failures the same way as handler errors.
func (s *Service) errorHandler(ctx handler.Context, err error) {
	_ = s.fail(ctx, err).Render(ctx.ResponseWriter(), ctx.Request())
}
