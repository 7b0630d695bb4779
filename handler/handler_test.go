package handler_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/handler"
)

type nameRequest struct {
	Name string
}

func bindName(name string, err error) handler.Bind {
	return func(_ *http.Request, v any) error {
		if err != nil {
			return err
		}
		v.(*nameRequest).Name = name
		return nil
	}
}

func TestWrap(t *testing.T) {
	t.Parallel()

	t.Run("binders run in order before the handler", func(t *testing.T) {
		t.Parallel()

		h := handler.Wrap(func(ctx handler.Context, req nameRequest) handler.Response {
			assert.NotNil(t, ctx.Request())
			assert.NotNil(t, ctx.ResponseWriter())
			return handler.JSON(req.Name)
		}, handler.WithBinders(bindName("first", nil), nil, bindName("second", nil)))

		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":"second"}`, rec.Body.String())
	})

	t.Run("binder error goes to the error handler", func(t *testing.T) {
		t.Parallel()

		bindErr := errors.New("bad input")
		var handled error
		called := false

		h := handler.Wrap(func(handler.Context, nameRequest) handler.Response {
			called = true
			return handler.JSON("unreachable")
		},
			handler.WithBinders(bindName("", bindErr)),
			handler.WithErrorHandler(func(ctx handler.Context, err error) {
				handled = err
				ctx.ResponseWriter().WriteHeader(http.StatusTeapot)
			}))

		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.False(t, called)
		assert.ErrorIs(t, handled, bindErr)
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})

	t.Run("default error handler uses HTTPError status", func(t *testing.T) {
		t.Parallel()

		h := handler.Wrap(func(handler.Context, nameRequest) handler.Response { return nil },
			handler.WithBinders(bindName("", handler.NewHTTPError(http.StatusBadRequest, "bad_input", errors.New("name required")))))

		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "name required")
	})

	t.Run("nil response is a server error", func(t *testing.T) {
		t.Parallel()

		var handled error
		h := handler.Wrap(func(handler.Context, struct{}) handler.Response { return nil },
			handler.WithErrorHandler(func(ctx handler.Context, err error) {
				handled = err
				ctx.ResponseWriter().WriteHeader(http.StatusInternalServerError)
			}))

		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.ErrorIs(t, handled, handler.ErrNilResponse)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHTTPError(t *testing.T) {
	t.Parallel()

	cause := errors.New("item is pending")
	err := handler.NewHTTPError(http.StatusConflict, "not_failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "item is pending", err.Error())

	assert.Equal(t, "not_found", handler.HTTPError{Code: http.StatusNotFound, Key: "not_found"}.Error())
}
