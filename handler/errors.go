package handler

import (
	"errors"
	"net/http"
)

// ErrNilResponse indicates a handler returned nil instead of a Response
var ErrNilResponse = errors.New("handler returned nil response")

// HTTPError is an error with an HTTP status code and a stable key.
// Message is shown to clients for 4xx codes; 5xx bodies always carry the
// generic status text.
type HTTPError struct {
	Code    int
	Key     string
	Message string
	Err     error
}

// NewHTTPError wraps err with a status code and key.
func NewHTTPError(code int, key string, err error) HTTPError {
	e := HTTPError{Code: code, Key: key, Err: err}
	if err != nil {
		e.Message = err.Error()
	}
	return e
}

func (e HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Key
}

func (e HTTPError) Unwrap() error {
	return e.Err
}

// publicMessage is the text safe to send to a client.
func (e HTTPError) publicMessage() string {
	if e.Code >= http.StatusInternalServerError || e.Message == "" {
		return http.StatusText(e.Code)
	}
	return e.Message
}
