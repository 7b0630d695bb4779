package mailer

import "errors"

var (
	ErrSenderNil      = errors.New("mailer: email sender is nil")
	ErrInvalidBaseURL = errors.New("mailer: invalid base url")
	ErrMissingToken   = errors.New("mailer: token is required for this kind")
	ErrRender         = errors.New("mailer: failed to render template")
)
