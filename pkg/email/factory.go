package email

import (
	"fmt"
	"strings"
)

// New builds the sender selected by cfg.Driver.
func New(cfg Config) (EmailSender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverPostmark:
		return NewPostmarkClient(cfg)
	case DriverSMTP:
		return NewSMTPSender(cfg)
	case DriverDev, "":
		return NewDevSender(cfg.DevOutputDir), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func validateIdentity(cfg Config) error {
	if cfg.SenderEmail == "" {
		return fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if cfg.SupportEmail == "" {
		return fmt.Errorf("%w: SupportEmail is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SupportEmail) {
		return fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}
	return nil
}
