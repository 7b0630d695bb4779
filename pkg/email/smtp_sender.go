package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

type smtpSender struct {
	addr   string
	tls    *tls.Config
	signer *DKIMSigner
	config Config
	now    func() time.Time
}

// NewSMTPSender creates a sender that relays through an SMTP server,
// DKIM-signing each message when SMTP_DKIM_* is configured.
func NewSMTPSender(cfg Config) (EmailSender, error) {
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("%w: SMTPHost is required", ErrInvalidConfig)
	}
	if cfg.SMTPPort <= 0 {
		return nil, fmt.Errorf("%w: SMTPPort must be positive", ErrInvalidConfig)
	}
	if cfg.SMTPTimeout <= 0 {
		return nil, fmt.Errorf("%w: SMTPTimeout must be positive", ErrInvalidConfig)
	}
	if err := validateIdentity(cfg); err != nil {
		return nil, err
	}

	signer, err := NewDKIMSigner(cfg)
	if err != nil {
		return nil, err
	}

	return &smtpSender{
		addr:   net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		tls:    &tls.Config{ServerName: cfg.SMTPHost, MinVersion: tls.VersionTLS12},
		signer: signer,
		config: cfg,
		now:    time.Now,
	}, nil
}

// SendEmail implements EmailSender. The whole SMTP session runs under
// SMTPTimeout and is aborted as soon as ctx is done.
func (s *smtpSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}

	raw, err := s.buildMessage(params)
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.SMTPTimeout)
	defer cancel()

	if err := s.deliver(ctx, params.SendTo, raw); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(ErrFailedToSendEmail, ctxErr, err)
		}
		return errors.Join(ErrFailedToSendEmail, err)
	}
	return nil
}

func (s *smtpSender) deliver(ctx context.Context, to string, raw []byte) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("smtp set deadline: %w", err)
		}
	}
	// Unblock pending reads and writes on cancellation.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer client.Close()

	if !s.config.SMTPImplicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(s.tls); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if s.config.SMTPUsername != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := client.Mail(s.config.SenderEmail); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("smtp data write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return client.Quit()
}

func (s *smtpSender) dial(ctx context.Context) (net.Conn, error) {
	if s.config.SMTPImplicitTLS {
		d := &tls.Dialer{Config: s.tls}
		return d.DialContext(ctx, "tcp", s.addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", s.addr)
}

// buildMessage renders the MIME message and signs it.
func (s *smtpSender) buildMessage(params SendEmailParams) ([]byte, error) {
	m := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	m.SetAddressHeader("From", s.config.SenderEmail, s.config.SenderName)
	if params.SendToName != "" {
		m.SetAddressHeader("To", params.SendTo, params.SendToName)
	} else {
		m.SetHeader("To", params.SendTo)
	}
	m.SetHeader("Reply-To", s.config.SupportEmail)
	m.SetHeader("Subject", params.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(s.config.SenderEmail)))
	m.SetDateHeader("Date", s.now())
	if params.Tag != "" {
		m.SetHeader("X-Mail-Tag", params.Tag)
	}

	if params.BodyText != "" {
		m.SetBody("text/plain", params.BodyText)
		m.AddAlternative("text/html", params.BodyHTML)
	} else {
		m.SetBody("text/html", params.BodyHTML)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render message: %w", err)
	}

	return s.signer.Sign(buf.Bytes())
}
