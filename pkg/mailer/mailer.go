package mailer

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/mailqueue/pkg/email"
	"github.com/dmitrymomot/mailqueue/pkg/email/templates"
	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

// Mailer turns queue messages into rendered emails and hands them to an email.EmailSender.
type Mailer struct {
	sender  email.EmailSender
	appName string
	baseURL *url.URL
}

// New creates a Mailer. cfg.BaseURL must be an absolute http(s) URL.
func New(sender email.EmailSender, cfg Config) (*Mailer, error) {
	if sender == nil {
		return nil, ErrSenderNil
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}

	appName := cfg.AppName
	if appName == "" {
		appName = "MailQueue"
	}

	return &Mailer{sender: sender, appName: appName, baseURL: base}, nil
}

// Handlers returns the dispatch table for every kind this mailer renders.
func (m *Mailer) Handlers() map[mailqueue.Kind]mailqueue.SendFunc {
	return map[mailqueue.Kind]mailqueue.SendFunc{
		mailqueue.KindConfirmation:    m.SendConfirmation,
		mailqueue.KindWelcome:         m.SendWelcome,
		mailqueue.KindPasswordReset:   m.SendPasswordReset,
		mailqueue.KindPasswordChanged: m.SendPasswordChanged,
	}
}

// SendConfirmation sends the account confirmation link.
func (m *Mailer) SendConfirmation(ctx context.Context, msg mailqueue.Message) error {
	if msg.Token == "" {
		return ErrMissingToken
	}
	link := m.link("/auth/confirm", msg.Token)
	return m.send(ctx, msg, "Confirm your email",
		"Confirm your email address by opening this link: "+link,
		templates.Greeting(msg.RecipientName),
		templates.Paragraph("Please confirm your email address to finish setting up your "+m.appName+" account."),
		templates.Button("Confirm email", link),
		templates.Paragraph("If you did not create an account, you can ignore this email."),
	)
}

// SendWelcome greets a newly confirmed user.
func (m *Mailer) SendWelcome(ctx context.Context, msg mailqueue.Message) error {
	link := m.link("", "")
	return m.send(ctx, msg, "Welcome to "+m.appName,
		"Welcome to "+m.appName+"! Get started at "+link,
		templates.Greeting(msg.RecipientName),
		templates.Paragraph("Welcome to "+m.appName+". Your account is ready."),
		templates.Button("Get started", link),
	)
}

// SendPasswordReset sends the password reset link.
func (m *Mailer) SendPasswordReset(ctx context.Context, msg mailqueue.Message) error {
	if msg.Token == "" {
		return ErrMissingToken
	}
	link := m.link("/auth/reset-password", msg.Token)
	return m.send(ctx, msg, "Reset your password",
		"Reset your password by opening this link: "+link,
		templates.Greeting(msg.RecipientName),
		templates.Paragraph("We received a request to reset your password."),
		templates.Button("Reset password", link),
		templates.Paragraph("If you did not request a reset, no action is needed."),
	)
}

// SendPasswordChanged notifies the user that their password was changed.
func (m *Mailer) SendPasswordChanged(ctx context.Context, msg mailqueue.Message) error {
	link := m.link("/auth/login", "")
	return m.send(ctx, msg, "Your password was changed",
		"Your "+m.appName+" password was changed. If this was not you, reset it at "+link,
		templates.Greeting(msg.RecipientName),
		templates.Paragraph("The password for your "+m.appName+" account was just changed."),
		templates.Paragraph("If you did not make this change, reset your password right away."),
		templates.Button("Sign in", link),
	)
}

func (m *Mailer) send(ctx context.Context, msg mailqueue.Message, subject, text string, body ...templ.Component) error {
	html, err := templates.Render(ctx, templates.Layout(m.appName, subject, body...))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRender, msg.Kind, err)
	}

	return m.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:     msg.RecipientEmail,
		SendToName: msg.RecipientName,
		Subject:    subject,
		BodyHTML:   html,
		BodyText:   text,
		Tag:        string(msg.Kind),
	})
}

// link joins path onto the base URL, adding token as a query parameter when set.
func (m *Mailer) link(path, token string) string {
	u := *m.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String()
}
