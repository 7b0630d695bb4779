// Package email sends rendered transactional messages through a pluggable provider.
//
// EmailSender is the single delivery contract. Three implementations ship
// with the package and are selected by MAIL_DRIVER through New:
//
//   - postmark: the Postmark transactional API with open and link tracking
//   - smtp: any SMTP relay via gomail, optionally DKIM-signed with go-msgauth
//   - dev: writes .html and .json files to MAIL_DEV_DIR for local inspection
//
// Every sender validates SendEmailParams before talking to the provider, so
// malformed input fails with ErrInvalidParams and provider failures with
// ErrFailedToSendEmail:
//
//	sender, err := email.New(cfg)
//	if err != nil {
//		return err
//	}
//
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "user@example.com",
//		Subject:  "Confirm your email",
//		BodyHTML: html,
//		Tag:      "confirmation",
//	})
//
// HTML bodies are built from the templ components in the templates subpackage.
package email
