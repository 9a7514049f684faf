// Package email sends transactional emails through a provider-agnostic Sender.
//
// Three drivers are available:
//   - Postmark, via NewPostmarkClient, with open and link tracking
//   - SMTP, via NewSMTPSender, for self-hosted relays
//   - Dev, via NewDevSender, which writes HTML and JSON files to disk
//
// New picks one from Config.Driver, which is usually loaded with pkg/config:
//
//	cfg := config.MustLoad[email.Config]()
//	sender := email.MustNew(cfg, log)
//
//	err := sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   "user@example.com",
//	    Subject:  "Welcome!",
//	    BodyHTML: html,
//	    Tag:      "welcome",
//	})
//
// Every driver validates SendEmailParams before doing any I/O and wraps
// failures in ErrInvalidParams or ErrFailedToSendEmail. Provider responses
// that will not succeed on retry (bad token, inactive recipient, SMTP 5xx
// during dial) additionally carry ErrRejected so queue handlers can stop
// retrying them.
package email
