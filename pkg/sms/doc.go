// Package sms sends text messages through Twilio, a generic JSON gateway, or
// a development driver that only logs.
//
//	cfg := config.MustLoad[sms.Config]()
//	sender := sms.MustNew(cfg, sms.WithLogger(log))
//	res, err := sender.SendSMS(ctx, sms.Message{To: "+15551234567", Body: "Your code is 1234"})
//
// Errors wrap ErrInvalidMessage, ErrFailedToSend and, for responses that
// will not change on retry, ErrRejected.
package sms
