package sms

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

func buildOptions(timeout time.Duration, opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = cleanhttp.DefaultPooledClient()
		o.client.Timeout = timeout
	}
	return o
}

// classify turns a non-2xx status into a send error. Client errors other
// than throttling will not change on retry.
func classify(status int, detail string) error {
	providerErr := fmt.Errorf("provider responded %d: %s", status, detail)
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests && status != http.StatusRequestTimeout {
		return errors.Join(ErrFailedToSend, ErrRejected, providerErr)
	}
	return errors.Join(ErrFailedToSend, providerErr)
}
