package clientip

import (
	"net"
	"net/http"
	"strings"
)

// DefaultHeaders are consulted in order before falling back to RemoteAddr.
var DefaultHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// Resolver extracts the caller address from a request. Only headers set by
// a trusted proxy should be listed.
type Resolver struct {
	headers []string
}

// New creates a Resolver reading the given headers in order. With no
// headers it uses DefaultHeaders; pass an empty, non-nil slice to trust
// RemoteAddr only.
func New(headers []string) *Resolver {
	if headers == nil {
		headers = DefaultHeaders
	}
	canon := make([]string, 0, len(headers))
	for _, h := range headers {
		if h = strings.TrimSpace(h); h != "" {
			canon = append(canon, http.CanonicalHeaderKey(h))
		}
	}
	return &Resolver{headers: canon}
}

// IP returns the normalized client address or "" when nothing parses.
// X-Forwarded-For yields its first valid entry.
func (res *Resolver) IP(r *http.Request) string {
	for _, h := range res.headers {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		for part := range strings.SplitSeq(v, ",") {
			if ip := parseIP(part); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

// Middleware stores the resolved address in the request context.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), res.IP(r))))
	})
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
