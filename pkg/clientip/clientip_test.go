package clientip_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/clientip"
)

func TestResolver_IP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers []string
		set     map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, nil, "10.0.0.1:1234", "10.0.0.1"},
		{"remote addr without port", nil, nil, "10.0.0.1", "10.0.0.1"},
		{"forwarded first valid entry", nil, map[string]string{"X-Forwarded-For": "bogus, 203.0.113.7, 10.0.0.2"}, "10.0.0.1:1", "203.0.113.7"},
		{"real ip after empty forwarded", nil, map[string]string{"X-Real-IP": " 198.51.100.4 "}, "10.0.0.1:1", "198.51.100.4"},
		{"ipv6 normalized", nil, map[string]string{"X-Real-IP": "2001:DB8::1"}, "10.0.0.1:1", "2001:db8::1"},
		{"untrusted header ignored", []string{}, map[string]string{"X-Forwarded-For": "203.0.113.7"}, "10.0.0.1:1", "10.0.0.1"},
		{"custom header", []string{"cf-connecting-ip"}, map[string]string{"CF-Connecting-IP": "203.0.113.9", "X-Real-IP": "198.51.100.4"}, "10.0.0.1:1", "203.0.113.9"},
		{"garbage everywhere", nil, map[string]string{"X-Real-IP": "nope"}, "nope", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.set {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientip.New(tt.headers).IP(r))
		})
	}
}

func TestMiddlewareAndExtractor(t *testing.T) {
	t.Parallel()

	var got context.Context
	h := clientip.New(nil).Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = r.Context()
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "192.0.2.10", clientip.FromContext(got))
	attr, ok := clientip.LoggerExtractor()(got)
	assert.True(t, ok)
	assert.Equal(t, "client_ip", attr.Key)
	assert.Equal(t, "192.0.2.10", attr.Value.String())

	_, ok = clientip.LoggerExtractor()(context.Background())
	assert.False(t, ok)
}
