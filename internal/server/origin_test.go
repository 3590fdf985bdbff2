package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func requestFrom(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		origin  string
		want    bool
	}{
		{name: "exact match", allowed: "http://localhost:8080", origin: "http://localhost:8080", want: true},
		{name: "case insensitive", allowed: "http://localhost:8080", origin: "HTTP://LocalHost:8080", want: true},
		{name: "one of many", allowed: "https://a.example, https://b.example", origin: "https://b.example", want: true},
		{name: "path ignored", allowed: "https://a.example/app", origin: "https://a.example", want: true},
		{name: "other port", allowed: "http://localhost:8080", origin: "http://localhost:3000", want: false},
		{name: "missing header", allowed: "http://localhost:8080", origin: "", want: false},
		{name: "wildcard", allowed: "*", origin: "https://anywhere.example", want: true},
		{name: "wildcard still needs a valid origin", allowed: "*", origin: "not an origin", want: false},
		{name: "invalid entries skipped", allowed: "localhost, ,http://ok.example", origin: "http://ok.example", want: true},
		{name: "nothing allowed", allowed: "", origin: "http://localhost:8080", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := newOriginPolicy(tt.allowed, slog.New(slog.DiscardHandler))
			assert.Equal(t, tt.want, policy.check(requestFrom(tt.origin)))
		})
	}
}
