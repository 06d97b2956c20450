package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestAdminAuthMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		username       string
		password       string
		token          string
		reqUsername    string
		reqPassword    string
		reqToken       string
		expectedStatus int
	}{
		{
			name:           "no auth configured - allows request",
			username:       "",
			password:       "",
			token:          "",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "valid basic auth",
			username:       "admin",
			password:       "secret123",
			reqUsername:    "admin",
			reqPassword:    "secret123",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid basic auth username",
			username:       "admin",
			password:       "secret123",
			reqUsername:    "wrong",
			reqPassword:    "secret123",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid basic auth password",
			username:       "admin",
			password:       "secret123",
			reqUsername:    "admin",
			reqPassword:    "wrong",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "valid token auth",
			token:          "test-token-12345",
			reqToken:       "test-token-12345",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid token auth",
			token:          "test-token-12345",
			reqToken:       "wrong-token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "token auth takes precedence over basic auth",
			username:       "admin",
			password:       "secret123",
			token:          "test-token-12345",
			reqToken:       "test-token-12345",
			reqUsername:    "wrong",
			reqPassword:    "wrong",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Configure auth
			cfg := AuthConfig{
				Username: tt.username,
				Password: tt.password,
				Token:    tt.token,
			}

			// Create test handler
			handler := adminAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			}), cfg)

			// Create request
			req := httptest.NewRequest(http.MethodPost, "/game/next", nil)
			if tt.reqUsername != "" || tt.reqPassword != "" {
				req.SetBasicAuth(tt.reqUsername, tt.reqPassword)
			}
			if tt.reqToken != "" {
				req.Header.Set("X-Admin-Token", tt.reqToken)
			}

			// Execute request
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			// Check status
			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rr.Code)
			}

			// Check WWW-Authenticate header on 401
			if tt.expectedStatus == http.StatusUnauthorized {
				if auth := rr.Header().Get("WWW-Authenticate"); auth == "" {
					t.Error("expected WWW-Authenticate header on 401 response")
				}
			}
		})
	}
}

func newTestLimiter(t *testing.T, requests int) (*ipRateLimiter, *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	clock := clockwork.NewFakeClock()
	limiter := newIPRateLimiter(ctx, RateLimitConfig{
		Enabled:       true,
		RequestsPerIP: requests,
		Window:        time.Minute,
		Clock:         clock,
	})
	return limiter, clock
}

func TestRateLimiter(t *testing.T) {
	limiter, clock := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !limiter.allow("192.168.1.1") {
			t.Errorf("request %d should be allowed", i+1)
		}
	}
	if limiter.allow("192.168.1.1") {
		t.Error("4th request should be denied")
	}

	clock.Advance(time.Minute + time.Second)
	if !limiter.allow("192.168.1.1") {
		t.Error("request after window should be allowed")
	}
}

func TestRateLimiterDifferentIPs(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2)

	if !limiter.allow("192.168.1.1") || !limiter.allow("192.168.1.1") {
		t.Fatal("first two requests from IP1 should be allowed")
	}
	if limiter.allow("192.168.1.1") {
		t.Error("3rd request from IP1 should be denied")
	}
	if !limiter.allow("192.168.1.2") {
		t.Error("IP2 has its own budget")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := newIPRateLimiter(context.Background(), RateLimitConfig{Enabled: false, RequestsPerIP: 1})

	for i := 0; i < 10; i++ {
		if !limiter.allow("192.168.1.1") {
			t.Errorf("request %d should be allowed when rate limiting is disabled", i+1)
		}
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	limiter, clock := newTestLimiter(t, 2)
	limiter.allow("192.168.1.1")

	clock.Advance(3 * time.Minute)
	limiter.cleanup()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if len(limiter.visitors) != 0 {
		t.Errorf("expected stale visitors to be removed, got %d", len(limiter.visitors))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2)
	handler := rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), limiter)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/game/next", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("request %d: expected status 200, got %d", i+1, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/game/next", nil)
	req.RemoteAddr = "192.168.1.1:54321"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Errorf("expected Retry-After 60, got %q", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		remote    string
		forwarded string
		want      string
	}{
		{name: "ipv4 with port", remote: "10.0.0.1:1234", want: "10.0.0.1"},
		{name: "ipv4 without port", remote: "10.0.0.1", want: "10.0.0.1"},
		{name: "ipv6 with port", remote: "[2001:db8::1]:8080", want: "2001:db8::1"},
		{name: "ipv6 without port", remote: "2001:db8::1", want: "2001:db8::1"},
		{name: "forwarded list", remote: "10.0.0.1:1234", forwarded: "203.0.113.7, 10.0.0.2", want: "203.0.113.7"},
		{name: "forwarded single", remote: "10.0.0.1:1234", forwarded: " 203.0.113.8 ", want: "203.0.113.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCORSOptions(t *testing.T) {
	open := corsOptions(nil)
	if len(open.AllowedOrigins) != 1 || open.AllowedOrigins[0] != "*" || open.AllowCredentials {
		t.Errorf("expected permissive options without origins, got %+v", open)
	}
	restricted := corsOptions([]string{"https://overlay.example"})
	if restricted.AllowedOrigins[0] != "https://overlay.example" || !restricted.AllowCredentials {
		t.Errorf("expected restricted options, got %+v", restricted)
	}
}
