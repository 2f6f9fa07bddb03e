package ratelimit

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientIdentityBearerTokenPrefix(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	token := strings.Repeat("x", 40)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	identity := ClientIdentity(req)
	if identity != "user:"+token[:20] {
		t.Fatalf("expected truncated token identity, got %q", identity)
	}
}

func TestClientIdentityShortTokenKeptWhole(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	req.Header.Set("Authorization", "Bearer abc")

	if identity := ClientIdentity(req); identity != "user:abc" {
		t.Fatalf("expected user:abc, got %q", identity)
	}
}

func TestClientIdentityForwardedForFirstEntry(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/issues", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("X-Real-IP", "198.51.100.7")

	if identity := ClientIdentity(req); identity != "ip:203.0.113.9" {
		t.Fatalf("expected first forwarded entry, got %q", identity)
	}
}

func TestClientIdentityRealIPFallback(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/issues", nil)
	req.Header.Set("X-Real-IP", "198.51.100.7")

	if identity := ClientIdentity(req); identity != "ip:198.51.100.7" {
		t.Fatalf("expected real ip, got %q", identity)
	}
}

func TestClientIdentityUnknownFallback(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/issues", nil)

	if identity := ClientIdentity(req); identity != "ip:unknown" {
		t.Fatalf("expected unknown identity, got %q", identity)
	}
}

func TestKeyScopesIdentityAndRoute(t *testing.T) {
	if key := Key("ip:10.0.0.1", "/api/auth/login"); key != "ip:10.0.0.1:/api/auth/login" {
		t.Fatalf("unexpected key %q", key)
	}
}
