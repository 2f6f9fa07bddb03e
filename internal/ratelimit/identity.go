package ratelimit

import (
	"net/http"
	"strings"
)

// tokenIdentityLength bounds how much of a bearer token becomes the
// identity, so full secrets are never held in the window table.
const tokenIdentityLength = 20

// ClientIdentity derives the rate limit identity for a request.
//
// Precedence is fixed: an Authorization bearer token wins (taken as an
// opaque prefix, deliberately unverified), then the first X-Forwarded-For
// entry, then X-Real-IP, then the literal "unknown".
func ClientIdentity(r *http.Request) string {
	if r == nil {
		return "ip:unknown"
	}

	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		token = strings.TrimSpace(token)
		if token != "" {
			if len(token) > tokenIdentityLength {
				token = token[:tokenIdentityLength]
			}
			return "user:" + token
		}
	}

	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return "ip:" + first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return "ip:" + realIP
	}
	return "ip:unknown"
}

// Key scopes a limit to one (identity, route) pair so exhausting one
// endpoint class never blocks another.
func Key(identity, routePath string) string {
	return identity + ":" + routePath
}
