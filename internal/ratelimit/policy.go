package ratelimit

import "time"

// Named endpoint-class policies.
const (
	PolicyDefault     = "default"
	PolicyAuth        = "auth"
	PolicyUpload      = "upload"
	PolicyIssueCreate = "issue-create"
	PolicyAdmin       = "admin"
	PolicyPublic      = "public"
)

// Default ceilings per endpoint class. Product decisions; runtime overrides
// come from the settings table, these values are the fixed fallbacks.
const (
	DefaultMaxRequests     = 100
	AuthMaxRequests        = 5
	UploadMaxRequests      = 10
	IssueCreateMaxRequests = 20
	AdminMaxRequests       = 200
	PublicMaxRequests      = 50
)

// Policy is an immutable per-endpoint-class rate limit configuration.
type Policy struct {
	Name        string
	MaxRequests int
	Window      time.Duration
	Message     string
}

var basePolicies = map[string]Policy{
	PolicyDefault: {
		Name:        PolicyDefault,
		MaxRequests: DefaultMaxRequests,
		Window:      15 * time.Minute,
		Message:     "Too many requests, please try again later",
	},
	PolicyAuth: {
		Name:        PolicyAuth,
		MaxRequests: AuthMaxRequests,
		Window:      15 * time.Minute,
		Message:     "Too many authentication attempts, please try again later",
	},
	PolicyUpload: {
		Name:        PolicyUpload,
		MaxRequests: UploadMaxRequests,
		Window:      time.Hour,
		Message:     "Upload limit reached, please try again later",
	},
	PolicyIssueCreate: {
		Name:        PolicyIssueCreate,
		MaxRequests: IssueCreateMaxRequests,
		Window:      time.Hour,
		Message:     "Issue submission limit reached, please try again later",
	},
	PolicyAdmin: {
		Name:        PolicyAdmin,
		MaxRequests: AdminMaxRequests,
		Window:      15 * time.Minute,
		Message:     "Too many requests, please try again later",
	},
	PolicyPublic: {
		Name:        PolicyPublic,
		MaxRequests: PublicMaxRequests,
		Window:      15 * time.Minute,
		Message:     "Too many requests, please try again later",
	},
}

// BasePolicy returns the built-in policy for a class name, falling back to
// the default class for unknown names.
func BasePolicy(name string) Policy {
	if policy, ok := basePolicies[name]; ok {
		return policy
	}
	return basePolicies[PolicyDefault]
}
