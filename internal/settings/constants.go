package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the UI site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback UI site name.
	DefaultSiteName = "OurStreet"
	// RateLimitDefaultKey overrides the default endpoint-class ceiling.
	RateLimitDefaultKey = "RATE_LIMIT_DEFAULT"
	// RateLimitAuthKey overrides the authentication endpoint ceiling.
	RateLimitAuthKey = "RATE_LIMIT_AUTH"
	// RateLimitUploadKey overrides the upload endpoint ceiling.
	RateLimitUploadKey = "RATE_LIMIT_UPLOAD"
	// RateLimitIssueCreateKey overrides the issue-creation endpoint ceiling.
	RateLimitIssueCreateKey = "RATE_LIMIT_ISSUE_CREATE"
	// RateLimitAdminKey overrides the admin endpoint ceiling.
	RateLimitAdminKey = "RATE_LIMIT_ADMIN"
	// RateLimitPublicKey overrides the public endpoint ceiling.
	RateLimitPublicKey = "RATE_LIMIT_PUBLIC"
	// RateLimitRedisEnabledKey toggles Redis-backed rate limiting.
	RateLimitRedisEnabledKey = "RATE_LIMIT_REDIS_ENABLED"
	// RateLimitRedisAddrKey defines the Redis address for rate limiting.
	RateLimitRedisAddrKey = "RATE_LIMIT_REDIS_ADDR"
	// RateLimitRedisPasswordKey defines the Redis password for rate limiting.
	RateLimitRedisPasswordKey = "RATE_LIMIT_REDIS_PASSWORD"
	// RateLimitRedisDBKey defines the Redis DB index for rate limiting.
	RateLimitRedisDBKey = "RATE_LIMIT_REDIS_DB"
	// RateLimitRedisPrefixKey defines the Redis key prefix for rate limiting.
	RateLimitRedisPrefixKey = "RATE_LIMIT_REDIS_PREFIX"
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "ourstreet:rl"
)
