package middleware

// StrictRateLimiter - For credential endpoints (register, login)
// Burst: 5 requests, Sustained: 1 request per 5 seconds
func StrictRateLimiter() *RateLimiterConfig {
	return &RateLimiterConfig{
		Capacity:   5,
		RefillRate: 0.2,
	}
}

// ConservativeRateLimiter - For authenticated writes (post create/update)
// Burst: 10 requests, Sustained: 5 requests per second
func ConservativeRateLimiter() *RateLimiterConfig {
	return &RateLimiterConfig{
		Capacity:   10,
		RefillRate: 5.0,
	}
}
