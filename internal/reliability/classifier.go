package reliability

import "strings"

// IsRateLimitHTTPStatus classifies HTTP status codes that indicate
// capacity or quota exhaustion at the provider.
func IsRateLimitHTTPStatus(code int) bool {
	return code == 429
}

// IsRateLimitMessage classifies provider error text that indicates rate or
// quota exhaustion. Providers are inconsistent about status codes, so the
// message body is checked too.
func IsRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate") && strings.Contains(lower, "limit")
}
