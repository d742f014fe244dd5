package cache

import "fmt"

// InferenceReplyKey is the key of a cached inference reply. requestHash is the
// hex SHA-256 of the canonical request.
func InferenceReplyKey(requestHash string) string {
	return fmt.Sprintf("inference:%s", requestHash)
}

// RateLimitKey is the fixed-window counter key for one client in one window.
func RateLimitKey(client string, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%d", client, window)
}
