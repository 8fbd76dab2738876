package models

import "strings"

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// so a crafted identifier cannot address another bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewIPKey builds the bucket key for one client IP within a scope.
func NewIPKey(scope, ip string) string {
	return "ip:" + SanitizeKeySegment(scope) + ":" + SanitizeKeySegment(ip)
}
