// Package identity derives the keys requests are throttled under.
//
// The anonymous identifier is a truncated user agent plus a 5-minute time
// bucket. It is not bound to a user or a session, changes every bucket and is
// shared by every client with the same user agent, so it only makes a UX
// throttle. Abuse resistance comes from the authenticated user id and the
// client IP that ForRequest mixes in.
package identity

import (
	"fmt"
	"strings"
	"time"
)

const (
	userAgentPrefix = 50
	bucketSize      = 5 * time.Minute
)

type Request struct {
	UserID    string
	ClientIP  string
	UserAgent string
}

// Anonymous identifier for a user agent at time now
func Derive(userAgent string, now time.Time) string {
	ua := truncateRunes(strings.ToValidUTF8(userAgent, "\uFFFD"), userAgentPrefix)
	return fmt.Sprintf("%s_%d", ua, now.UnixMilli()/bucketSize.Milliseconds())
}

// Rate limit key for a request. Authenticated users are keyed by id alone so
// they share one budget across devices.
func ForRequest(r Request, now time.Time) string {
	if id := strings.TrimSpace(r.UserID); id != "" {
		return "user:" + id
	}
	return "anon:" + r.ClientIP + ":" + Derive(r.UserAgent, now)
}

// First n runes of s
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
