package identity

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestDerive_TruncatesUserAgent(t *testing.T) {
	ua := strings.Repeat("x", 120)
	now := time.UnixMilli(0)

	assert.Equal(t, strings.Repeat("x", 50)+"_0", Derive(ua, now))
	assert.Equal(t, "curl/8.0_0", Derive("curl/8.0", now))
}

func TestDerive_TruncatesOnRuneBoundary(t *testing.T) {
	now := time.UnixMilli(0)

	ua := "a" + strings.Repeat("é", 60)
	got := Derive(ua, now)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "a"+strings.Repeat("é", 49)+"_0", got)

	got = Derive("bad\xffagent", now)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "bad\uFFFDagent_0", got)
}

func TestDerive_FiveMinuteBuckets(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, Derive("ua", start), Derive("ua", start.Add(4*time.Minute+59*time.Second)))
	assert.NotEqual(t, Derive("ua", start), Derive("ua", start.Add(5*time.Minute)))
}

func TestForRequest(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	t.Run("AuthenticatedUser", func(t *testing.T) {
		a := ForRequest(Request{UserID: "42", ClientIP: "10.0.0.1", UserAgent: "a"}, now)
		b := ForRequest(Request{UserID: "42", ClientIP: "10.0.0.2", UserAgent: "b"}, now)
		assert.Equal(t, "user:42", a)
		assert.Equal(t, a, b)
	})

	t.Run("AnonymousIncludesClientIP", func(t *testing.T) {
		a := ForRequest(Request{ClientIP: "10.0.0.1", UserAgent: "Mozilla"}, now)
		b := ForRequest(Request{ClientIP: "10.0.0.2", UserAgent: "Mozilla"}, now)
		assert.True(t, strings.HasPrefix(a, "anon:10.0.0.1:Mozilla_"))
		assert.NotEqual(t, a, b)
	})
}
