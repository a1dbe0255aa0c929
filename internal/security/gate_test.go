package security

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mybeatfi/securegate/internal/circuitbreaker"
	"github.com/mybeatfi/securegate/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Record(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) kinds() []EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventKind, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

type rejectedErr struct{ msg string }

func (e rejectedErr) Error() string  { return e.msg }
func (e rejectedErr) Rejected() bool { return true }

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGate(t *testing.T, opts ...Option) (*Gate, *recordingSink, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	sink := &recordingSink{}
	limiters := Limiters{
		Auth:    ratelimit.NewMemory(5, 15*time.Minute, ratelimit.WithClock(clock.Now)),
		API:     ratelimit.NewMemory(100, time.Minute, ratelimit.WithClock(clock.Now)),
		Payment: ratelimit.NewMemory(3, 5*time.Minute, ratelimit.WithClock(clock.Now)),
	}

	opts = append([]Option{WithSessionID("session-1"), WithSink(sink), WithClock(clock.Now)}, opts...)
	return New(DefaultConfig(), limiters, opts...), sink, clock
}

func TestGate_BlocksOnFifthViolation(t *testing.T) {
	g, sink, _ := newTestGate(t)

	for i := 1; i <= 4; i++ {
		g.LogViolation("suspicious input")
		assert.False(t, g.IsBlocked(), "not blocked after %d violations", i)
	}

	g.LogViolation("suspicious input")
	assert.True(t, g.IsBlocked())
	assert.Len(t, g.Violations(), 5)

	blockedEvents := 0
	for _, k := range sink.kinds() {
		if k == EventBlocked {
			blockedEvents++
		}
	}
	assert.Equal(t, 1, blockedEvents)

	g.LogViolation("one more")
	assert.Equal(t, 1, countKind(sink.kinds(), EventBlocked), "transition fires once")

	g.ClearViolations()
	assert.False(t, g.IsBlocked())
	assert.Empty(t, g.Violations())
}

func TestGate_ViolationTimestamps(t *testing.T) {
	g, _, clock := newTestGate(t)

	g.LogViolation("first")
	clock.Advance(time.Second)
	g.LogViolation("second")

	v := g.Violations()
	require.Len(t, v, 2)
	assert.Equal(t, "2024-05-01T09:00:00Z: first", v[0].String())
	assert.Equal(t, "2024-05-01T09:00:01Z: second", v[1].String())
}

func TestGate_BlockedGateRefusesCalls(t *testing.T) {
	g, _, _ := newTestGate(t)
	for i := 0; i < 5; i++ {
		g.LogViolation("x")
	}

	called := false
	err := g.SecureSubmit(context.Background(), "k", Form{"title": "ok"}, func(context.Context, Form) error {
		called = true
		return nil
	})

	require.ErrorIs(t, err, ErrBlocked)
	assert.False(t, called)
	assert.Len(t, g.Violations(), 5, "refusals while blocked are not new violations")
}

func TestGate_SecureSubmitSanitizes(t *testing.T) {
	g, _, _ := newTestGate(t)

	var got Form
	err := g.SecureSubmit(context.Background(), "k", Form{
		"title":  "<b>Summer</b> Vibes<script>steal()</script>",
		"bpm":    float64(120),
		"public": true,
	}, func(_ context.Context, f Form) error {
		got = f
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Summer Vibes", got["title"])
	assert.Equal(t, float64(120), got["bpm"])
	assert.Equal(t, true, got["public"])
}

func TestGate_SecureSubmitFieldLength(t *testing.T) {
	g, _, _ := newTestGate(t)
	noop := func(context.Context, Form) error { return nil }

	require.NoError(t, g.SecureSubmit(context.Background(), "k", Form{"bio": strings.Repeat("a", 10000)}, noop))

	err := g.SecureSubmit(context.Background(), "k", Form{"bio": strings.Repeat("a", 10001)}, noop)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), `"bio"`)
	assert.Len(t, g.Violations(), 1)
}

func TestGate_OperationalFailureIsNotViolation(t *testing.T) {
	g, sink, _ := newTestGate(t)
	backendErr := errors.New("network timeout")

	for i := 0; i < 10; i++ {
		err := g.SecureSubmit(context.Background(), "k", Form{"a": "b"}, func(context.Context, Form) error {
			return backendErr
		})
		require.Equal(t, backendErr, err, "the operation's error is returned unchanged")
	}

	assert.Empty(t, g.Violations())
	assert.False(t, g.IsBlocked())
	assert.Equal(t, 10, countKind(sink.kinds(), EventOperational))
	assert.False(t, IsSecurityError(backendErr))
}

func TestGate_RejectionBypassesBreaker(t *testing.T) {
	cb := circuitbreaker.New(circuitbreaker.Config{MaxFailures: 1})
	g, sink, _ := newTestGate(t, WithBreaker(cb))

	wrongPassword := rejectedErr{msg: "invalid credentials"}
	err := g.SecureAuth(context.Background(), "k", Credentials{Email: "a@b.co", Password: "nope"},
		func(context.Context, Credentials) error { return wrongPassword })

	require.ErrorIs(t, err, wrongPassword)
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
	assert.Zero(t, countKind(sink.kinds(), EventOperational))
}

func TestGate_BreakerOpensOnRepeatedFailures(t *testing.T) {
	cb := circuitbreaker.New(circuitbreaker.Config{MaxFailures: 2, Timeout: time.Hour})
	g, _, _ := newTestGate(t, WithBreaker(cb))
	fail := func(context.Context, Form) error { return errors.New("502 from backend") }

	g.SecureSubmit(context.Background(), "k", Form{}, fail)
	g.SecureSubmit(context.Background(), "k", Form{}, fail)

	err := g.SecureSubmit(context.Background(), "k", Form{}, func(context.Context, Form) error {
		t.Fatal("operation must not run while the circuit is open")
		return nil
	})
	require.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Empty(t, g.Violations())
}

func TestGate_SecureAuth(t *testing.T) {
	t.Run("SanitizesEmailOnly", func(t *testing.T) {
		g, _, _ := newTestGate(t)

		var got Credentials
		err := g.SecureAuth(context.Background(), "k",
			Credentials{Email: "<b>artist@mybeatfi.com</b>", Password: "<p>s3cr3t&amp;"},
			func(_ context.Context, c Credentials) error {
				got = c
				return nil
			})

		require.NoError(t, err)
		assert.Equal(t, "artist@mybeatfi.com", got.Email)
		assert.Equal(t, "<p>s3cr3t&amp;", got.Password)
	})

	t.Run("RejectsMalformedEmail", func(t *testing.T) {
		g, _, _ := newTestGate(t)

		for _, email := range []string{"", "no-at-sign", "a@b", "a b@c.d"} {
			err := g.SecureAuth(context.Background(), "k", Credentials{Email: email, Password: "x"},
				func(context.Context, Credentials) error {
					t.Fatalf("auth must not run for %q", email)
					return nil
				})
			assert.ErrorIs(t, err, ErrValidation, email)
		}
		assert.Len(t, g.Violations(), 4)
	})

	t.Run("UsesAuthLimiter", func(t *testing.T) {
		g, _, _ := newTestGate(t)
		ok := func(context.Context, Credentials) error { return nil }
		creds := Credentials{Email: "a@b.co", Password: "x"}

		for i := 0; i < 5; i++ {
			require.NoError(t, g.SecureAuth(context.Background(), "k", creds, ok))
		}
		err := g.SecureAuth(context.Background(), "k", creds, ok)
		require.ErrorIs(t, err, ErrRateLimited)
		assert.Len(t, g.Violations(), 1)
	})
}

func TestGate_SecurePaymentScenario(t *testing.T) {
	g, _, clock := newTestGate(t)

	paid := 0
	pay := func(_ context.Context, f Form) error {
		assert.Equal(t, "track-42", f["track_id"])
		paid++
		return nil
	}

	payment := Form{"track_id": " <i>track-42</i> ", "amount_cents": float64(4900)}
	for i := 0; i < 3; i++ {
		require.NoError(t, g.SecurePayment(context.Background(), "buyer", payment, pay))
		clock.Advance(30 * time.Second)
	}

	err := g.SecurePayment(context.Background(), "buyer", payment, pay)
	require.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, IsSecurityError(err))
	assert.Equal(t, 3, paid)
	assert.Len(t, g.Violations(), 1)

	var exceeded *ratelimit.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, ratelimit.ClassPayment, exceeded.Class)
	assert.Equal(t, 5*time.Minute-90*time.Second, exceeded.RetryAfter)
}

func TestGate_SecureFileUpload(t *testing.T) {
	g, _, _ := newTestGate(t)

	uploaded := 0
	upload := func(context.Context, File) error {
		uploaded++
		return nil
	}

	err := g.SecureFileUpload(context.Background(), "k", File{Name: "beat.mp3", Size: 1024, Type: "audio/mpeg"}, upload)
	require.NoError(t, err)

	err = g.SecureFileUpload(context.Background(), "k", File{Name: "x.exe", Size: 10, Type: "application/x-msdownload"}, upload)
	require.ErrorIs(t, err, ErrFileValidation)

	assert.Equal(t, 1, uploaded)
	assert.Len(t, g.Violations(), 1)
}

func countKind(kinds []EventKind, kind EventKind) int {
	n := 0
	for _, k := range kinds {
		if k == kind {
			n++
		}
	}
	return n
}
