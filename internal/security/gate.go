// Package security guards calls into the backend for one client session.
//
// A Gate rate limits, validates and sanitizes input before delegating to the
// caller's operation, and keeps a log of security violations. Once the log
// reaches the block threshold the gate refuses every guarded call until
// ClearViolations is called.
package security

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mybeatfi/securegate/internal/circuitbreaker"
	"github.com/mybeatfi/securegate/internal/ratelimit"
	"go.uber.org/zap"
)

type Limiters struct {
	Auth    ratelimit.Limiter
	API     ratelimit.Limiter
	Payment ratelimit.Limiter
}

// In-memory limiters with the default policies
func DefaultLimiters() Limiters {
	return Limiters{
		Auth:    ratelimit.NewMemory(ratelimit.AuthPolicy.MaxRequests, ratelimit.AuthPolicy.Window),
		API:     ratelimit.NewMemory(ratelimit.APIPolicy.MaxRequests, ratelimit.APIPolicy.Window),
		Payment: ratelimit.NewMemory(ratelimit.PaymentPolicy.MaxRequests, ratelimit.PaymentPolicy.Window),
	}
}

type Violation struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

func (v Violation) String() string {
	return v.Time.UTC().Format(time.RFC3339) + ": " + v.Message
}

type Gate struct {
	mu         sync.Mutex
	violations []Violation
	blocked    bool

	sessionID    string
	cfg          Config
	limiters     Limiters
	maxFieldTag  string
	allowedTypes map[string]struct{}
	breaker      *circuitbreaker.CircuitBreaker
	sink         EventSink
	logger       *zap.Logger
	now          func() time.Time
}

type Option func(*Gate)

func WithSessionID(id string) Option {
	return func(g *Gate) { g.sessionID = id }
}

func WithSink(sink EventSink) Option {
	return func(g *Gate) {
		if sink != nil {
			g.sink = sink
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Wrapped operations run through cb. Shared between gates so a failing
// backend trips one breaker for every session.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(g *Gate) { g.breaker = cb }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

func New(cfg Config, limiters Limiters, opts ...Option) *Gate {
	cfg = cfg.withDefaults()

	g := &Gate{
		cfg:          cfg,
		limiters:     limiters,
		maxFieldTag:  "max=" + strconv.Itoa(cfg.MaxFieldLength),
		allowedTypes: make(map[string]struct{}, len(cfg.AllowedFileTypes)),
		sink:         nopSink{},
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, t := range cfg.AllowedFileTypes {
		g.allowedTypes[normalizeType(t)] = struct{}{}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) SessionID() string {
	return g.sessionID
}

// SecureSubmit checks the API limiter, validates and sanitizes every string
// field, then calls submit with the sanitized copy.
func (g *Gate) SecureSubmit(ctx context.Context, key string, form Form, submit func(context.Context, Form) error) error {
	if err := g.admit(ctx, g.limiters.API, ratelimit.ClassAPI, key, "form submission"); err != nil {
		return err
	}

	clean, err := g.cleanForm(form, true)
	if err != nil {
		g.LogViolation(fmt.Sprintf("Form validation failed: %v", err))
		return err
	}

	return g.run(ctx, "Form submission", func(ctx context.Context) error {
		return submit(ctx, clean)
	})
}

// SecureFileUpload checks the API limiter and the file policy before calling upload.
func (g *Gate) SecureFileUpload(ctx context.Context, key string, file File, upload func(context.Context, File) error) error {
	if err := g.admit(ctx, g.limiters.API, ratelimit.ClassAPI, key, "file upload"); err != nil {
		return err
	}

	if check := g.ValidateFile(file); !check.IsValid {
		g.LogViolation("File validation failed: " + check.Error)
		return fmt.Errorf("%w: %s", ErrFileValidation, check.Error)
	}

	return g.run(ctx, "File upload", func(ctx context.Context) error {
		return upload(ctx, file)
	})
}

// SecureAuth checks the auth limiter and the email shape. Only the email is
// sanitized, the password reaches auth byte for byte.
func (g *Gate) SecureAuth(ctx context.Context, key string, creds Credentials, auth func(context.Context, Credentials) error) error {
	if err := g.admit(ctx, g.limiters.Auth, ratelimit.ClassAuth, key, "authentication"); err != nil {
		return err
	}

	if err := g.checkCredentials(creds); err != nil {
		g.LogViolation("Invalid email format in authentication attempt")
		return err
	}

	clean := Credentials{
		Email:    Sanitize(creds.Email),
		Password: creds.Password,
	}

	return g.run(ctx, "Authentication", func(ctx context.Context) error {
		return auth(ctx, clean)
	})
}

// SecurePayment checks the payment limiter and sanitizes every string field.
func (g *Gate) SecurePayment(ctx context.Context, key string, payment Form, pay func(context.Context, Form) error) error {
	if err := g.admit(ctx, g.limiters.Payment, ratelimit.ClassPayment, key, "payment"); err != nil {
		return err
	}

	clean, err := g.cleanForm(payment, false)
	if err != nil {
		return err
	}

	return g.run(ctx, "Payment", func(ctx context.Context) error {
		return pay(ctx, clean)
	})
}

// Appends a violation. Reaching the block threshold blocks the gate.
func (g *Gate) LogViolation(message string) {
	now := g.now()

	g.mu.Lock()
	g.violations = append(g.violations, Violation{Time: now, Message: message})
	count := len(g.violations)
	justBlocked := !g.blocked && count >= g.cfg.BlockThreshold
	if justBlocked {
		g.blocked = true
	}
	g.mu.Unlock()

	g.sink.Record(Event{SessionID: g.sessionID, Kind: EventViolation, Message: message, Time: now})

	if justBlocked {
		g.logger.Warn("Session blocked",
			zap.String("session_id", g.sessionID),
			zap.Int("violations", count))
		g.sink.Record(Event{
			SessionID: g.sessionID,
			Kind:      EventBlocked,
			Message:   fmt.Sprintf("blocked after %d violations", count),
			Time:      now,
		})
	}
}

func (g *Gate) ClearViolations() {
	g.mu.Lock()
	g.violations = nil
	g.blocked = false
	g.mu.Unlock()

	g.sink.Record(Event{SessionID: g.sessionID, Kind: EventCleared, Message: "violations cleared", Time: g.now()})
}

// Copy of the violation log, oldest first
func (g *Gate) Violations() []Violation {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Violation, len(g.violations))
	copy(out, g.violations)
	return out
}

func (g *Gate) IsBlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blocked
}

// Refuses blocked sessions and counts the request against l
func (g *Gate) admit(ctx context.Context, l ratelimit.Limiter, class, key, action string) error {
	if g.IsBlocked() {
		return ErrBlocked
	}

	err := ratelimit.Check(ctx, l, class, key)
	if err == nil {
		return nil
	}

	if errors.Is(err, ratelimit.ErrRateLimited) {
		g.LogViolation("Rate limit exceeded for " + action)
		return err
	}

	// Limiter backend failure, not the client's fault
	g.recordOperational(fmt.Sprintf("%s rate limit check: %v", action, err))
	return err
}

// Implemented by errors an operation uses to refuse a well-formed request,
// such as wrong credentials. They are not failures of the backend.
type rejection interface {
	Rejected() bool
}

func isRejection(err error) bool {
	var r rejection
	return errors.As(err, &r) && r.Rejected()
}

// Runs the wrapped operation. Its failures are recorded as operational events
// and returned unchanged; rejections are returned without being recorded.
func (g *Gate) run(ctx context.Context, op string, fn func(context.Context) error) error {
	var rejected error
	call := func() error {
		err := fn(ctx)
		if err != nil && isRejection(err) {
			rejected = err
			return nil
		}
		return err
	}

	var err error
	if g.breaker != nil {
		err = g.breaker.Call(call)
	} else {
		err = call()
	}

	if err != nil {
		g.recordOperational(fmt.Sprintf("%s error: %v", op, err))
		return err
	}
	return rejected
}

func (g *Gate) recordOperational(message string) {
	g.sink.Record(Event{SessionID: g.sessionID, Kind: EventOperational, Message: message, Time: g.now()})
}
