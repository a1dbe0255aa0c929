package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mybeatfi/securegate/internal/ratelimit"
	"github.com/mybeatfi/securegate/internal/security"
)

type Config struct {
	Server         ServerConfig         `json:"server"`
	Log            LogConfig            `json:"log"`
	Database       DatabaseConfig       `json:"database"`
	Redis          RedisConfig          `json:"redis"`
	RateLimit      RateLimitConfig      `json:"rate_limit"`
	Security       SecurityConfig       `json:"security"`
	Auth           AuthConfig           `json:"auth"`
	Uploads        UploadConfig         `json:"uploads"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
}

type ServerConfig struct {
	Port           string   `json:"port"`
	Environment    string   `json:"environment"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"` // rotated with lumberjack when set
}

type DatabaseConfig struct {
	DSN        string `json:"dsn"`
	LogQueries bool   `json:"log_queries"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type RateLimitConfig struct {
	Backend  string                  `json:"backend"` // "memory" or "redis"
	Policies map[string]PolicyConfig `json:"policies"`
	Burst    BurstConfig             `json:"burst"`
}

// Per client IP token bucket in front of every /api route. Zero rate disables it.
type BurstConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Size              int     `json:"size"`
}

type PolicyConfig struct {
	MaxRequests int      `json:"max_requests"`
	Window      Duration `json:"window"`
	Algorithm   string   `json:"algorithm"`
}

type SecurityConfig struct {
	MaxFieldLength   int      `json:"max_field_length"`
	MaxFileSizeMB    int      `json:"max_file_size_mb"`
	AllowedFileTypes []string `json:"allowed_file_types"`
	BlockThreshold   int      `json:"block_threshold"`
	SessionIdleTTL   Duration `json:"session_idle_ttl"`
	EventBufferSize  int      `json:"event_buffer_size"`
	EventRetention   Duration `json:"event_retention"` // 0 keeps events forever
}

type AuthConfig struct {
	JWTSecret        string `json:"jwt_secret"`
	TokenExpiryHours int    `json:"token_expiry_hours"`
}

type UploadConfig struct {
	Dir string `json:"dir"`
}

type CircuitBreakerConfig struct {
	MaxFailures     int      `json:"max_failures"`
	Timeout         Duration `json:"timeout"`
	HalfOpenSuccess int      `json:"half_open_success"`
}

// Duration decodes from a Go duration string ("15m") or a number of milliseconds
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch val := v.(type) {
	case float64:
		*d = Duration(time.Duration(val) * time.Millisecond)
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Environment:    "development",
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{Level: "info"},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		RateLimit: RateLimitConfig{
			Backend: ratelimit.BackendMemory,
			Burst:   BurstConfig{RequestsPerSecond: 20, Size: 40},
		},
		Security: SecurityConfig{
			MaxFieldLength:  10000,
			MaxFileSizeMB:   50,
			BlockThreshold:  5,
			SessionIdleTTL:  Duration(time.Hour),
			EventBufferSize: 1000,
			EventRetention:  Duration(30 * 24 * time.Hour),
		},
		Auth:    AuthConfig{TokenExpiryHours: 24},
		Uploads: UploadConfig{Dir: "uploads"},
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:     5,
			Timeout:         Duration(30 * time.Second),
			HalfOpenSuccess: 1,
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Environment, "ENVIRONMENT")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.File, "LOG_FILE")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Redis.Host, "REDIS_HOST")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.RateLimit.Backend, "RATE_LIMIT_BACKEND")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Uploads.Dir, "UPLOAD_DIR")

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	if err := setInt(&c.Redis.Port, "REDIS_PORT"); err != nil {
		return err
	}
	if err := setInt(&c.Redis.DB, "REDIS_DB"); err != nil {
		return err
	}
	return setInt(&c.Auth.TokenExpiryHours, "JWT_EXPIRY_HOURS")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required (DATABASE_URL)")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("jwt secret must be at least 16 characters (JWT_SECRET)")
	}
	if c.Auth.TokenExpiryHours <= 0 {
		return errors.New("token expiry must be positive")
	}

	switch c.RateLimit.Backend {
	case ratelimit.BackendMemory, ratelimit.BackendRedis:
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}

	for name, p := range c.Policies() {
		if err := p.Validate(); err != nil {
			return err
		}
		if p.Algorithm == ratelimit.AlgorithmSlidingWindow && c.RateLimit.Backend != ratelimit.BackendRedis {
			return fmt.Errorf("rate limit policy %s: sliding_window requires the redis backend", name)
		}
	}

	if c.RateLimit.Burst.RequestsPerSecond < 0 || (c.RateLimit.Burst.RequestsPerSecond > 0 && c.RateLimit.Burst.Size <= 0) {
		return errors.New("burst size must be positive when a burst rate is set")
	}

	if c.Security.MaxFieldLength <= 0 || c.Security.MaxFileSizeMB <= 0 || c.Security.BlockThreshold <= 0 {
		return errors.New("security limits must be positive")
	}

	return nil
}

// Default policies with configured overrides applied field by field
func (c *Config) Policies() map[string]ratelimit.Policy {
	policies := ratelimit.DefaultPolicies()

	for name, override := range c.RateLimit.Policies {
		p, ok := policies[name]
		if !ok {
			p = ratelimit.Policy{Name: name, Algorithm: ratelimit.AlgorithmFixedWindow}
		}
		if override.MaxRequests != 0 {
			p.MaxRequests = override.MaxRequests
		}
		if override.Window != 0 {
			p.Window = time.Duration(override.Window)
		}
		if override.Algorithm != "" {
			p.Algorithm = override.Algorithm
		}
		policies[name] = p
	}

	return policies
}

func (c *Config) GateConfig() security.Config {
	cfg := security.DefaultConfig()
	cfg.MaxFieldLength = c.Security.MaxFieldLength
	cfg.MaxFileSize = int64(c.Security.MaxFileSizeMB) * 1024 * 1024
	cfg.BlockThreshold = c.Security.BlockThreshold
	if len(c.Security.AllowedFileTypes) > 0 {
		cfg.AllowedFileTypes = c.Security.AllowedFileTypes
	}
	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
