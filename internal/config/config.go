package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	ServicesFile string // path to the services.yaml registry file

	// Security
	JWTSecret   string        // shared secret for token signing
	TokenTTL    time.Duration // default token lifetime
	CORSOrigins []string      // allowed CORS origins (empty = CORS disabled)

	// Rate limiting
	RateLimit  int           // default requests per window per client
	RateWindow time.Duration // sliding window length (default: 60s)

	// Jobs
	JobMaxAge     time.Duration // jobs older than this are swept (default: 24h)
	SweepInterval time.Duration // interval between sweeps (default: 1h)

	// Outbound dispatch
	DispatchTimeout time.Duration // per-call timeout; inference is slow (default: 120s)
	MaxUploadBytes  int64         // cap on reference image uploads

	// Redis
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDialTimeout    time.Duration // ex: 5s
	RedisReadTimeout    time.Duration // ex: 3s
	RedisWriteTimeout   time.Duration // ex: 3s
	RedisPoolSize       int           // connection pool size
	RedisConnectTimeout time.Duration // total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // initial wait between retries, grows exponentially
	RedisMaxWait        time.Duration // max wait between retries
	RedisPingTimeout    time.Duration // timeout for each ping attempt

	// Admin
	AdminAllowedCIDRS []string // optional, restrict /admin to specific IPs/CIDRs
	TrustProxy        bool     // true => trust X-Forwarded-For headers
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("GATEWAY_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("GATEWAY_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("GATEWAY_LOG_LEVEL", "info"),
		PrettyLog: mustBool("GATEWAY_PRETTY_LOG", false),

		// Service registry
		ServicesFile: getenv("GATEWAY_SERVICES_FILE", "/app/services.yaml"),

		// Security
		JWTSecret:   requireEnv("GATEWAY_JWT_SECRET"),
		TokenTTL:    mustDuration("GATEWAY_TOKEN_TTL", 24*time.Hour),
		CORSOrigins: splitAndTrim(getenv("GATEWAY_CORS_ORIGINS", "")),

		// Rate limiting
		RateLimit:  getenvInt("GATEWAY_RATE_LIMIT", 100),
		RateWindow: mustDuration("GATEWAY_RATE_WINDOW", time.Minute),

		// Jobs
		JobMaxAge:     mustDuration("GATEWAY_JOB_MAX_AGE", 24*time.Hour),
		SweepInterval: mustDuration("GATEWAY_SWEEP_INTERVAL", time.Hour),

		// Outbound dispatch
		DispatchTimeout: mustDuration("GATEWAY_DISPATCH_TIMEOUT", 120*time.Second),
		MaxUploadBytes:  int64(getenvInt("GATEWAY_MAX_UPLOAD_BYTES", 10<<20)),

		// Redis settings
		RedisAddr:           requireEnv("GATEWAY_REDIS_ADDR"),
		RedisUser:           getenv("GATEWAY_REDIS_USERNAME", ""),
		RedisPassword:       getenv("GATEWAY_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("GATEWAY_REDIS_DB", 0),
		RedisDialTimeout:    mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisReadTimeout:    mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWriteTimeout:   mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),

		// Admin access restrictions
		AdminAllowedCIDRS: splitAndTrim(getenv("GATEWAY_ADMIN_ALLOWED_CIDRS", "")),
		TrustProxy:        mustBool("GATEWAY_TRUST_PROXY", false),
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("FATAL: required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
