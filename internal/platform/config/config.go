package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "checkpoint/pkg/platform/strings"
)

// Config captures the full runtime configuration of the gateway. Everything
// is environment-driven so main stays lean and deployments stay declarative.
type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Motion    MotionConfig
	Signature SignatureConfig
	Integrity IntegrityConfig
	Policy    PolicyConfig
	Factors   FactorsConfig
	Audit     AuditConfig
	Pipeline  PipelineConfig
}

// ServerConfig captures HTTP server level configuration. An empty AdminToken
// leaves the policy administration endpoints open (development only).
type ServerConfig struct {
	Addr       string
	AdminToken string
}

// PostgresConfig configures the durable store. Empty DSN means the service
// runs on in-memory stores (development mode).
type PostgresConfig struct {
	DSN string
}

// RedisConfig configures the shared cache/window store. Empty URL means
// Redis is not configured and in-memory fallbacks are used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateLimitConfig bounds check-in attempts per identity.
type RateLimitConfig struct {
	Window time.Duration
	Limit  int
}

// MotionConfig tunes the location-plausibility guard.
type MotionConfig struct {
	MaxSpeedMps     float64
	TeleportMeters  float64
	MinTimeDelta    time.Duration
	SampleRetention time.Duration
}

// SignatureConfig selects the verdict signing algorithm and key. The
// algorithm is configuration, never inferred from input.
type SignatureConfig struct {
	Secret    string
	Algorithm string
}

// IntegrityConfig selects the attestation provider and its safeguards.
type IntegrityConfig struct {
	Mode               string
	Production         bool
	AllowMockOverride  bool
	AutoBind           bool
	MaxAttestationAge  time.Duration
	TrustRejectBelow   float64
	ExpectedPackage    string
	ExpectedBundleID   string
	AttestationKeysDir string
}

// PolicyConfig controls policy resolution and caching.
type PolicyConfig struct {
	CacheTTL      time.Duration
	BootstrapFile string
}

// FactorsConfig carries per-checker settings that do not belong in the
// policy document. The QR secret is shared with the office display issuer.
type FactorsConfig struct {
	QRSecret   string
	QRIssuer   string
	QRTokenTTL time.Duration
	SiteFile   string
}

// AuditConfig configures the audit event sink. Empty brokers means audit
// events stay on the in-memory store only.
type AuditConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
	AsyncBuffer  int
}

// PipelineConfig bounds the whole check-in pipeline.
type PipelineConfig struct {
	Timeout time.Duration
}

// FromEnv builds a Config from environment variables, falling back to
// development defaults. Production deployments must set CHECKPOINT_ENV and
// the signature secret.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Addr:       envString("CHECKPOINT_ADDR", ":8080"),
			AdminToken: os.Getenv("CHECKPOINT_ADMIN_TOKEN"),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("CHECKPOINT_POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("CHECKPOINT_REDIS_URL"),
			PoolSize:     envInt("CHECKPOINT_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CHECKPOINT_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("CHECKPOINT_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("CHECKPOINT_REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: envDuration("CHECKPOINT_REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
		},
		RateLimit: RateLimitConfig{
			Window: envDuration("CHECKPOINT_RATELIMIT_WINDOW", time.Minute),
			Limit:  envInt("CHECKPOINT_RATELIMIT_LIMIT", 5),
		},
		Motion: MotionConfig{
			MaxSpeedMps:     envFloat("CHECKPOINT_MOTION_MAX_SPEED_MPS", 42.0),
			TeleportMeters:  envFloat("CHECKPOINT_MOTION_TELEPORT_METERS", 1000),
			MinTimeDelta:    envDuration("CHECKPOINT_MOTION_MIN_TIME_DELTA", time.Second),
			SampleRetention: envDuration("CHECKPOINT_MOTION_SAMPLE_RETENTION", 24*time.Hour),
		},
		Signature: SignatureConfig{
			Secret:    envString("CHECKPOINT_SIGNATURE_SECRET", "dev-secret-change-in-production"),
			Algorithm: envString("CHECKPOINT_SIGNATURE_ALGORITHM", "hmac-sha256"),
		},
		Integrity: IntegrityConfig{
			Mode:               envString("CHECKPOINT_INTEGRITY_MODE", "mock"),
			Production:         os.Getenv("CHECKPOINT_ENV") == "production",
			AllowMockOverride:  os.Getenv("CHECKPOINT_INTEGRITY_ALLOW_MOCK") == "true",
			AutoBind:           envBool("CHECKPOINT_INTEGRITY_AUTO_BIND", true),
			MaxAttestationAge:  envDuration("CHECKPOINT_INTEGRITY_MAX_AGE", 5*time.Minute),
			TrustRejectBelow:   envFloat("CHECKPOINT_INTEGRITY_REJECT_BELOW", 0.3),
			ExpectedPackage:    os.Getenv("CHECKPOINT_INTEGRITY_PACKAGE"),
			ExpectedBundleID:   os.Getenv("CHECKPOINT_INTEGRITY_BUNDLE_ID"),
			AttestationKeysDir: os.Getenv("CHECKPOINT_INTEGRITY_KEYS_DIR"),
		},
		Policy: PolicyConfig{
			CacheTTL:      envDuration("CHECKPOINT_POLICY_CACHE_TTL", 5*time.Minute),
			BootstrapFile: os.Getenv("CHECKPOINT_POLICY_BOOTSTRAP"),
		},
		Factors: FactorsConfig{
			QRSecret:   envString("CHECKPOINT_QR_SECRET", "dev-qr-secret"),
			QRIssuer:   envString("CHECKPOINT_QR_ISSUER", "checkpoint"),
			QRTokenTTL: envDuration("CHECKPOINT_QR_TOKEN_TTL", time.Minute),
			SiteFile:   os.Getenv("CHECKPOINT_SITE_FILE"),
		},
		Audit: AuditConfig{
			KafkaBrokers: envList("CHECKPOINT_AUDIT_KAFKA_BROKERS"),
			KafkaTopic:   envString("CHECKPOINT_AUDIT_KAFKA_TOPIC", "checkpoint.audit"),
			AsyncBuffer:  envInt("CHECKPOINT_AUDIT_BUFFER", 256),
		},
		Pipeline: PipelineConfig{
			Timeout: envDuration("CHECKPOINT_PIPELINE_TIMEOUT", 3*time.Second),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	out := pstrings.DedupeAndTrim(strings.Split(v, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
