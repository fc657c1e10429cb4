package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	VariantGated   = "gated"
	VariantPerCall = "per_call"

	devSigningKey = "dev-secret-key-change-in-production"
)

// Server captures process level configuration for the registry service.
// Empty connection URLs select the in-memory implementations.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	Variant      string
	OwnerAddress string

	DatabaseURL string
	RedisURL    string

	KafkaBrokers          []string
	AuthorityRequestTopic string
	AuthorityVerdictTopic string
	KafkaGroupID          string

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	TokenTTL      time.Duration
	CallbackToken string

	LocalAuthorityAddress string
	LocalAuthorityPolicy  string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxRetention    time.Duration
	OutboxClaimLease   time.Duration
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
}

// KafkaEnabled reports whether authorization requests travel over Kafka.
func (s Server) KafkaEnabled() bool { return len(s.KafkaBrokers) > 0 }

// IsLocal reports whether the process runs in a development environment.
func (s Server) IsLocal() bool {
	switch s.Environment {
	case "", "local", "dev", "development", "test", "testing":
		return true
	}
	return false
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:                  getEnv("VCREGISTRY_ADDR", ":8080"),
		Environment:           os.Getenv("ENVIRONMENT"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		Variant:               getEnv("REGISTRY_VARIANT", VariantGated),
		OwnerAddress:          os.Getenv("OWNER_ADDRESS"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisURL:              os.Getenv("REDIS_URL"),
		KafkaBrokers:          splitList(os.Getenv("KAFKA_BROKERS")),
		AuthorityRequestTopic: getEnv("AUTHORITY_REQUEST_TOPIC", "vcregistry.authority.requests"),
		AuthorityVerdictTopic: getEnv("AUTHORITY_VERDICT_TOPIC", "vcregistry.authority.verdicts"),
		KafkaGroupID:          getEnv("KAFKA_GROUP_ID", "vcregistry"),
		JWTSigningKey:         getEnv("JWT_SIGNING_KEY", devSigningKey),
		JWTIssuer:             getEnv("JWT_ISSUER", "vcregistry"),
		JWTAudience:           getEnv("JWT_AUDIENCE", "vcregistry-callers"),
		CallbackToken:         os.Getenv("CALLBACK_TOKEN"),
		LocalAuthorityAddress: os.Getenv("LOCAL_AUTHORITY_ADDRESS"),
		LocalAuthorityPolicy:  os.Getenv("LOCAL_AUTHORITY_POLICY"),
	}

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 15*time.Minute); err != nil {
		return Server{}, err
	}
	if cfg.OutboxPollInterval, err = getDuration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Server{}, err
	}
	if cfg.OutboxRetention, err = getDuration("OUTBOX_RETENTION", 24*time.Hour); err != nil {
		return Server{}, err
	}
	if cfg.OutboxClaimLease, err = getDuration("OUTBOX_CLAIM_LEASE", 30*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.OutboxBatchSize, err = getInt("OUTBOX_BATCH_SIZE", 100); err != nil {
		return Server{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (s Server) Validate() error {
	if s.Variant != VariantGated && s.Variant != VariantPerCall {
		return fmt.Errorf("REGISTRY_VARIANT must be %q or %q, got %q", VariantGated, VariantPerCall, s.Variant)
	}
	if !s.IsLocal() && s.JWTSigningKey == devSigningKey {
		return fmt.Errorf("JWT_SIGNING_KEY must be set outside local environments")
	}
	if !s.KafkaEnabled() && s.LocalAuthorityAddress == "" {
		return fmt.Errorf("either KAFKA_BROKERS or LOCAL_AUTHORITY_ADDRESS must be set")
	}
	if s.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}
	if s.OutboxClaimLease <= 0 {
		return fmt.Errorf("OUTBOX_CLAIM_LEASE must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
