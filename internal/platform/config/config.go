package config

import (
	"os"
	"strconv"
	"strings"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	AuditTopic    string
	JWTSigningKey string

	// RetentionMonths is the calendar-month retention window stamped onto
	// every record write.
	RetentionMonths int

	// SnapshotLimit bounds the row count of live pipeline snapshots.
	SnapshotLimit int
}

// FromEnv builds a Server config from environment variables. Empty
// DATABASE_URL, REDIS_URL, or KAFKA_BROKERS select the in-memory fallbacks.
func FromEnv() Server {
	addr := os.Getenv("LEADPIPE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	auditTopic := os.Getenv("AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "leadpipe.audit"
	}

	return Server{
		Addr:            addr,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaBrokers:    brokers,
		AuditTopic:      auditTopic,
		JWTSigningKey:   jwtSigningKey,
		RetentionMonths: envInt("RETENTION_MONTHS", 24),
		SnapshotLimit:   envInt("SNAPSHOT_LIMIT", 500),
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
