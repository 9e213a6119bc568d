package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for a coursekit process.
type Config struct {
	// DBPath is the SQLite file used for outbound snapshots and events.
	// Empty means store.DefaultDBPath().
	DBPath string

	Log     LogConfig
	Session SessionConfig
	Store   StoreConfig
}

// LogConfig selects the zap logger flavour.
type LogConfig struct {
	Mode  string // "dev" or "prod"
	Level string // debug, info, warn, error
}

// SessionConfig tunes a single learner session.
type SessionConfig struct {
	// MinAffectConfidence is the cutoff below which conversation
	// assessments are ignored.
	MinAffectConfidence float64

	// QueueSize is the buffer of the asynchronous update queue.
	QueueSize int

	// DrainTimeout bounds how long Close waits for queued updates.
	DrainTimeout time.Duration
}

// StoreConfig controls outbound persistence.
type StoreConfig struct {
	// SnapshotKeep is how many of a session's most recent snapshots survive pruning (0 = all).
	SnapshotKeep int
	// RetryAttempts is the number of attempts for a store write.
	RetryAttempts int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Mode:  "dev",
			Level: "info",
		},
		Session: SessionConfig{
			MinAffectConfidence: 0.5,
			QueueSize:           64,
			DrainTimeout:        5 * time.Second,
		},
		Store: StoreConfig{
			SnapshotKeep:  20,
			RetryAttempts: 3,
		},
	}
}

// FromEnv builds a Config from COURSEKIT_* environment variables, falling
// back to defaults for unset or unparsable values.
func FromEnv() Config {
	cfg := DefaultConfig()

	if p := os.Getenv("COURSEKIT_DB"); p != "" {
		cfg.DBPath = p
	}
	if m := os.Getenv("COURSEKIT_LOG_MODE"); m != "" {
		cfg.Log.Mode = m
	}
	if l := os.Getenv("COURSEKIT_LOG_LEVEL"); l != "" {
		cfg.Log.Level = l
	}

	cfg.Session.MinAffectConfidence = envFloat("COURSEKIT_MIN_AFFECT_CONFIDENCE", cfg.Session.MinAffectConfidence)
	cfg.Session.QueueSize = envInt("COURSEKIT_QUEUE_SIZE", cfg.Session.QueueSize)
	cfg.Session.DrainTimeout = envDuration("COURSEKIT_DRAIN_TIMEOUT", cfg.Session.DrainTimeout)
	cfg.Store.SnapshotKeep = envInt("COURSEKIT_SNAPSHOT_KEEP", cfg.Store.SnapshotKeep)
	cfg.Store.RetryAttempts = envInt("COURSEKIT_STORE_RETRY_ATTEMPTS", cfg.Store.RetryAttempts)

	return cfg
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []string
	if c.Session.MinAffectConfidence < 0 || c.Session.MinAffectConfidence > 1 {
		errs = append(errs, fmt.Sprintf("min affect confidence must be in [0, 1], got %f", c.Session.MinAffectConfidence))
	}
	if c.Session.QueueSize <= 0 {
		errs = append(errs, fmt.Sprintf("queue size must be > 0, got %d", c.Session.QueueSize))
	}
	if c.Store.SnapshotKeep < 0 {
		errs = append(errs, fmt.Sprintf("snapshot keep must be >= 0, got %d", c.Store.SnapshotKeep))
	}
	if c.Store.RetryAttempts <= 0 {
		errs = append(errs, fmt.Sprintf("store retry attempts must be > 0, got %d", c.Store.RetryAttempts))
	}
	switch strings.ToLower(c.Log.Mode) {
	case "dev", "development", "prod", "production":
	default:
		errs = append(errs, fmt.Sprintf("unknown log mode: %q", c.Log.Mode))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envFloat(name string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envDuration(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
