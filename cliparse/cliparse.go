package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	RedisURL     string

	// Secrets
	AdminKeySalt      string
	AdminToken        string
	NullifierSecret   string
	AttestSecret      string
	ReceiptKeyHex     string
	AnalyticsNoiseKey string

	// Hashing
	HasherStrategy string // "blake2b" or "mimc"

	// Attestation / nonce lifetimes
	NonceTTLSeconds  int
	AttestTTLSeconds int

	// Anchoring
	AnchorCronSpec    string
	AnchorEndpoint    string
	AnchorKeyHex      string
	AnchorMaxAttempts int

	// Analytics policy
	DefaultK            int
	QueryBudget         int
	QueryWindowSeconds  int
	MinQuerySpanSeconds int
}

// ParseFlags validates flags, then falls back to environment variables
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("veilvote", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.RedisURL, "r", "", "Redis URL for nonces and rate limits (empty = in-process stores)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKeySalt, "admin-salt", "", "Admin key salt (prefer env)")
	fs.StringVar(&cfg.AdminToken, "admin-token", "", "Bearer token for analytics endpoints (prefer env)")
	fs.StringVar(&cfg.NullifierSecret, "nullifier-secret", "", "Server-held nullifier secret (prefer env)")
	fs.StringVar(&cfg.AttestSecret, "attest-secret", "", "Attestation signing secret (prefer env)")
	fs.StringVar(&cfg.ReceiptKeyHex, "receipt-key", "", "Hex-encoded secp256k1 receipt signing key (prefer env)")

	fs.StringVar(&cfg.HasherStrategy, "hasher", "", "Nullifier hash strategy: blake2b or mimc")

	fs.StringVar(&cfg.AnchorCronSpec, "anchor-cron", "", "Cron spec for root anchoring")
	fs.StringVar(&cfg.AnchorEndpoint, "anchor-endpoint", "", "External ledger RPC endpoint (empty = in-process fake)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3419 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}

	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}

	// Secrets - MUST be provided
	if cfg.AdminKeySalt == "" {
		cfg.AdminKeySalt = os.Getenv("ADMIN_KEY_SALT")
	}
	if cfg.AdminKeySalt == "" {
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	}

	if cfg.AdminToken == "" {
		cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	}
	if cfg.AdminToken == "" {
		return Config{}, errors.New("ADMIN_TOKEN required")
	}

	if cfg.NullifierSecret == "" {
		cfg.NullifierSecret = os.Getenv("NULLIFIER_SECRET")
	}
	if cfg.NullifierSecret == "" {
		return Config{}, errors.New("NULLIFIER_SECRET required")
	}

	if cfg.AttestSecret == "" {
		cfg.AttestSecret = os.Getenv("ATTEST_SECRET")
	}
	if cfg.AttestSecret == "" {
		return Config{}, errors.New("ATTEST_SECRET required")
	}

	if cfg.ReceiptKeyHex == "" {
		cfg.ReceiptKeyHex = os.Getenv("RECEIPT_SIGNING_KEY")
	}
	if cfg.ReceiptKeyHex == "" {
		return Config{}, errors.New("RECEIPT_SIGNING_KEY required")
	}

	if cfg.AnalyticsNoiseKey == "" {
		cfg.AnalyticsNoiseKey = os.Getenv("ANALYTICS_NOISE_KEY")
	}
	if cfg.AnalyticsNoiseKey == "" {
		// Derived noise only matters while a poll is still open; reuse the
		// nullifier secret when no dedicated key is configured.
		cfg.AnalyticsNoiseKey = cfg.NullifierSecret
	}

	// Strategy is a deployment-time decision. All nullifiers in one
	// deployment must come from one hasher or uniqueness checks break.
	if cfg.HasherStrategy == "" {
		cfg.HasherStrategy = envOr("HASHER_STRATEGY", "blake2b")
	}

	cfg.NonceTTLSeconds = envInt("NONCE_TTL_SECONDS", 30)
	cfg.AttestTTLSeconds = envInt("ATTEST_TTL_SECONDS", 180)

	if cfg.AnchorCronSpec == "" {
		cfg.AnchorCronSpec = envOr("ANCHOR_CRON", "@every 10m")
	}
	if cfg.AnchorEndpoint == "" {
		cfg.AnchorEndpoint = os.Getenv("ANCHOR_ENDPOINT")
	}
	cfg.AnchorKeyHex = os.Getenv("ANCHOR_SIGNING_KEY")
	cfg.AnchorMaxAttempts = envInt("ANCHOR_MAX_ATTEMPTS", 5)

	cfg.DefaultK = envInt("DEFAULT_MIN_K", 30)
	cfg.QueryBudget = envInt("QUERY_BUDGET", 20)
	cfg.QueryWindowSeconds = envInt("QUERY_WINDOW_SECONDS", 3600)
	cfg.MinQuerySpanSeconds = envInt("MIN_QUERY_SPAN_SECONDS", 86400)

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
