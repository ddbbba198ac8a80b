// Package config builds process configuration from the environment so main
// stays lean. The core consumes this configuration, it does not own it: any
// missing required value is a fatal precondition failure before a single
// pipeline stage runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Investor identifies the economic actor and its chain-bound wallets.
type Investor struct {
	ID              string
	BitcoinAddress  string
	EthereumAddress string
	SolanaAddress   string
}

// Anchoring holds the ION-style network endpoints. Submission is gated by a
// proof-of-work challenge, hence the endpoint pair.
type Anchoring struct {
	ChallengeEndpoint string
	SolutionEndpoint  string
}

// Custodial holds credentials for the remote signing/broadcast service.
type Custodial struct {
	BaseURL        string
	APIKey         string
	SigningKeyPEM  string
	VaultAccountID string
	AssetID        string
}

// Checkpoints configures artifact persistence. Dir is always used for the
// file store; PostgresURL switches the authoritative store to postgres.
type Checkpoints struct {
	Dir         string
	PostgresURL string
}

// Redis configures the optional latest-checkpoint cache.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the optional stage-event sink.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Poll bounds the confirmation poller.
type Poll struct {
	Interval time.Duration
	MaxWait  time.Duration
}

type Config struct {
	Addr        string
	LogLevel    string
	RunOnStart  bool
	Investor    Investor
	Anchoring   Anchoring
	Custodial   Custodial
	Checkpoints Checkpoints
	Redis       Redis
	Kafka       Kafka
	Poll        Poll
}

// FromEnv loads .env when present, then builds a Config from environment
// variables. Call Validate before using the result.
func FromEnv() Config {
	// Missing .env is fine; the environment may be populated directly.
	_ = godotenv.Load()

	return Config{
		Addr:       getenv("ANCHORID_ADDR", ":8080"),
		LogLevel:   getenv("ANCHORID_LOG_LEVEL", "info"),
		RunOnStart: os.Getenv("ANCHORID_RUN_ON_START") == "true",
		Investor: Investor{
			ID:              os.Getenv("INVESTOR_ID"),
			BitcoinAddress:  os.Getenv("BTC_WALLET_ADDRESS"),
			EthereumAddress: os.Getenv("ETH_WALLET_ADDRESS"),
			SolanaAddress:   os.Getenv("SOL_WALLET_ADDRESS"),
		},
		Anchoring: Anchoring{
			ChallengeEndpoint: os.Getenv("ION_CHALLENGE_ENDPOINT"),
			SolutionEndpoint:  os.Getenv("ION_SOLUTION_ENDPOINT"),
		},
		Custodial: Custodial{
			BaseURL:        os.Getenv("CUSTODIAL_API_BASE_URL"),
			APIKey:         os.Getenv("CUSTODIAL_API_KEY"),
			SigningKeyPEM:  os.Getenv("CUSTODIAL_API_SIGNING_KEY"),
			VaultAccountID: os.Getenv("CUSTODIAL_VAULT_ACCOUNT_ID"),
			AssetID:        getenv("CUSTODIAL_ASSET_ID", "BTC"),
		},
		Checkpoints: Checkpoints{
			Dir:         getenv("CHECKPOINT_DIR", "checkpoints"),
			PostgresURL: os.Getenv("DATABASE_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getenvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getenvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getenvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getenv("KAFKA_TOPIC", "anchorid.stage-events"),
		},
		Poll: Poll{
			Interval: getenvDuration("POLL_INTERVAL", 30*time.Second),
			MaxWait:  getenvDuration("POLL_MAX_WAIT", 10*time.Minute),
		},
	}
}

// Validate names every missing required value, not just the first, so a
// misconfigured deployment can be fixed in one pass.
func (c Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"INVESTOR_ID", c.Investor.ID},
		{"BTC_WALLET_ADDRESS", c.Investor.BitcoinAddress},
		{"ETH_WALLET_ADDRESS", c.Investor.EthereumAddress},
		{"SOL_WALLET_ADDRESS", c.Investor.SolanaAddress},
		{"ION_SOLUTION_ENDPOINT", c.Anchoring.SolutionEndpoint},
		{"CUSTODIAL_API_BASE_URL", c.Custodial.BaseURL},
		{"CUSTODIAL_API_KEY", c.Custodial.APIKey},
		{"CUSTODIAL_VAULT_ACCOUNT_ID", c.Custodial.VaultAccountID},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
