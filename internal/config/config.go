package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/valuation"
	"github.com/shopspring/decimal"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Config holds all ledger service configuration.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Kafka   KafkaConfig
	Ledger  LedgerConfig
	Log     LogConfig
}

type ServerConfig struct {
	Bind string
	Port int
}

type StorageConfig struct {
	Driver      string // "memory", "sqlite", "postgres"
	SQLitePath  string
	DatabaseURL string
}

type KafkaConfig struct {
	Brokers        []string // empty disables kafka
	EventsTopic    string
	TransfersTopic string
}

type LedgerConfig struct {
	Operator string // identity entitled to collect decayed funds
	Decay    valuation.Policy
}

type LogConfig struct {
	Level  string
	Format string // "json" or "console"
}

// Load reads the optional env files (default ".env") and then the process
// environment. Variables already set in the environment win over the files.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	rate, err := decimal.NewFromString(getEnv("SAVINGS_DECAY_RATE", valuation.DefaultRate.String()))
	if err != nil {
		return nil, fmt.Errorf("SAVINGS_DECAY_RATE: %w", err)
	}
	period, err := time.ParseDuration(getEnv("SAVINGS_DECAY_PERIOD", valuation.DefaultPeriod.String()))
	if err != nil {
		return nil, fmt.Errorf("SAVINGS_DECAY_PERIOD: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Bind: getEnv("SAVINGS_BIND", "127.0.0.1"),
			Port: getEnvInt("SAVINGS_PORT", 8080),
		},
		Storage: StorageConfig{
			Driver:      getEnv("SAVINGS_STORAGE", StorageMemory),
			SQLitePath:  getEnv("SAVINGS_SQLITE_PATH", "./savings.db"),
			DatabaseURL: getEnv("SAVINGS_DATABASE_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers:        getEnvList("SAVINGS_KAFKA_BROKERS"),
			EventsTopic:    getEnv("SAVINGS_EVENTS_TOPIC", "savings_ledger_events"),
			TransfersTopic: getEnv("SAVINGS_TRANSFERS_TOPIC", "asset_transfers"),
		},
		Ledger: LedgerConfig{
			Operator: getEnv("SAVINGS_OPERATOR", ""),
			Decay: valuation.Policy{
				Period:   period,
				Rate:     rate,
				Boundary: valuation.Boundary(getEnv("SAVINGS_DECAY_BOUNDARY", string(valuation.BoundaryInclusive))),
			},
		},
		Log: LogConfig{
			Level:  getEnv("SAVINGS_LOG_LEVEL", "info"),
			Format: getEnv("SAVINGS_LOG_FORMAT", "json"),
		},
	}, nil
}

// Validate reports the first setting the service cannot start with.
func (c *Config) Validate() error {
	if c.Ledger.Operator == "" {
		return errors.New("SAVINGS_OPERATOR is required")
	}
	if err := c.Ledger.Decay.Validate(); err != nil {
		return err
	}
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("SAVINGS_DATABASE_URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
