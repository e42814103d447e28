package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces environment overrides, e.g. DAOCHAIN_RPC_ADDRESS.
const EnvPrefix = "DAOCHAIN"

type ctxKey string

const configContextKey ctxKey = "daochain.config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

// FromContext returns the configuration stored by WithContext, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	RPCAddress  string `toml:"RPCAddress" envconfig:"RPC_ADDRESS"`
	DataDir     string `toml:"DataDir" envconfig:"DATA_DIR"`
	GenesisFile string `toml:"GenesisFile" envconfig:"GENESIS_FILE"`
	Environment string `toml:"Environment" envconfig:"ENVIRONMENT"`
	// InMemory keeps state in memory instead of LevelDB; used by dev nodes
	// and tests.
	InMemory bool `toml:"InMemory" envconfig:"IN_MEMORY"`

	Node      NodeConfig      `toml:"node" envconfig:"NODE"`
	RPC       RPCConfig       `toml:"rpc" envconfig:"RPC"`
	Log       LogConfig       `toml:"log" envconfig:"LOG"`
	Indexer   IndexerConfig   `toml:"indexer" envconfig:"INDEXER"`
	Telemetry TelemetryConfig `toml:"telemetry" envconfig:"TELEMETRY"`
}

// NodeConfig tunes the block loop.
type NodeConfig struct {
	BlockIntervalMs     int64 `toml:"BlockIntervalMs" envconfig:"BLOCK_INTERVAL_MS"`
	MaxPending          int   `toml:"MaxPending" envconfig:"MAX_PENDING"`
	MaxPendingPerSigner int   `toml:"MaxPendingPerSigner" envconfig:"MAX_PENDING_PER_SIGNER"`
}

type RPCConfig struct {
	ReadTimeoutSecs  int `toml:"ReadTimeoutSecs" envconfig:"READ_TIMEOUT_SECS"`
	WriteTimeoutSecs int `toml:"WriteTimeoutSecs" envconfig:"WRITE_TIMEOUT_SECS"`
	// SubmitRatePerSec bounds extrinsic submissions per client IP. Zero
	// disables the limiter.
	SubmitRatePerSec float64 `toml:"SubmitRatePerSec" envconfig:"SUBMIT_RATE_PER_SEC"`
	SubmitBurst      int     `toml:"SubmitBurst" envconfig:"SUBMIT_BURST"`
	// JWTSecret, when set, requires an HS256 bearer token on submit.
	JWTSecret string `toml:"JWTSecret" envconfig:"JWT_SECRET"`
}

type LogConfig struct {
	Level string `toml:"Level" envconfig:"LEVEL"`
	// Format is "json", "text" or "auto"; auto picks text when stdout is a
	// terminal.
	Format     string `toml:"Format" envconfig:"FORMAT"`
	File       string `toml:"File" envconfig:"FILE"`
	MaxSizeMB  int    `toml:"MaxSizeMB" envconfig:"MAX_SIZE_MB"`
	MaxBackups int    `toml:"MaxBackups" envconfig:"MAX_BACKUPS"`
	MaxAgeDays int    `toml:"MaxAgeDays" envconfig:"MAX_AGE_DAYS"`
}

// IndexerConfig selects the event archive. An empty DSN disables it; a
// "postgres://" DSN uses PostgreSQL and anything else is a SQLite path.
type IndexerConfig struct {
	DSN string `toml:"DSN" envconfig:"DSN"`
}

type TelemetryConfig struct {
	Endpoint    string  `toml:"Endpoint" envconfig:"ENDPOINT"`
	Insecure    bool    `toml:"Insecure" envconfig:"INSECURE"`
	Headers     string  `toml:"Headers" envconfig:"HEADERS"`
	Traces      bool    `toml:"Traces" envconfig:"TRACES"`
	Metrics     bool    `toml:"Metrics" envconfig:"METRICS"`
	SampleRatio float64 `toml:"SampleRatio" envconfig:"SAMPLE_RATIO"`
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		RPCAddress:  ":8080",
		DataDir:     "./dao-data",
		GenesisFile: "",
		Environment: "dev",
		Node: NodeConfig{
			BlockIntervalMs:     2_000,
			MaxPending:          4_096,
			MaxPendingPerSigner: 64,
		},
		RPC: RPCConfig{
			ReadTimeoutSecs:  10,
			WriteTimeoutSecs: 15,
			SubmitRatePerSec: 20,
			SubmitBurst:      40,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Telemetry: TelemetryConfig{SampleRatio: 1},
	}
}

// Load loads the configuration from the given path, creating a default file
// when none exists, then applies DAOCHAIN_* environment overrides.
func Load(path string) (*Config, error) {
	var cfg *Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err = createDefault(path)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		cfg = Default()
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the node cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must be set")
	}
	if !c.InMemory && strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must be set unless InMemory")
	}
	if c.Node.BlockIntervalMs <= 0 {
		return fmt.Errorf("config: node.BlockIntervalMs must be positive")
	}
	if c.Node.MaxPending <= 0 {
		return fmt.Errorf("config: node.MaxPending must be positive")
	}
	if c.Node.MaxPendingPerSigner < 0 || c.Node.MaxPendingPerSigner > c.Node.MaxPending {
		return fmt.Errorf("config: node.MaxPendingPerSigner must be within [0, MaxPending]")
	}
	if c.RPC.SubmitRatePerSec < 0 || c.RPC.SubmitBurst < 0 {
		return fmt.Errorf("config: rpc submit limits must not be negative")
	}
	if c.RPC.SubmitRatePerSec > 0 && c.RPC.SubmitBurst == 0 {
		return fmt.Errorf("config: rpc.SubmitBurst must be positive when rate limiting")
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "", "auto", "json", "text":
	default:
		return fmt.Errorf("config: log.Format must be json, text or auto")
	}
	if c.Telemetry.SampleRatio < 0 {
		return fmt.Errorf("config: telemetry.SampleRatio must not be negative")
	}
	return nil
}

// DatabasePath is where the LevelDB state lives.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "state")
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
