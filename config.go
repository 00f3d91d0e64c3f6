package tapbank

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type Config struct {
	Ledger struct {
		DefaultBalance int64 `yaml:"default_balance"`
	} `yaml:"ledger"`
	Storage struct {
		Backend          string `yaml:"backend"`
		FilePath         string `yaml:"file_path"`
		ConnectionString string `yaml:"conn_str"`
		Breaker          struct {
			MaxFailures uint32        `yaml:"max_failures"`
			OpenTimeout time.Duration `yaml:"open_timeout"`
		} `yaml:"breaker"`
	} `yaml:"storage"`
	Server struct {
		Addr           string        `yaml:"addr"`
		StatementLimit int64         `yaml:"statement_limit"`
		StatementWait  time.Duration `yaml:"statement_wait"`
	} `yaml:"server"`
	Console struct {
		ResultDelay time.Duration `yaml:"result_delay"`
	} `yaml:"console"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	cfgfl, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer cfgfl.Close()

	var cfg Config
	if err = yaml.NewDecoder(cfgfl).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Ledger.DefaultBalance <= 0 {
		c.Ledger.DefaultBalance = DefaultBalance
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}
	if c.Storage.FilePath == "" {
		c.Storage.FilePath = "tapbank.json"
	}
	if c.Storage.Breaker.MaxFailures == 0 {
		c.Storage.Breaker.MaxFailures = 3
	}
	if c.Storage.Breaker.OpenTimeout == 0 {
		c.Storage.Breaker.OpenTimeout = 30 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.StatementLimit <= 0 {
		c.Server.StatementLimit = 4
	}
	if c.Server.StatementWait == 0 {
		c.Server.StatementWait = 2 * time.Second
	}
	if c.Console.ResultDelay == 0 {
		c.Console.ResultDelay = 3 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = zerolog.LevelInfoValue
	}
}

// LogLevel parses log.level, falling back to info when it is not a zerolog level.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewRepository builds the configured backend wrapped in a save circuit breaker.
func NewRepository(ctx context.Context, cfg *Config, log *zerolog.Logger) (Repository, error) {
	var repo Repository
	switch cfg.Storage.Backend {
	case BackendFile:
		repo = NewFileRepository(cfg.Storage.FilePath)
	case BackendPostgres:
		pg, err := NewPostgresRepository(ctx, cfg.Storage.ConnectionString, log)
		if err != nil {
			return nil, err
		}
		repo = pg
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	return NewBreakerRepository(repo, BreakerSettings{
		MaxFailures: cfg.Storage.Breaker.MaxFailures,
		OpenTimeout: cfg.Storage.Breaker.OpenTimeout,
	}, log), nil
}
