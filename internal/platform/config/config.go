package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"d21ledger/contexts/governance/election-ledger/domain/entities"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override, e.g. D21_HTTP_ADDR.
const EnvPrefix = "d21"

type ctxKey string

const configContextKey ctxKey = "d21ledger.config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// StorageBackend selects the ledger persistence adapter.
type StorageBackend string

const (
	StorageMemory   StorageBackend = "memory"
	StoragePostgres StorageBackend = "postgres"
	StorageSQLite   StorageBackend = "sqlite"
	StorageBadger   StorageBackend = "badger"
)

func (b StorageBackend) Valid() bool {
	switch b {
	case StorageMemory, StoragePostgres, StorageSQLite, StorageBadger:
		return true
	default:
		return false
	}
}

// QuotaBrackets is the configurable vote quota table. From the environment it
// reads as "min:votes" pairs, e.g. D21_QUOTA=1:2,7:3.
type QuotaBrackets []entities.QuotaBracket

func (q *QuotaBrackets) Decode(value string) error {
	var brackets QuotaBrackets
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		minRaw, votesRaw, ok := strings.Cut(pair, ":")
		if !ok {
			return fmt.Errorf("quota bracket %q is not min:votes", pair)
		}
		minCandidates, err := strconv.Atoi(strings.TrimSpace(minRaw))
		if err != nil {
			return fmt.Errorf("quota bracket %q: %w", pair, err)
		}
		votes, err := strconv.Atoi(strings.TrimSpace(votesRaw))
		if err != nil {
			return fmt.Errorf("quota bracket %q: %w", pair, err)
		}
		brackets = append(brackets, entities.QuotaBracket{MinCandidates: minCandidates, Votes: votes})
	}
	*q = brackets
	return nil
}

func (q QuotaBrackets) Table() entities.QuotaTable {
	return entities.QuotaTable(append([]entities.QuotaBracket(nil), q...))
}

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string         `yaml:"serviceName" split_words:"true"`
	HTTPAddr    string         `yaml:"httpAddr"    envconfig:"HTTP_ADDR"`
	Storage     StorageBackend `yaml:"storage"`
	PostgresDSN string         `yaml:"postgresDsn" envconfig:"POSTGRES_DSN"`
	SQLitePath  string         `yaml:"sqlitePath"  envconfig:"SQLITE_PATH"`
	BadgerDir   string         `yaml:"badgerDir"   split_words:"true"`

	MaxCandidateNameBytes int           `yaml:"maxCandidateNameBytes" split_words:"true"`
	Quota                 QuotaBrackets `yaml:"quota"`
	RepeatTally           string        `yaml:"repeatTally"           split_words:"true"`

	OutboxBatchSize     int           `yaml:"outboxBatchSize"     split_words:"true"`
	OutboxPollInterval  time.Duration `yaml:"outboxPollInterval"  split_words:"true"`
	TallySweepBatchSize int           `yaml:"tallySweepBatchSize" split_words:"true"`
	TallySweepInterval  time.Duration `yaml:"tallySweepInterval"  split_words:"true"`

	MetricsEnabled  bool          `yaml:"metricsEnabled"  split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
}

// Default returns the configuration used when neither a file nor the
// environment says otherwise.
func Default() Config {
	return Config{
		ServiceName:           "d21-ledger",
		HTTPAddr:              ":8080",
		Storage:               StorageMemory,
		SQLitePath:            "d21ledger.db",
		BadgerDir:             ".d21ledger",
		MaxCandidateNameBytes: entities.DefaultMaxCandidateNameBytes,
		Quota:                 QuotaBrackets(entities.DefaultQuotaTable()),
		RepeatTally:           "replay",
		OutboxBatchSize:       100,
		OutboxPollInterval:    time.Second,
		TallySweepBatchSize:   50,
		TallySweepInterval:    30 * time.Second,
		MetricsEnabled:        true,
		ShutdownTimeout:       30 * time.Second,
	}
}

// Load overlays an optional YAML file and then D21_* environment variables
// onto the defaults.
func Load(configFile string) (*Config, error) {
	cfg := Default()
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	cfg.Storage = StorageBackend(strings.ToLower(strings.TrimSpace(string(cfg.Storage))))
	cfg.RepeatTally = strings.ToLower(strings.TrimSpace(cfg.RepeatTally))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if !c.Storage.Valid() {
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage))
	}
	if c.Storage == StoragePostgres && strings.TrimSpace(c.PostgresDSN) == "" {
		errs = append(errs, errors.New("postgres storage requires a postgres dsn"))
	}
	if c.Storage == StorageSQLite && strings.TrimSpace(c.SQLitePath) == "" {
		errs = append(errs, errors.New("sqlite storage requires a sqlite path"))
	}
	if c.Storage == StorageBadger && strings.TrimSpace(c.BadgerDir) == "" {
		errs = append(errs, errors.New("badger storage requires a badger dir"))
	}
	if c.MaxCandidateNameBytes < 1 {
		errs = append(errs, fmt.Errorf("max candidate name bytes must be positive, got %d", c.MaxCandidateNameBytes))
	}
	if err := c.Quota.Table().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.RepeatTally != "replay" && c.RepeatTally != "reject" {
		errs = append(errs, fmt.Errorf("repeat tally policy must be replay or reject, got %q", c.RepeatTally))
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("outbox poll interval must be positive"))
	}
	if c.TallySweepInterval <= 0 {
		errs = append(errs, errors.New("tally sweep interval must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
