// Package config builds the process configuration value object.
//
// Configuration is constructed once at startup and passed by reference into each
// component constructor. Nothing below cmd/ reads the environment directly.
//
// Load order: Default() values, then the optional YAML file, then ROSTER_*
// environment variables, then Validate().
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable consulted when no --config flag is given.
const EnvConfigPath = "ROSTER_CONFIG"

// MinSecretLength is the floor for generated identity secrets.
const MinSecretLength = 12

type Config struct {
	Environment string      `yaml:"environment" env:"ROSTER_ENV"`
	Server      Server      `yaml:"server" envPrefix:"ROSTER_SERVER_"`
	Log         Log         `yaml:"log" envPrefix:"ROSTER_LOG_"`
	Database    Database    `yaml:"database" envPrefix:"ROSTER_DB_"`
	Redis       RedisConfig `yaml:"redis" envPrefix:"ROSTER_REDIS_"`
	Kafka       Kafka       `yaml:"kafka" envPrefix:"ROSTER_KAFKA_"`
	Identity    Identity    `yaml:"identity" envPrefix:"ROSTER_IDENTITY_"`
	Membership  Membership  `yaml:"membership" envPrefix:"ROSTER_MEMBERSHIP_"`
	Reconcile   Reconcile   `yaml:"reconcile" envPrefix:"ROSTER_RECONCILE_"`
	Admin       Admin       `yaml:"admin" envPrefix:"ROSTER_ADMIN_"`
}

// Server captures the operational HTTP listener.
type Server struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type Log struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Database configures the membership store. Driver "memory" keeps everything in
// process for local development.
type Database struct {
	Driver          string        `yaml:"driver" env:"DRIVER"`
	DSN             string        `yaml:"dsn" env:"DSN"`
	MembershipTable string        `yaml:"membership_table" env:"MEMBERSHIP_TABLE"`
	AutoMigrate     bool          `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	QueryTimeout    time.Duration `yaml:"query_timeout" env:"QUERY_TIMEOUT"`
}

// RedisConfig is optional; an empty URL disables the reconciliation lease and
// report cache.
type RedisConfig struct {
	URL          string        `yaml:"url" env:"URL"`
	PoolSize     int           `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	KeyPrefix    string        `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// Kafka is optional; no brokers means audit events are only logged.
type Kafka struct {
	Brokers           []string      `yaml:"brokers" env:"BROKERS" envSeparator:","`
	AuditTopic        string        `yaml:"audit_topic" env:"AUDIT_TOPIC"`
	EnsureTopic       bool          `yaml:"ensure_topic" env:"ENSURE_TOPIC"`
	Partitions        int32         `yaml:"partitions" env:"PARTITIONS"`
	ReplicationFactor int16         `yaml:"replication_factor" env:"REPLICATION_FACTOR"`
	ProduceTimeout    time.Duration `yaml:"produce_timeout" env:"PRODUCE_TIMEOUT"`
	AuditBuffer       int           `yaml:"audit_buffer" env:"AUDIT_BUFFER"`
}

// Identity configures the identity-provider admin API client. Driver "memory"
// uses the in-process provider.
type Identity struct {
	Driver           string        `yaml:"driver" env:"DRIVER"`
	BaseURL          string        `yaml:"base_url" env:"BASE_URL"`
	SigningKey       string        `yaml:"signing_key" env:"SIGNING_KEY"`
	Issuer           string        `yaml:"issuer" env:"ISSUER"`
	Audience         string        `yaml:"audience" env:"AUDIENCE"`
	TokenTTL         time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	PageSize         int           `yaml:"page_size" env:"PAGE_SIZE"`
	ReadRetries      int           `yaml:"read_retries" env:"READ_RETRIES"`
	BreakerFailures  int           `yaml:"breaker_failures" env:"BREAKER_FAILURES"`
	BreakerSuccesses int           `yaml:"breaker_successes" env:"BREAKER_SUCCESSES"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" env:"BREAKER_COOLDOWN"`
}

type Membership struct {
	SecretLength        int           `yaml:"secret_length" env:"SECRET_LENGTH"`
	Roles               []string      `yaml:"roles" env:"ROLES" envSeparator:","`
	CompensationTimeout time.Duration `yaml:"compensation_timeout" env:"COMPENSATION_TIMEOUT"`
}

type Reconcile struct {
	Enabled    bool          `yaml:"enabled" env:"ENABLED"`
	Interval   time.Duration `yaml:"interval" env:"INTERVAL"`
	RunTimeout time.Duration `yaml:"run_timeout" env:"RUN_TIMEOUT"`
	LeaseTTL   time.Duration `yaml:"lease_ttl" env:"LEASE_TTL"`
	ReportTTL  time.Duration `yaml:"report_ttl" env:"REPORT_TTL"`
	Remediate  bool          `yaml:"remediate" env:"REMEDIATE"`
}

type Admin struct {
	Token string `yaml:"token" env:"TOKEN"`
}

// Default returns development defaults.
func Default() Config {
	return Config{
		Environment: "development",
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: Log{Level: "info", Format: "json"},
		Database: Database{
			Driver:          "memory",
			MembershipTable: "memberships",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    5 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			KeyPrefix:    "roster:",
		},
		Kafka: Kafka{
			AuditTopic:        "roster.membership.audit",
			Partitions:        3,
			ReplicationFactor: 1,
			ProduceTimeout:    5 * time.Second,
			AuditBuffer:       256,
		},
		Identity: Identity{
			Driver:           "memory",
			Issuer:           "roster",
			Audience:         "identity-admin",
			TokenTTL:         5 * time.Minute,
			RequestTimeout:   10 * time.Second,
			PageSize:         200,
			ReadRetries:      2,
			BreakerFailures:  5,
			BreakerSuccesses: 1,
			BreakerCooldown:  30 * time.Second,
		},
		Membership: Membership{
			SecretLength:        MinSecretLength,
			Roles:               []string{"owner", "admin", "manager", "closer", "sdr", "member"},
			CompensationTimeout: 10 * time.Second,
		},
		Reconcile: Reconcile{
			Interval:   time.Hour,
			RunTimeout: 10 * time.Minute,
			LeaseTTL:   15 * time.Minute,
			ReportTTL:  7 * 24 * time.Hour,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file and the environment.
// An empty path falls back to $ROSTER_CONFIG; no file at all is fine.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.MembershipTable) == "" {
		errs = append(errs, errors.New("database.membership_table is required"))
	}
	switch c.Identity.Driver {
	case "memory":
	case "http":
		if c.Identity.BaseURL == "" {
			errs = append(errs, errors.New("identity.base_url is required for the http driver"))
		}
		if c.Identity.SigningKey == "" {
			errs = append(errs, errors.New("identity.signing_key is required for the http driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("identity.driver %q is not supported", c.Identity.Driver))
	}
	if c.Identity.RequestTimeout <= 0 {
		errs = append(errs, errors.New("identity.request_timeout must be positive"))
	}
	if c.Identity.PageSize <= 0 {
		errs = append(errs, errors.New("identity.page_size must be positive"))
	}
	if c.Membership.SecretLength < MinSecretLength {
		errs = append(errs, fmt.Errorf("membership.secret_length must be at least %d", MinSecretLength))
	}
	if len(c.Membership.Roles) == 0 {
		errs = append(errs, errors.New("membership.roles must not be empty"))
	}
	if c.Reconcile.LeaseTTL < 0 || c.Reconcile.RunTimeout < 0 {
		errs = append(errs, errors.New("reconcile.lease_ttl and reconcile.run_timeout must not be negative"))
	}
	if c.Redis.URL != "" && c.Reconcile.LeaseTTL <= 0 && c.Reconcile.RunTimeout <= 0 {
		errs = append(errs, errors.New("reconcile.lease_ttl or reconcile.run_timeout must be positive when redis is configured"))
	}
	if c.Reconcile.Enabled && c.Reconcile.Interval <= 0 {
		errs = append(errs, errors.New("reconcile.interval must be positive when enabled"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.AuditTopic == "" {
		errs = append(errs, errors.New("kafka.audit_topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}
