package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Defaults are applied first, then
// the optional YAML file, then PRELAUNCH_* environment variables.
type Config struct {
	Server    Server      `yaml:"server"`
	Log       Log         `yaml:"log"`
	Database  Database    `yaml:"database"`
	Redis     RedisConfig `yaml:"redis"`
	Kafka     Kafka       `yaml:"kafka"`
	RateLimit RateLimit   `yaml:"rate_limit"`
	Admin     Admin       `yaml:"admin"`
	Session   Session     `yaml:"session"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	// SecureCookies marks the form session cookie Secure (HTTPS only).
	SecureCookies bool `yaml:"secure_cookies"`
	// TrustedProxies lists CIDRs or addresses whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means RemoteAddr is the client.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// Database selects the record store. An empty Driver keeps registrations in memory.
type Database struct {
	Driver          string        `yaml:"driver"` // postgres, pgx, sqlite3
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RedisConfig configures the optional Redis client. Empty URL disables Redis.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Kafka configures registration event publishing. No brokers disables it.
type Kafka struct {
	Brokers            []string      `yaml:"brokers"`
	Topic              string        `yaml:"topic"`
	Partitions         int32         `yaml:"partitions"`
	ReplicationFactor  int16         `yaml:"replication_factor"`
	EnsureTopic        bool          `yaml:"ensure_topic"`
	MaxBufferedRecords int           `yaml:"max_buffered_records"`
	DeliveryTimeout    time.Duration `yaml:"delivery_timeout"`
}

// RateLimit bounds submissions per client IP.
type RateLimit struct {
	Disabled bool          `yaml:"disabled"`
	Limit    int           `yaml:"limit"`
	Window   time.Duration `yaml:"window"`
}

// Admin configures bearer-token access to the registration export.
type Admin struct {
	JWTSigningKey string        `yaml:"jwt_signing_key"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
}

// Session bounds how long an idle form session is kept.
type Session struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

const devSigningKey = "dev-secret-key-change-in-production"

// Defaults returns a config that runs locally with no external services.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Log: Log{Level: "info", Format: "json"},
		Database: Database{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: Kafka{
			Topic:              "prelaunch.registrations",
			Partitions:         3,
			ReplicationFactor:  1,
			EnsureTopic:        true,
			MaxBufferedRecords: 1000,
			DeliveryTimeout:    30 * time.Second,
		},
		RateLimit: RateLimit{Limit: 10, Window: time.Minute},
		Admin: Admin{
			JWTSigningKey: devSigningKey,
			Issuer:        "prelaunch",
			Audience:      "prelaunch-admin",
			TokenTTL:      12 * time.Hour,
		},
		Session: Session{TTL: 2 * time.Hour, SweepInterval: 5 * time.Minute},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and the environment.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a config from defaults and environment variables only.
func FromEnv() (Config, error) {
	return Load("")
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	for _, p := range c.Server.TrustedProxies {
		if !validProxyEntry(p) {
			errs = append(errs, fmt.Errorf("server.trusted_proxies: %q is not an IP or CIDR", p))
		}
	}
	if c.Database.Driver != "" && c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required when a driver is set"))
	}
	if !c.RateLimit.Disabled && (c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rate_limit.limit and rate_limit.window must be positive"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	if c.Admin.JWTSigningKey == "" {
		errs = append(errs, errors.New("admin.jwt_signing_key is required"))
	}
	if c.Session.TTL <= 0 || c.Session.SweepInterval <= 0 {
		errs = append(errs, errors.New("session.ttl and session.sweep_interval must be positive"))
	}
	return errors.Join(errs...)
}

func validProxyEntry(entry string) bool {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		_, err := netip.ParsePrefix(entry)
		return err == nil
	}
	_, err := netip.ParseAddr(entry)
	return err == nil
}

// UsesDevSigningKey reports whether the admin key was left at its default.
func (c Config) UsesDevSigningKey() bool {
	return c.Admin.JWTSigningKey == devSigningKey
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("PRELAUNCH_ADDR", &cfg.Server.Addr)
	duration("PRELAUNCH_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	duration("PRELAUNCH_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	boolean("PRELAUNCH_SECURE_COOKIES", &cfg.Server.SecureCookies)
	if v, ok := lookup("PRELAUNCH_TRUSTED_PROXIES"); ok && v != "" {
		cfg.Server.TrustedProxies = splitList(v)
	}

	str("PRELAUNCH_LOG_LEVEL", &cfg.Log.Level)
	str("PRELAUNCH_LOG_FORMAT", &cfg.Log.Format)

	str("PRELAUNCH_DB_DRIVER", &cfg.Database.Driver)
	str("PRELAUNCH_DB_URL", &cfg.Database.URL)
	integer("PRELAUNCH_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	boolean("PRELAUNCH_DB_AUTO_MIGRATE", &cfg.Database.AutoMigrate)

	str("PRELAUNCH_REDIS_URL", &cfg.Redis.URL)

	if v, ok := lookup("PRELAUNCH_KAFKA_BROKERS"); ok && v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	str("PRELAUNCH_KAFKA_TOPIC", &cfg.Kafka.Topic)
	boolean("PRELAUNCH_KAFKA_ENSURE_TOPIC", &cfg.Kafka.EnsureTopic)
	integer("PRELAUNCH_KAFKA_MAX_BUFFERED_RECORDS", &cfg.Kafka.MaxBufferedRecords)
	duration("PRELAUNCH_KAFKA_DELIVERY_TIMEOUT", &cfg.Kafka.DeliveryTimeout)

	boolean("PRELAUNCH_RATE_LIMIT_DISABLED", &cfg.RateLimit.Disabled)
	integer("PRELAUNCH_RATE_LIMIT", &cfg.RateLimit.Limit)
	duration("PRELAUNCH_RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)

	str("PRELAUNCH_JWT_SIGNING_KEY", &cfg.Admin.JWTSigningKey)
	str("PRELAUNCH_JWT_ISSUER", &cfg.Admin.Issuer)
	str("PRELAUNCH_JWT_AUDIENCE", &cfg.Admin.Audience)

	duration("PRELAUNCH_SESSION_TTL", &cfg.Session.TTL)
	duration("PRELAUNCH_SESSION_SWEEP_INTERVAL", &cfg.Session.SweepInterval)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
