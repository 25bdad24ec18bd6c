// Package config loads service settings from .env files, the environment and an optional config
// file named by CONFIG_FILE.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"postcode-api/internal/utils"
)

// Data sources.
const (
	SourceFile  = "file"
	SourceSQL   = "sql"
	SourceChain = "chain"
)

type RedisConfig struct {
	Enabled bool
	Host    string
	Port    int
	Pass    string
	DB      int
}

type Config struct {
	Port       int
	DataDir    string
	DataSource string
	DBDriver   string
	DBDSN      string

	PositiveCacheSize int
	NegativeCacheSize int
	NegativeCacheTTL  time.Duration
	CoalesceLookups   bool

	Redis RedisConfig

	RateLimitEnabled bool
	RateLimitQPS     int

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

var defaults = map[string]any{
	"port":                9999,
	"data_dir":            "data",
	"data_source":         SourceFile,
	"db_driver":           utils.DriverPostgres,
	"db_dsn":              "",
	"positive_cache_size": 1_500_000,
	"negative_cache_size": 10_000,
	"negative_cache_ttl":  "60s",
	"coalesce_lookups":    true,
	"redis_enabled":       false,
	"redis_host":          "127.0.0.1",
	"redis_port":          6379,
	"redis_pass":          "",
	"redis_db":            0,
	"rate_limit_enabled":  false,
	"rate_limit_qps":      200,
	"log_level":           "info",
	"log_format":          "text",
	"shutdown_timeout":    "10s",
}

// Load reads .env and data/env/.env (existing variables win), then the environment, then the
// file named by CONFIG_FILE if set, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()
	if err := v.BindEnv("config_file", "CONFIG_FILE"); err != nil {
		return nil, err
	}
	if f := v.GetString("config_file"); f != "" {
		v.SetConfigFile(f)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", f, err)
		}
	}
	c, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	ttl, err := duration(v, "negative_cache_ttl")
	if err != nil {
		return nil, err
	}
	shutdown, err := duration(v, "shutdown_timeout")
	if err != nil {
		return nil, err
	}
	return &Config{
		Port:              v.GetInt("port"),
		DataDir:           v.GetString("data_dir"),
		DataSource:        strings.ToLower(strings.TrimSpace(v.GetString("data_source"))),
		DBDriver:          v.GetString("db_driver"),
		DBDSN:             v.GetString("db_dsn"),
		PositiveCacheSize: v.GetInt("positive_cache_size"),
		NegativeCacheSize: v.GetInt("negative_cache_size"),
		NegativeCacheTTL:  ttl,
		CoalesceLookups:   v.GetBool("coalesce_lookups"),
		Redis: RedisConfig{
			Enabled: v.GetBool("redis_enabled"),
			Host:    v.GetString("redis_host"),
			Port:    v.GetInt("redis_port"),
			Pass:    v.GetString("redis_pass"),
			DB:      v.GetInt("redis_db"),
		},
		RateLimitEnabled: v.GetBool("rate_limit_enabled"),
		RateLimitQPS:     v.GetInt("rate_limit_qps"),
		LogLevel:         v.GetString("log_level"),
		LogFormat:        v.GetString("log_format"),
		ShutdownTimeout:  shutdown,
	}, nil
}

// duration accepts a Go duration ("90s", "1m") or a bare number of seconds.
func duration(v *viper.Viper, key string) (time.Duration, error) {
	s := strings.TrimSpace(v.GetString(key))
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", strings.ToUpper(key), err)
	}
	return d, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	switch c.DataSource {
	case SourceFile, SourceSQL, SourceChain:
	default:
		errs = append(errs, fmt.Errorf("DATA_SOURCE %q: want file, sql or chain", c.DataSource))
	}
	if c.DataSource != SourceSQL && c.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR is empty"))
	}
	if c.UsesSQL() && c.DBDriver != utils.DriverPostgres && c.DBDriver != utils.DriverSQLite {
		errs = append(errs, fmt.Errorf("DB_DRIVER %q: want postgres or sqlite3", c.DBDriver))
	}
	if c.PositiveCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("POSITIVE_CACHE_SIZE must be positive, got %d", c.PositiveCacheSize))
	}
	if c.NegativeCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("NEGATIVE_CACHE_SIZE must be positive, got %d", c.NegativeCacheSize))
	}
	if c.NegativeCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("NEGATIVE_CACHE_TTL must be positive, got %s", c.NegativeCacheTTL))
	}
	if c.RateLimitEnabled && c.RateLimitQPS <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_QPS must be positive, got %d", c.RateLimitQPS))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout))
	}
	return errors.Join(errs...)
}

// UsesSQL reports whether the configured source reads the SQL store.
func (c *Config) UsesSQL() bool {
	return c.DataSource == SourceSQL || c.DataSource == SourceChain
}

// Addr is the listen address.
func (c *Config) Addr() string { return ":" + strconv.Itoa(c.Port) }

// RateLimit is the per-second request budget, 0 when limiting is off.
func (c *Config) RateLimit() int {
	if !c.RateLimitEnabled {
		return 0
	}
	return c.RateLimitQPS
}
