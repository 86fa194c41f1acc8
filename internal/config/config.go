// Package config loads arxiv-search settings from config files, environment
// variables and flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/Sternrassler/arxiv-client/pkg/client"
	"github.com/Sternrassler/arxiv-client/pkg/logging"
)

// EnvPrefix is prepended to every environment variable, e.g. ARXIV_PAGE_SIZE.
const EnvPrefix = "ARXIV"

// Log formats. Auto picks console output when stderr is a terminal.
const (
	LogFormatAuto    = "auto"
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Config holds all configuration for the arxiv-search binary.
type Config struct {
	BaseURL    string        `mapstructure:"base_url" validate:"required,url"`
	UserAgent  string        `mapstructure:"user_agent" validate:"required"`
	PageSize   int           `mapstructure:"page_size" validate:"min=1,max=2000"`
	Delay      time.Duration `mapstructure:"delay" validate:"gte=0s"`
	NumRetries int           `mapstructure:"num_retries" validate:"gte=0"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0s"`
	Proxy      string        `mapstructure:"proxy" validate:"omitempty,url"`

	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Serve    ServeConfig    `mapstructure:"serve"`
	Download DownloadConfig `mapstructure:"download"`
}

// RedisConfig enables the Redis-shared rate limiter when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Key      string `mapstructure:"key"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format     string `mapstructure:"format" validate:"oneof=auto json console"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

// ServeConfig holds the HTTP server settings of the serve command.
type ServeConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0s"`
}

// DownloadConfig holds defaults for the download command.
type DownloadConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	def := client.DefaultConfig()
	v.SetDefault("base_url", def.BaseURL)
	v.SetDefault("user_agent", def.UserAgent)
	v.SetDefault("page_size", def.PageSize)
	v.SetDefault("delay", def.Delay)
	v.SetDefault("num_retries", def.NumRetries)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("proxy", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "")

	logDef := logging.DefaultConfig()
	v.SetDefault("log.level", string(logDef.Level))
	v.SetDefault("log.format", LogFormatAuto)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logDef.File.MaxSizeMB)
	v.SetDefault("log.max_backups", logDef.File.MaxBackups)
	v.SetDefault("log.max_age_days", logDef.File.MaxAgeDays)
	v.SetDefault("log.compress", logDef.File.Compress)

	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("serve.shutdown_timeout", "10s")

	v.SetDefault("download.dir", ".")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load applies defaults and environment bindings to v, decodes it and
// validates the result. The caller is responsible for pointing v at a config
// file and binding flags.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// ClientConfig converts cfg into a client configuration. The returned
// config carries a Redis client when redis.addr is set; the caller owns it.
func (c Config) ClientConfig() client.Config {
	cc := client.DefaultConfig()
	cc.BaseURL = c.BaseURL
	cc.UserAgent = c.UserAgent
	cc.PageSize = c.PageSize
	cc.Delay = c.Delay
	cc.NumRetries = c.NumRetries
	cc.Timeout = c.Timeout
	cc.Proxy = c.Proxy
	if c.Redis.Addr != "" {
		cc.Redis = redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		cc.RedisKey = c.Redis.Key
	}
	return cc
}

// LoggingConfig converts the log section into a logging configuration.
func (c Config) LoggingConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(c.Log.Level)
	switch c.Log.Format {
	case LogFormatConsole:
		lc.Pretty = true
	case LogFormatAuto:
		lc.Pretty = logging.IsTerminal(os.Stderr)
	}
	lc.File = logging.FileConfig{
		Path:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
	return lc
}
