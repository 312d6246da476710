// Package config loads server settings from an optional config file and the
// environment. Every knob has a default; nothing is hot-reloaded.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration tree.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Snowflake SnowflakeConfig `mapstructure:"snowflake"`
	Session   SessionConfig   `mapstructure:"session"`
	Query     QueryConfig     `mapstructure:"query"`
	Cache     CacheConfig     `mapstructure:"cache"`
	History   HistoryConfig   `mapstructure:"history"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SnowflakeConfig carries connection defaults. Credentials always come from
// the connect request, never from configuration.
type SnowflakeConfig struct {
	Account   string `mapstructure:"account"`
	User      string `mapstructure:"user"`
	Role      string `mapstructure:"role"`
	Warehouse string `mapstructure:"warehouse"`
	Database  string `mapstructure:"database"`
	Schema    string `mapstructure:"schema"`
}

type SessionConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type QueryConfig struct {
	RowLimit       int           `mapstructure:"row_limit"`
	ResultCapacity int           `mapstructure:"result_capacity"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

type CacheConfig struct {
	TableTTL        time.Duration `mapstructure:"table_ttl"`
	MetadataTimeout time.Duration `mapstructure:"metadata_timeout"`
	MaxEntries      int           `mapstructure:"max_entries"`
}

type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads config.yaml from dir (and the working directory) when present,
// then applies LAKEDICT_* environment overrides on top of the defaults.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir != "" {
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("LAKEDICT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("snowflake.account", "")
	v.SetDefault("snowflake.user", "")
	v.SetDefault("snowflake.role", "")
	v.SetDefault("snowflake.warehouse", "")
	v.SetDefault("snowflake.database", "")
	v.SetDefault("snowflake.schema", "")

	v.SetDefault("session.idle_timeout", 30*time.Minute)
	v.SetDefault("session.probe_timeout", 5*time.Second)
	v.SetDefault("session.sweep_interval", time.Minute)

	v.SetDefault("query.row_limit", 10000)
	v.SetDefault("query.result_capacity", 50)
	v.SetDefault("query.default_timeout", 5*time.Minute)

	v.SetDefault("cache.table_ttl", 10*time.Minute)
	v.SetDefault("cache.metadata_timeout", 15*time.Second)
	v.SetDefault("cache.max_entries", 256)

	v.SetDefault("history.path", "lakedict-history.db")

	v.SetDefault("log.level", "info")
}
