package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "TASKBOARD"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Sessions   SessionsConfig   `mapstructure:"sessions"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int32         `mapstructure:"max_connections"`
	MinConnections int32         `mapstructure:"min_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	Migrate        bool          `mapstructure:"migrate"`
}

type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

const (
	RepositoryInMemory = "inmemory"
	RepositoryPostgres = "postgres"
)

type RepositoryConfig struct {
	Type string `mapstructure:"type"`
}

// CacheConfig is disabled when RedisURL is empty.
type CacheConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// AuthConfig selects HS256 with Secret or RS256 with keys from JWKSURL.
type AuthConfig struct {
	Secret   string `mapstructure:"secret"`
	JWKSURL  string `mapstructure:"jwks_url"`
	Audience string `mapstructure:"audience"`
	Issuer   string `mapstructure:"issuer"`
}

type SessionsConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.idle_timeout", 5*time.Minute)
	v.SetDefault("database.migrate", true)

	v.SetDefault("logging.development", false)

	v.SetDefault("repository.type", RepositoryInMemory)

	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", time.Minute)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.jwks_url", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("sessions.idle_timeout", 30*time.Minute)
	v.SetDefault("sessions.sweep_interval", 5*time.Minute)
}

// Load reads the YAML file at path on top of the defaults, then applies
// TASKBOARD_SECTION_KEY environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects setups the application cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.RateLimit <= 0 {
		errs = append(errs, errors.New("server.rate_limit must be positive"))
	}

	switch c.Repository.Type {
	case RepositoryInMemory:
	case RepositoryPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres repository"))
		}
		if c.Database.MinConnections > c.Database.MaxConnections {
			errs = append(errs, errors.New("database.min_connections exceeds database.max_connections"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown repository.type %q", c.Repository.Type))
	}

	if c.Auth.Secret == "" && c.Auth.JWKSURL == "" {
		errs = append(errs, errors.New("either auth.secret or auth.jwks_url must be set"))
	}

	if c.Sessions.IdleTimeout <= 0 || c.Sessions.SweepInterval <= 0 {
		errs = append(errs, errors.New("sessions.idle_timeout and sessions.sweep_interval must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
