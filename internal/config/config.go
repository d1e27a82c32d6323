// Package config loads the configuration for the ddbsessions command.
//
// Configuration is read from a YAML file, if one is found, and can be
// overridden by environment variables with the DDBSESSIONS_ prefix.
// For example DDBSESSIONS_DYNAMODB_TABLE overrides dynamodb.table.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jjeffery/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override
// configuration values.
const EnvPrefix = "DDBSESSIONS"

// Config is the configuration for the ddbsessions command.
type Config struct {
	// Backend selects the session storage provider.
	Backend  string `mapstructure:"backend" validate:"required,oneof=dynamodb postgres redis memory"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=trace debug info warn error"`
	Addr     string `mapstructure:"addr" validate:"required,hostname_port"`

	Cookie   CookieConfig   `mapstructure:"cookie"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// CookieConfig holds the session cookie attributes.
type CookieConfig struct {
	Name     string `mapstructure:"name" validate:"required,printascii,excludesall=0x2C;="`
	Domain   string `mapstructure:"domain"`
	Path     string `mapstructure:"path" validate:"required,startswith=/"`
	MaxAge   int    `mapstructure:"max_age" validate:"gte=0"`
	Secure   bool   `mapstructure:"secure"`
	HttpOnly bool   `mapstructure:"http_only"`
	SameSite string `mapstructure:"same_site" validate:"omitempty,oneof=lax strict none"`

	// IdleTimeout is how long a session without a max age is kept in
	// storage after it was last saved. Zero keeps it forever.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`

	// Secrets, if any, sign and encrypt the cookie. The first secret is
	// used for new cookies; the others are accepted while they rotate out.
	Secrets []string `mapstructure:"secrets" validate:"dive,min=16"`
}

// DynamoDBConfig configures the DynamoDB backend.
type DynamoDBConfig struct {
	Table         string        `mapstructure:"table" validate:"required,min=3,max=255"`
	Region        string        `mapstructure:"region"`
	Endpoint      string        `mapstructure:"endpoint" validate:"omitempty,url"`
	ReadCapacity  int64         `mapstructure:"read_capacity" validate:"gte=1"`
	WriteCapacity int64         `mapstructure:"write_capacity" validate:"gte=1"`
	MaxAttempts   int           `mapstructure:"max_attempts" validate:"gte=1"`
	InitialDelay  time.Duration `mapstructure:"initial_delay" validate:"gt=0"`
	MaxDelay      time.Duration `mapstructure:"max_delay" validate:"gtefield=InitialDelay"`
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table" validate:"required"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix"`
}

var defaults = map[string]interface{}{
	"backend":                 "dynamodb",
	"log_level":               "info",
	"addr":                    "localhost:8080",
	"cookie.name":             "AIOHTTP_SESSION",
	"cookie.domain":           "",
	"cookie.path":             "/",
	"cookie.max_age":          0,
	"cookie.secure":           false,
	"cookie.http_only":        true,
	"cookie.same_site":        "",
	"cookie.idle_timeout":     30 * 24 * time.Hour,
	"cookie.secrets":          []string{},
	"dynamodb.table":          "sessions",
	"dynamodb.region":         "",
	"dynamodb.endpoint":       "",
	"dynamodb.read_capacity":  10,
	"dynamodb.write_capacity": 10,
	"dynamodb.max_attempts":   10,
	"dynamodb.initial_delay":  200 * time.Millisecond,
	"dynamodb.max_delay":      5 * time.Second,
	"postgres.dsn":            "",
	"postgres.table":          "http_sessions",
	"redis.addr":              "localhost:6379",
	"redis.password":          "",
	"redis.db":                0,
	"redis.prefix":            "",
}

// New returns a viper instance that reads configFile, or if configFile
// is blank, ddbsessions.yaml in the current directory or /etc/ddbsessions.
// Every configuration key has a default, so every key can be set from
// the environment.
func New(configFile string) *viper.Viper {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("ddbsessions")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ddbsessions")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Load reads and validates the configuration. A missing configuration
// file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "cannot read config file")
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration. Only the section for the selected
// backend is checked.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructExcept(c, "DynamoDB", "Postgres", "Redis"); err != nil {
		return validationError(err)
	}
	var err error
	switch c.Backend {
	case "dynamodb":
		err = validate.Struct(c.DynamoDB)
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("invalid config: postgres.dsn is required")
		}
		err = validate.Struct(c.Postgres)
	case "redis":
		err = validate.Struct(c.Redis)
	}
	if err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, "invalid config")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return errors.New("invalid config: " + strings.Join(msgs, "; "))
}
