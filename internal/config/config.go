// Package config loads service configuration from YAML and the
// environment via viper, then validates it.
package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Policy     PolicyConfig     `mapstructure:"policy"`
	Regulatory RegulatoryConfig `mapstructure:"regulatory"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PolicyConfig locates the policy rule definitions.
type PolicyConfig struct {
	RulesPath string `mapstructure:"rules_path" validate:"required"`
}

// RegulatoryConfig locates regulation definitions and configures the
// background refresh.
type RegulatoryConfig struct {
	RegulationsDir  string        `mapstructure:"regulations_dir" validate:"required"`
	RefreshURL      string        `mapstructure:"refresh_url"`
	RefreshAPIKey   string        `mapstructure:"refresh_api_key"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// CacheConfig selects and sizes the result cache backend.
type CacheConfig struct {
	Backend  string        `mapstructure:"backend" validate:"oneof=memory redis"`
	RedisURL string        `mapstructure:"redis_url"`
	Size     int           `mapstructure:"size" validate:"gt=0"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// DatabaseConfig configures alert persistence.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

// KafkaConfig configures the optional check-event publisher.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// AlertsConfig configures alert scoring, delivery, and reporting.
type AlertsConfig struct {
	WebhookURL      string  `mapstructure:"webhook_url"`
	HighThreshold   float64 `mapstructure:"high_threshold"`
	MediumThreshold float64 `mapstructure:"medium_threshold"`
	BaselineVolume  int     `mapstructure:"baseline_volume" validate:"gt=0"`
}

// Load reads comply.yaml from the working directory or ./configs, with
// COMPLY_-prefixed environment variables taking precedence.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("comply")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.SetEnvPrefix("COMPLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading config file")
		}
		// no file is fine: defaults plus environment
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return nil, errors.New("kafka enabled but no brokers configured")
	}
	if cfg.Cache.Backend == "redis" && cfg.Cache.RedisURL == "" {
		return nil, errors.New("redis cache backend requires redis_url")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("policy.rules_path", "configs/policy_rules.json")
	v.SetDefault("regulatory.regulations_dir", "configs/regulations")
	v.SetDefault("regulatory.refresh_interval", time.Hour)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.size", 10_000)
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "comply.db")
	v.SetDefault("kafka.topic", "compliance.checks")
	v.SetDefault("alerts.high_threshold", 8)
	v.SetDefault("alerts.medium_threshold", 5)
	v.SetDefault("alerts.baseline_volume", 1000)
}
