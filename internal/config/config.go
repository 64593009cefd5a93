package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Rooms         RoomsConfig         `mapstructure:"rooms"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Log           LogConfig           `mapstructure:"log"`
	Timezone      string              `mapstructure:"timezone"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	// URL empty disables the redis broker; an in-process broker is used instead.
	URL      string `mapstructure:"url"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type RoomsConfig struct {
	ClaimAttempts   int    `mapstructure:"claim_attempts"`
	ExaminationType string `mapstructure:"examination_type"`
}

type NotificationsConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	// Channel is the prefix of per-user broker channels.
	Channel     string `mapstructure:"channel"`
	EventsTopic string `mapstructure:"events_topic"`
	// HealthPort serves the worker's probes and metrics.
	HealthPort int `mapstructure:"health_port"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// envOverrides are the HOSPITAL_* variables that win over the yaml file.
type envOverrides struct {
	DatabaseDriver   string `envconfig:"DATABASE_DRIVER"`
	DatabaseHost     string `envconfig:"DATABASE_HOST"`
	DatabasePort     int    `envconfig:"DATABASE_PORT"`
	DatabaseUser     string `envconfig:"DATABASE_USER"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`
	DatabaseName     string `envconfig:"DATABASE_NAME"`
	RedisURL         string `envconfig:"REDIS_URL"`
	ServerPort       int    `envconfig:"SERVER_PORT"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	Timezone         string `envconfig:"TIMEZONE"`
	LogLevel         string `envconfig:"LOG_LEVEL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50.0)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("rooms.claim_attempts", 3)
	v.SetDefault("rooms.examination_type", "examination")

	v.SetDefault("notifications.batch_size", 100)
	v.SetDefault("notifications.poll_interval", 5*time.Second)
	v.SetDefault("notifications.retry_attempts", 3)
	v.SetDefault("notifications.retry_delay", 30*time.Second)
	v.SetDefault("notifications.channel", "notifications")
	v.SetDefault("notifications.events_topic", "hospital.events")
	v.SetDefault("notifications.health_port", 8081)

	v.SetDefault("log.level", "info")
	v.SetDefault("timezone", "UTC")
}

// LoadConfig reads config.yaml from the usual locations, then applies
// HOSPITAL_* environment overrides. A missing file is not an error.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)

	v.SetEnvPrefix("HOSPITAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("HOSPITAL", &env); err != nil {
		return nil, fmt.Errorf("failed to process env overrides: %w", err)
	}
	env.apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (e envOverrides) apply(cfg *Config) {
	if e.DatabaseDriver != "" {
		cfg.Database.Driver = e.DatabaseDriver
	}
	if e.DatabaseHost != "" {
		cfg.Database.Host = e.DatabaseHost
	}
	if e.DatabasePort != 0 {
		cfg.Database.Port = e.DatabasePort
	}
	if e.DatabaseUser != "" {
		cfg.Database.User = e.DatabaseUser
	}
	if e.DatabasePassword != "" {
		cfg.Database.Password = e.DatabasePassword
	}
	if e.DatabaseName != "" {
		cfg.Database.Name = e.DatabaseName
	}
	if e.RedisURL != "" {
		cfg.Redis.URL = e.RedisURL
	}
	if e.ServerPort != 0 {
		cfg.Server.Port = e.ServerPort
	}
	if e.JWTSecret != "" {
		cfg.JWT.Secret = e.JWTSecret
	}
	if e.Timezone != "" {
		cfg.Timezone = e.Timezone
	}
	if e.LogLevel != "" {
		cfg.Log.Level = e.LogLevel
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Rooms.ClaimAttempts < 1 {
		return fmt.Errorf("rooms.claim_attempts must be at least 1")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves Timezone; Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
