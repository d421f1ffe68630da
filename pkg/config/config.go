package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig is the full service configuration, loaded from
// config/app.<environment>.yaml with DASHBOARD_* environment overrides.
type AppConfig struct {
	App       App            `mapstructure:"app"`
	APIServer APIServer      `mapstructure:"apiServer"`
	Cache     CacheConfig    `mapstructure:"cache"`
	Store     StoreConfig    `mapstructure:"store"`
	Redis     RedisConfig    `mapstructure:"redis"`
	Notifier  NotifierConfig `mapstructure:"notifier"`
	Seed      SeedConfig     `mapstructure:"seed"`

	Preferences PreferencesConfig `mapstructure:"preferences"`
}

// PreferencesConfig tunes the preference synchronizer.
type PreferencesConfig struct {
	// CommitPolicy is "optimistic" (keep local merge on failed persist) or
	// "pessimistic" (roll back).
	CommitPolicy string `mapstructure:"commitPolicy"`
}

type App struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	LogFormat   string `mapstructure:"logFormat"`
}

type APIServer struct {
	Host string     `mapstructure:"host"`
	Port int        `mapstructure:"port"`
	Auth AuthConfig `mapstructure:"auth"`
	CORS CORSConfig `mapstructure:"cors"`
}

type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	APIKeys []string `mapstructure:"apiKeys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
	AllowedMethods []string `mapstructure:"allowedMethods"`
	AllowedHeaders []string `mapstructure:"allowedHeaders"`
}

type CacheConfig struct {
	// TTL is the shared client-cache validity window.
	TTL time.Duration `mapstructure:"ttl"`
}

// StoreConfig picks the document-store backend: "dynamodb" or "memory".
type StoreConfig struct {
	Backend  string `mapstructure:"backend"`
	Table    string `mapstructure:"table"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NotifierConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type SeedConfig struct {
	// File is an optional YAML file of clients to create at startup.
	File string `mapstructure:"file"`
}

// Load reads the config for the given environment ("local", "prod", ...)
// from configDir, applying env-var overrides (DASHBOARD_APISERVER_PORT and
// friends) and defaults.
func Load(configDir, environment string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName(fmt.Sprintf("app.%s", environment))
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("DASHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.name", "dashboard")
	v.SetDefault("app.environment", environment)
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.logFormat", "text")
	v.SetDefault("apiServer.host", "0.0.0.0")
	v.SetDefault("apiServer.port", 8080)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.table", "clients")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("preferences.commitPolicy", "optimistic")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// defaults + env only
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
