package config

import (
	"context"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
	"github.com/turtacn/edugate/pkg/logger"
)

// Loader reads the configuration from file and environment variables and can
// watch the file for changes.
type Loader struct {
	v   *viper.Viper
	log logger.Logger

	mu      sync.RWMutex
	current *Config
}

// NewLoader creates a loader. configFile may be empty, in which case config.yaml
// is searched in /etc/edugate/ and the working directory.
func NewLoader(configFile string, log logger.Logger) *Loader {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/edugate/")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("EDUGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, log: log.WithComponent("config")}
}

// LoadConfig loads the configuration from the default locations.
func LoadConfig(log logger.Logger) (*Config, error) {
	return NewLoader("", log).Load()
}

// Load reads, unmarshals and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.ErrServerError("failed to read config").WithCause(err)
		}
		l.log.Warn(context.Background(), "no config file found, using defaults and environment")
	}

	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Current returns the last successfully loaded configuration.
func (l *Loader) Current() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Watch reloads the configuration whenever the file changes and passes every
// valid result to onChange. Invalid files are logged and ignored.
func (l *Loader) Watch(onChange func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		ctx := context.Background()
		cfg, err := l.decode()
		if err != nil {
			l.log.Error(ctx, "config reload rejected", err, logger.String("file", e.Name))
			return
		}

		l.mu.Lock()
		l.current = cfg
		l.mu.Unlock()

		l.log.Info(ctx, "config reloaded", logger.String("file", e.Name), logger.String("op", e.Op.String()))
		onChange(cfg)
	})
	l.v.WatchConfig()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, errors.ErrServerError("failed to unmarshal config").WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ErrInvalidRequest("invalid configuration").WithCause(err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", constants.DefaultShutdownTimeout)

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 5)
	v.SetDefault("redis.dial_timeout", "2s")
	v.SetDefault("redis.read_timeout", "500ms")
	v.SetDefault("redis.write_timeout", "500ms")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)

	v.SetDefault("jwt.leeway", "30s")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.default.strategy", "sliding_window")
	v.SetDefault("rate_limit.default.limit", constants.DefaultRateLimit)
	v.SetDefault("rate_limit.default.window_seconds", constants.DefaultRateLimitWindowSeconds)

	v.SetDefault("gateway.user_cache_ttl", constants.UserDirectoryCacheTTL)

	v.SetDefault("metrics.prometheus", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.service_name", "edugate")
	v.SetDefault("tracing.sampling_rate", 1.0)
}
