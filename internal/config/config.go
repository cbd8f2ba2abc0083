package config

import (
	"fmt"
	"time"

	"github.com/turtacn/edugate/internal/domain/models"
)

// Config holds the application's configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnablePprof     bool          `mapstructure:"enable_pprof"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	// AdminToken guards the /admin routes; empty disables them.
	AdminToken string `mapstructure:"admin_token"`
}

// HTTPAddr returns the listen address of the HTTP server.
func (c *ServerConfig) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GRPCAddr returns the listen address of the gRPC server.
func (c *ServerConfig) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// RedisConfig selects the shared limiter store. Mode is one of standalone,
// cluster or sentinel.
type RedisConfig struct {
	Mode         string        `mapstructure:"mode"`
	Addresses    []string      `mapstructure:"addresses"`
	MasterName   string        `mapstructure:"master_name"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig points at the Postgres user directory. When Enabled is false
// the static directory from Gateway.StaticUsers is used instead.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// JWTConfig configures verification of the access tokens presented to the
// gateway and the HTTP surface.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	Leeway   time.Duration `mapstructure:"leeway"`
}

// RateLimitConfig is the policy table of the engine.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Default is the global policy every check starts from.
	Default models.Policy `mapstructure:"default"`
	// Contexts overrides Default per surface: http, websocket, notification.
	Contexts map[string]models.Policy `mapstructure:"contexts"`
	// Routes overrides the http context per gin route pattern, e.g. "/api/v1/login".
	Routes map[string]models.Policy `mapstructure:"routes"`
}

// GatewayConfig configures the connection gateway admission.
type GatewayConfig struct {
	// IPPolicy and UserPolicy are local overrides on top of the websocket context.
	IPPolicy   models.Policy `mapstructure:"ip_policy"`
	UserPolicy models.Policy `mapstructure:"user_policy"`
	// UserCacheTTL bounds how long a user lookup is reused.
	UserCacheTTL time.Duration `mapstructure:"user_cache_ttl"`
	// StaticUsers is a user_id -> tenant_id table used when the database is disabled.
	StaticUsers map[string]string `mapstructure:"static_users"`
}

type KafkaConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	Brokers           []string `mapstructure:"brokers"`
	NotificationTopic string   `mapstructure:"notification_topic"`
	// MessagesPerSecond paces the writer of this process; 0 disables pacing.
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Prometheus bool `mapstructure:"prometheus"`
	// Redis also keeps daily counters in the shared store.
	Redis bool `mapstructure:"redis"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	// JaegerEndpoint is the collector URL; empty keeps spans in-process only.
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	Environment    string  `mapstructure:"environment"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// Validate checks for essential configuration values. Policies with a missing
// limit or window are accepted here; the engine treats them as unlimited and
// warns at check time.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.Server.Port)
	}

	switch c.Redis.Mode {
	case "", "standalone", "cluster", "sentinel":
	default:
		return fmt.Errorf("redis.mode %q is not one of standalone, cluster, sentinel", c.Redis.Mode)
	}
	if len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("redis.addresses must not be empty")
	}
	if c.Redis.Mode == "sentinel" && c.Redis.MasterName == "" {
		return fmt.Errorf("redis.master_name is required in sentinel mode")
	}

	if err := validatePolicy("rate_limit.default", c.RateLimit.Default); err != nil {
		return err
	}
	for name, p := range c.RateLimit.Contexts {
		if err := validatePolicy("rate_limit.contexts."+name, p); err != nil {
			return err
		}
	}
	for route, p := range c.RateLimit.Routes {
		if err := validatePolicy("rate_limit.routes."+route, p); err != nil {
			return err
		}
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.NotificationTopic == "") {
		return fmt.Errorf("kafka.brokers and kafka.notification_topic are required when kafka is enabled")
	}
	return nil
}

func validatePolicy(path string, p models.Policy) error {
	if p.Strategy != "" && !p.Strategy.Valid() {
		return fmt.Errorf("%s.strategy %q is not supported", path, p.Strategy)
	}
	if p.Limit < 0 || p.WindowSeconds < 0 || p.ConsumePoints < 0 {
		return fmt.Errorf("%s has a negative limit, window or consume_points", path)
	}
	return nil
}
