package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/pkg/logger"
)

const sampleConfig = `
server:
  port: 9090
redis:
  mode: standalone
  addresses: ["127.0.0.1:6379"]
rate_limit:
  default:
    strategy: sliding_window
    limit: 100
    window_seconds: 60
  contexts:
    http:
      strategy: fixed_window
      limit: 1000
    websocket:
      limit: 5
      fail_open: false
gateway:
  user_cache_ttl: 10s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoader_Load(t *testing.T) {
	l := NewLoader(writeConfig(t, sampleConfig), logger.NewNoopLogger())

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, l.Current())

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 50051, cfg.Server.GRPCPort, "defaults fill unspecified keys")
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Gateway.UserCacheTTL)

	assert.Equal(t, models.StrategySlidingWindow, cfg.RateLimit.Default.Strategy)
	assert.Equal(t, 100, cfg.RateLimit.Default.Limit)

	httpPolicy := cfg.RateLimit.Contexts["http"]
	assert.Equal(t, models.StrategyFixedWindow, httpPolicy.Strategy)
	assert.Nil(t, httpPolicy.FailOpen)

	ws := cfg.RateLimit.Contexts["websocket"]
	require.NotNil(t, ws.FailOpen)
	assert.False(t, ws.IsFailOpen())
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("EDUGATE_SERVER_PORT", "7070")
	l := NewLoader(writeConfig(t, sampleConfig), logger.NewNoopLogger())

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoader_RejectsInvalid(t *testing.T) {
	body := `
redis:
  addresses: ["127.0.0.1:6379"]
rate_limit:
  contexts:
    http:
      strategy: leaky_bucket
`
	_, err := NewLoader(writeConfig(t, body), logger.NewNoopLogger()).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leaky_bucket")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 8080},
			Redis:  RedisConfig{Addresses: []string{"localhost:6379"}},
		}
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Redis.Mode = "sentinel"
	assert.Error(t, cfg.Validate())
	cfg.Redis.MasterName = "mymaster"
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Redis.Addresses = nil
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.RateLimit.Routes = map[string]models.Policy{"/login": {Limit: -1}}
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.RateLimit.Default = models.Policy{}
	assert.NoError(t, cfg.Validate(), "an unresolvable policy is not a config error")

	cfg = valid()
	cfg.Kafka.Enabled = true
	assert.Error(t, cfg.Validate())
}
