package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/edugate/internal/config"
	"github.com/turtacn/edugate/pkg/logger"
)

func TestNewConnection_Modes(t *testing.T) {
	log := logger.NewNoopLogger()

	conn, err := NewConnection(config.RedisConfig{Addresses: []string{"a:6379"}}, log)
	require.NoError(t, err)
	assert.IsType(t, &goredis.Client{}, conn.Client())

	conn, err = NewConnection(config.RedisConfig{Mode: "cluster", Addresses: []string{"a:6379", "b:6379"}}, log)
	require.NoError(t, err)
	assert.IsType(t, &goredis.ClusterClient{}, conn.Client())

	conn, err = NewConnection(config.RedisConfig{Mode: "sentinel", MasterName: "m", Addresses: []string{"s:26379"}}, log)
	require.NoError(t, err)
	assert.IsType(t, &goredis.Client{}, conn.Client())

	_, err = NewConnection(config.RedisConfig{Mode: "ring", Addresses: []string{"a:6379"}}, log)
	assert.Error(t, err)

	_, err = NewConnection(config.RedisConfig{}, log)
	assert.Error(t, err)
}

func TestConnection_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	conn, err := NewConnection(config.RedisConfig{Addresses: []string{mr.Addr()}}, logger.NewNoopLogger())
	require.NoError(t, err)

	require.NoError(t, conn.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, conn.Ping(context.Background()))
	assert.NoError(t, conn.Close())
}
