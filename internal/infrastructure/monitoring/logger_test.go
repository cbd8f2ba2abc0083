package monitoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/edugate/internal/config"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/logger"
)

func TestZapLogger_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewLoggerFromZap(zap.New(core)).WithComponent("gateway")

	ctx := context.WithValue(context.Background(), constants.ContextKeyRequestID, "req-1")
	log.Warn(ctx, "connection rejected", logger.String("stage", "ip"), logger.Int("limit", 5))
	log.Error(ctx, "store failure", errors.New("dial tcp: refused"))

	entries := logs.All()
	require.Len(t, entries, 2)

	fields := entries[0].ContextMap()
	assert.Equal(t, "gateway", fields["component"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "ip", fields["stage"])
	assert.EqualValues(t, 5, fields["limit"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "dial tcp: refused", entries[1].ContextMap()["error"])
}

func TestNewZapLogger_BadLevelFallsBackToInfo(t *testing.T) {
	log, err := NewZapLogger(&config.LogConfig{Level: "loud"})
	require.NoError(t, err)
	assert.NotNil(t, log)
}
