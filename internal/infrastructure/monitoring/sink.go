package monitoring

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/edugate/internal/domain/service"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/logger"
)

// asyncRecordTimeout bounds a detached metrics write.
const asyncRecordTimeout = 2 * time.Second

// MultiSink fans one event out to several sinks concurrently.
type MultiSink struct {
	sinks []service.MetricsSink
}

// NewMultiSink creates a fan-out sink. nil sinks are skipped.
func NewMultiSink(sinks ...service.MetricsSink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Record implements service.MetricsSink. It returns the first sink error.
func (m *MultiSink) Record(ctx context.Context, event constants.MetricEvent, rlContext, stage string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range m.sinks {
		g.Go(func() error {
			return s.Record(gctx, event, rlContext, stage)
		})
	}
	return g.Wait()
}

// RecordAsync records an event on a detached goroutine. Failures and panics are
// logged at debug level and never reach the caller.
func RecordAsync(
	ctx context.Context,
	sink service.MetricsSink,
	log logger.Logger,
	event constants.MetricEvent,
	rlContext, stage string,
) {
	if sink == nil {
		return
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Debug(detached, "metrics sink panicked", logger.Any("panic", fmt.Sprint(r)))
			}
		}()

		rctx, cancel := context.WithTimeout(detached, asyncRecordTimeout)
		defer cancel()

		if err := sink.Record(rctx, event, rlContext, stage); err != nil {
			log.Debug(rctx, "metrics record failed",
				logger.Error(err),
				logger.String("event", string(event)),
				logger.String("context", rlContext),
				logger.String("stage", stage),
			)
		}
	}()
}
