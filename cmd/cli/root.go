// Package cli implements the edugate-admin command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	appservice "github.com/turtacn/edugate/internal/application/service"
	"github.com/turtacn/edugate/internal/config"
	"github.com/turtacn/edugate/internal/infrastructure/persistence/redis"
	"github.com/turtacn/edugate/internal/infrastructure/ratelimit"
	"github.com/turtacn/edugate/pkg/logger"
)

type globalOptions struct {
	configFile string
	redisAddr  string
}

// newRootCmd builds the command tree. A fresh tree per call keeps flag state
// isolated between invocations.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:   "edugate-admin",
		Short: "A CLI tool for administering the edugate admission service.",
		Long: `edugate-admin talks to the shared limiter store directly to inspect and
reset rate limit counters, read admission metrics and mint test tokens.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&opts.redisAddr, "redis", "", "override redis address")

	rootCmd.AddCommand(newRateLimitCmd(opts), newMetricsCmd(opts), newTokenCmd(opts))
	return rootCmd
}

// Execute is the main entry point for the CLI application.
// Execute 是 CLI 应用程序的主入口点。
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// environment is what a command needs to reach the store.
type environment struct {
	cfg     *config.Config
	conn    *redis.Connection
	limiter *appservice.RateLimitAppService
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(o.configFile, logger.NewNoopLogger()).Load()
	if err != nil {
		return nil, err
	}
	if o.redisAddr != "" {
		cfg.Redis.Mode = "standalone"
		cfg.Redis.Addresses = []string{o.redisAddr}
	}
	return cfg, nil
}

func (o *globalOptions) open(ctx context.Context) (*environment, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.NewNoopLogger()
	conn, err := redis.NewConnection(cfg.Redis, log)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	resolver := ratelimit.NewResolver(cfg.RateLimit.Default, cfg.RateLimit.Contexts)
	return &environment{
		cfg:     cfg,
		conn:    conn,
		limiter: appservice.NewRateLimitAppService(resolver, ratelimit.NewFactory(conn.Client()), log),
	}, nil
}

func (e *environment) Close() {
	_ = e.conn.Close()
}
