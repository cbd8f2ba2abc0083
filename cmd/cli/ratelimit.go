package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/pkg/constants"
)

type keyFlags struct {
	context    string
	identifier string
	key        string
}

func (k *keyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&k.context, "context", string(constants.RateLimitContextHTTP), "rate limit context: http, websocket or notification")
	cmd.Flags().StringVar(&k.identifier, "identifier", "", "identifier the key is built from, e.g. ip:203.0.113.9")
	cmd.Flags().StringVar(&k.key, "key", "", "full store key (overrides --identifier)")
}

func (k *keyFlags) resolve(env *environment) (string, error) {
	if k.key != "" {
		return k.key, nil
	}
	if k.identifier == "" {
		return "", fmt.Errorf("either --key or --identifier is required")
	}
	return env.limiter.BuildKey(k.context, k.identifier), nil
}

func newRateLimitCmd(opts *globalOptions) *cobra.Command {
	rlCmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Inspect and reset rate limit counters",
	}

	var resetFlags keyFlags
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the window record of a key",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			key, err := resetFlags.resolve(env)
			if err != nil {
				return err
			}
			if err := env.limiter.Reset(cmd.Context(), key, resetFlags.context); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", key)
			return nil
		},
	}
	resetFlags.register(resetCmd)

	var countFlags keyFlags
	var window int
	countCmd := &cobra.Command{
		Use:   "count",
		Short: "Show the points currently counted for a key",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			key, err := countFlags.resolve(env)
			if err != nil {
				return err
			}
			policy := env.limiter.ResolvePolicy(countFlags.context, models.Policy{WindowSeconds: window})
			count, err := env.limiter.GetCurrentCount(cmd.Context(), key, policy.WindowSeconds, countFlags.context)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d/%d (window %ds)\n", key, count, policy.Limit, policy.WindowSeconds)
			return nil
		},
	}
	countFlags.register(countCmd)
	countCmd.Flags().IntVar(&window, "window", 0, "window override in seconds")

	var policyContext string
	policyCmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the effective policy of a context",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			p := cfg.RateLimit.Default.Merge(cfg.RateLimit.Contexts[policyContext])
			fmt.Fprintf(cmd.OutOrStdout(), "context=%s strategy=%s limit=%d window=%ds fail_open=%t\n",
				policyContext, p.Strategy, p.Limit, p.WindowSeconds, p.IsFailOpen())
			return nil
		},
	}
	policyCmd.Flags().StringVar(&policyContext, "context", string(constants.RateLimitContextHTTP), "rate limit context")

	rlCmd.AddCommand(resetCmd, countCmd, policyCmd)
	return rlCmd
}
