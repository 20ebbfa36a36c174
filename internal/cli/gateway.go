package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/soyeahso/actiongw/internal/config"
	"github.com/soyeahso/actiongw/internal/logging"
	"github.com/spf13/cobra"
)

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Manage the action gateway server",
	}

	cmd.AddCommand(newGatewayRunCmd())
	return cmd
}

// loadConfig loads the config file and reports validation issues through log.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

func newGatewayRunCmd() *cobra.Command {
	var (
		port      int
		bind      string
		storePath string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if storePath != "" {
				cfg.Store.Path = storePath
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			runLog, closer, err := logging.NewWithOptions(logging.Options{
				Level:        cfg.Logging.Level,
				ConsoleStyle: cfg.Logging.ConsoleStyle,
				File:         cfg.Logging.File,
			})
			if err != nil {
				return fmt.Errorf("opening log file: %w", err)
			}
			defer closer.Close()

			resolved := paths.StorePath(cfg.Store.Path)
			if resolved != ":memory:" {
				if err := paths.EnsureDirs(); err != nil {
					return fmt.Errorf("creating data directories: %w", err)
				}
			}

			a, err := buildApp(cfg, resolved, runLog)
			if err != nil {
				return err
			}
			defer a.Close()

			runLog.Info().
				Str("store", resolved).
				Str("llm", a.llm.Name()).
				Int("handlers", len(a.registry.List())).
				Bool("validator", cfg.Validator.IsEnabled()).
				Msg("gateway components ready")

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return a.serve(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")
	cmd.Flags().StringVar(&storePath, "store", "", "override store path (\":memory:\" for ephemeral)")

	return cmd
}
