package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/internal/metrics"
	"github.com/rxpartners/crm-backend/pkg/app/synctool"
	"github.com/rxpartners/crm-backend/pkg/config"
	"github.com/rxpartners/crm-backend/pkg/environment"
)

var version = "dev"

var configPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "crmsync",
	Short: "Compare and reconcile the CRM development database with production",
	Long: `crmsync keeps the development CRM database in step with production.

Production is only ever read, except by "promote", which upserts the
development records you name. Both PROD_DATABASE_URL (or DATABASE_URL)
and DEV_DATABASE_URL must be set and must point at different targets.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "crmsync version %s\n", version)
	},
}

// session is the state every sync command starts from.
type session struct {
	cfg     *config.Config
	logger  *zap.Logger
	tooling *synctool.Tooling
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	tooling, err := synctool.Open(ctx, cfg, environment.NewResolver(logger), logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, tooling: tooling}, nil
}

func (s *session) close() {
	if err := s.tooling.Close(); err != nil {
		s.logger.Warn("Failed to close connections", zap.Error(err))
	}
	s.pushMetrics()
	_ = s.logger.Sync()
}

// pushMetrics hands this run's metrics to the push gateway, since nothing scrapes a CLI.
func (s *session) pushMetrics() {
	url := s.cfg.Monitoring.PushGatewayURL
	if !s.cfg.Monitoring.Enabled || url == "" {
		return
	}
	if err := metrics.Push(url, "crmsync"); err != nil {
		s.logger.Warn("Failed to push metrics", zap.String("gateway", url), zap.Error(err))
	}
}
