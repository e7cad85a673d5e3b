package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Temutjin2k/grid-dispatch/config"
	"github.com/Temutjin2k/grid-dispatch/internal/app"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
)

func serveCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run one of the services",
		Long: `Run one of the services:
  api-service       driver heartbeats, ride intake and proposal acceptance
  dispatch-service  ride event consumers and the proposal timeout sweeper
  gateway-service   proposal delivery to drivers over WebSocket`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.NewConfig(configPath, mode)
			if err != nil {
				return fmt.Errorf("failed to configure application: %w", err)
			}
			if cfg.Mode == "" {
				return fmt.Errorf("mode is required, use --mode")
			}

			log := logger.InitLogger(cfg.Mode.String(), cfg.LogLevel)

			application, err := app.NewApplication(ctx, *cfg, log)
			if err != nil {
				log.Error(ctx, "failed to init application", err)
				return err
			}

			if err := application.Run(ctx); err != nil {
				log.Error(ctx, "failed to run application", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "service mode: api-service, dispatch-service or gateway-service")
	return cmd
}
