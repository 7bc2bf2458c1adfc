package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"loop-planner/internal/config"
	"loop-planner/internal/logging"
	"loop-planner/internal/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "loopplanner",
		Short:        "Generate closed walking loops that hit a daily step goal",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(generateCmd(&configPath))
	return root
}

func serveCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
			app, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			srv := server.New(server.Options{
				Planner: app.engine,
				Zones:   app.zones,
				Metrics: app.metrics.Handler(),
				Log:     log,
			})
			return srv.Run(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func generateCmd(configPath *string) *cobra.Command {
	var (
		lat, lng float64
		steps    int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one loop and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := server.Validate(lat, lng, steps); err != nil {
				return err
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logging.NewWithOutput(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, cmd.ErrOrStderr())
			app, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.engine.GenerateRoute(ctx, lat, lng, steps)
			if err != nil {
				return fmt.Errorf("generate loop: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "start latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "start longitude")
	cmd.Flags().IntVar(&steps, "steps", 0, "step goal (default 10000)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
