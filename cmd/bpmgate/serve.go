package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/aretw0/bpmgate/internal/logging"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the workflow, event and catalog API with the backends selected in the configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("engine-url") {
			cfg.Engine.Type = "camunda"
			cfg.Engine.BaseURL, _ = cmd.Flags().GetString("engine-url")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration:\n%w", err)
		}

		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger := logging.New(level)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := build(ctx, cfg, logger)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:    ":" + strconv.Itoa(cfg.Server.Port),
			Handler: a.Handler(logger),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting bpmgate server", "addr", srv.Addr, "engine", cfg.Engine.Type, "audit", cfg.Audit.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			_ = a.Close(context.Background())
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("Start shutdown", "timeout", cfg.Server.ShutdownTimeout)

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Graceful shutdown did not complete", "error", err)
				if err := srv.Close(); err != nil {
					logger.Error("Error killing server", "error", err)
				}
			}
			if err := a.Close(shutdownCtx); err != nil {
				logger.Error("Error closing backends", "error", err)
			}
			logger.Info("bpmgate server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().String("engine-url", "", "Camunda REST base URL; selects the camunda engine")
}
