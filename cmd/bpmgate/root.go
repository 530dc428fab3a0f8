package main

import (
	"fmt"
	"os"

	"github.com/aretw0/bpmgate/internal/config"
	"github.com/aretw0/bpmgate/pkg/client"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bpmgate",
	Short: "bpmgate connects a BPMN engine to audit, notifications and a REST API",
	Long: `bpmgate deploys BPMN processes to Camunda (or an embedded engine), reacts to
task and execution events, keeps an audit trail and notifies participants.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "bpmgate.yaml", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "bpmgate server used by client commands")
}

// loadConfig reads the config file, then the environment, then the flags that were set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(os.Environ()); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}
	return cfg, nil
}

func newClient(cmd *cobra.Command) *client.Client {
	server, _ := cmd.Flags().GetString("server")
	return client.New(server)
}
