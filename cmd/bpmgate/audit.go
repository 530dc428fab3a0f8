package main

import (
	"fmt"
	"log/slog"

	redisstore "github.com/aretw0/bpmgate/internal/adapters/redis"
	"github.com/aretw0/bpmgate/internal/logging"
	"github.com/aretw0/bpmgate/pkg/adapters/sqlite"
	"github.com/aretw0/bpmgate/pkg/ports"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect persisted audit trails",
	Long:  `Reads audit trails straight from the configured redis or sqlite store.`,
}

var auditLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List process instances with an audit trail (redis store)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Audit.Store != "redis" {
			return fmt.Errorf("audit ls needs the redis store, configured store is %q", cfg.Audit.Store)
		}
		store := redisstore.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB,
			redisstore.WithTTL(cfg.Audit.TTL),
			redisstore.WithLogger(logging.New(slog.LevelWarn)))
		defer store.Close()

		ids, err := store.Instances(cmd.Context())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No audit trails found.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Process instances:")
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), "- "+id)
		}
		return nil
	},
}

var auditShowCmd = &cobra.Command{
	Use:   "show <processInstanceId>",
	Short: "Print the audit trail of a process instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var store ports.AuditStore
		switch cfg.Audit.Store {
		case "redis":
			rs := redisstore.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
			defer rs.Close()
			store = rs
		case "sqlite":
			ss, err := sqlite.Open(cfg.Audit.SQLitePath)
			if err != nil {
				return err
			}
			defer ss.Close()
			store = ss
		default:
			return fmt.Errorf("audit show needs a persistent store, configured store is %q", cfg.Audit.Store)
		}

		store, err = protect(cfg, store)
		if err != nil {
			return err
		}
		records, err := store.List(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, records)
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditLsCmd, auditShowCmd)
}
