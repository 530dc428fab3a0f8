package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var instanceCmd = &cobra.Command{
	Use:   "instance <processInstanceId>",
	Short: "Show a process instance and its variables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		details, err := newClient(cmd).ProcessInstance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, details)
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks <processInstanceId>",
	Short: "List the active tasks of a process instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := newClient(cmd).ActiveTasks(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No active tasks.")
			return nil
		}
		for _, t := range tasks {
			fmt.Fprintf(cmd.OutOrStdout(), "- %v  %v  assignee=%v\n", t["id"], t["name"], t["assignee"])
		}
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <taskId>",
	Short: "Complete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vars := map[string]any{}
		if raw, _ := cmd.Flags().GetString("vars"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &vars); err != nil {
				return fmt.Errorf("--vars: %w", err)
			}
		}
		if err := newClient(cmd).CompleteTask(cmd.Context(), args[0], vars); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Task %s completed\n", args[0])
		return nil
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign <taskId> <assignee>",
	Short: "Assign a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient(cmd).AssignTask(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Task %s assigned to %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(instanceCmd, tasksCmd, completeCmd, assignCmd)
	completeCmd.Flags().String("vars", "", `Variables as a JSON object, e.g. '{"approved":true}'`)
}
