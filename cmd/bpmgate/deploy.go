package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aretw0/bpmgate/pkg/variables"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy <file.bpmn>",
	Short: "Deploy a BPMN document and start an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := deployRequest(cmd, args[0])
		if err != nil {
			return err
		}

		resp, err := newClient(cmd).DeployAndStart(cmd.Context(), req)
		if resp.ErrorMessage != "" {
			return fmt.Errorf("deployment failed: %s", resp.ErrorMessage)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().String("key", "", "Process key (defaults to the first process id)")
	deployCmd.Flags().String("name", "", "Deployment name")
	deployCmd.Flags().String("business-key", "", "Business key of the started instance")
	deployCmd.Flags().StringArray("var", nil, "Process variable as key=value (repeatable)")
	deployCmd.Flags().String("typed-vars", "", "JSON file with typed variables")
	deployCmd.Flags().Bool("no-start", false, "Deploy without starting an instance")
}

func deployRequest(cmd *cobra.Command, path string) (variables.WorkflowRequest, error) {
	var req variables.WorkflowRequest

	data, err := os.ReadFile(path)
	if err != nil {
		return req, err
	}
	req.BpmnXML = string(data)
	req.ProcessKey, _ = cmd.Flags().GetString("key")
	req.ProcessName, _ = cmd.Flags().GetString("name")
	if req.ProcessName == "" {
		req.ProcessName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	req.BusinessKey, _ = cmd.Flags().GetString("business-key")
	if noStart, _ := cmd.Flags().GetBool("no-start"); noStart {
		start := false
		req.StartImmediately = &start
	}

	pairs, _ := cmd.Flags().GetStringArray("var")
	if len(pairs) > 0 {
		req.Variables = make(map[string]any, len(pairs))
		for _, kv := range pairs {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return req, fmt.Errorf("invalid --var %q, want key=value", kv)
			}
			req.Variables[k] = parseScalar(v)
		}
	}

	if file, _ := cmd.Flags().GetString("typed-vars"); file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return req, err
		}
		if err := json.Unmarshal(raw, &req.TypedVariables); err != nil {
			return req, fmt.Errorf("%s: %w", filepath.Base(file), err)
		}
	}
	return req, nil
}

// parseScalar turns flag text into a bool, a number or a string.
func parseScalar(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
