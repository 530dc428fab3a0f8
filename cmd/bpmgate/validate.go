package main

import (
	"fmt"
	"os"

	"github.com/aretw0/bpmgate/pkg/bpmn"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file.bpmn>",
	Short: "Check a BPMN document",
	Long:  `Parses the document and reports its processes, or the first structural problem found.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		defs, err := bpmn.Parse(data)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		out := cmd.OutOrStdout()
		for _, p := range defs.Processes {
			fmt.Fprintf(out, "%s (%s): %d nodes, %d flows, executable=%t\n",
				p.ID, p.Name, len(p.Nodes), len(p.Flows), p.IsExecutable)
		}
		fmt.Fprintln(out, "BPMN is valid!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
