package main

import (
	"fmt"
	"os"

	"github.com/aretw0/bpmgate/internal/presentation/graph"
	"github.com/aretw0/bpmgate/pkg/bpmn"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <file.bpmn>",
	Short: "Export the process as a Mermaid diagram",
	Long: `Outputs a Mermaid diagram (graph TD) of a BPMN process. With --instance the
activities an instance went through are highlighted from its audit trail.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		defs, err := bpmn.Parse(data)
		if err != nil {
			return err
		}

		p := defs.Processes[0]
		if id, _ := cmd.Flags().GetString("process"); id != "" {
			var ok bool
			if p, ok = defs.Process(id); !ok {
				return fmt.Errorf("process %q not found in %s", id, args[0])
			}
		}

		var overlay *graph.GraphOverlay
		if pid, _ := cmd.Flags().GetString("instance"); pid != "" {
			trail, err := newClient(cmd).AuditTrail(cmd.Context(), pid)
			if err != nil {
				return err
			}
			overlay = graph.OverlayFromTrail(trail)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(p, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("process", "", "Process id (defaults to the first process)")
	graphCmd.Flags().String("instance", "", "Highlight the path of this process instance")
}
