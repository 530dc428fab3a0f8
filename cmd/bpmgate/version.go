package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/bpmgate"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of bpmgate",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bpmgate version %s\n", strings.TrimSpace(bpmgate.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
