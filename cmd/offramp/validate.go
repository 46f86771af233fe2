package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [graph.yaml]",
	Short: "Check a step graph for consistency",
	Long:  `Loads a YAML step graph and reports dangling targets, unknown predecessors, broken branch conditions and follow-up triggers.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) > 0 {
			cmd.Flags().Set("graph", args[0])
		}
		if err := runValidate(cmd); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Graph is valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command) error {
	g, err := loadGraph(cmd)
	if err != nil {
		return err
	}
	return g.Validate()
}
