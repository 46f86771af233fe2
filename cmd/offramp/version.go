package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/offramp"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of offramp",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("offramp version %s\n", strings.TrimSpace(offramp.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
