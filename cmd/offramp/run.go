package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/offramp"
	"github.com/aretw0/offramp/internal/presentation/tui"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Walk the cancellation flow interactively",
	Long:  `Opens a flow session and walks it on the terminal, answering questions and pressing buttons by number.`,
	Run: func(cmd *cobra.Command, args []string) {
		userID, _ := cmd.Flags().GetString("user")
		subscriptionID, _ := cmd.Flags().GetString("subscription")
		headless, _ := cmd.Flags().GetBool("headless")

		eng, closeStore, err := buildEngine(cmd)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer closeStore()

		s, err := eng.OpenSession(cmd.Context(), userID, subscriptionID)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		w := offramp.NewWalkthrough()
		w.Input = os.Stdin
		w.Output = os.Stdout
		w.Headless = headless

		// Rich rendering only on a real terminal.
		if !headless && term.IsTerminal(int(os.Stdout.Fd())) {
			tui.PrintBanner(offramp.Version)
			w.Renderer = offramp.ContentRenderer(tui.NewRenderer())
		}

		if err := w.Run(cmd.Context(), s); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("user", "demo-user", "User id walking the flow")
	runCmd.Flags().String("subscription", "demo-subscription", "Subscription id being cancelled")
	runCmd.Flags().Bool("headless", false, "Plain IO, no banner or markdown rendering")

	// Make 'run' the default when no command is given.
	rootCmd.Run = runCmd.Run
}
