package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tractcall-go",
		Short:         "Voice dialogue service for appointment booking and caller questions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newHashPasswordCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runServe(); err != nil {
				return fmt.Errorf("application startup failed: %w", err)
			}
			log.Println("Application has shut down gracefully.")
			return nil
		},
	}
}
