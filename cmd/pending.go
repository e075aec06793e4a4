package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Run one recovery scan over deals in to_start or failed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initQualifier(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		env.scanner.Scan(ctx)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pendingCmd)
}
