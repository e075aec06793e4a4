package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var processCmd = &cobra.Command{
	Use:   "process <deal-id>",
	Short: "Run the full qualification pipeline for a single deal",
	Long:  "Claims the deal, enriches it, scores it, and dispatches the report. The deal must be in to_start or failed; anything else is a no-op.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initQualifier(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		dealID := args[0]
		deal, err := env.crm.Get(ctx, dealID)
		if err != nil {
			return err
		}

		if err := env.machine.Process(ctx, deal); err != nil {
			return err
		}

		zap.L().Info("deal processed", zap.String("deal_id", dealID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
