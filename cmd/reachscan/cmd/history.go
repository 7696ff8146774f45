package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reachscan/pkg/model"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [check-id]",
		Short: "List recorded checks, or show one",
		Long: `List checks stored with "check --record", newest first. With a check ID,
print that check's full report. Requires database.enabled in config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			out := a.formatter()

			if len(args) == 1 {
				report, err := svc.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return out.FormatReport(cmd.OutOrStdout(), report)
			}

			var reports []*model.Report
			if reports, err = svc.History(cmd.Context(), limit); err != nil {
				return err
			}
			if err := out.FormatHistory(cmd.OutOrStdout(), reports); err != nil {
				return fmt.Errorf("failed to write history: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of checks to list")
	return cmd
}
