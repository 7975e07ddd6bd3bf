package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Import cards from every configured source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			report, err := a.newSyncer(db).Run(cmd.Context(), a.cfg.User)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Synced %d sources: %d added, %d updated, %d removed\n",
				report.Sources, report.Added, report.Updated, report.Removed)
			for _, e := range report.Errors {
				fmt.Fprintf(out, "- %s\n", e)
			}
			if len(report.Errors) > 0 {
				return fmt.Errorf("sync finished with %d errors", len(report.Errors))
			}
			return nil
		},
	}
}
