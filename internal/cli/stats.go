package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show deck statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			s, err := a.newStudy(db).Overview(cmd.Context(), a.cfg.User)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 1, ' ', 0)
			fmt.Fprintf(tw, "Total:\t%d\n", s.Total)
			fmt.Fprintf(tw, "New:\t%d\n", s.New)
			fmt.Fprintf(tw, "Learning:\t%d\n", s.Learning)
			fmt.Fprintf(tw, "Mature:\t%d\n", s.Mature)
			fmt.Fprintf(tw, "Due:\t%d\n", s.Due)
			return tw.Flush()
		},
	}
}
