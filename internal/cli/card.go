package cli

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/conorfennell/knoldeck/internal/domain"
)

func (a *app) cardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Manage individual cards",
	}

	var (
		front, back, notes string
		category, level    string
		tags               []string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a card by hand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(front) == "" {
				return fmt.Errorf("--front is required")
			}
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			card := domain.NewCard(ulid.Make().String(), front, back, a.clock.Now())
			card.Notes = notes
			card.Category = category
			card.Level = level
			card.Tags = tags
			if err := db.SaveCard(cmd.Context(), a.cfg.User, card); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added card %s\n", card.ID)
			return nil
		},
	}
	add.Flags().StringVar(&front, "front", "", "Prompt side of the card")
	add.Flags().StringVar(&back, "back", "", "Answer side of the card")
	add.Flags().StringVar(&notes, "notes", "", "Extra notes shown with the answer")
	add.Flags().StringVar(&category, "category", "", "Category")
	add.Flags().StringVar(&level, "level", "", "Level")
	add.Flags().StringSliceVar(&tags, "tag", nil, "Tag (repeatable)")

	cmd.AddCommand(add)
	return cmd
}
