package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/due"
	"github.com/conorfennell/knoldeck/internal/session"
	"github.com/conorfennell/knoldeck/internal/sm2"
	"github.com/conorfennell/knoldeck/internal/study"
)

func (a *app) reviewCmd() *cobra.Command {
	var (
		f      due.Filter
		status string
	)
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Study due cards in the terminal",
		Long:  "Study due cards one at a time. Press Enter to reveal the answer, then rate it with 1-4 or again/hard/good/easy. Enter q to stop early.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = due.Status(status)
			if !cmd.Flags().Changed("limit") {
				f.Limit = a.cfg.Session.Limit
			}
			if err := f.Validate(); err != nil {
				return err
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			svc := a.newStudy(db)
			r := &reviewer{
				app:  a,
				svc:  svc,
				user: a.cfg.User,
				in:   bufio.NewScanner(cmd.InOrStdin()),
				out:  cmd.OutOrStdout(),
			}
			return r.run(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.Category, "category", "", "Only cards in this category")
	cmd.Flags().StringVar(&f.Level, "level", "", "Only cards at this level")
	cmd.Flags().StringVar(&f.Tag, "tag", "", "Only cards with this tag")
	cmd.Flags().StringVar(&status, "status", "all", "all, new, learning or mature")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "Maximum cards to study (default from config)")
	return cmd
}

type reviewer struct {
	app  *app
	svc  *study.Service
	user string
	in   *bufio.Scanner
	out  io.Writer
}

func (r *reviewer) run(cmd *cobra.Command, f due.Filter) error {
	ctx := cmd.Context()
	n, err := r.svc.Start(ctx, r.user, f)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.svc.End(r.user); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "Nothing is due.")
		return nil
	}

	for {
		card, progress, ok := r.svc.Current(r.user)
		if !ok {
			return nil
		}
		fmt.Fprintf(r.out, "\n[%d/%d] %s\n", progress.Completed+1, progress.Total, card.Front)
		fmt.Fprint(r.out, "(Enter to show answer) ")
		line, ok := r.read()
		if !ok || line == "q" {
			return r.end()
		}

		fmt.Fprintf(r.out, "%s\n", card.Back)
		if card.Notes != "" {
			fmt.Fprintf(r.out, "  %s\n", card.Notes)
		}
		rating, ok := r.askRating(card)
		if !ok {
			return r.end()
		}

		res, err := r.svc.Review(ctx, r.user, rating)
		if err != nil {
			return err
		}
		if res.Summary != nil {
			r.printSummary(*res.Summary)
			return nil
		}
	}
}

// askRating prompts until it gets a valid rating. It returns false when the
// learner quits or input ends.
func (r *reviewer) askRating(card domain.Card) (domain.Rating, bool) {
	outcomes := sm2.Preview(card, r.app.clock.Now())
	var choices []string
	for _, rating := range domain.Ratings {
		choices = append(choices, fmt.Sprintf("%d) %s %dd", int(rating), rating, outcomes[rating].Interval))
	}
	prompt := strings.Join(choices, "  ") + " > "

	for {
		fmt.Fprint(r.out, prompt)
		line, ok := r.read()
		if !ok || line == "q" {
			return 0, false
		}
		rating, err := domain.ParseRating(line)
		if err == nil {
			return rating, true
		}
		fmt.Fprintf(r.out, "Unknown rating %q\n", line)
	}
}

func (r *reviewer) read() (string, bool) {
	if !r.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.in.Text()), true
}

func (r *reviewer) end() error {
	summary, err := r.svc.End(r.user)
	if err != nil {
		return err
	}
	r.printSummary(summary)
	return nil
}

func (r *reviewer) printSummary(s session.Summary) {
	fmt.Fprintf(r.out, "\nReviewed %d cards in %d minutes (again %d, hard %d, good %d, easy %d)\n",
		s.Completed, s.Minutes(), s.Stats.Again, s.Stats.Hard, s.Stats.Good, s.Stats.Easy)
}
