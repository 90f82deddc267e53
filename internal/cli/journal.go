package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/tally/internal/journal"
	"github.com/JaimeStill/tally/pkg/pagination"
)

func newJournalCommand(opts *RootOptions) *cobra.Command {
	var (
		cycle string
		event string
		since time.Duration
		page  int
		size  int
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List audited state transitions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := pagination.PageRequest{Page: page, PageSize: size}.Values()
			if cycle != "" {
				q.Set("cycle_id", cycle)
			}
			if event != "" {
				q.Set("event", event)
			}
			if since > 0 {
				q.Set("since", time.Now().Add(-since).UTC().Format(time.RFC3339))
			}

			var result pagination.PageResult[journal.Transition]
			if err := opts.client().Get(cmd.Context(), "/journal", q, &result); err != nil {
				return requestError("journal", err)
			}

			return opts.printer(cmd).print(result, func(w io.Writer) {
				for _, t := range result.Data {
					fmt.Fprintf(w, "%s  %-22s %s -> %s",
						t.CreatedAt.Format("2006-01-02 15:04:05"), t.Event, t.FromState, t.ToState)
					if t.Detail != "" {
						fmt.Fprintf(w, "  (%s)", t.Detail)
					}
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "page %d of %d, %d transitions\n", result.Page, result.TotalPages, result.Total)
			})
		},
	}

	cmd.Flags().StringVar(&cycle, "cycle", "", "filter by cycle id")
	cmd.Flags().StringVar(&event, "event", "", "filter by event")
	cmd.Flags().DurationVar(&since, "since", 0, "only transitions newer than this (e.g. 72h)")
	cmd.Flags().IntVar(&page, "page", 0, "page number")
	cmd.Flags().IntVar(&size, "page-size", 0, "results per page")
	return cmd
}
