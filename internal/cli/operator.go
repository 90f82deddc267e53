package cli

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/tally/internal/coordinator"
	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/internal/operator"
)

func newStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current workflow position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var s coordinator.Status
			if err := opts.client().Get(cmd.Context(), "/operator/status", nil, &s); err != nil {
				return requestError("status", err)
			}
			return opts.printer(cmd).print(s, func(w io.Writer) {
				io.WriteString(w, s.Report())
			})
		},
	}
}

func newPromptsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "List prompts awaiting a decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var prompts []operator.Prompt
			if err := opts.client().Get(cmd.Context(), "/operator/prompts", nil, &prompts); err != nil {
				return requestError("list prompts", err)
			}
			return opts.printer(cmd).print(prompts, func(w io.Writer) {
				writePrompts(w, prompts)
			})
		},
	}
}

func writePrompts(w io.Writer, prompts []operator.Prompt) {
	if len(prompts) == 0 {
		fmt.Fprintln(w, "No open prompts.")
		return
	}
	for _, p := range prompts {
		options := make([]string, len(p.Options))
		for i, o := range p.Options {
			options[i] = string(o)
		}
		fmt.Fprintf(w, "%s [%s] %s\n", p.ID, p.Kind, strings.Join(options, "/"))
		for _, line := range strings.Split(strings.TrimSpace(p.Text), "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

func newRespondCommand(opts *RootOptions) *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "respond <prompt-id> <action>",
		Short: "Answer a prompt",
		Long: `Answer an open prompt with one of its options.

Examples:
  tally respond 5f0c8a approve
  tally respond 5f0c8a edit --value 152`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := events.ParseAction(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "respond", err)
			}

			body := operator.Response{Action: string(action), Value: value}
			if err := opts.client().Post(cmd.Context(), "/operator/prompts/"+url.PathEscape(args[0]), body, nil); err != nil {
				return requestError("respond", err)
			}

			return opts.printer(cmd).print(body, func(w io.Writer) {
				fmt.Fprintf(w, "Queued %s for prompt %s.\n", action, args[0])
			})
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "value for the action (edited hours)")
	return cmd
}

func newActionCommand(opts *RootOptions, action events.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().Post(cmd.Context(), "/operator/commands/"+string(action), nil, nil); err != nil {
				return requestError(string(action), err)
			}
			return opts.printer(cmd).print(map[string]string{"queued": string(action)}, func(w io.Writer) {
				fmt.Fprintf(w, "Queued %s.\n", action)
			})
		},
	}
}

func newNoticesCommand(opts *RootOptions) *cobra.Command {
	var (
		after int64
		limit int
	)

	cmd := &cobra.Command{
		Use:   "notices",
		Short: "Show recent operator notices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if after > 0 {
				q.Set("after", strconv.FormatInt(after, 10))
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}

			var notices []operator.Notice
			if err := opts.client().Get(cmd.Context(), "/operator/notifications", q, &notices); err != nil {
				return requestError("notices", err)
			}
			return opts.printer(cmd).print(notices, func(w io.Writer) {
				for _, n := range notices {
					fmt.Fprintf(w, "%d %s %s\n", n.Seq, n.At.Format("2006-01-02 15:04"), n.Text)
				}
			})
		},
	}

	cmd.Flags().Int64Var(&after, "after", 0, "only notices with a higher sequence number")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum notices to show")
	return cmd
}
