// Package cli implements the tally command line: an operator client for
// the running service, offline state file maintenance and schema
// migrations.
package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
)

// EnvServer overrides the default --server value.
const EnvServer = "TALLY_SERVER_URL"

// DefaultServer is the API root of a local service.
const DefaultServer = "http://localhost:8080/api"

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	Format  string
	Timeout time.Duration
}

func (o *RootOptions) client() *Client {
	return NewClient(o.Server, o.Timeout)
}

func (o *RootOptions) printer(cmd *cobra.Command) printer {
	return printer{format: o.Format, w: cmd.OutOrStdout()}
}

// NewRootCommand creates the tally root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tally",
		Short: "Operate the invoice workflow",
		Long: `tally drives the human-gated invoice workflow: inspect the current
cycle, answer prompts, cancel or retry, read the transition journal and
maintain the state file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return WrapExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			return nil
		},
	}

	server := os.Getenv(EnvServer)
	if server == "" {
		server = DefaultServer
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", server, "API root of the tally service")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "request timeout")

	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newPromptsCommand(opts))
	cmd.AddCommand(newRespondCommand(opts))
	cmd.AddCommand(newActionCommand(opts, "cancel", "Cancel the current cycle"))
	cmd.AddCommand(newActionCommand(opts, "retry", "Retry the last failed step"))
	cmd.AddCommand(newNoticesCommand(opts))
	cmd.AddCommand(newJournalCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewMigrateCommand())

	return cmd
}

// requestError maps a client failure to an exit error.
func requestError(message string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return WrapExitError(ExitFailure, message, err)
	}
	return WrapExitError(ExitCommandError, message, err)
}
