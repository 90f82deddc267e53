package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/internal/record"
)

// DefaultStateFile matches the service default.
const DefaultStateFile = "data/workflow.json"

// NewStateCommand creates the offline state file commands.
func NewStateCommand(opts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the workflow state file",
		Long: `Operate on the state file directly, without the service.
Stop the service before resetting: it rewrites the file on every transition.`,
	}

	def := os.Getenv(config.EnvWorkflowStateFile)
	if def == "" {
		def = DefaultStateFile
	}
	cmd.PersistentFlags().StringVar(&file, "file", def, "workflow state file")

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the persisted workflow record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := openStore(cmd, file).Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "load state", err)
			}
			return opts.printer(cmd).print(rec, func(w io.Writer) {
				writeRecord(w, rec)
			})
		},
	})

	var yes bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Overwrite the state file with an idle record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return WrapExitError(ExitCommandError, "reset discards the current cycle; pass --yes to confirm", nil)
			}
			rec, err := openStore(cmd, file).Reset()
			if err != nil {
				return WrapExitError(ExitCommandError, "reset state", err)
			}
			return opts.printer(cmd).print(rec, func(w io.Writer) {
				fmt.Fprintf(w, "State reset to %s.\n", rec.State)
			})
		},
	}
	reset.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	cmd.AddCommand(reset)

	return cmd
}

func openStore(cmd *cobra.Command, file string) *record.Store {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	return record.NewStore(file, logger)
}

func writeRecord(w io.Writer, rec *record.Record) {
	fmt.Fprintf(w, "State: %s\n", rec.State)
	if rec.State == record.Idle {
		return
	}
	fmt.Fprintf(w, "Cycle: %s\n", rec.CycleID)
	if rec.SourceName != "" {
		fmt.Fprintf(w, "Source: %s\n", rec.SourceName)
	}
	if rec.Fields != nil {
		fmt.Fprintf(w, "Period: %s, %d hours\n", rec.Fields.Period(), rec.Fields.TotalHours)
	}
	for _, req := range record.Requirements {
		mark := "[ ]"
		if rec.Flags[req] {
			mark = "[x]"
		}
		fmt.Fprintf(w, "%s %s\n", mark, req)
	}
	if rec.MergedRef != "" {
		fmt.Fprintf(w, "Merged: %s\n", rec.MergedRef)
	}
}
