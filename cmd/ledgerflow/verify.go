package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerflow/ledgerflow/ledger"
)

// NewVerifyCommand creates the verify command, which checks an NDJSON ledger
// file for hash-chain integrity.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <ledger-file>",
		Short: "Verify the hash chain of a recorded ledger",
		Long: `Verify a ledger written as NDJSON.

Recomputes every entry hash from the event payload and walks each run's
chain back to genesis. Any edited, dropped, or reordered event fails
verification with the offending sequence number.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := ledger.VerifyFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d event(s) across %d run(s)\n", result.Events, result.Runs)
			return nil
		},
	}

	return cmd
}
