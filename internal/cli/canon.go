package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/hronir/internal/canon"
)

// CanonOptions holds flags for the canon command.
type CanonOptions struct {
	*RootOptions
	Rebuild bool
}

// NewCanonCommand creates the canon command.
func NewCanonCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CanonOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "canon",
		Short: "Show the canonical path",
		Long: `Show the derived canonical path. With --rebuild, recompute it from
scratch with the quadratic-influence resolver and replace the cache;
the cache is never authoritative, so a rebuild is always safe.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(opts.RootOptions, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			var chain []canon.CanonEntry
			if opts.Rebuild {
				chain, err = e.engine.RebuildCanon(cmd.Context())
			} else {
				chain, err = e.engine.CanonicalPath(cmd.Context())
			}
			if err != nil {
				return e.failFromEngine(err)
			}
			return e.out.Success(chain, func(w io.Writer) {
				if len(chain) == 0 {
					fmt.Fprintln(w, "canonical path is empty")
					return
				}
				for _, entry := range chain {
					fmt.Fprintf(w, "%d: path %s → hrönir %s\n", entry.Position, entry.Path, entry.Hronir)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Rebuild, "rebuild", false, "recompute the chain from the full path set")

	return cmd
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Verify the ledger hash chain and Merkle roots",
		Long: `Walk the ledger from HEAD to genesis recomputing every transaction id
and Merkle root. Any mismatch is an integrity failure and exits nonzero.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			report, err := e.engine.Audit(cmd.Context())
			if err != nil {
				return e.failFromEngine(err)
			}
			return e.out.Success(report, func(w io.Writer) {
				fmt.Fprintf(w, "ledger verified\n  transactions: %d\n  votes: %d\n", report.Transactions, report.Votes)
				if report.Head != nil {
					fmt.Fprintf(w, "  head: %s\n", *report.Head)
				}
			})
		},
	}
	return cmd
}
