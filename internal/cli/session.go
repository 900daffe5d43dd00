package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/hronir/internal/canon"
)

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Activate mandates and commit verdicts",
	}
	cmd.AddCommand(newSessionStartCommand(rootOpts))
	cmd.AddCommand(newSessionCommitCommand(rootOpts))
	cmd.AddCommand(newSessionShowCommand(rootOpts))
	return cmd
}

func newSessionStartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <path-id>",
		Short: "Activate a qualified path's mandate",
		Long: `Activate the one-time mandate of a qualified path. Freezes a dossier
of duels over the current canonical chain and irreversibly consumes the
mandate. A path gets exactly one session, ever.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			session, err := e.engine.StartSession(cmd.Context(), canon.PathID(args[0]))
			if err != nil {
				return e.failFromEngine(err)
			}
			return e.out.Success(session, func(w io.Writer) {
				fmt.Fprintf(w, "session %s\n  budget: %d verdicts\n  dossier:\n", session.ID, session.VoteBudget())
				for _, pos := range dossierPositions(session) {
					d := session.Dossier[pos]
					fmt.Fprintf(w, "    position %d: %s vs %s (entropy %.3f)\n",
						pos, d.CandidateA, d.CandidateB, d.Entropy)
				}
			})
		},
	}
	return cmd
}

// SessionCommitOptions holds flags for session commit.
type SessionCommitOptions struct {
	*RootOptions
	VerdictsFile string
}

func newSessionCommitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionCommitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "commit <session-id>",
		Short: "Commit verdicts for an active session",
		Long: `Commit verdicts for an active session. The verdicts file is a YAML
map of position to winning path id:

  0: 3f6c…
  2: 91ab…

Each verdict is validated against the frozen dossier individually;
invalid verdicts are reported and skipped, they never abort the commit.
The mandate is spent regardless of how many verdicts were valid, and a
session commits exactly once.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionCommit(opts, cmd, canon.SessionID(args[0]))
		},
	}

	cmd.Flags().StringVar(&opts.VerdictsFile, "verdicts", "", "YAML verdicts file (\"-\" for stdin, required)")
	_ = cmd.MarkFlagRequired("verdicts")

	return cmd
}

func runSessionCommit(opts *SessionCommitOptions, cmd *cobra.Command, id canon.SessionID) error {
	verdicts, err := readVerdicts(opts.VerdictsFile, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read verdicts", err)
	}

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	result, err := e.engine.CommitSession(cmd.Context(), id, verdicts)
	if err != nil {
		return e.failFromEngine(err)
	}
	return e.out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "session %s committed\n  accepted: %d\n  rejected: %d\n",
			result.Session, len(result.Accepted), len(result.Rejected))
		for _, r := range result.Rejected {
			fmt.Fprintf(w, "    position %d: %s (%s)\n", r.Position, r.Path, r.Reason)
		}
		if result.Tx != nil {
			fmt.Fprintf(w, "  transaction: %s\n  merkle root: %s\n", result.Tx.ID, result.Tx.MerkleRoot)
		}
		fmt.Fprintf(w, "  canonical path (%d positions):\n", len(result.CanonicalPath))
		for _, entry := range result.CanonicalPath {
			fmt.Fprintf(w, "    %d: %s\n", entry.Position, entry.Path)
		}
	})
}

func newSessionShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "show <session-id>",
		Short:         "Show a session record",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			session, err := e.engine.GetSession(cmd.Context(), canon.SessionID(args[0]))
			if err != nil {
				return e.failFromEngine(err)
			}
			return e.out.Success(session, func(w io.Writer) {
				fmt.Fprintf(w, "session %s\n  path: %s\n  status: %s\n  duels: %d\n",
					session.ID, session.InitiatingPath, session.Status, len(session.Dossier))
			})
		},
	}
	return cmd
}

// readVerdicts parses a YAML verdicts map from a file or stdin.
func readVerdicts(path string, stdin io.Reader) (map[uint32]canon.PathID, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var raw map[uint32]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse verdicts: %w", err)
	}
	out := make(map[uint32]canon.PathID, len(raw))
	for pos, id := range raw {
		if id == "" {
			return nil, fmt.Errorf("parse verdicts: empty path id at position %d", pos)
		}
		out[pos] = canon.PathID(id)
	}
	return out, nil
}

// dossierPositions returns the dossier's positions in ascending order.
func dossierPositions(s *canon.Session) []uint32 {
	m := make(map[uint32]canon.PathID, len(s.Dossier))
	for p := range s.Dossier {
		m[p] = ""
	}
	return canon.SortedVerdictPositions(m)
}
