package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRankingCommand creates the ranking command.
func NewRankingCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ranking <position>",
		Short: "Show Elo standings of the heirs at a position",
		Long: `Show the Elo standings of the heirs at a position under the current
canonical predecessor. Ratings are replayed from the full vote history,
so standings always reflect every vote ever cast for this lineage.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			ratings, err := e.engine.Rankings(cmd.Context(), position)
			if err != nil {
				return e.failFromEngine(err)
			}
			return e.out.Success(ratings, func(w io.Writer) {
				if len(ratings) == 0 {
					fmt.Fprintf(w, "no heirs at position %d\n", position)
					return
				}
				for i, r := range ratings {
					fmt.Fprintf(w, "%d. %s  elo %.1f  (%dW/%dL)  %s\n",
						i+1, r.Path.ID, r.Elo, r.Wins, r.Losses, r.Path.Status)
				}
			})
		},
	}
	return cmd
}

// NewDuelCommand creates the duel command.
func NewDuelCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duel <position>",
		Short: "Show the most informative next duel at a position",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			duel, err := e.engine.NextDuel(cmd.Context(), position)
			if err != nil {
				return e.failFromEngine(err)
			}
			if duel == nil {
				return e.out.Failure(ExitFailure, "NO_DUEL",
					fmt.Sprintf("fewer than two heirs at position %d", position))
			}
			return e.out.Success(duel, func(w io.Writer) {
				fmt.Fprintf(w, "position %d: %s vs %s (entropy %.3f)\n",
					duel.Position, duel.CandidateA, duel.CandidateB, duel.Entropy)
			})
		},
	}
	return cmd
}

func parsePosition(arg string) (uint32, error) {
	n, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid position %q", arg), err)
	}
	return uint32(n), nil
}
