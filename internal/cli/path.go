package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/hronir/internal/canon"
)

// PathOptions holds flags for the path subcommands.
type PathOptions struct {
	*RootOptions
	Position    uint32
	Predecessor string
	Text        string
	TextFile    string
	Hronir      string
}

// NewPathCommand creates the path command group.
func NewPathCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Propose and inspect paths (DAG edges)",
	}
	cmd.AddCommand(newPathCreateCommand(rootOpts))
	cmd.AddCommand(newPathShowCommand(rootOpts))
	cmd.AddCommand(newPathQualifyCommand(rootOpts))
	return cmd
}

func newPathCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PathOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Propose a continuation at a position",
		Long: `Propose a new continuation: a successor hrönir after the given
predecessor at the given position. The hrönir text is either supplied
inline (--text/--text-file) and stored content-addressed, or referenced
by an existing id (--hronir).

Creating the same edge twice is idempotent: the same path id comes back
and no duplicate is recorded.

Example:
  hronir path create --position 0 --text "Uqbar ..."
  hronir path create --position 1 --predecessor <hrönir-id> --text-file chapter.txt`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPathCreate(opts, cmd)
		},
	}

	cmd.Flags().Uint32Var(&opts.Position, "position", 0, "narrative position of the edge")
	cmd.Flags().StringVar(&opts.Predecessor, "predecessor", "", "predecessor hrönir id (omit at position 0)")
	cmd.Flags().StringVar(&opts.Text, "text", "", "hrönir text, inline")
	cmd.Flags().StringVar(&opts.TextFile, "text-file", "", "hrönir text, from file (\"-\" for stdin)")
	cmd.Flags().StringVar(&opts.Hronir, "hronir", "", "existing hrönir id (skips text storage)")

	return cmd
}

func runPathCreate(opts *PathOptions, cmd *cobra.Command) error {
	set := 0
	for _, s := range []string{opts.Text, opts.TextFile, opts.Hronir} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return NewExitError(ExitCommandError, "exactly one of --text, --text-file, --hronir is required")
	}

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()
	ctx := cmd.Context()

	var successor canon.HronirID
	switch {
	case opts.Hronir != "":
		successor = canon.HronirID(opts.Hronir)
	default:
		text := []byte(opts.Text)
		if opts.TextFile != "" {
			text, err = readTextArg(opts.TextFile, cmd.InOrStdin())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read text", err)
			}
		}
		if err := e.openContent(); err != nil {
			return err
		}
		successor, err = e.content.StoreText(ctx, text)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to store text", err)
		}
	}

	var predecessor *canon.HronirID
	if opts.Predecessor != "" {
		h := canon.HronirID(opts.Predecessor)
		predecessor = &h
	}

	path, err := e.engine.CreatePath(ctx, opts.Position, predecessor, successor)
	if err != nil {
		return e.failFromEngine(err)
	}
	return e.out.Success(path, func(w io.Writer) {
		fmt.Fprintf(w, "path %s\n  position: %d\n  successor: %s\n  status: %s\n",
			path.ID, path.Position, path.Successor, path.Status)
	})
}

func newPathShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "show <path-id>",
		Short:         "Show a path record",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			path, err := e.engine.GetPath(cmd.Context(), canon.PathID(args[0]))
			if err != nil {
				return e.failFromEngine(err)
			}
			return e.out.Success(path, func(w io.Writer) {
				fmt.Fprintf(w, "path %s\n  position: %d\n  successor: %s\n  status: %s\n",
					path.ID, path.Position, path.Successor, path.Status)
				if path.MandateID != nil {
					fmt.Fprintf(w, "  mandate: %s\n", *path.MandateID)
				}
			})
		},
	}
	return cmd
}

func newPathQualifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qualify <path-id>",
		Short: "Evaluate a path against the qualification policy",
		Long: `Evaluate a pending path against the configured qualification
threshold. On success the path receives its one-time mandate and moves
to QUALIFIED. Re-qualifying an already qualified path is a no-op.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			path, err := e.engine.Qualify(cmd.Context(), canon.PathID(args[0]))
			if err != nil {
				return e.failFromEngine(err)
			}
			return e.out.Success(path, func(w io.Writer) {
				fmt.Fprintf(w, "path %s qualified\n  mandate: %s\n", path.ID, *path.MandateID)
			})
		},
	}
	return cmd
}

// readTextArg reads text from a file path, or stdin when the path is "-".
func readTextArg(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
