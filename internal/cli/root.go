package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/hronir/internal/config"
	"github.com/roach88/hronir/internal/content"
	"github.com/roach88/hronir/internal/engine"
	"github.com/roach88/hronir/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	Database   string // overrides config when set
	ContentDir string // overrides config when set
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the hronir CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hronir",
		Short: "hronir - canon consensus engine for a branching text corpus",
		Long: `hronir governs a collaborative, branching corpus in which competing
continuations are proposed at every position and a single canonical
path is derived purely from distributed voting evidence.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "path to CUE config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.ContentDir, "content-dir", "", "path to content store directory (overrides config)")

	// Subcommands
	cmd.AddCommand(NewPathCommand(opts))
	cmd.AddCommand(NewSessionCommand(opts))
	cmd.AddCommand(NewCanonCommand(opts))
	cmd.AddCommand(NewRankingCommand(opts))
	cmd.AddCommand(NewDuelCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// env bundles the opened collaborators for one command invocation.
type env struct {
	cfg     config.Config
	store   *store.Store
	content *content.Store
	engine  *engine.Engine
	out     *OutputFormatter
}

// openEnv loads config, applies flag overrides, and opens the store and
// engine. The content store is opened lazily by commands that need it.
func openEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.ContentDir != "" {
		cfg.ContentDir = opts.ContentDir
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	eng := engine.New(st, engine.Options{
		Qualification: engine.QualificationPolicy{
			Mode:    cfg.Qualification.Mode,
			MinWins: cfg.Qualification.MinWins,
			MinElo:  cfg.Qualification.MinElo,
		},
		EloBase:      cfg.Elo.Base,
		EloK:         cfg.Elo.K,
		MaxPositions: cfg.Cascade.MaxPositions,
	}, slog.Default())

	return &env{
		cfg:    cfg,
		store:  st,
		engine: eng,
		out:    &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()},
	}, nil
}

// openContent opens the blob store on demand.
func (e *env) openContent() error {
	if e.content != nil {
		return nil
	}
	cs, err := content.Open(content.Config{Dir: e.cfg.ContentDir, SyncWrites: true, Logger: slog.Default()})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open content store", err)
	}
	e.content = cs
	return nil
}

// close releases everything the env opened.
func (e *env) close() {
	if e.content != nil {
		e.content.Close()
	}
	if e.store != nil {
		e.store.Close()
	}
}

// failFromEngine maps an engine error to formatted output plus the right
// exit code. Business-rule and validation failures exit 1; everything
// else is an internal failure, also 1, with the code surfaced verbatim.
func (e *env) failFromEngine(err error) error {
	code := engine.CodeOf(err)
	if code == "" {
		return e.out.Failure(ExitFailure, "INTERNAL", err.Error())
	}
	return e.out.Failure(ExitFailure, string(code), err.Error())
}
