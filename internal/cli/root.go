package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rip-project/rip/pkg/color"
	"github.com/rip-project/rip/pkg/config"
	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/logging"
	"github.com/rip-project/rip/pkg/progress"
	"github.com/rip-project/rip/pkg/rip"
)

// options holds the parsed flags of one invocation.
type options struct {
	graveyard   string
	decompose   bool
	seance      bool
	all         bool
	unbury      bool
	purge       bool
	olderThan   string
	inspect     bool
	doctor      bool
	repair      []string
	jsonOutput  bool
	noColor     bool
	noProgress  bool
	logLevel    string
	yes         bool
	completions string
	showConfig  bool
}

// command carries one invocation's flags and streams to the handlers.
type command struct {
	opts *options
	cmd  *cobra.Command
	cfg  *config.Config
	term *progress.Terminal
	in   *bufio.Reader
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "rip [TARGET...]",
		Short: "rip: a safe and ergonomic alternative to rm",
		Long: `rip moves files and directories into a graveyard instead of unlinking
them. Buried items can be listed with --seance, restored with --unbury and
erased for good with --purge or --decompose.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.graveyard, "graveyard", "", "directory where deleted files rest")
	f.BoolVarP(&opts.decompose, "decompose", "d", false, "permanently delete the graveyard")
	f.BoolVarP(&opts.seance, "seance", "s", false, "list files buried from the current directory")
	f.BoolVar(&opts.all, "all", false, "with --seance or --purge, select every grave")
	f.BoolVarP(&opts.unbury, "unbury", "u", false, "restore the given graves, or the last buried item")
	f.BoolVar(&opts.purge, "purge", false, "permanently delete the given graves")
	f.StringVar(&opts.olderThan, "older-than", "", "with --purge, select graves buried longer ago than DURATION (e.g. 72h, 30d)")
	f.BoolVarP(&opts.inspect, "inspect", "i", false, "print some info about TARGET before burying")
	f.BoolVar(&opts.doctor, "doctor", false, "check the graveyard for inconsistencies")
	f.StringSliceVar(&opts.repair, "repair", nil, "with --doctor, run repair actions (clean_staging, drop_missing)")
	f.BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")
	f.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	f.BoolVar(&opts.noProgress, "no-progress", false, "disable the copy progress bar")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.BoolVarP(&opts.yes, "yes", "y", false, "answer yes to every prompt")
	f.BoolVar(&opts.showConfig, "show-config", false, "print the effective configuration and exit")
	f.StringVar(&opts.completions, "completions", "", "generate shell completions for SHELL (bash, zsh, fish, powershell)")
	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmtErr(os.Stderr, "%v", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errclass.Code(err) == errclass.ErrInvalidArgs.Code {
		return 2
	}
	return 1
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	if err := validate(cmd, opts, args); err != nil {
		return err
	}
	if opts.completions != "" {
		return writeCompletions(cmd, opts.completions)
	}

	color.Init(opts.noColor)
	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg, opts.logLevel, cmd.ErrOrStderr()); err != nil {
		return err
	}

	c := &command{
		opts: opts,
		cmd:  cmd,
		cfg:  cfg,
		term: progress.NewTerminal(true, cfg.Progress && !opts.noProgress && !opts.jsonOutput),
	}
	c.term.SetWriter(cmd.ErrOrStderr())
	if opts.showConfig {
		return c.runShowConfig()
	}

	client, err := rip.Open(rip.Options{
		Graveyard:   opts.graveyard,
		Config:      cfg,
		Progress:    c.term.Callback(),
		ConfirmCopy: c.confirmCopy,
	})
	if err != nil {
		return err
	}
	defer client.Close()
	defer c.term.Done()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case opts.decompose:
		return c.runDecompose(ctx, client)
	case opts.doctor:
		return c.runDoctor(ctx, client)
	case opts.purge:
		return c.runPurge(ctx, client, args)
	case opts.unbury:
		return c.runUnbury(ctx, client, args)
	case opts.seance:
		return c.runSeance(ctx, client)
	case len(args) == 0:
		return cmd.Help()
	default:
		return c.runBury(ctx, client, args)
	}
}

// validate rejects flag combinations that have no meaning.
func validate(cmd *cobra.Command, opts *options, args []string) error {
	invalid := func(format string, a ...any) error {
		return errclass.ErrInvalidArgs.WithMessagef(format, a...)
	}
	if opts.completions != "" && cmd.Flags().NFlag() > 1 {
		return invalid("--completions can only be used by itself")
	}
	if opts.completions != "" && len(args) > 0 {
		return invalid("--completions can only be used by itself")
	}
	if opts.decompose {
		for _, name := range []string{"seance", "unbury", "inspect", "purge", "doctor"} {
			if cmd.Flags().Changed(name) {
				return invalid("-d,--decompose can only be used with --graveyard")
			}
		}
		if len(args) > 0 {
			return invalid("-d,--decompose takes no targets")
		}
	}
	if opts.unbury && opts.purge {
		return invalid("--unbury and --purge are mutually exclusive")
	}
	if opts.olderThan != "" && !opts.purge {
		return invalid("--older-than requires --purge")
	}
	if opts.all && !opts.seance && !opts.purge {
		return invalid("--all requires --seance or --purge")
	}
	if len(opts.repair) > 0 && !opts.doctor {
		return invalid("--repair requires --doctor")
	}
	if opts.inspect && (opts.seance || opts.unbury || opts.purge || opts.doctor) {
		return invalid("-i,--inspect only applies when burying")
	}
	return nil
}

func setupLogging(cfg *config.Config, flagLevel string, w io.Writer) error {
	levelName := cfg.Logging.Level
	if flagLevel != "" {
		levelName = flagLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return errclass.ErrInvalidArgs.WithMessage(err.Error())
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return errclass.ErrInvalidArgs.WithMessage(err.Error())
	}
	l := logging.NewLogger(level)
	l.SetFormat(format)
	l.SetOutput(w)
	logging.SetGlobal(l)
	return nil
}

// outputJSON prints v as JSON if --json flag is set, otherwise does nothing.
func (c *command) outputJSON(v any) error {
	if !c.opts.jsonOutput {
		return nil
	}
	enc := json.NewEncoder(c.cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *command) printf(format string, a ...any) {
	fmt.Fprintf(c.cmd.OutOrStdout(), format, a...)
}

func fmtErr(w io.Writer, format string, args ...any) {
	prefix := "rip: "
	if color.Enabled() {
		prefix = color.Error("rip:") + " "
	}
	fmt.Fprintf(w, prefix+format+"\n", args...)
}
