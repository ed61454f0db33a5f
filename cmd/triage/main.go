// Command triage starts root-cause analyses of tickets and follows their runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/term"
	"github.com/fwojciec/triage"
	"github.com/fwojciec/triage/bubbletea"
	"github.com/fwojciec/triage/chroma"
	"github.com/fwojciec/triage/clipboard"
	"github.com/fwojciec/triage/config"
	"github.com/fwojciec/triage/fs"
	"github.com/fwojciec/triage/git"
	"github.com/fwojciec/triage/gitdiff"
	"github.com/fwojciec/triage/http"
	"github.com/fwojciec/triage/jsonl"
	tl "github.com/fwojciec/triage/lipgloss"
	"github.com/fwojciec/triage/logging"
	"github.com/fwojciec/triage/sse"
	"github.com/fwojciec/triage/stream"
	"github.com/fwojciec/triage/websocket"
	"github.com/fwojciec/triage/worddiff"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	server     string
	transport  string
	logLevel   string
}

// newRootCmd builds the command tree. Configuration is resolved before any
// command runs: defaults, the config file, the environment, then flags.
func newRootCmd() *cobra.Command {
	var (
		flags globalFlags
		cfg   config.Config
	)

	root := &cobra.Command{
		Use:           "triage",
		Short:         "Run root-cause analyses and follow their progress",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig(cmd, flags)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd.Context(), cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default "+fs.DefaultConfigPath()+")")
	pf.StringVar(&flags.server, "server", "", "analysis service URL")
	pf.StringVar(&flags.transport, "transport", "", "event transport: sse, websocket or replay")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")

	// app builds the App for a subcommand once configuration is resolved.
	app := func(cmd *cobra.Command) (*App, error) {
		return newApp(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}

	root.AddCommand(
		newAnalyzeCmd(app),
		newEventsCmd(app),
		newRCACmd(app),
		newChangesCmd(app),
		newReportCmd(app),
		newConfigureCmd(app),
		newDiffCmd(app),
	)
	return root
}

type appFunc func(cmd *cobra.Command) (*App, error)

func newAnalyzeCmd(app appFunc) *cobra.Command {
	var (
		follow bool
		record string
	)
	cmd := &cobra.Command{
		Use:   "analyze TICKET",
		Short: "Start an analysis run for a ticket and print its run ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			runID, err := a.Analyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !follow {
				return nil
			}
			return a.Follow(cmd.Context(), runID, record)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "print the run's events until its channel closes")
	cmd.Flags().StringVar(&record, "record", "", "also append received events to this JSONL file")
	return cmd
}

func newEventsCmd(app appFunc) *cobra.Command {
	var record string
	cmd := &cobra.Command{
		Use:   "events RUN",
		Short: "Print a run's events until its channel closes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			return a.Follow(cmd.Context(), triage.RunID(args[0]), record)
		},
	}
	cmd.Flags().StringVar(&record, "record", "", "also append received events to this JSONL file")
	return cmd
}

func newRCACmd(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "rca RUN",
		Short: "Print the root-cause analysis of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			return a.RCA(cmd.Context(), triage.RunID(args[0]))
		},
	}
}

func newChangesCmd(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "changes RUN",
		Short: "Request suggested code changes for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			return a.Changes(cmd.Context(), triage.RunID(args[0]))
		},
	}
}

func newReportCmd(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "report RUN",
		Short: "Print the RCA and suggested changes of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			return a.Report(cmd.Context(), triage.RunID(args[0]))
		},
	}
}

func newConfigureCmd(app appFunc) *cobra.Command {
	var creds triage.Credentials
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Save ticket tracker credentials on the analysis service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			return a.Configure(cmd.Context(), creds)
		},
	}
	cmd.Flags().StringVar(&creds.Username, "username", "", "tracker username")
	cmd.Flags().StringVar(&creds.APIKey, "api-key", "", "tracker API key")
	return cmd
}

func newDiffCmd(app appFunc) *cobra.Command {
	var (
		fromGit bool
		repo    string
	)
	cmd := &cobra.Command{
		Use:   "diff [FILE | --git [REVISION...]]",
		Short: "Show a local git patch the way suggested changes are shown",
		Long: "Reads a multi-file git patch from FILE, or from stdin when FILE is omitted or \"-\".\n" +
			"With --git the patch comes from git diff in --repo, and arguments are revisions.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			if fromGit {
				return a.GitDiff(cmd.Context(), repo, args...)
			}
			if len(args) > 1 {
				return fmt.Errorf("accepts at most 1 file, received %d", len(args))
			}
			r := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			return a.Diff(r)
		},
	}
	cmd.Flags().BoolVar(&fromGit, "git", false, "read the patch from git diff")
	cmd.Flags().StringVar(&repo, "repo", ".", "repository used with --git")
	return cmd
}

// loadConfig resolves the configuration for cmd. An explicitly named
// config file must exist; the default one is optional.
func loadConfig(cmd *cobra.Command, flags globalFlags) (config.Config, error) {
	path := flags.configPath
	if path == "" {
		path = fs.DefaultConfigPath()
	}
	cfg, err := config.Load(path, cmd.Flags().Changed("config"))
	if err != nil {
		return config.Config{}, err
	}
	cfg.ApplyEnv(os.Getenv)

	if flags.server != "" {
		cfg.Server = flags.server
	}
	if flags.transport != "" {
		cfg.Transport = flags.transport
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp wires the App for cfg, writing output to out and logs to logw.
func newApp(cfg config.Config, out, logw io.Writer) (*App, error) {
	logger, err := logging.New(logw, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	dialer, err := newDialer(cfg, logger)
	if err != nil {
		return nil, err
	}
	theme, err := tl.ThemeByName(cfg.Theme)
	if err != nil {
		return nil, err
	}

	client := http.NewClient(cfg.Server, cfg.Timeout)
	client.Logger = logger

	width := defaultWidth
	if f, ok := out.(*os.File); ok && term.IsTerminal(f.Fd()) {
		if w, _, err := term.GetSize(f.Fd()); err == nil && w > 0 {
			width = w
		}
	}

	return &App{
		Out:      out,
		Backend:  client,
		Dialer:   dialer,
		Splitter: gitdiff.NewSplitter(),
		Git:      git.NewRunner(),
		Logger:   logger,
		Width:    width,
		Render: []bubbletea.Option{
			bubbletea.WithThemes(theme, nil),
			bubbletea.WithRenderer(lipgloss.NewRenderer(out)),
			bubbletea.WithLanguageDetector(chroma.NewDetector()),
			bubbletea.WithHighlighter(highlighter(logger)),
			bubbletea.WithWordDiffer(worddiff.NewDiffer()),
		},
	}, nil
}

// newDialer returns the event channel transport selected by cfg.
func newDialer(cfg config.Config, logger *log.Logger) (triage.Dialer, error) {
	switch cfg.Transport {
	case config.TransportSSE:
		d := sse.NewDialer(cfg.Server)
		d.Logger = logger
		return d, nil
	case config.TransportWebSocket:
		d := websocket.NewDialer(cfg.Server)
		d.Logger = logger
		return d, nil
	case config.TransportReplay:
		return jsonl.NewDialer(cfg.Replay.Dir, cfg.Replay.Delay), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// highlighter builds syntax tokenizers for a theme's palette.
func highlighter(logger *log.Logger) bubbletea.HighlighterFunc {
	return func(p triage.Palette) triage.LineTokenizer {
		tok, err := chroma.NewTokenizer(chroma.StyleFromPalette(p))
		if err != nil {
			logger.Warn("syntax highlighting disabled", "err", err)
			return nil
		}
		return tok
	}
}

// ErrNotTerminal is returned when the console is started without a terminal.
var ErrNotTerminal = errors.New("the console needs a terminal; see triage --help for non-interactive commands")

// runConsole runs the interactive console until the user quits or ctx ends.
// Logs go to a file so they do not disturb the screen.
func runConsole(ctx context.Context, cfg config.Config) error {
	if !term.IsTerminal(os.Stdout.Fd()) || !term.IsTerminal(os.Stdin.Fd()) {
		return ErrNotTerminal
	}

	logPath := cfg.Log.File
	if logPath == "" {
		logPath = fs.DefaultLogPath()
	}
	logFile, err := logging.OpenFile(logPath)
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger, err := logging.New(logFile, cfg.Log.Level)
	if err != nil {
		return err
	}
	dialer, err := newDialer(cfg, logger)
	if err != nil {
		return err
	}
	theme, err := tl.ThemeByName(cfg.Theme)
	if err != nil {
		return err
	}

	backend := http.NewClient(cfg.Server, cfg.Timeout)
	backend.Logger = logger

	relay := &bubbletea.Relay{}
	events := stream.NewClient(dialer, stream.WithObserver(relay.Observe), stream.WithLogger(logger))
	defer events.Close()

	m := bubbletea.NewModel(backend, events,
		bubbletea.WithContext(ctx),
		bubbletea.WithThemes(theme, tl.Toggle(theme)),
		bubbletea.WithClipboard(clipboard.NewSystem(os.Stdout)),
		bubbletea.WithLanguageDetector(chroma.NewDetector()),
		bubbletea.WithHighlighter(highlighter(logger)),
		bubbletea.WithWordDiffer(worddiff.NewDiffer()),
		bubbletea.WithLogger(logger),
	)
	logger.Info("console started", "server", cfg.Server, "transport", cfg.Transport)
	return bubbletea.Run(ctx, m, relay)
}
