package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/techatrix/zigserve/cli/config"
	"github.com/techatrix/zigserve/cli/render"
	"github.com/techatrix/zigserve/cli/tui"
	"github.com/techatrix/zigserve/errbundle"
	"github.com/techatrix/zigserve/iox"
	"github.com/techatrix/zigserve/log"
	"github.com/techatrix/zigserve/metrics"
	"github.com/techatrix/zigserve/session"
	"github.com/techatrix/zigserve/types"
)

// Exit codes.
const (
	exitSuccess       = 0
	exitCompileErrors = 1
	exitCrash         = 2
	exitUsage         = 3
)

// defaultConfigPath is picked up when present and --config is not given.
const defaultConfigPath = "zigserve.yaml"

// BuildCommand returns the build command.
// This is the only command that spawns the compiler.
func BuildCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "zig",
			Usage: "Path to the zig executable",
		},
		&cli.StringFlag{
			Name:    "chdir",
			Aliases: []string{"C"},
			Usage:   "Working directory for the compiler",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to zigserve.yaml (default: ./zigserve.yaml when present)",
		},
		&cli.StringFlag{
			Name:  "dump-bundle",
			Usage: "Write the raw error bundle payload to a file on failure",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON session report to a file (\"-\" for stderr)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Abort the session after this duration (0 = no timeout)",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log session internals to stderr",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress progress output",
		},
	}
	flags = append(flags, OutputFlags()...)
	flags = append(flags, RenderToggleFlags()...)

	return &cli.Command{
		Name:      "build",
		Usage:     "Run one compiler session and render the outcome",
		ArgsUsage: "[-- zig-args...]",
		Flags:     flags,
		Action:    buildAction,
	}
}

// buildSettings is the merged flag/config view for one build invocation.
type buildSettings struct {
	zigPath   string
	args      []string
	dir       string
	formatStr string
	timeout   time.Duration
	opts      errbundle.RenderOptions
}

// resolveSettings merges flags over config file values over built-in
// defaults. Flags always win.
func resolveSettings(c *cli.Context, cfg *config.Config) buildSettings {
	s := buildSettings{
		zigPath:   cfg.Zig,
		dir:       cfg.Chdir,
		formatStr: cfg.Format,
		timeout:   cfg.Timeout.Duration,
		opts:      errbundle.DefaultRenderOptions(),
	}

	if s.zigPath == "" {
		s.zigPath = "zig"
	}
	if zig := c.String("zig"); zig != "" {
		s.zigPath = zig
	}
	if dir := c.String("chdir"); dir != "" {
		s.dir = dir
	}
	if format := c.String("format"); format != "" {
		s.formatStr = format
	}
	if c.IsSet("timeout") {
		s.timeout = c.Duration("timeout")
	}

	s.args = append(s.args, cfg.Args...)
	s.args = append(s.args, c.Args().Slice()...)

	if cfg.Render.Source != nil {
		s.opts.IncludeSourceLine = *cfg.Render.Source
	}
	if cfg.Render.Trace != nil {
		s.opts.IncludeReferenceTrace = *cfg.Render.Trace
	}
	if cfg.Render.Log != nil {
		s.opts.IncludeLogText = *cfg.Render.Log
	}
	if c.IsSet("include-source") {
		s.opts.IncludeSourceLine = c.Bool("include-source")
	}
	if c.IsSet("include-trace") {
		s.opts.IncludeReferenceTrace = c.Bool("include-trace")
	}
	if c.IsSet("include-log") {
		s.opts.IncludeLogText = c.Bool("include-log")
	}

	return s
}

// loadConfigFor loads the config file named by --config, or the default
// path when it exists. Absent config is not an error.
func loadConfigFor(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			return &config.Config{}, nil
		}
		path = defaultConfigPath
	}
	return config.Load(path)
}

func buildAction(c *cli.Context) error {
	cfg, err := loadConfigFor(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	s := resolveSettings(c, cfg)

	format, err := render.ParseFormat(s.formatStr)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	if format == "" {
		format = render.DefaultFormat()
	}
	if c.Bool("tui") && format != render.FormatText {
		return cli.Exit("--tui requires the text format", exitUsage)
	}

	logger := log.Nop()
	if c.Bool("verbose") {
		logger = log.NewLogger(s.zigPath)
	}
	collector := metrics.NewCollector()

	sessConfig := &session.Config{
		ZigPath:   s.zigPath,
		Args:      s.args,
		Dir:       s.dir,
		Logger:    logger,
		Collector: collector,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	startTime := time.Now()

	var outcome *session.Outcome
	var runErr error
	if c.Bool("tui") {
		outcome, runErr = runWithTUI(ctx, sessConfig, s.opts)
	} else {
		if !c.Bool("quiet") {
			sessConfig.Progress = func(text string) {
				fmt.Fprintln(os.Stderr, text)
			}
		}
		sess, err := session.New(sessConfig)
		if err != nil {
			return cli.Exit(err.Error(), exitUsage)
		}
		outcome, runErr = sess.Run(ctx)
	}
	duration := time.Since(startTime)

	if reportPath := c.String("report"); reportPath != "" && outcome != nil {
		report := session.BuildReport(outcome, collector.Snapshot(), duration)
		if err := session.WriteReport(report, reportPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	if runErr != nil {
		return cli.Exit(runErr.Error(), exitCrash)
	}

	if dumpPath := c.String("dump-bundle"); dumpPath != "" && outcome.RawBundle != nil {
		if err := os.WriteFile(dumpPath, outcome.RawBundle, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to dump bundle: %v\n", err)
		}
	}

	if !c.Bool("tui") {
		if err := renderOutcome(c, format, outcome, s.opts); err != nil {
			return cli.Exit(err.Error(), exitCrash)
		}
	}

	if outcome.Status == session.StatusFailure {
		return cli.Exit("", exitCompileErrors)
	}
	return cli.Exit("", exitSuccess)
}

// renderOutcome writes the resolved outcome in the selected format. Text
// diagnostics go to stderr like the compiler's own output; machine formats
// go to stdout.
func renderOutcome(c *cli.Context, format render.Format, outcome *session.Outcome, opts errbundle.RenderOptions) error {
	if format == render.FormatText {
		if outcome.Status == session.StatusSuccess {
			fmt.Println(outcome.ArtifactPath)
			return nil
		}
		w := bufio.NewWriter(os.Stderr)
		defer iox.DiscardErr(w.Flush)
		return errbundle.Render(w, outcome.Bundle, opts)
	}

	result, err := resultFrom(outcome)
	if err != nil {
		return err
	}
	r := render.NewRendererWithWriter(format, c.Bool("no-color"), os.Stdout)
	return r.Render(result)
}

// resultFrom flattens an outcome into the portable export model.
func resultFrom(outcome *session.Outcome) (*types.BuildResult, error) {
	result := &types.BuildResult{
		Outcome:      string(outcome.Status),
		ArtifactPath: outcome.ArtifactPath,
		ZigVersion:   outcome.ZigVersion,
		ExitCode:     outcome.ExitCode,
	}

	if outcome.Bundle != nil {
		diags, logText, err := types.Flatten(outcome.Bundle)
		if err != nil {
			return nil, fmt.Errorf("failed to flatten diagnostics: %w", err)
		}
		result.Errors = diags
		result.CompileLog = logText
	}

	return result, nil
}

// runWithTUI drives the session behind the live build view. The session
// runs on its own goroutine and publishes progress and the resolved
// outcome to the program as messages.
func runWithTUI(ctx context.Context, sessConfig *session.Config, opts errbundle.RenderOptions) (*session.Outcome, error) {
	model := tui.NewBuildModel(sessConfig.ZigPath)
	p := tui.NewBuildProgram(model)

	sessConfig.Progress = func(text string) {
		p.Send(tui.ProgressMsg(text))
	}
	sess, err := session.New(sessConfig)
	if err != nil {
		return nil, err
	}

	var outcome *session.Outcome
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		outcome, runErr = sess.Run(ctx)

		switch {
		case runErr != nil:
			p.Send(tui.DoneMsg{Summary: runErr.Error(), Failed: true})
		case outcome.Status == session.StatusFailure:
			summary, renderErr := errbundle.RenderString(outcome.Bundle, opts)
			if renderErr != nil {
				summary = fmt.Sprintf("failed to render diagnostics: %v", renderErr)
			}
			p.Send(tui.DoneMsg{Summary: summary, Failed: true})
		default:
			p.Send(tui.DoneMsg{Summary: outcome.ArtifactPath})
		}
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: TUI failed: %v\n", err)
	}
	<-done

	return outcome, runErr
}
