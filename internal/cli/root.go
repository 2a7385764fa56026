package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"orgsync/internal/config"
	"orgsync/internal/engine"
	"orgsync/internal/flags"
	"orgsync/internal/git"
	gh "orgsync/internal/github"
	"orgsync/internal/metrics"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var levelStrings = map[string]slog.Level{
	"trace": slog.Level(-8),
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

const rootLong = `orgsync clones every repository of a GitHub organization that is missing
under --path and pulls the ones that are already there.

At most --concurrent git operations run at once. A failing repository is
logged and listed in the final summary; it never stops the others.

Authentication:
  The token is taken from --token, then GITHUB_TOKEN, then the GitHub CLI
  (gh auth token). It needs read access to the organization's repositories.

Configuration:
  --config points at a YAML file whose keys mirror the flags (org, path,
  concurrent, apiURL, protocol, gitBinary, opTimeout, logLevel, noColor,
  metricsTextfile, failOnError). Flags given on the command line win.

Exit codes:
  0 = run completed (even if some repositories failed, unless --fail-on-error)
  2 = some repositories failed and --fail-on-error is set
  3 = fatal error (bad configuration, listing failed, base path locked)

Examples:
  export GITHUB_TOKEN="<your_token>"
  orgsync --org my-org --path ~/src/my-org

  # Limit parallelism and bound each git call
  orgsync --org my-org --concurrent 4 --op-timeout 10m`

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func newRootCmd(exitCode *int) *cobra.Command {
	cfg := config.New()

	cmd := &cobra.Command{
		Use:           "orgsync",
		Short:         "Clone or update every repository of a GitHub organization",
		Long:          rootLong,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate),
		Run: func(cmd *cobra.Command, args []string) {
			*exitCode = runSync(cmd, cfg)
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	// Source
	cmd.Flags().StringVar(&cfg.Source.Token, flags.FlagToken, "", "GitHub access token (default: GITHUB_TOKEN, then gh auth token)")
	cmd.Flags().StringVar(&cfg.Source.Org, flags.FlagOrg, "", "GitHub organization to synchronize (name or URL)")
	cmd.Flags().StringVar(&cfg.Source.APIURL, flags.FlagAPIURL, cfg.Source.APIURL, "GitHub REST API base URL (for GitHub Enterprise)")
	cmd.Flags().StringVar(&cfg.Source.Protocol, flags.FlagProtocol, cfg.Source.Protocol, "Remote to clone from: ssh|https")

	// Sync
	cmd.Flags().StringVar(&cfg.Sync.Path, flags.FlagPath, "", "Base directory for repositories (default: current directory)")
	cmd.Flags().IntVar(&cfg.Sync.Concurrency, flags.FlagConcurrent, cfg.Sync.Concurrency, "Maximum number of concurrent git operations")
	cmd.Flags().StringVar(&cfg.Sync.GitBinary, flags.FlagGitBinary, cfg.Sync.GitBinary, "git executable to run")
	cmd.Flags().DurationVar(&cfg.Sync.OpTimeout, flags.FlagOpTimeout, 0, "Timeout for each git operation (0 = wait indefinitely)")

	// Output
	cmd.Flags().StringVar(&cfg.Output.LogLevel, flags.FlagLogLevel, cfg.Output.LogLevel, "Log level: "+strings.Join(config.LogLevels, "|"))
	cmd.Flags().BoolVar(&cfg.Output.NoColor, flags.FlagNoColor, false, "Disable colored summary output")
	cmd.Flags().StringVar(&cfg.Output.MetricsTextfile, flags.FlagMetricsTextfile, "", "Write Prometheus metrics to this file at the end of the run")

	// Runtime
	cmd.Flags().StringVar(&cfg.Runtime.ConfigFile, flags.FlagConfig, "", "YAML config file")
	cmd.Flags().BoolVar(&cfg.Runtime.FailOnError, flags.FlagFailOnError, false, "Exit with status 2 when any repository failed to sync")
	cmd.Flags().BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Log every GitHub API call")

	return cmd
}

func runSync(cmd *cobra.Command, cfg *config.Config) int {
	stderr := cmd.ErrOrStderr()

	if cfg.Runtime.ConfigFile != "" {
		f, err := config.LoadFile(cfg.Runtime.ConfigFile)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return engine.ExitFatal
		}
		cfg.Apply(f, cmd.Flags().Changed)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return engine.ExitFatal
	}

	if cfg.Output.NoColor {
		color.NoColor = true
	}
	logger := newLogger(stderr, cfg.Output.LogLevel, cfg.Runtime.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// The first signal lets running git commands finish; a second one gets
	// the default behaviour and ends the process.
	context.AfterFunc(ctx, stop)

	token, source, err := gh.ResolveAuthToken(ctx, cfg.Source.Token, gh.HostFromAPIURL(cfg.Source.APIURL))
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to resolve GitHub auth token: %v\n", err)
		return engine.ExitFatal
	}
	if token == "" {
		fmt.Fprintln(stderr, "Error: GitHub access token is required (use --token, set GITHUB_TOKEN or run 'gh auth login')")
		return engine.ExitFatal
	}
	logger.Debug("resolved GitHub token", "source", string(source))

	client, err := gh.NewClient(ctx, token,
		gh.WithVerbose(cfg.Runtime.Verbose, logger),
		gh.WithBaseURL(cfg.Source.APIURL),
	)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to create GitHub client: %v\n", err)
		return engine.ExitFatal
	}

	lister := &engine.OrgLister{
		Client:   client,
		Org:      cfg.Source.Org,
		BasePath: cfg.Sync.Path,
		Protocol: cfg.Source.Protocol,
	}
	vcs := &git.Git{
		Binary:  cfg.Sync.GitBinary,
		Timeout: cfg.Sync.OpTimeout,
	}

	eng := engine.NewEngine(lister, vcs, logger, metrics.NewRecorder())
	eng.Out = stderr
	return eng.Run(ctx, cfg)
}

func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	loggerLevel := new(slog.LevelVar)
	lvl, ok := levelStrings[level]
	if !ok {
		lvl = slog.LevelInfo
	}
	// --verbose is about API calls, which are logged at debug.
	if verbose && lvl > slog.LevelDebug {
		lvl = slog.LevelDebug
	}
	loggerLevel.Set(lvl)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: loggerLevel,
	}))
}

// Run executes the command line in args and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	code := engine.ExitOK
	cmd := newRootCmd(&code)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return engine.ExitFatal
	}
	return code
}

func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}
