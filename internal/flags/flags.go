package flags

// Package flags defines canonical CLI flag names shared by the Cobra wiring,
// the YAML config loader and the tests.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&cfg.Source.Org, flags.FlagOrg, "", "...")
//	arg := "--" + flags.FlagOrg
const (
	// Source
	FlagToken    = "token"
	FlagOrg      = "org"
	FlagAPIURL   = "api-url"
	FlagProtocol = "protocol"

	// Sync
	FlagPath       = "path"
	FlagConcurrent = "concurrent"
	FlagGitBinary  = "git-binary"
	FlagOpTimeout  = "op-timeout"

	// Output
	FlagLogLevel        = "log-level"
	FlagNoColor         = "no-color"
	FlagMetricsTextfile = "metrics-textfile"

	// Runtime
	FlagConfig      = "config"
	FlagFailOnError = "fail-on-error"
	FlagVerbose     = "verbose"
)
