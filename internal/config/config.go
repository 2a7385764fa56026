package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultAPIURL      = "https://api.github.com/"
	DefaultConcurrency = 10
	DefaultGitBinary   = "git"

	ProtocolSSH   = "ssh"
	ProtocolHTTPS = "https"
)

// LogLevels lists the accepted --log-level values in increasing severity.
var LogLevels = []string{"trace", "debug", "info", "warn", "error"}

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields, keep these in sync:
	// - CLI flags in internal/cli/root.go
	// - YAML keys in File (file.go)
	Source  Source
	Sync    Sync
	Output  Output
	Runtime Runtime
}

type Source struct {
	// Token is the GitHub access token (see --token). When empty the CLI falls
	// back to GITHUB_TOKEN and then to the gh CLI.
	Token string

	// Org is the GitHub organization whose repositories are synchronized
	// (name or URL; see --org).
	Org string

	// APIURL is the GitHub REST API base URL (see --api-url). Always ends with "/"
	// after Validate.
	APIURL string

	// Protocol selects which remote address is cloned (see --protocol).
	// Allowed values: ssh, https.
	Protocol string
}

type Sync struct {
	// Path is the base directory repositories are cloned into (see --path).
	// Empty means the current directory; Validate makes it absolute.
	Path string

	// Concurrency caps how many git invocations run at once (see --concurrent).
	// Must be >= 1.
	Concurrency int

	// GitBinary is the git executable to invoke (see --git-binary).
	GitBinary string

	// OpTimeout bounds each git invocation (see --op-timeout). 0 means no timeout.
	OpTimeout time.Duration
}

type Output struct {
	// LogLevel is one of LogLevels (see --log-level).
	LogLevel string

	// NoColor disables colored summary output (see --no-color).
	NoColor bool

	// MetricsTextfile is where Prometheus metrics are written at the end of a run
	// (see --metrics-textfile). Empty disables the export.
	MetricsTextfile string
}

type Runtime struct {
	// ConfigFile is an optional YAML file with defaults for the flags above (see --config).
	ConfigFile string

	// FailOnError makes per-repository failures change the exit status (see --fail-on-error).
	FailOnError bool

	// Verbose logs every GitHub API call.
	Verbose bool
}

func New() *Config {
	return &Config{
		Source: Source{
			APIURL:   DefaultAPIURL,
			Protocol: ProtocolSSH,
		},
		Sync: Sync{
			Concurrency: DefaultConcurrency,
			GitBinary:   DefaultGitBinary,
		},
		Output: Output{
			LogLevel: "info",
		},
	}
}

func (c *Config) Validate() error {
	c.Source.Token = strings.TrimSpace(c.Source.Token)

	org, err := normalizeAccountSelector(c.Source.Org)
	if err != nil {
		return fmt.Errorf("invalid --org value: %w", err)
	}
	if org == "" {
		return errors.New("--org must be provided")
	}
	c.Source.Org = org

	apiURL, err := normalizeAPIURL(c.Source.APIURL)
	if err != nil {
		return fmt.Errorf("invalid --api-url value: %w", err)
	}
	c.Source.APIURL = apiURL

	c.Source.Protocol = normalizeEnumValue(c.Source.Protocol)
	if c.Source.Protocol == "" {
		c.Source.Protocol = ProtocolSSH
	}
	if c.Source.Protocol != ProtocolSSH && c.Source.Protocol != ProtocolHTTPS {
		return fmt.Errorf("unsupported --protocol: %s (must be one of: ssh, https)", c.Source.Protocol)
	}

	path := strings.TrimSpace(c.Sync.Path)
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid --path value: %w", err)
	}
	c.Sync.Path = abs

	if c.Sync.Concurrency <= 0 {
		return errors.New("--concurrent must be >= 1")
	}
	c.Sync.GitBinary = strings.TrimSpace(c.Sync.GitBinary)
	if c.Sync.GitBinary == "" {
		c.Sync.GitBinary = DefaultGitBinary
	}
	if c.Sync.OpTimeout < 0 {
		return errors.New("--op-timeout must be >= 0")
	}

	c.Output.LogLevel = normalizeEnumValue(c.Output.LogLevel)
	if c.Output.LogLevel == "" {
		c.Output.LogLevel = "info"
	}
	if !isLogLevel(c.Output.LogLevel) {
		return fmt.Errorf("unsupported --log-level: %s (must be one of: %s)", c.Output.LogLevel, strings.Join(LogLevels, ", "))
	}

	return nil
}

func isLogLevel(v string) bool {
	for _, l := range LogLevels {
		if l == v {
			return true
		}
	}
	return false
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func normalizeAPIURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultAPIURL, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%q: missing host", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String(), nil
}

func normalizeAccountSelector(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	// Accept a raw account name, or a GitHub URL like:
	//   https://github.com/<name>
	//   https://github.com/orgs/<name>
	//   github.com/<name>
	if strings.HasPrefix(raw, "github.com/") || strings.HasPrefix(raw, "www.github.com/") {
		raw = "https://" + raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%q", raw)
		}
		host := strings.ToLower(u.Hostname())
		if host == "www.github.com" {
			host = "github.com"
		}
		if host != "github.com" {
			return "", fmt.Errorf("%q", raw)
		}
		parts := strings.FieldsFunc(strings.Trim(u.Path, "/"), func(r rune) bool { return r == '/' })
		if len(parts) == 0 {
			return "", fmt.Errorf("%q", raw)
		}
		if parts[0] == "orgs" {
			if len(parts) < 2 {
				return "", fmt.Errorf("%q", raw)
			}
			return parts[1], nil
		}
		return parts[0], nil
	}

	// Basic sanity: reject obvious repo-like inputs.
	if strings.Contains(raw, "/") {
		return "", fmt.Errorf("%q", raw)
	}
	return raw, nil
}
