package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"orgsync/internal/flags"

	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML form of Config. The token is intentionally absent:
// credentials come from --token, GITHUB_TOKEN or the gh CLI.
type File struct {
	Org             string        `yaml:"org"`
	APIURL          string        `yaml:"apiURL"`
	Protocol        string        `yaml:"protocol"`
	Path            string        `yaml:"path"`
	Concurrent      int           `yaml:"concurrent"`
	GitBinary       string        `yaml:"gitBinary"`
	OpTimeout       time.Duration `yaml:"opTimeout"`
	LogLevel        string        `yaml:"logLevel"`
	NoColor         bool          `yaml:"noColor"`
	MetricsTextfile string        `yaml:"metricsTextfile"`
	FailOnError     bool          `yaml:"failOnError"`
}

// LoadFile reads a YAML config file. Unknown keys are rejected; an empty file
// yields a zero File.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	out := &File{}
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return out, nil
}

// Apply copies non-zero file values into c, skipping any setting whose flag was
// set explicitly on the command line. changed may be nil.
func (c *Config) Apply(f *File, changed func(flag string) bool) {
	if f == nil {
		return
	}
	if changed == nil {
		changed = func(string) bool { return false }
	}

	setString := func(flag string, dst *string, v string) {
		if v != "" && !changed(flag) {
			*dst = v
		}
	}
	setBool := func(flag string, dst *bool, v bool) {
		if v && !changed(flag) {
			*dst = v
		}
	}

	setString(flags.FlagOrg, &c.Source.Org, f.Org)
	setString(flags.FlagAPIURL, &c.Source.APIURL, f.APIURL)
	setString(flags.FlagProtocol, &c.Source.Protocol, f.Protocol)
	setString(flags.FlagPath, &c.Sync.Path, f.Path)
	setString(flags.FlagGitBinary, &c.Sync.GitBinary, f.GitBinary)
	setString(flags.FlagLogLevel, &c.Output.LogLevel, f.LogLevel)
	setString(flags.FlagMetricsTextfile, &c.Output.MetricsTextfile, f.MetricsTextfile)
	setBool(flags.FlagNoColor, &c.Output.NoColor, f.NoColor)
	setBool(flags.FlagFailOnError, &c.Runtime.FailOnError, f.FailOnError)

	if f.Concurrent != 0 && !changed(flags.FlagConcurrent) {
		c.Sync.Concurrency = f.Concurrent
	}
	if f.OpTimeout != 0 && !changed(flags.FlagOpTimeout) {
		c.Sync.OpTimeout = f.OpTimeout
	}
}
