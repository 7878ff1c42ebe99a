package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/redbco/redb-connector/pkg/connector"
)

// File is the on-disk connection profile.
type File struct {
	Connection connector.ConnectionConfig `yaml:"connection"`
	// URL takes precedence over the discrete fields of Connection.
	URL string `yaml:"url,omitempty"`
	// Timeout bounds every command, e.g. "30s".
	Timeout string `yaml:"timeout,omitempty"`
}

// Options are the command line overrides.
type Options struct {
	ConfigFile string
	URL        string
	DatabaseID string
	Timeout    time.Duration
}

// Resolved is the configuration a command runs with.
type Resolved struct {
	Connection connector.ConnectionConfig
	Timeout    time.Duration
}

const DefaultTimeout = 30 * time.Second

// Load reads a profile file.
func Load(path string) (*File, error) {
	//nolint:gosec // path is supplied by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}
	return &f, nil
}

// Resolve merges the profile file, if any, with the command line options.
// A URL on the command line replaces the file's connection entirely.
func Resolve(opts Options) (*Resolved, error) {
	file := &File{}
	if opts.ConfigFile != "" {
		loaded, err := Load(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		file = loaded
	}

	res := &Resolved{Connection: file.Connection, Timeout: DefaultTimeout}

	url := file.URL
	if opts.URL != "" {
		url = opts.URL
	}
	if url != "" {
		cfg, err := connector.ConfigFromConnectionString(file.Connection.DatabaseID, url)
		if err != nil {
			return nil, err
		}
		res.Connection = cfg
	}

	if opts.DatabaseID != "" {
		res.Connection.DatabaseID = opts.DatabaseID
	}
	if res.Connection.ConnectionType == "" {
		res.Connection.ConnectionType = "mongodb"
	}

	if file.Timeout != "" {
		d, err := time.ParseDuration(file.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %v", file.Timeout, err)
		}
		res.Timeout = d
	}
	if opts.Timeout > 0 {
		res.Timeout = opts.Timeout
	}

	if res.Connection.Host == "" {
		return nil, fmt.Errorf("no connection configured: pass --url or --config")
	}
	return res, nil
}
