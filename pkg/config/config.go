// Package config carries the run configuration assembled from CLI flags and
// the optional .minicon.toml overlay.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/abdala/minicon/pkg/errors"
)

// DefaultLoaderConfig is the loader configuration file rewritten inside the
// output tree, relative to the output root.
const DefaultLoaderConfig = "etc/ld.so.conf"

// Config is the full configuration of one run.
type Config struct {
	// OutputRoot is the directory the reduced tree is built at. Empty means
	// a generated directory under the run's temporary directory.
	OutputRoot string

	// TarFile receives the archived tree; "-" streams to stdout.
	TarFile string

	// Excludes and Includes are the user's path rules in declaration order.
	Excludes []string
	Includes []string

	// ExcludeCommon seeds the default exclusions (/sys, /tmp, /dev, /proc).
	ExcludeCommon bool

	// Targets are the executables named on the command line for analysis.
	Targets []string

	// Executions are the user-declared command lines traced before the
	// normal queue drain. Commands is the main execution vector (after --).
	Executions []string
	Commands   []string

	// Ldconfig enables loader-config rewriting; LoaderConfig is the file
	// path relative to OutputRoot.
	Ldconfig     bool
	LoaderConfig string

	// Plugins is the parsed activation set.
	Plugins PluginConfig

	DryRun  bool
	Force   bool
	KeepTmp bool
}

// New returns a Config with the defaults applied.
func New() *Config {
	return &Config{
		ExcludeCommon: true,
		Ldconfig:      true,
		LoaderConfig:  DefaultLoaderConfig,
		Plugins:       DefaultPlugins(),
	}
}

// fileConfig is the subset of settings accepted from .minicon.toml.
type fileConfig struct {
	Excludes []string `toml:"excludes"`
	Includes []string `toml:"includes"`
	Plugins  string   `toml:"plugins"`
	Ldconfig *bool    `toml:"ldconfig"`
}

// LoadFile overlays settings from a TOML file. Excludes and includes from
// the file are appended before the flag-provided ones; flag values always
// win for scalar settings.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrConfigParse, "cannot read config file %s", path)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return errors.Wrapf(err, errors.ErrConfigParse, "cannot parse config file %s", path)
	}

	c.Excludes = append(fc.Excludes, c.Excludes...)
	c.Includes = append(fc.Includes, c.Includes...)
	if fc.Plugins != "" {
		if err := c.Plugins.Activate(fc.Plugins); err != nil {
			return err
		}
	}
	if fc.Ldconfig != nil {
		c.Ldconfig = *fc.Ldconfig
	}

	return nil
}
