// Package ldso maintains the dynamic loader's search-path configuration for
// the output tree. Directories are collected in memory as analyzers discover
// shared objects and flushed once at finalization, after which the loader
// cache is refreshed rooted at the output tree.
package ldso

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/abdala/minicon/pkg/errors"
	"github.com/abdala/minicon/pkg/logging"
	"github.com/abdala/minicon/pkg/system"
)

// Config is an ordered, deduplicated set of library directories destined
// for the loader configuration file inside the output root.
type Config struct {
	relPath string
	dirs    []string
	seen    map[string]struct{}
}

// New returns a Config writing to relPath (relative to the output root).
func New(relPath string) *Config {
	return &Config{
		relPath: relPath,
		seen:    make(map[string]struct{}),
	}
}

// Add records a library directory, keeping first-occurrence order.
func (c *Config) Add(dir string) {
	if dir == "" {
		return
	}
	if _, dup := c.seen[dir]; dup {
		return
	}
	c.seen[dir] = struct{}{}
	c.dirs = append(c.dirs, dir)
}

// Dirs returns the collected directories in first-occurrence order.
func (c *Config) Dirs() []string {
	return append([]string(nil), c.dirs...)
}

// Flush merges the collected directories into the loader configuration file
// under outputRoot. Lines already present in a copied-in configuration keep
// their position; new directories are appended, and the result carries each
// line at most once.
func (c *Config) Flush(outputRoot string) error {
	logger := logging.GetLogger("ldso")
	path := filepath.Join(outputRoot, c.relPath)

	var lines []string
	seen := make(map[string]struct{})
	if data, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if _, dup := seen[line]; dup {
				continue
			}
			seen[line] = struct{}{}
			lines = append(lines, line)
		}
	}

	for _, dir := range c.dirs {
		if _, dup := seen[dir]; dup {
			continue
		}
		seen[dir] = struct{}{}
		lines = append(lines, dir)
	}

	if len(lines) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot write loader config %s", path)
	}

	logger.Info().Str("path", path).Int("dirs", len(lines)).Msg("loader config written")
	return nil
}

// Refresh rebuilds the loader cache rooted at outputRoot.
func (c *Config) Refresh(runner system.Runner, ldconfigPath, outputRoot string) error {
	if err := runner.Run(nil, nil, ldconfigPath, "-r", outputRoot); err != nil {
		return errors.Wrapf(err, errors.ErrLoaderCache, "ldconfig failed for %s", outputRoot)
	}
	return nil
}
