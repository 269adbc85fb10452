// Package copier materializes files and directories into the output root.
// Copies are idempotent through a ledger, honor the run's path rules and
// prefer a whitelisting rsync walk that can lift a single file out of a
// deep tree without dragging its siblings along.
package copier

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/abdala/minicon/pkg/errors"
	"github.com/abdala/minicon/pkg/logging"
	"github.com/abdala/minicon/pkg/resolver"
	"github.com/abdala/minicon/pkg/rules"
	"github.com/abdala/minicon/pkg/system"
)

type ledgerKey struct {
	path      string
	recursive bool
}

// Stats counts the outcomes of copy requests for the run summary.
type Stats struct {
	Copied   int
	Skipped  int
	Excluded int
}

// Options configures a Copier.
type Options struct {
	OutputRoot string
	Resolver   *resolver.Resolver
	Rules      *rules.Set
	Runner     system.Runner
	// RsyncPath enables the whitelisting copy; empty falls back to the
	// native recursive copy.
	RsyncPath string
	DryRun    bool
}

// Copier copies source paths into the output root.
type Copier struct {
	root      string
	resolver  *resolver.Resolver
	rules     *rules.Set
	runner    system.Runner
	rsyncPath string
	dryRun    bool
	ledger    map[ledgerKey]struct{}
	stats     Stats
	logger    zerolog.Logger
}

// New returns a Copier for one run.
func New(opts Options) *Copier {
	return &Copier{
		root:      opts.OutputRoot,
		resolver:  opts.Resolver,
		rules:     opts.Rules,
		runner:    opts.Runner,
		rsyncPath: opts.RsyncPath,
		dryRun:    opts.DryRun,
		ledger:    make(map[ledgerKey]struct{}),
		logger:    logging.GetLogger("copier"),
	}
}

// Copy materializes source under the output root. Recursive copies bring a
// directory's whole subtree. Requests already in the ledger, under a
// protected path or matching an exclusion prefix are skipped. A nonexistent
// source is reported as ErrFileNotFound; the caller decides whether that is
// fatal.
func (c *Copier) Copy(source string, recursive bool) error {
	if source == "" || source == "." || source == ".." {
		return errors.Newf(errors.ErrInvalidInput, "refusing to copy %q", source)
	}

	resolved := c.resolver.Resolve(source)

	if rules.IsProtected(resolved) {
		c.logger.Debug().Str("path", resolved).Msg("protected path, skipping")
		c.stats.Skipped++
		return nil
	}

	if pattern, excluded := c.rules.Excluded(resolved); excluded {
		c.logger.Warn().Str("path", resolved).Str("pattern", pattern).Msg("excluded path, skipping")
		c.stats.Excluded++
		return nil
	}

	key := ledgerKey{path: source, recursive: recursive}
	if _, done := c.ledger[key]; done {
		c.stats.Skipped++
		return nil
	}

	if _, err := os.Lstat(resolved); err != nil {
		return errors.Wrapf(err, errors.ErrFileNotFound, "cannot copy %s", resolved)
	}

	c.logger.Info().Str("path", resolved).Bool("recursive", recursive).Msg("copying")

	if !c.dryRun {
		if err := c.materialize(resolved, recursive); err != nil {
			c.logger.Error().Err(err).Str("path", resolved).Msg("copy failed")
			c.ledger[key] = struct{}{}
			return errors.Wrapf(err, errors.ErrFileCopy, "cannot materialize %s", resolved)
		}
	}

	c.ledger[key] = struct{}{}
	c.stats.Copied++
	return nil
}

// LedgerSize returns the number of distinct copy requests performed.
func (c *Copier) LedgerSize() int {
	return len(c.ledger)
}

// Stats returns the copy counters.
func (c *Copier) Stats() Stats {
	return c.stats
}

func (c *Copier) materialize(source string, recursive bool) error {
	if c.rsyncPath != "" {
		err := c.rsyncCopy(source, recursive)
		if err == nil {
			return nil
		}
		c.logger.Debug().Err(err).Str("path", source).Msg("rsync copy failed, falling back")
	}
	return c.nativeCopy(source, filepath.Join(c.root, source), recursive)
}

// rsyncCopy lifts source out of the host tree with a whitelisting filter
// chain: each ancestor is included bare (its other children stay excluded),
// then the source itself, then the source subtree when recursive, then the
// user's exclusions, and finally everything else is excluded.
func (c *Copier) rsyncCopy(source string, recursive bool) error {
	args := []string{"-a", "--ignore-existing"}

	var ancestors []string
	for dir := filepath.Dir(source); dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		ancestors = append([]string{dir}, ancestors...)
	}
	for _, dir := range ancestors {
		args = append(args, "--include="+dir)
	}

	args = append(args, "--include="+source)
	if recursive {
		args = append(args, "--include="+source+"/**")
	}
	for _, pattern := range c.rules.ExcludeSources() {
		args = append(args, "--exclude="+pattern+"*")
	}
	args = append(args, "--exclude=*", "/", c.root)

	return c.runner.Run(nil, nil, c.rsyncPath, args...)
}
