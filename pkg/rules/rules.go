// Package rules holds the path policy of a run: user exclusions, forced
// inclusions, the always-protected system paths and the stock directories
// that must never be bulk-copied.
package rules

import (
	"regexp"

	"github.com/abdala/minicon/pkg/errors"
)

// DefaultExcludes seeds the exclusion set unless the user disables it.
var DefaultExcludes = []string{"/sys", "/tmp", "/dev", "/proc"}

// protectedPatterns cover paths that are skipped regardless of user rules.
var protectedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^/$`),
	regexp.MustCompile(`^/proc(/.*)?$`),
	regexp.MustCompile(`^/dev(/.*)?$`),
	regexp.MustCompile(`^/sys(/.*)?$`),
}

// stockPatterns name standard system directories whose bulk copy would
// defeat minimization. The trace analyzer refuses to copy these wholesale.
var stockPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^/$`),
	regexp.MustCompile(`^/boot/?$`),
	regexp.MustCompile(`^/home/?$`),
	regexp.MustCompile(`^/sys/?$`),
	regexp.MustCompile(`^/tmp/?$`),
	regexp.MustCompile(`^/usr/?$`),
	regexp.MustCompile(`^/bin/?$`),
	regexp.MustCompile(`^/sbin/?$`),
	regexp.MustCompile(`^/etc/?$`),
	regexp.MustCompile(`^/var/?$`),
	regexp.MustCompile(`^/proc/?$`),
	regexp.MustCompile(`^/dev/?$`),
	regexp.MustCompile(`^/(lib|lib32|lib64|libx32)/?$`),
	regexp.MustCompile(`^/usr/(lib|lib32|lib64|libx32)/?$`),
	regexp.MustCompile(`^/usr/(bin|sbin)/?$`),
	regexp.MustCompile(`^/usr/local/?$`),
}

// Set is the compiled rule set for one run.
type Set struct {
	excluded []*regexp.Regexp
	sources  []string
	included []string
}

// NewSet compiles the user exclusion prefixes. When excludeCommon is true
// the default exclusions are seeded before the user's own.
func NewSet(excludes []string, includes []string, excludeCommon bool) (*Set, error) {
	s := &Set{included: append([]string(nil), includes...)}

	var prefixes []string
	if excludeCommon {
		prefixes = append(prefixes, DefaultExcludes...)
	}
	prefixes = append(prefixes, excludes...)

	for _, p := range prefixes {
		re, err := regexp.Compile("^" + p)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigValid, "invalid exclude pattern %q", p)
		}
		s.excluded = append(s.excluded, re)
		s.sources = append(s.sources, p)
	}

	return s, nil
}

// Excluded reports whether path matches any exclusion prefix, returning the
// pattern source for diagnostics.
func (s *Set) Excluded(path string) (string, bool) {
	for i, re := range s.excluded {
		if re.MatchString(path) {
			return s.sources[i], true
		}
	}
	return "", false
}

// ExcludeSources returns the raw exclusion prefixes in order.
func (s *Set) ExcludeSources() []string {
	return append([]string(nil), s.sources...)
}

// Included returns the forced inclusion paths in declaration order.
func (s *Set) Included() []string {
	return append([]string(nil), s.included...)
}

// IsProtected reports whether path may never be written to the output tree.
func IsProtected(path string) bool {
	for _, re := range protectedPatterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// IsStock reports whether dir is a standard system directory that must not
// be bulk-copied.
func IsStock(dir string) bool {
	for _, re := range stockPatterns {
		if re.MatchString(dir) {
			return true
		}
	}
	return false
}
