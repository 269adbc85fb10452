// Package resolver canonicalizes paths through their symlink ancestry while
// mirroring every intermediate link into the output tree as a relative
// symlink, so the reduced filesystem keeps the topology of the source.
package resolver

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/abdala/minicon/pkg/logging"
	"github.com/abdala/minicon/pkg/rules"
)

// maxLinkDepth bounds the substitution walk, mirroring the kernel's ELOOP
// limit for pathological link cycles.
const maxLinkDepth = 40

// Resolver resolves symlink chains for one output root.
type Resolver struct {
	outputRoot string
	dryRun     bool
	logger     zerolog.Logger
}

// New returns a Resolver materializing links under outputRoot. With dryRun
// set, resolution proceeds but nothing is written.
func New(outputRoot string, dryRun bool) *Resolver {
	return &Resolver{
		outputRoot: outputRoot,
		dryRun:     dryRun,
		logger:     logging.GetLogger("resolver"),
	}
}

// Resolve returns the canonical non-symlink path that path ultimately
// points to. As a side effect every symlink ancestor encountered along the
// way is recreated under the output root as a relative link. A broken link
// stops the walk and the last valid path is returned.
func (r *Resolver) Resolve(path string) string {
	if path == "." || path == ".." {
		return path
	}

	current := filepath.Clean(path)
	for depth := 0; depth < maxLinkDepth; depth++ {
		link, target, found := r.firstLink(current)
		if !found {
			return current
		}

		r.materialize(link, target)

		// splice the unresolved tail onto the link target
		tail := strings.TrimPrefix(current, link)
		current = filepath.Join(target, tail)
	}

	r.logger.Warn().Str("path", path).Msg("symlink chain too deep, giving up")
	return current
}

// firstLink walks the ancestor chain of path from the leaf upward and
// returns the first ancestor that is a symlink together with its absolute,
// logically cleaned target.
func (r *Resolver) firstLink(path string) (link, target string, found bool) {
	for a := path; a != "/" && a != "."; a = filepath.Dir(a) {
		info, err := os.Lstat(a)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			continue
		}

		t, err := os.Readlink(a)
		if err != nil {
			r.logger.Debug().Err(err).Str("link", a).Msg("unresolvable link stops the walk")
			return "", "", false
		}
		if !filepath.IsAbs(t) {
			t = filepath.Join(filepath.Dir(a), t)
		}
		return a, filepath.Clean(t), true
	}
	return "", "", false
}

// materialize recreates link under the output root pointing at target via a
// relative path, so the output tree stays relocatable. Links under protected
// paths are followed but never mirrored.
func (r *Resolver) materialize(link, target string) {
	if r.dryRun || rules.IsProtected(link) {
		return
	}

	rel, err := filepath.Rel(filepath.Dir(link), target)
	if err != nil {
		r.logger.Warn().Err(err).Str("link", link).Str("target", target).Msg("cannot relativize link target")
		return
	}

	parent := filepath.Join(r.outputRoot, filepath.Dir(link))
	if err := os.MkdirAll(parent, 0755); err != nil {
		r.logger.Warn().Err(err).Str("dir", parent).Msg("cannot create link parent")
		return
	}

	dest := filepath.Join(r.outputRoot, link)
	if err := os.Symlink(rel, dest); err != nil && !os.IsExist(err) {
		r.logger.Warn().Err(err).Str("link", dest).Msg("cannot create link")
		return
	}

	r.logger.Debug().Str("link", link).Str("target", rel).Msg("mirrored symlink")
}
