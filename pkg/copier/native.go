package copier

import (
	"io"
	"os"
	"path/filepath"

	"github.com/abdala/minicon/pkg/rules"
)

// nativeCopy is the fallback materializer used when the whitelisting copier
// is unavailable. It preserves file modes and symlink contents, never
// overwrites an existing destination and re-checks the path rules at every
// node of a recursive walk.
func (c *Copier) nativeCopy(source, dest string, recursive bool) error {
	info, err := os.Lstat(source)
	if err != nil {
		return err
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return c.copySymlink(source, dest)
	case info.IsDir():
		return c.copyDir(source, dest, info, recursive)
	case info.Mode().IsRegular():
		return c.copyFile(source, dest, info)
	default:
		// sockets, fifos and device nodes have no place in the output tree
		c.logger.Debug().Str("path", source).Msg("skipping special file")
		return nil
	}
}

func (c *Copier) copyFile(source, dest string, info os.FileInfo) error {
	if _, err := os.Lstat(dest); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func (c *Copier) copySymlink(source, dest string) error {
	if _, err := os.Lstat(dest); err == nil {
		return nil
	}
	target, err := os.Readlink(source)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	if err := os.Symlink(target, dest); err != nil && !os.IsExist(err) {
		return err
	}
	return nil
}

func (c *Copier) copyDir(source, dest string, info os.FileInfo, recursive bool) error {
	if err := os.MkdirAll(dest, info.Mode().Perm()); err != nil {
		return err
	}
	if !recursive {
		return nil
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		child := filepath.Join(source, entry.Name())
		if rules.IsProtected(child) {
			continue
		}
		if pattern, excluded := c.rules.Excluded(child); excluded {
			c.logger.Warn().Str("path", child).Str("pattern", pattern).Msg("excluded path, skipping")
			c.stats.Excluded++
			continue
		}
		if err := c.nativeCopy(child, filepath.Join(dest, entry.Name()), true); err != nil {
			// a single unreadable entry must not sink the whole subtree
			c.logger.Warn().Err(err).Str("path", child).Msg("cannot copy entry")
		}
	}

	return nil
}
