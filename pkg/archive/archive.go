// Package archive emits the reduced tree as a POSIX tarball through the
// system archiver.
package archive

import (
	"os"

	"github.com/abdala/minicon/pkg/errors"
	"github.com/abdala/minicon/pkg/logging"
	"github.com/abdala/minicon/pkg/system"
)

// Create archives the contents of root at the tarball's top level. A dest
// of "-" streams the archive to stdout.
func Create(runner system.Runner, tarPath, dest, root string) error {
	logger := logging.GetLogger("archive")
	logger.Info().Str("dest", dest).Str("root", root).Msg("creating archive")

	if dest == "-" {
		if err := runner.Run(os.Stdout, nil, tarPath, "-C", root, "-cf", "-", "."); err != nil {
			return errors.Wrap(err, errors.ErrArchive, "cannot stream archive to stdout")
		}
		return nil
	}

	if err := runner.Run(nil, nil, tarPath, "-C", root, "-cf", dest, "."); err != nil {
		return errors.Wrapf(err, errors.ErrArchive, "cannot create archive %s", dest)
	}
	return nil
}
