package config

import "github.com/abdala/minicon/pkg/errors"

// Mode selects how aggressively the trace analyzer copies directory
// contents. It trades recall for output size.
type Mode string

const (
	ModeSkinny  Mode = "skinny"
	ModeSlim    Mode = "slim"
	ModeRegular Mode = "regular"
	ModeLoose   Mode = "loose"
)

// ParseMode maps a mode name to a Mode. "default" and the empty string are
// aliases for skinny.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "", "default", string(ModeSkinny):
		return ModeSkinny, nil
	case string(ModeSlim):
		return ModeSlim, nil
	case string(ModeRegular):
		return ModeRegular, nil
	case string(ModeLoose):
		return ModeLoose, nil
	default:
		return "", errors.Newf(errors.ErrConfigValid, "unknown mode %q", name)
	}
}

// CopiesUsedDirs reports whether directories seen in open/mkdir syscalls
// are copied recursively.
func (m Mode) CopiesUsedDirs() bool {
	return m == ModeSlim || m == ModeRegular || m == ModeLoose
}

// CopiesOpenParents reports whether parent directories of opened files are
// copied when they fall outside the stock set.
func (m Mode) CopiesOpenParents() bool {
	return m == ModeRegular || m == ModeLoose
}

// CopiesAllParents reports whether parent directories of every used path
// are copied when they fall outside the stock set.
func (m Mode) CopiesAllParents() bool {
	return m == ModeLoose
}
