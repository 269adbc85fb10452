package analyzers

import (
	"path/filepath"
	"strings"

	"github.com/abdala/minicon/pkg/config"
	"github.com/abdala/minicon/pkg/logging"
	"github.com/abdala/minicon/pkg/system"
)

// LddAnalyzer closes over the dynamic-library dependencies of a command.
// Each reported library is enqueued for its own analysis and its directory
// is recorded in the loader configuration; the command itself is copied
// last. Static binaries report no libraries but are still copied.
type LddAnalyzer struct{}

func (a *LddAnalyzer) Name() string {
	return config.PluginLdd
}

func (a *LddAnalyzer) Run(ctx *Context, item string) (Verdict, error) {
	logger := logging.GetLogger("analyzers.ldd")

	lddPath, ok := ctx.Tools.Path(system.ToolLdd)
	if !ok {
		return Continue, nil
	}

	out, err := ctx.Runner.Output(lddPath, item)
	if err != nil && !strings.Contains(string(out), "not a dynamic executable") {
		logger.Debug().Err(err).Str("command", item).Msg("ldd failed, copying as-is")
	}

	for _, lib := range parseLddOutput(string(out)) {
		if ctx.Loader != nil {
			ctx.Loader.Add(filepath.Dir(lib))
		}
		ctx.Queue.Enqueue(lib)
	}

	if err := ctx.Copier.Copy(item, false); err != nil {
		return Continue, err
	}
	return Continue, nil
}

// parseLddOutput extracts the absolute library paths from ldd's output,
// dropping the virtual DSO and static-binary markers. Lines come in the
// forms "name => path (addr)", "path (addr)" and "name => (addr)".
func parseLddOutput(out string) []string {
	var libs []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, "linux-vdso") || strings.Contains(line, "linux-gate") {
			continue
		}
		if strings.Contains(line, "statically linked") || strings.Contains(line, "not a dynamic executable") {
			continue
		}
		if strings.Contains(line, "not found") {
			continue
		}

		candidate := line
		if _, rhs, found := strings.Cut(line, "=>"); found {
			candidate = strings.TrimSpace(rhs)
		}
		// strip the trailing load address
		if idx := strings.LastIndex(candidate, " ("); idx >= 0 {
			candidate = strings.TrimSpace(candidate[:idx])
		}
		if filepath.IsAbs(candidate) {
			libs = append(libs, candidate)
		}
	}
	return libs
}
