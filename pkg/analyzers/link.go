package analyzers

import (
	"path/filepath"

	"github.com/abdala/minicon/pkg/config"
	"github.com/abdala/minicon/pkg/logging"
)

// LinkAnalyzer resolves symlink chains. When the command resolves to a
// different path, the resolved path is enqueued and the chain stops so the
// real file is analyzed instead.
type LinkAnalyzer struct{}

func (a *LinkAnalyzer) Name() string {
	return config.PluginLink
}

func (a *LinkAnalyzer) Run(ctx *Context, item string) (Verdict, error) {
	if !filepath.IsAbs(item) {
		return Continue, nil
	}

	resolved := ctx.Resolver.Resolve(item)
	if resolved == filepath.Clean(item) {
		return Continue, nil
	}

	logger := logging.GetLogger("analyzers.link")
	logger.Debug().Str("command", item).Str("resolved", resolved).Msg("link resolved")
	ctx.Queue.Enqueue(resolved)
	return Stop, nil
}
