package analyzers

import (
	"strings"

	"github.com/abdala/minicon/pkg/config"
	"github.com/abdala/minicon/pkg/logging"
	"github.com/abdala/minicon/pkg/system"
)

// WhichAnalyzer resolves bare command names through the system path. The
// absolute path is enqueued and the chain stops; a name that cannot be
// resolved has nothing further to analyze.
type WhichAnalyzer struct{}

func (a *WhichAnalyzer) Name() string {
	return config.PluginWhich
}

func (a *WhichAnalyzer) Run(ctx *Context, item string) (Verdict, error) {
	if strings.Contains(item, "/") {
		return Continue, nil
	}

	logger := logging.GetLogger("analyzers.which")

	path, err := system.Which(item)
	if err != nil {
		logger.Warn().Str("command", item).Msg("command not found on PATH")
		return Stop, nil
	}
	if path == item {
		return Continue, nil
	}

	logger.Debug().Str("command", item).Str("path", path).Msg("resolved via PATH")
	ctx.Queue.Enqueue(path)
	return Stop, nil
}
