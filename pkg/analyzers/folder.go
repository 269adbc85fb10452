package analyzers

import (
	"os"

	"github.com/abdala/minicon/pkg/config"
	"github.com/abdala/minicon/pkg/logging"
)

// FolderAnalyzer copies directory commands recursively. Directories carry
// no linkage or shebang to inspect, so the chain stops here.
type FolderAnalyzer struct{}

func (a *FolderAnalyzer) Name() string {
	return config.PluginFolder
}

func (a *FolderAnalyzer) Run(ctx *Context, item string) (Verdict, error) {
	info, err := os.Stat(item)
	if err != nil || !info.IsDir() {
		return Continue, nil
	}

	logger := logging.GetLogger("analyzers.folder")
	logger.Debug().Str("dir", item).Msg("copying directory")

	if err := ctx.Copier.Copy(item, true); err != nil {
		return Stop, err
	}
	return Stop, nil
}
