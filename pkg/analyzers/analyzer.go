// Package analyzers implements the closure discovery chain. Each analyzer
// inspects one queued command and either lets the chain continue or stops
// it, usually after enqueueing replacement work.
package analyzers

import (
	"github.com/rs/zerolog"

	"github.com/abdala/minicon/pkg/config"
	"github.com/abdala/minicon/pkg/copier"
	"github.com/abdala/minicon/pkg/ldso"
	"github.com/abdala/minicon/pkg/logging"
	"github.com/abdala/minicon/pkg/queue"
	"github.com/abdala/minicon/pkg/resolver"
	"github.com/abdala/minicon/pkg/rules"
	"github.com/abdala/minicon/pkg/system"
)

// Verdict tells the pipeline whether to keep running analyzers on the
// current item.
type Verdict int

const (
	// Continue hands the item to the next analyzer in the chain.
	Continue Verdict = iota
	// Stop skips the remaining analyzers; any enqueued replacement will be
	// analyzed from the top.
	Stop
)

// Analyzer inspects one queued command.
type Analyzer interface {
	Name() string
	Run(ctx *Context, item string) (Verdict, error)
}

// Context is the engine state shared by every analyzer during a run.
type Context struct {
	Queue    *queue.Queue
	Copier   *copier.Copier
	Resolver *resolver.Resolver
	Rules    *rules.Set
	Plugins  config.PluginConfig
	Mode     config.Mode
	Tools    *system.Tools
	Runner   system.Runner
	Loader   *ldso.Config

	OutputRoot string
	TmpDir     string
	ShowOutput bool
}

// Pipeline is the ordered analyzer chain applied to each queued command.
type Pipeline struct {
	analyzers []Analyzer
	logger    zerolog.Logger
}

// NewPipeline assembles the chain in its fixed order, keeping only the
// analyzers activated in the plugin set.
func NewPipeline(plugins config.PluginConfig, strace *StraceAnalyzer) *Pipeline {
	ordered := []Analyzer{
		&LinkAnalyzer{},
		&WhichAnalyzer{},
		&FolderAnalyzer{},
		&LddAnalyzer{},
		&ScriptsAnalyzer{},
	}

	p := &Pipeline{logger: logging.GetLogger("pipeline")}
	for _, a := range ordered {
		if plugins.Active(a.Name()) {
			p.analyzers = append(p.analyzers, a)
		}
	}
	if strace != nil && plugins.Active(strace.Name()) {
		p.analyzers = append(p.analyzers, strace)
	}
	return p
}

// Names returns the active analyzer names in chain order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.analyzers))
	for _, a := range p.analyzers {
		names = append(names, a.Name())
	}
	return names
}

// Analyze runs the chain on one item. Analyzer failures are logged and the
// chain moves on; a single bad item never sinks the run.
func (p *Pipeline) Analyze(ctx *Context, item string) {
	p.logger.Info().Str("command", item).Msg("analyzing")

	for _, a := range p.analyzers {
		verdict, err := a.Run(ctx, item)
		if err != nil {
			p.logger.Warn().Err(err).Str("analyzer", a.Name()).Str("command", item).Msg("analyzer failed")
			continue
		}
		if verdict == Stop {
			p.logger.Debug().Str("analyzer", a.Name()).Str("command", item).Msg("chain stopped")
			return
		}
	}
}
