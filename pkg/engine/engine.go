// Package engine orchestrates a minimization run: startup validation, the
// eager include copies, user-declared executions under the tracer, the
// queue drain through the analyzer chain and the finalization steps.
package engine

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/abdala/minicon/pkg/analyzers"
	"github.com/abdala/minicon/pkg/archive"
	"github.com/abdala/minicon/pkg/config"
	"github.com/abdala/minicon/pkg/copier"
	"github.com/abdala/minicon/pkg/errors"
	"github.com/abdala/minicon/pkg/ldso"
	"github.com/abdala/minicon/pkg/logging"
	"github.com/abdala/minicon/pkg/queue"
	"github.com/abdala/minicon/pkg/resolver"
	"github.com/abdala/minicon/pkg/rules"
	"github.com/abdala/minicon/pkg/system"
)

// forbiddenRoots are output roots the engine refuses to build at.
var forbiddenRoots = map[string]struct{}{
	"/":     {},
	"/etc":  {},
	"/var":  {},
	"/sys":  {},
	"/proc": {},
}

// state tracks the run's progress. Transitions only move forward; a fatal
// error jumps to teardown.
type state int

const (
	stateInit state = iota
	stateSeed
	stateDrain
	stateFinalize
	stateDone
	stateTeardown
)

// Report summarizes a finished run for display.
type Report struct {
	OutputRoot string
	TarFile    string
	Commands   int
	CopyStats  copier.Stats
	LoaderDirs int
	Elapsed    time.Duration
}

// Engine drives one minimization run. It is single-threaded; child
// processes are spawned synchronously and joined before work continues.
type Engine struct {
	cfg    *config.Config
	tools  *system.Tools
	runner system.Runner

	ctx      *analyzers.Context
	pipeline *analyzers.Pipeline
	strace   *analyzers.StraceAnalyzer

	tmpDir string
	state  state
	logger zerolog.Logger
}

// New validates the configuration, discovers the external tools, prunes
// analyzers whose optional tool is missing and prepares the output root.
// Validation failures here are fatal. Run can still fail while seeding (an
// include that cannot be copied, a malformed execution line) or finalizing
// (the loader config or the archive cannot be written); analyzer failures
// during the drain never are.
func New(cfg *config.Config) (*Engine, error) {
	logger := logging.GetLogger("engine")

	e := &Engine{
		cfg:    cfg,
		runner: system.NewRunner(),
		state:  stateInit,
		logger: logger,
	}

	tmpDir, err := os.MkdirTemp("", "minicon-")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDirCreate, "cannot create temporary directory")
	}
	e.tmpDir = tmpDir

	if cfg.OutputRoot == "" {
		cfg.OutputRoot = filepath.Join(tmpDir, "rootfs")
	}
	if err := e.validateOutputRoot(); err != nil {
		e.Teardown()
		return nil, err
	}

	e.tools = system.Discover(
		system.ToolStrace,
		system.ToolFile,
		system.ToolLdd,
		system.ToolLdconfig,
		system.ToolTar,
		system.ToolRsync,
	)
	if err := e.pruneAnalyzers(); err != nil {
		e.Teardown()
		return nil, err
	}

	ruleSet, err := rules.NewSet(cfg.Excludes, cfg.Includes, cfg.ExcludeCommon)
	if err != nil {
		e.Teardown()
		return nil, err
	}

	mode, err := config.ParseMode(cfg.Plugins.Param(config.PluginStrace, "mode", ""))
	if err != nil {
		e.Teardown()
		return nil, err
	}

	var execVectors [][]string
	if execFile := cfg.Plugins.Param(config.PluginStrace, "execfile", ""); execFile != "" {
		execVectors, err = analyzers.LoadExecFile(execFile)
		if err != nil {
			e.Teardown()
			return nil, errors.Wrapf(err, errors.ErrFileNotFound, "cannot read execfile %s", execFile)
		}
	}

	res := resolver.New(cfg.OutputRoot, cfg.DryRun)

	var rsyncPath string
	if path, ok := e.tools.Path(system.ToolRsync); ok {
		rsyncPath = path
	}
	cp := copier.New(copier.Options{
		OutputRoot: cfg.OutputRoot,
		Resolver:   res,
		Rules:      ruleSet,
		Runner:     e.runner,
		RsyncPath:  rsyncPath,
		DryRun:     cfg.DryRun,
	})

	var loader *ldso.Config
	if cfg.Ldconfig {
		loader = ldso.New(cfg.LoaderConfig)
	}

	e.ctx = &analyzers.Context{
		Queue:      queue.New(),
		Copier:     cp,
		Resolver:   res,
		Rules:      ruleSet,
		Plugins:    cfg.Plugins,
		Mode:       mode,
		Tools:      e.tools,
		Runner:     e.runner,
		Loader:     loader,
		OutputRoot: cfg.OutputRoot,
		TmpDir:     tmpDir,
		ShowOutput: cfg.Plugins.BoolParam(config.PluginStrace, "showoutput", false),
	}

	e.strace = analyzers.NewStraceAnalyzer(execVectors)
	e.pipeline = analyzers.NewPipeline(cfg.Plugins, e.strace)

	logger.Debug().
		Strs("analyzers", e.pipeline.Names()).
		Str("root", cfg.OutputRoot).
		Str("mode", string(mode)).
		Msg("engine ready")

	return e, nil
}

// validateOutputRoot rejects dangerous roots and prepares the tree.
func (e *Engine) validateOutputRoot() error {
	root, err := filepath.Abs(e.cfg.OutputRoot)
	if err != nil {
		return errors.Wrapf(err, errors.ErrRootInvalid, "invalid output root %s", e.cfg.OutputRoot)
	}
	root = filepath.Clean(root)

	if _, forbidden := forbiddenRoots[root]; forbidden {
		return errors.Newf(errors.ErrRootInvalid, "refusing to build at %s", root)
	}
	parent := filepath.Dir(root)
	if _, err := os.Stat(parent); err != nil {
		return errors.Newf(errors.ErrRootInvalid, "parent of output root does not exist: %s", parent)
	}

	if entries, err := os.ReadDir(root); err == nil && len(entries) > 0 && !e.cfg.Force {
		return errors.Newf(errors.ErrRootInvalid, "output root %s is not empty (use --force to reuse it)", root)
	}

	if !e.cfg.DryRun {
		if err := os.MkdirAll(root, 0755); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "cannot create output root %s", root)
		}
		tmp := filepath.Join(root, "tmp")
		if err := os.MkdirAll(tmp, 0777); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", tmp)
		}
		if err := os.Chmod(tmp, os.ModeSticky|0777); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "cannot set mode on %s", tmp)
		}
	}

	e.cfg.OutputRoot = root
	return nil
}

// pruneAnalyzers drops analyzers whose optional tool is absent and fails
// when a required tool is missing.
func (e *Engine) pruneAnalyzers() error {
	cfg := e.cfg

	if cfg.Plugins.Active(config.PluginStrace) && !e.tools.Have(system.ToolStrace) {
		e.logger.Warn().Msg("strace not found, disabling trace analyzer")
		cfg.Plugins.Deactivate(config.PluginStrace)
	}
	if cfg.Plugins.Active(config.PluginScripts) && !e.tools.Have(system.ToolFile) {
		e.logger.Warn().Msg("file utility not found, disabling script analyzer")
		cfg.Plugins.Deactivate(config.PluginScripts)
	}
	if cfg.Plugins.Active(config.PluginLdd) && !e.tools.Have(system.ToolLdd) {
		return errors.New(errors.ErrToolMissing, "ldd is required for dynamic-library analysis")
	}
	if cfg.Ldconfig && !e.tools.Have(system.ToolLdconfig) {
		return errors.New(errors.ErrToolMissing, "ldconfig is required for loader-config rewriting (disable with --no-ldconfig)")
	}
	if cfg.TarFile != "" && !e.tools.Have(system.ToolTar) {
		return errors.New(errors.ErrToolMissing, "tar is required for archive emission")
	}
	if !e.tools.Have(system.ToolRsync) {
		e.logger.Warn().Msg("rsync not found, using the native copy fallback")
	}

	return nil
}

func (e *Engine) setState(s state) {
	e.logger.Debug().Int("from", int(e.state)).Int("to", int(s)).Msg("state transition")
	e.state = s
}

// Run executes the full pipeline and returns the run report.
func (e *Engine) Run() (*Report, error) {
	start := time.Now()

	e.setState(stateSeed)
	if err := e.seed(); err != nil {
		e.setState(stateTeardown)
		return nil, err
	}

	e.setState(stateDrain)
	e.drain()

	e.setState(stateFinalize)
	if err := e.finalize(); err != nil {
		e.setState(stateTeardown)
		return nil, err
	}

	e.setState(stateDone)

	report := &Report{
		OutputRoot: e.cfg.OutputRoot,
		TarFile:    e.cfg.TarFile,
		Commands:   len(e.ctx.Queue.History()),
		CopyStats:  e.ctx.Copier.Stats(),
		Elapsed:    time.Since(start),
	}
	if e.ctx.Loader != nil {
		report.LoaderDirs = len(e.ctx.Loader.Dirs())
	}
	return report, nil
}

// seed copies the forced includes, traces the user-declared executions so
// execve-discovered executables enter the queue in execution order, and
// enqueues the target commands.
func (e *Engine) seed() error {
	for _, include := range e.ctx.Rules.Included() {
		if err := e.ctx.Copier.Copy(include, true); err != nil {
			return err
		}
	}

	for _, target := range e.cfg.Targets {
		e.ctx.Queue.Enqueue(target)
	}

	var executions [][]string
	for _, line := range e.cfg.Executions {
		argv, err := config.SplitCommand(line)
		if err != nil {
			return err
		}
		if len(argv) > 0 {
			executions = append(executions, argv)
		}
	}
	if len(e.cfg.Commands) > 0 {
		executions = append(executions, e.cfg.Commands)
	}

	if e.cfg.Plugins.Active(config.PluginStrace) {
		for _, argv := range executions {
			e.strace.Trace(e.ctx, argv)
		}
	}

	for _, argv := range executions {
		e.ctx.Queue.Enqueue(argv[0])
	}

	return nil
}

// drain processes the queue through the analyzer chain until it is empty.
// Items enqueued by analyzers are handled in strict FIFO order.
func (e *Engine) drain() {
	for {
		item, ok := e.ctx.Queue.Next()
		if !ok {
			return
		}
		e.pipeline.Analyze(e.ctx, item)
	}
}

// finalize flushes the loader configuration, refreshes the loader cache
// rooted at the output tree and emits the archive.
func (e *Engine) finalize() error {
	if e.ctx.Loader != nil && !e.cfg.DryRun {
		if err := e.ctx.Loader.Flush(e.cfg.OutputRoot); err != nil {
			return err
		}
		ldconfigPath, _ := e.tools.Path(system.ToolLdconfig)
		if err := e.ctx.Loader.Refresh(e.runner, ldconfigPath, e.cfg.OutputRoot); err != nil {
			// a stale cache is inspectable; report but keep the tree
			e.logger.Error().Err(err).Msg("loader cache refresh failed")
		}
	}

	if e.cfg.TarFile != "" && !e.cfg.DryRun {
		tarPath, _ := e.tools.Path(system.ToolTar)
		if err := archive.Create(e.runner, tarPath, e.cfg.TarFile, e.cfg.OutputRoot); err != nil {
			return err
		}
	}

	return nil
}

// Teardown removes the temporary directory unless retention was requested.
func (e *Engine) Teardown() {
	e.setState(stateTeardown)
	if e.cfg.KeepTmp {
		e.logger.Info().Str("dir", e.tmpDir).Msg("keeping temporary directory")
		return
	}
	if e.tmpDir != "" {
		if err := os.RemoveAll(e.tmpDir); err != nil {
			e.logger.Warn().Err(err).Str("dir", e.tmpDir).Msg("cannot remove temporary directory")
		}
	}
}
