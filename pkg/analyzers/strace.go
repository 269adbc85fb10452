package analyzers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/abdala/minicon/pkg/config"
	"github.com/abdala/minicon/pkg/logging"
	"github.com/abdala/minicon/pkg/rules"
	"github.com/abdala/minicon/pkg/system"
)

// defaultTraceSeconds bounds a traced run unless the seconds parameter
// overrides it.
const defaultTraceSeconds = 3

var (
	// syscallRe picks the syscall name off a trace line, skipping the pid
	// column emitted under fork following.
	syscallRe = regexp.MustCompile(`^(?:\[pid\s+\d+\]\s+|\d+\s+)?([a-z0-9_]+)\(`)
	// quotedRe extracts the quoted string arguments of a recorded syscall.
	quotedRe = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

// StraceAnalyzer observes a command under the syscall tracer for a bounded
// interval and folds every recorded file access into the closure. It is
// invoked directly for user-declared executions before the queue drain, and
// participates in the chain only to match queued commands against execfile
// vectors.
type StraceAnalyzer struct {
	traced   map[string]struct{}
	vectors  [][]string
	runCount int
	logger   zerolog.Logger
}

// NewStraceAnalyzer returns a trace analyzer. vectors are the execfile
// command lines, one vector per line.
func NewStraceAnalyzer(vectors [][]string) *StraceAnalyzer {
	return &StraceAnalyzer{
		traced:  make(map[string]struct{}),
		vectors: vectors,
		logger:  logging.GetLogger("analyzers.strace"),
	}
}

func (a *StraceAnalyzer) Name() string {
	return config.PluginStrace
}

// Run matches the queued command against the execfile vectors: when the
// resolved path equals any token of a line, the whole line is traced.
func (a *StraceAnalyzer) Run(ctx *Context, item string) (Verdict, error) {
	for _, vector := range a.vectors {
		for _, token := range vector {
			if token == item {
				a.Trace(ctx, vector)
				break
			}
		}
	}
	return Continue, nil
}

// LoadExecFile parses an execfile: one command line per line, blank lines
// and #-comments skipped.
func LoadExecFile(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var vectors [][]string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		argv, err := config.SplitCommand(line)
		if err != nil {
			return nil, err
		}
		if len(argv) > 0 {
			vectors = append(vectors, argv)
		}
	}
	return vectors, nil
}

// Trace runs argv under the tracer and processes every recorded path. A
// vector is traced at most once per run; the timeout kill is expected and
// not an error.
func (a *StraceAnalyzer) Trace(ctx *Context, argv []string) {
	if len(argv) == 0 {
		return
	}

	key := strings.Join(argv, "\x1f")
	if _, done := a.traced[key]; done {
		return
	}
	a.traced[key] = struct{}{}

	stracePath, ok := ctx.Tools.Path(system.ToolStrace)
	if !ok {
		return
	}

	a.runCount++
	logPath := filepath.Join(ctx.TmpDir, fmt.Sprintf("strace-%d.log", a.runCount))

	seconds := defaultTraceSeconds
	if raw := ctx.Plugins.Param(config.PluginStrace, "seconds", ""); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			seconds = parsed
		} else {
			a.logger.Warn().Str("seconds", raw).Msg("invalid seconds parameter, using default")
		}
	}

	var stdout, stderr io.Writer
	if ctx.ShowOutput {
		stdout, stderr = os.Stdout, os.Stderr
	}

	a.logger.Info().Strs("argv", argv).Int("seconds", seconds).Msg("tracing")

	args := append([]string{"-f", "-e", "trace=file", "-o", logPath, "--"}, argv...)
	if err := ctx.Runner.RunTimeout(time.Duration(seconds)*time.Second, stdout, stderr, stracePath, args...); err != nil {
		// the traced program failing is fine; the log still holds its accesses
		a.logger.Debug().Err(err).Strs("argv", argv).Msg("traced command exited with error")
	}

	execs, opened, all := a.parseTraceLog(logPath)
	a.process(ctx, execs, opened, all)

	binary := argv[0]
	if !filepath.IsAbs(binary) {
		if resolved, err := system.Which(binary); err == nil {
			binary = resolved
		}
	}
	if err := ctx.Copier.Copy(binary, false); err != nil {
		a.logger.Warn().Err(err).Str("binary", binary).Msg("cannot copy traced binary")
	}
}

// parseTraceLog extracts the quoted path arguments of every recorded
// syscall, split into exec targets, open/mkdir arguments and the full set.
func (a *StraceAnalyzer) parseTraceLog(logPath string) (execs, opened, all map[string]struct{}) {
	execs = make(map[string]struct{})
	opened = make(map[string]struct{})
	all = make(map[string]struct{})

	data, err := os.ReadFile(logPath)
	if err != nil {
		a.logger.Debug().Err(err).Str("log", logPath).Msg("no trace log to parse")
		return execs, opened, all
	}

	for _, line := range strings.Split(string(data), "\n") {
		m := syscallRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		syscall := m[1]

		for _, q := range quotedRe.FindAllStringSubmatch(line, -1) {
			path := q[1]
			if !validTracePath(path) {
				continue
			}
			all[path] = struct{}{}
			switch {
			case strings.HasPrefix(syscall, "exec"):
				execs[path] = struct{}{}
			case syscall == "open" || syscall == "openat" || syscall == "creat" ||
				syscall == "mkdir" || syscall == "mkdirat":
				opened[path] = struct{}{}
			}
		}
	}
	return execs, opened, all
}

// process applies the mode policy to every validated path in lexicographic
// order, so identical inputs give identical output trees.
func (a *StraceAnalyzer) process(ctx *Context, execs, opened, all map[string]struct{}) {
	paths := make([]string, 0, len(all))
	for p := range all {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			a.logger.Debug().Str("path", path).Msg("traced path vanished, skipping")
			continue
		}

		if _, isExec := execs[path]; isExec {
			ctx.Queue.Enqueue(path)
			continue
		}

		_, wasOpened := opened[path]

		if info.IsDir() {
			if wasOpened && ctx.Mode.CopiesUsedDirs() && !rules.IsStock(path) {
				a.copyQuiet(ctx, path, true)
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		if libLike(path) {
			ctx.Queue.Enqueue(path)
		} else {
			a.copyQuiet(ctx, path, false)
		}

		parent := filepath.Dir(path)
		switch {
		case ctx.Mode.CopiesAllParents() && !rules.IsStock(parent):
			a.copyQuiet(ctx, parent, true)
		case wasOpened && ctx.Mode.CopiesOpenParents() && !rules.IsStock(parent):
			a.copyQuiet(ctx, parent, true)
		}
	}
}

func (a *StraceAnalyzer) copyQuiet(ctx *Context, path string, recursive bool) {
	if err := ctx.Copier.Copy(path, recursive); err != nil {
		a.logger.Debug().Err(err).Str("path", path).Msg("cannot copy traced path")
	}
}

// validTracePath drops quoted strings that cannot name a useful path: the
// empty string, "/", "." and "..", and flag-looking strings starting with
// "!" or "-". Relative paths pass; existence is checked later by process.
func validTracePath(path string) bool {
	switch path {
	case "", "/", ".", "..":
		return false
	}
	if strings.HasPrefix(path, "!") || strings.HasPrefix(path, "-") {
		return false
	}
	return true
}

// libLike reports whether the basename looks like a shared library that
// should go through dynamic-library analysis instead of a verbatim copy.
func libLike(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, "lib") || strings.HasSuffix(base, ".so") ||
		strings.Contains(base, ".so.")
}
