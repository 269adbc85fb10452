// Package system locates and runs the external tools the engine depends on:
// the syscall tracer, the linker introspector, the loader-cache refresher,
// the file-typing utility, the archiver and the whitelisting copier.
package system

import (
	"context"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/abdala/minicon/pkg/logging"
)

// Tool names looked up on PATH at startup.
const (
	ToolStrace   = "strace"
	ToolFile     = "file"
	ToolLdd      = "ldd"
	ToolLdconfig = "ldconfig"
	ToolTar      = "tar"
	ToolRsync    = "rsync"
)

// Tools records which external tools are present and where.
type Tools struct {
	paths map[string]string
}

// Discover looks up every named tool on PATH. Absent tools are recorded as
// missing, not treated as errors; the engine decides which ones are fatal.
func Discover(names ...string) *Tools {
	logger := logging.GetLogger("system")
	t := &Tools{paths: make(map[string]string)}
	for _, name := range names {
		path, err := exec.LookPath(name)
		if err != nil {
			logger.Debug().Str("tool", name).Msg("tool not found on PATH")
			continue
		}
		t.paths[name] = path
	}
	return t
}

// NewTools builds a Tools set from known paths, bypassing PATH lookup.
// Tests use it to stand in fake tools.
func NewTools(paths map[string]string) *Tools {
	t := &Tools{paths: make(map[string]string, len(paths))}
	for name, path := range paths {
		t.paths[name] = path
	}
	return t
}

// Path returns the absolute path of a discovered tool.
func (t *Tools) Path(name string) (string, bool) {
	path, ok := t.paths[name]
	return path, ok
}

// Have reports whether the tool was found at startup.
func (t *Tools) Have(name string) bool {
	_, ok := t.paths[name]
	return ok
}

// Runner executes external processes synchronously. The engine is
// single-threaded; every child is joined before work continues.
type Runner interface {
	// Output runs a tool and returns its combined stdout and stderr.
	Output(name string, args ...string) ([]byte, error)

	// Run executes a tool, streaming its output to the given writers.
	// Either writer may be nil to discard that stream.
	Run(stdout, stderr io.Writer, name string, args ...string) error

	// RunTimeout executes a tool under a hard deadline. The process group
	// receives SIGKILL when the deadline passes; hitting the deadline is
	// expected behavior, not an error.
	RunTimeout(timeout time.Duration, stdout, stderr io.Writer, name string, args ...string) error
}

// NewRunner returns the process-spawning Runner used outside tests.
func NewRunner() Runner {
	return &execRunner{}
}

type execRunner struct{}

func (r *execRunner) Output(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	// keep LD_PRELOAD and friends out of introspection runs
	cmd.Env = []string{}
	return cmd.CombinedOutput()
}

func (r *execRunner) Run(stdout, stderr io.Writer, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

func (r *execRunner) RunTimeout(timeout time.Duration, stdout, stderr io.Writer, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// negative pid kills the whole process group
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil
	}
	return err
}

// Which resolves a bare command name through PATH lookup.
func Which(name string) (string, error) {
	return exec.LookPath(name)
}
