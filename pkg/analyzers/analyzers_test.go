package analyzers

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abdala/minicon/pkg/config"
	"github.com/abdala/minicon/pkg/copier"
	"github.com/abdala/minicon/pkg/ldso"
	"github.com/abdala/minicon/pkg/queue"
	"github.com/abdala/minicon/pkg/resolver"
	"github.com/abdala/minicon/pkg/rules"
	"github.com/abdala/minicon/pkg/system"
)

// fakeRunner serves canned output per tool and records invocations.
type fakeRunner struct {
	handler func(name string, args []string) ([]byte, error)
	calls   [][]string
}

func (f *fakeRunner) Output(name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.handler == nil {
		return nil, nil
	}
	return f.handler(name, args)
}

func (f *fakeRunner) Run(stdout, stderr io.Writer, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	return nil
}

func (f *fakeRunner) RunTimeout(timeout time.Duration, stdout, stderr io.Writer, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	return nil
}

// newTestContext builds a Context over temp dirs with the given tools and
// runner.
func newTestContext(t *testing.T, tools *system.Tools, runner system.Runner) *Context {
	t.Helper()
	out := t.TempDir()

	ruleSet, err := rules.NewSet(nil, nil, false)
	require.NoError(t, err)

	res := resolver.New(out, false)

	plugins := config.DefaultPlugins()
	plugins.ActivateAll()

	return &Context{
		Queue:    queue.New(),
		Resolver: res,
		Rules:    ruleSet,
		Plugins:  plugins,
		Mode:     config.ModeSkinny,
		Tools:    tools,
		Runner:   runner,
		Loader:   ldso.New(config.DefaultLoaderConfig),
		Copier: copier.New(copier.Options{
			OutputRoot: out,
			Resolver:   res,
			Rules:      ruleSet,
			Runner:     runner,
		}),
		OutputRoot: out,
		TmpDir:     t.TempDir(),
	}
}

func writeExecutable(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0755))
}
