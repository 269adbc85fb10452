package ldso

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls [][]string
	err   error
}

func (f *fakeRunner) Output(name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return nil, f.err
}

func (f *fakeRunner) Run(stdout, stderr io.Writer, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.err
}

func (f *fakeRunner) RunTimeout(timeout time.Duration, stdout, stderr io.Writer, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.err
}

func TestAdd_OrderedDedupe(t *testing.T) {
	c := New("etc/ld.so.conf")

	c.Add("/lib/x86_64-linux-gnu")
	c.Add("/lib64")
	c.Add("/lib/x86_64-linux-gnu")
	c.Add("")

	assert.Equal(t, []string{"/lib/x86_64-linux-gnu", "/lib64"}, c.Dirs())
}

func TestFlush_WritesConfig(t *testing.T) {
	root := t.TempDir()
	c := New("etc/ld.so.conf")
	c.Add("/lib64")
	c.Add("/usr/lib")

	require.NoError(t, c.Flush(root))

	data, err := os.ReadFile(filepath.Join(root, "etc", "ld.so.conf"))
	require.NoError(t, err)
	assert.Equal(t, "/lib64\n/usr/lib\n", string(data))
}

func TestFlush_MergesExistingLines(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "etc", "ld.so.conf")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("/usr/lib\n/usr/lib\ninclude /etc/ld.so.conf.d/*.conf\n"), 0644))

	c := New("etc/ld.so.conf")
	c.Add("/lib64")
	c.Add("/usr/lib")

	require.NoError(t, c.Flush(root))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// existing lines keep their position, duplicates collapse, new dirs append
	assert.Equal(t, "/usr/lib\ninclude /etc/ld.so.conf.d/*.conf\n/lib64\n", string(data))
}

func TestFlush_NothingToWrite(t *testing.T) {
	root := t.TempDir()
	c := New("etc/ld.so.conf")

	require.NoError(t, c.Flush(root))
	assert.NoFileExists(t, filepath.Join(root, "etc", "ld.so.conf"))
}

func TestRefresh_RunsLdconfig(t *testing.T) {
	runner := &fakeRunner{}
	c := New("etc/ld.so.conf")

	require.NoError(t, c.Refresh(runner, "/sbin/ldconfig", "/build/rootfs"))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"/sbin/ldconfig", "-r", "/build/rootfs"}, runner.calls[0])
}
